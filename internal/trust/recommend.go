package trust

// Recommendation names the tier a score lands in.
type Recommendation string

const (
	RecommendPermanentBan   Recommendation = "permanent_ban_eligible"
	RecommendShadowRestrict Recommendation = "shadow_restrict"
	RecommendRateLimit      Recommendation = "rate_limit"
	RecommendWatch          Recommendation = "watch"
	RecommendNoAction       Recommendation = "no_action"
)

// Action is a concrete moderation step an admin can take from a suggestion.
type Action string

const (
	ActionPermanentBan   Action = "permanent_ban"
	ActionTemporaryBlock Action = "temporary_block"
	ActionShadowRestrict Action = "shadow_restrict"
	ActionRateLimit      Action = "rate_limit"
	ActionRequireEmail   Action = "require_email"
	ActionWatch          Action = "watch"
	ActionNone           Action = "none"
	ActionMergeReview    Action = "merge_review"
)

// Suggestion pairs an actionable step with admin-facing wording.
type Suggestion struct {
	Action Action `json:"action"`
	Text   string `json:"text"`
}

// Recommend maps a clamped score onto its tier.
func Recommend(score int) Recommendation {
	switch {
	case score >= 90:
		return RecommendPermanentBan
	case score >= 70:
		return RecommendShadowRestrict
	case score >= 50:
		return RecommendRateLimit
	case score >= 30:
		return RecommendWatch
	default:
		return RecommendNoAction
	}
}

// Suggest expands a tier into the ordered suggestion list shown to admins.
// Identities at the top tier get both escalation options; a registered
// account sharing the identity's address always appends a merge review.
func Suggest(score int, hasEmail, sharedIPRegistered bool) []Suggestion {
	var out []Suggestion

	switch Recommend(score) {
	case RecommendPermanentBan:
		out = append(out,
			Suggestion{Action: ActionTemporaryBlock, Text: "Apply a temporary block while reviewing recent activity."},
			Suggestion{Action: ActionPermanentBan, Text: "Score qualifies for a permanent ban."},
		)
	case RecommendShadowRestrict:
		out = append(out,
			Suggestion{Action: ActionShadowRestrict, Text: "Shadow-restrict: content stays visible only to its author."})
	case RecommendRateLimit:
		out = append(out,
			Suggestion{Action: ActionRateLimit, Text: "Rate-limit posting until the score recovers."})
		if !hasEmail {
			out = append(out,
				Suggestion{Action: ActionRequireEmail, Text: "Require an email address before further posting."})
		}
	case RecommendWatch:
		out = append(out,
			Suggestion{Action: ActionWatch, Text: "Keep on the watch list; no enforcement yet."})
	default:
		out = append(out,
			Suggestion{Action: ActionNone, Text: "No action needed."})
	}

	if sharedIPRegistered {
		out = append(out, Suggestion{
			Action: ActionMergeReview,
			Text:   "A registered account was seen on the same address; review for a manual merge.",
		})
	}

	return out
}
