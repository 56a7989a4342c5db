package trust

import "time"

// InputVersion tracks the shape of RiskInput so persisted assessments can be
// replayed against the rule set that produced them.
const InputVersion = 1

// RiskInput is the explicit, versioned snapshot the scorer evaluates. It is
// assembled from stores by the service layer; the scoring rules themselves
// never touch a database.
type RiskInput struct {
	Version int
	Now     time.Time

	FirstSeen     time.Time
	HasEmail      bool
	EmailVerified bool

	// NetworkKnown is false when no network observation exists; VPN and Tor
	// deltas are omitted rather than guessed.
	NetworkKnown bool
	VPN          bool
	Tor          bool

	PostsFirst24h     int
	PreviouslyBlocked bool
	FlagCount         int

	Patterns PatternStats

	// SharedIPIdentities counts distinct other identities observed from the
	// same real IP. SharedIPRegistered is true when one of them is a
	// registered account, which triggers a merge-review suggestion.
	SharedIPIdentities int
	SharedIPRegistered bool
}

// Factor is one contributing rule with its signed point delta. Pattern
// findings carry a zero delta: they explain, they do not add.
type Factor struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Delta  int    `json:"delta"`
}

// Assessment is the scorer's full output: a clamped score, the ordered
// factor lists, and the tier recommendation.
type Assessment struct {
	Score          int            `json:"score"`
	RiskFactors    []Factor       `json:"risk_factors"`
	TrustFactors   []Factor       `json:"trust_factors"`
	Recommendation Recommendation `json:"recommendation"`
}

// PatternStats are the behavioral figures detected over an identity's own
// content, separate from the additive score.
type PatternStats struct {
	// RapidPosts counts consecutive post pairs closer than a minute apart.
	RapidPosts int `json:"rapid_posts"`
	// DuplicatePosts counts posts whose leading 200-character prefix is
	// non-unique within the identity's own posts.
	DuplicatePosts int `json:"duplicate_posts"`
}
