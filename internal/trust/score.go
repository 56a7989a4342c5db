package trust

import (
	"fmt"
	"time"
)

const (
	// BaseScore is the neutral starting point for every identity.
	BaseScore = 50
	minScore  = 0
	maxScore  = 100

	velocityThreshold = 10
	velocityWindow    = 24 * time.Hour
	tenureThreshold   = 30 * 24 * time.Hour
)

// Score applies the additive rule set to a snapshot. Rules fire in a fixed
// order so two runs over the same input produce byte-identical factor lists.
func Score(in RiskInput) Assessment {
	score := BaseScore
	var risk, trust []Factor

	addRisk := func(code, detail string, delta int) {
		score += delta
		risk = append(risk, Factor{Code: code, Detail: detail, Delta: delta})
	}
	addTrust := func(code, detail string, delta int) {
		score += delta
		trust = append(trust, Factor{Code: code, Detail: detail, Delta: delta})
	}

	if in.NetworkKnown && (in.VPN || in.Tor) {
		detail := "connecting network classified as VPN or hosting provider"
		if in.Tor {
			detail = "connecting network classified as a Tor relay"
		}
		addRisk("anonymizing_network", detail, 20)
	}

	switch {
	case !in.HasEmail:
		addRisk("no_email", "no email address on record", 15)
	case !in.EmailVerified:
		addRisk("unverified_email", "email address present but never verified", 10)
	}

	if in.PostsFirst24h > velocityThreshold {
		addRisk("high_velocity",
			fmt.Sprintf("%d posts within the first 24 hours of existence", in.PostsFirst24h), 25)
	}

	if in.PreviouslyBlocked {
		addRisk("previously_blocked", "identity carries a prior block action", 30)
	}

	if in.HasEmail && in.EmailVerified {
		addTrust("verified_email", "email address verified", -20)
	}

	if !in.FirstSeen.IsZero() && in.Now.Sub(in.FirstSeen) > tenureThreshold {
		addTrust("long_tenure", "identity older than 30 days", -15)
	}

	if in.FlagCount == 0 {
		addTrust("clean_record", "no moderation flags on record", -10)
	}

	if in.Patterns.RapidPosts > 0 {
		risk = append(risk, Factor{
			Code:   "rapid_posting",
			Detail: fmt.Sprintf("%d posts published less than a minute apart", in.Patterns.RapidPosts),
		})
	}
	if in.Patterns.DuplicatePosts > 0 {
		risk = append(risk, Factor{
			Code:   "duplicate_content",
			Detail: fmt.Sprintf("%d posts share a near-identical opening", in.Patterns.DuplicatePosts),
		})
	}
	if in.SharedIPIdentities > 0 {
		risk = append(risk, Factor{
			Code:   "sockpuppet_network",
			Detail: fmt.Sprintf("%d other identities observed from the same address", in.SharedIPIdentities),
		})
	}

	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}

	return Assessment{
		Score:          score,
		RiskFactors:    risk,
		TrustFactors:   trust,
		Recommendation: Recommend(score),
	}
}
