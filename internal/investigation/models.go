package investigation

import (
	"time"

	"github.com/google/uuid"

	"termtrust/internal/identity"
	"termtrust/internal/network"
	"termtrust/internal/trust"
)

const (
	contentSampleLimit = 50
	previewLen         = 200
)

// Dossier is the full read-only picture an operator sees for one anonymous
// identity. Assembling it never mutates anything.
type Dossier struct {
	Identity IdentitySummary `json:"identity"`
	// Network is the most recent observation, already stripped of the raw
	// IP by its serialization rules. Nil when none exists.
	Network  *network.Observation `json:"network,omitempty"`
	Posts    []ContentPreview     `json:"posts"`
	Comments []ContentPreview     `json:"comments"`
	Patterns trust.PatternStats   `json:"patterns"`
	// SharedIdentities lists other identities seen from the same addresses.
	SharedIdentities []SharedIdentity `json:"shared_identities"`
	Risk             trust.Assessment `json:"risk"`
}

// IdentitySummary is the operator-facing projection of an identity. The
// bearer token stays out of it.
type IdentitySummary struct {
	ID              uuid.UUID                 `json:"id"`
	FingerprintHash string                    `json:"fingerprint_hash,omitempty"`
	Email           string                    `json:"email,omitempty"`
	EmailVerified   bool                      `json:"email_verified"`
	TrustScore      int                       `json:"trust_score"`
	PostCount       int                       `json:"post_count"`
	CommentCount    int                       `json:"comment_count"`
	PageViews       int                       `json:"page_views"`
	Status          identity.Status           `json:"status"`
	Flags           []identity.ModerationFlag `json:"flags"`
	Device          identity.Device           `json:"device"`
	FirstSeen       time.Time                 `json:"first_seen"`
	LastSeen        time.Time                 `json:"last_seen"`
}

// ContentPreview is a truncated view of one owned record.
type ContentPreview struct {
	ID        uuid.UUID `json:"id"`
	Preview   string    `json:"preview"`
	Truncated bool      `json:"truncated"`
	CreatedAt time.Time `json:"created_at"`
}

// SharedIdentity is another identity observed from one of the subject's
// network contexts.
type SharedIdentity struct {
	ID         uuid.UUID         `json:"id"`
	Kind       network.OwnerKind `json:"kind"`
	TrustScore int               `json:"trust_score,omitempty"`
	Status     identity.Status   `json:"status,omitempty"`
	LastSeen   time.Time         `json:"last_seen"`
}

// Advice is the suggest-action response: the current assessment plus the
// advisory suggestion list. Executing any of it is a separate, confirmed
// operation.
type Advice struct {
	Score          int                  `json:"score"`
	Recommendation trust.Recommendation `json:"recommendation"`
	Suggestions    []trust.Suggestion   `json:"suggestions"`
}

func summarize(anon *identity.Anonymous) IdentitySummary {
	return IdentitySummary{
		ID:              anon.ID,
		FingerprintHash: anon.FingerprintHash,
		Email:           anon.Email,
		EmailVerified:   anon.EmailVerified,
		TrustScore:      anon.TrustScore,
		PostCount:       anon.PostCount,
		CommentCount:    anon.CommentCount,
		PageViews:       anon.PageViews,
		Status:          anon.Status,
		Flags:           anon.Flags,
		Device:          anon.Device,
		FirstSeen:       anon.FirstSeen,
		LastSeen:        anon.LastSeen,
	}
}

func preview(body string) (string, bool) {
	runes := []rune(body)
	if len(runes) <= previewLen {
		return body, false
	}
	return string(runes[:previewLen]), true
}
