package identity

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an anonymous identity. Once merged the
// record is immutable except for audit metadata.
type Status string

const (
	StatusActive     Status = "active"
	StatusRestricted Status = "restricted"
	StatusBlocked    Status = "blocked"
	StatusMerged     Status = "merged"
)

// Kind discriminates the two identity families a request can resolve to.
type Kind string

const (
	KindAnonymous  Kind = "anonymous"
	KindRegistered Kind = "registered"
)

// MatchType reports which signal resolved the request.
type MatchType string

const (
	MatchToken       MatchType = "token"
	MatchFingerprint MatchType = "fingerprint"
	MatchSoftLink    MatchType = "soft_link"
	MatchCreated     MatchType = "created"
	MatchSession     MatchType = "session"
)

// Role of a registered account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// FlagAction distinguishes the enforcement weight of a moderation flag.
type FlagAction string

const (
	FlagActionFlag     FlagAction = "flag"
	FlagActionRestrict FlagAction = "restrict"
	FlagActionBlock    FlagAction = "block"
)

// ModerationFlag is one enforcement note attached to an anonymous identity.
// The ordered list doubles as enforcement history: a past block stays visible
// even after the identity is reactivated.
type ModerationFlag struct {
	Action    FlagAction `json:"action"`
	Reason    string     `json:"reason"`
	ActorID   uuid.UUID  `json:"actor_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// Device is the structured device record kept per identity. Optional fields
// stay typed rather than living in an open-ended map so new signal types are
// added as columns, not blob keys.
type Device struct {
	DisplayName string `json:"display_name,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Language    string `json:"language,omitempty"`
}

// Anonymous is a visitor record not yet tied to a registered account
// ("guest"). The bearer token is generated server-side and is the primary
// resolution key; the fingerprint hash is the secondary key.
type Anonymous struct {
	ID              uuid.UUID
	Token           string
	FingerprintHash string
	Email           string
	EmailVerified   bool
	TrustScore      int
	PostCount       int
	CommentCount    int
	PageViews       int
	Status          Status
	Flags           []ModerationFlag
	Device          Device
	FirstSeen       time.Time
	LastSeen        time.Time

	// Set exactly once by the merge engine and never cleared.
	MergedUserID *uuid.UUID
	MergedAt     *time.Time
}

// DefaultTrustScore is the neutral starting point for new visitors.
const DefaultTrustScore = 50

// Merged reports whether this identity has been claimed by a registered
// account. Merged identities are never resolvable and never mutated again.
func (a *Anonymous) Merged() bool {
	return a.Status == StatusMerged || a.MergedUserID != nil
}

// PreviouslyBlocked reports whether any historical block record exists,
// regardless of current status.
func (a *Anonymous) PreviouslyBlocked() bool {
	if a.Status == StatusBlocked {
		return true
	}
	for _, f := range a.Flags {
		if f.Action == FlagActionBlock {
			return true
		}
	}
	return false
}

// Registered is a durable account. Authentication credentials are owned by
// the external auth collaborator and never stored here.
type Registered struct {
	ID        uuid.UUID
	Username  string
	Role      Role
	CreatedAt time.Time
}

// Actor identifies the caller of a privileged or state-changing operation.
// Threaded explicitly through every admin-only call; there is no ambient
// "current admin".
type Actor struct {
	ID     uuid.UUID
	Role   Role
	System bool
}

// SystemActor is used for self-service flows triggered by the platform
// itself, e.g. auto-merge on registration.
func SystemActor() Actor {
	return Actor{System: true}
}

// IsAdmin reports whether the actor holds administrative privilege.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
