package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit event.
type Kind string

const (
	KindIdentityCreated Kind = "identity_created"
	KindMergeCompleted  Kind = "merge_completed"
	KindStatusChanged   Kind = "status_changed"
	KindFlagAdded       Kind = "flag_added"
)

// SubjectKind tells which identity family the event is about.
type SubjectKind string

const (
	SubjectAnonymous  SubjectKind = "anonymous"
	SubjectRegistered SubjectKind = "registered"
)

// Event is one immutable audit record. Events are persisted inside the same
// transaction as the change they describe and fanned out to the external
// sink afterwards.
type Event struct {
	ID          uuid.UUID   `json:"id"`
	Kind        Kind        `json:"kind"`
	SubjectKind SubjectKind `json:"subject_kind"`
	SubjectID   uuid.UUID   `json:"subject_id"`

	// ActorID is nil for platform-initiated events (System true).
	ActorID *uuid.UUID `json:"actor_id,omitempty"`
	System  bool       `json:"system"`

	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Payload carries the event-specific detail. Only the fields relevant to the
// event kind are populated; the rest stay at their zero value and drop out of
// the JSON encoding.
type Payload struct {
	// Merge events.
	MergeTrigger string           `json:"merge_trigger,omitempty"`
	TargetUserID *uuid.UUID       `json:"target_user_id,omitempty"`
	Reassigned   map[string]int64 `json:"reassigned,omitempty"`
	Snapshot     *Snapshot        `json:"snapshot,omitempty"`

	// Status and flag events.
	StatusFrom string `json:"status_from,omitempty"`
	StatusTo   string `json:"status_to,omitempty"`
	FlagAction string `json:"flag_action,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Snapshot freezes an anonymous identity's state at merge time. Merges are
// irreversible; this record is what remains of the pre-merge identity. The
// bearer token is deliberately absent.
type Snapshot struct {
	FingerprintHash string    `json:"fingerprint_hash,omitempty"`
	Email           string    `json:"email,omitempty"`
	EmailVerified   bool      `json:"email_verified"`
	TrustScore      int       `json:"trust_score"`
	PostCount       int       `json:"post_count"`
	CommentCount    int       `json:"comment_count"`
	PageViews       int       `json:"page_views"`
	Status          string    `json:"status"`
	FlagCount       int       `json:"flag_count"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
}
