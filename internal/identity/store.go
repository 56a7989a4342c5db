package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CounterKind names the per-identity activity counters.
type CounterKind string

const (
	CounterPosts    CounterKind = "posts"
	CounterComments CounterKind = "comments"
)

// Store persists anonymous identities. Stores are interface-driven so the
// resolver, merge engine, and investigation service stay testable against the
// in-memory implementation.
//
// Implementations return sentinel.ErrNotFound for missing records,
// sentinel.ErrConflict for token collisions, and sentinel.ErrInvalidState
// when ClaimMerged hits an already-merged identity.
type Store interface {
	Create(ctx context.Context, anon *Anonymous) error
	FindByID(ctx context.Context, id uuid.UUID) (*Anonymous, error)
	FindByToken(ctx context.Context, token string) (*Anonymous, error)
	// FindByFingerprint returns the earliest-created unmerged identity for
	// the hash, so concurrent duplicate creations converge on later requests.
	FindByFingerprint(ctx context.Context, fingerprintHash string) (*Anonymous, error)
	// Update rewrites non-identity fields (device, email, score, counters).
	// Last writer wins; the id, token, and merge fields are never changed here.
	Update(ctx context.Context, anon *Anonymous) error
	// Touch bumps page_views and last_seen for lightweight requests.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	IncrementCounter(ctx context.Context, id uuid.UUID, kind CounterKind, at time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error
	AddFlag(ctx context.Context, id uuid.UUID, flag ModerationFlag) error
	// ClaimMerged is the check-and-set that makes a merge single-shot: it
	// succeeds only while merged_user_id is unset and status is not merged.
	ClaimMerged(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Anonymous, error)
}

// UserStore reads registered accounts. Account creation and credentials live
// with the external auth collaborator; this core only needs lookups.
type UserStore interface {
	Save(ctx context.Context, user Registered) error
	FindByID(ctx context.Context, id uuid.UUID) (*Registered, error)
	FindByUsername(ctx context.Context, username string) (*Registered, error)
}
