package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists activity records per kind.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	// ListByAnonymous returns the newest records of one kind for an identity,
	// newest first, capped at limit (0 means no cap).
	ListByAnonymous(ctx context.Context, anonID uuid.UUID, kind Kind, limit int) ([]Record, error)
	// CountByAnonymousBefore counts records of one kind created at or before
	// the cutoff. Unlike a capped list, the count stays exact however much the
	// identity has posted since.
	CountByAnonymousBefore(ctx context.Context, anonID uuid.UUID, kind Kind, cutoff time.Time) (int, error)
	// ReassignOwner re-points every record of one kind from the anonymous
	// identity to the registered identity, flipping the author discriminator,
	// and reports the number of rows actually mutated. A kind with no backing
	// table reports zero rows, not an error.
	ReassignOwner(ctx context.Context, kind Kind, anonID, userID uuid.UUID) (int64, error)
	CountByAnonymous(ctx context.Context, anonID uuid.UUID) (int, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}
