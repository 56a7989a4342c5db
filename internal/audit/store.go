package audit

import (
	"context"

	"github.com/google/uuid"
)

// Store persists audit events. Save participates in an ambient transaction
// when one is carried on the context, so an audit row commits or rolls back
// with the change it describes.
type Store interface {
	Save(ctx context.Context, ev *Event) error
	// ListBySubject returns events about one identity, newest first, capped
	// at limit (0 means no cap).
	ListBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]Event, error)
}
