package activity

import (
	"context"
	"fmt"

	"termtrust/internal/identity"
)

// Recorder is the inbound seam for the CRUD collaborator: it persists a
// content record and keeps the owning identity's counters in step. Content
// rendering, threads, and reactions themselves are out of scope.
type Recorder struct {
	store      Store
	identities identity.Store
}

func NewRecorder(store Store, identities identity.Store) *Recorder {
	return &Recorder{store: store, identities: identities}
}

// Record saves the activity record and bumps the matching identity counter
// for anonymous-owned posts and comments.
func (r *Recorder) Record(ctx context.Context, rec *Record) error {
	if err := r.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save activity: %w", err)
	}
	if rec.AuthorType != AuthorAnonymous || rec.AnonymousID == nil {
		return nil
	}
	var counter identity.CounterKind
	switch rec.Kind {
	case KindPost:
		counter = identity.CounterPosts
	case KindComment:
		counter = identity.CounterComments
	default:
		return nil
	}
	if err := r.identities.IncrementCounter(ctx, *rec.AnonymousID, counter, rec.CreatedAt); err != nil {
		return fmt.Errorf("bump %s counter: %w", counter, err)
	}
	return nil
}
