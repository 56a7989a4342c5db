package network

import (
	"context"

	"github.com/google/uuid"
)

// ObservationStore persists network observations, keyed by (owner, ip hash).
// One identity accumulates one row per distinct network context.
type ObservationStore interface {
	// Upsert inserts a new observation or bumps last_seen and refreshes the
	// reputation fields on an existing (owner, ip hash) pair.
	Upsert(ctx context.Context, obs *Observation) error
	LatestByOwner(ctx context.Context, ownerID uuid.UUID) (*Observation, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Observation, error)
	// ListByIPHash returns every observation sharing a network context,
	// across identities; sockpuppet correlation and merge-review suggestions
	// are built on it.
	ListByIPHash(ctx context.Context, ipHash string) ([]Observation, error)
}
