package merge

import (
	"time"

	"github.com/google/uuid"
)

// Trigger records what initiated a merge.
type Trigger string

const (
	TriggerAuto  Trigger = "auto"
	TriggerAdmin Trigger = "admin"
)

// Result summarizes one completed (or no-op) merge.
type Result struct {
	AnonymousID uuid.UUID        `json:"anonymous_id,omitempty"`
	UserID      uuid.UUID        `json:"user_id"`
	Trigger     Trigger          `json:"trigger"`
	Reassigned  map[string]int64 `json:"reassigned,omitempty"`
	// Merged is false when auto-merge found nothing to claim; that outcome
	// is still a success.
	Merged   bool      `json:"merged"`
	MergedAt time.Time `json:"merged_at,omitempty"`
	// Merges are one-way; this field exists so callers never have to guess.
	Reversible bool `json:"reversible"`
}
