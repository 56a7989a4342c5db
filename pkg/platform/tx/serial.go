package tx

import (
	"context"
	"sync"
)

// SerialRunner is the in-memory Runner: one unit of work at a time. Without a
// database transaction to lean on, mutual exclusion is what makes a
// precondition checked inside fn hold until fn returns.
type SerialRunner struct {
	mu sync.Mutex
}

func NewSerialRunner() *SerialRunner {
	return &SerialRunner{}
}

func (r *SerialRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}
