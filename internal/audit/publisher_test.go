package audit

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Publish(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) Close() {}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestPipeline_StoresAndDelivers(t *testing.T) {
	store := NewMemoryStore()
	sink := &captureSink{}
	pipeline := NewPipeline(store, sink, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	go pipeline.Run(ctx)

	subject := uuid.New()
	ev := &Event{
		Kind:        KindStatusChanged,
		SubjectKind: SubjectAnonymous,
		SubjectID:   subject,
		System:      true,
		Payload:     Payload{StatusFrom: "active", StatusTo: "blocked", Reason: "spam wave"},
	}
	require.NoError(t, pipeline.Record(context.Background(), ev))

	// Store write is synchronous.
	stored, err := store.ListBySubject(context.Background(), subject, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEqual(t, uuid.Nil, stored[0].ID)

	// Sink delivery happens on the worker.
	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, ev.ID, sink.snapshot()[0].ID)

	cancel()
	pipeline.Wait()
}

func TestPipeline_DrainsOnShutdown(t *testing.T) {
	store := NewMemoryStore()
	sink := &captureSink{}
	pipeline := NewPipeline(store, sink, nil, slog.Default())

	// Queue events before the worker ever runs; cancellation must still
	// drain what was buffered.
	for i := 0; i < 5; i++ {
		ev := &Event{Kind: KindFlagAdded, SubjectKind: SubjectAnonymous, SubjectID: uuid.New()}
		require.NoError(t, pipeline.Record(context.Background(), ev))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go pipeline.Run(ctx)
	pipeline.Wait()

	assert.Len(t, sink.snapshot(), 5)
}

func TestPipeline_StoreFailureSkipsSink(t *testing.T) {
	sink := &captureSink{}
	pipeline := NewPipeline(failingStore{}, sink, nil, slog.Default())

	ev := &Event{Kind: KindMergeCompleted, SubjectKind: SubjectAnonymous, SubjectID: uuid.New()}
	err := pipeline.Record(context.Background(), ev)

	require.Error(t, err)
	assert.Empty(t, sink.snapshot())
}

type failingStore struct{}

func (failingStore) Save(context.Context, *Event) error {
	return assert.AnError
}

func (failingStore) ListBySubject(context.Context, uuid.UUID, int) ([]Event, error) {
	return nil, assert.AnError
}
