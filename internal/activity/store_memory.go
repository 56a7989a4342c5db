package activity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*Record)}
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneRecord(rec)
	s.records[cp.ID] = cp
	return nil
}

func (s *MemoryStore) ListByAnonymous(_ context.Context, anonID uuid.UUID, kind Kind, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.Kind != kind || rec.AuthorType != AuthorAnonymous {
			continue
		}
		if rec.AnonymousID == nil || *rec.AnonymousID != anonID {
			continue
		}
		out = append(out, *cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountByAnonymousBefore(_ context.Context, anonID uuid.UUID, kind Kind, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.records {
		if rec.Kind != kind || rec.AuthorType != AuthorAnonymous {
			continue
		}
		if rec.AnonymousID == nil || *rec.AnonymousID != anonID {
			continue
		}
		if !rec.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ReassignOwner(_ context.Context, kind Kind, anonID, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var moved int64
	for _, rec := range s.records {
		if rec.Kind != kind || rec.AuthorType != AuthorAnonymous {
			continue
		}
		if rec.AnonymousID == nil || *rec.AnonymousID != anonID {
			continue
		}
		uid := userID
		rec.UserID = &uid
		rec.AnonymousID = nil
		rec.AuthorType = AuthorRegistered
		moved++
	}
	return moved, nil
}

func (s *MemoryStore) CountByAnonymous(_ context.Context, anonID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.records {
		if rec.AuthorType == AuthorAnonymous && rec.AnonymousID != nil && *rec.AnonymousID == anonID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountByUser(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.records {
		if rec.AuthorType == AuthorRegistered && rec.UserID != nil && *rec.UserID == userID {
			count++
		}
	}
	return count, nil
}

func cloneRecord(rec *Record) *Record {
	cp := *rec
	if rec.AnonymousID != nil {
		v := *rec.AnonymousID
		cp.AnonymousID = &v
	}
	if rec.UserID != nil {
		v := *rec.UserID
		cp.UserID = &v
	}
	return &cp
}
