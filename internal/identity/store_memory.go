package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"termtrust/pkg/platform/sentinel"
)

// In-memory stores keep development and tests lightweight. They intentionally
// favor clarity over performance.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Anonymous
	byToken map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]*Anonymous),
		byToken: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, anon *Anonymous) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byToken[anon.Token]; exists {
		return sentinel.ErrConflict
	}
	cp := cloneAnonymous(anon)
	s.byID[cp.ID] = cp
	s.byToken[cp.Token] = cp.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Anonymous, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	anon, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAnonymous(anon), nil
}

func (s *MemoryStore) FindByToken(_ context.Context, token string) (*Anonymous, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAnonymous(s.byID[id]), nil
}

func (s *MemoryStore) FindByFingerprint(_ context.Context, fingerprintHash string) (*Anonymous, error) {
	if fingerprintHash == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var earliest *Anonymous
	for _, anon := range s.byID {
		if anon.FingerprintHash != fingerprintHash || anon.Merged() {
			continue
		}
		if earliest == nil || anon.FirstSeen.Before(earliest.FirstSeen) {
			earliest = anon
		}
	}
	if earliest == nil {
		return nil, sentinel.ErrNotFound
	}
	return cloneAnonymous(earliest), nil
}

func (s *MemoryStore) Update(_ context.Context, anon *Anonymous) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[anon.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Merged() {
		return sentinel.ErrInvalidState
	}
	cp := cloneAnonymous(anon)
	// Identity and merge fields stay as created.
	cp.Token = current.Token
	cp.FirstSeen = current.FirstSeen
	cp.MergedUserID = current.MergedUserID
	cp.MergedAt = current.MergedAt
	s.byID[anon.ID] = cp
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	anon, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	anon.PageViews++
	anon.LastSeen = at
	return nil
}

func (s *MemoryStore) IncrementCounter(_ context.Context, id uuid.UUID, kind CounterKind, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	anon, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	switch kind {
	case CounterPosts:
		anon.PostCount++
	case CounterComments:
		anon.CommentCount++
	}
	anon.LastSeen = at
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	anon, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if anon.Merged() {
		return sentinel.ErrInvalidState
	}
	anon.Status = status
	anon.LastSeen = at
	return nil
}

func (s *MemoryStore) AddFlag(_ context.Context, id uuid.UUID, flag ModerationFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	anon, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if anon.Merged() {
		return sentinel.ErrInvalidState
	}
	anon.Flags = append(anon.Flags, flag)
	return nil
}

func (s *MemoryStore) ClaimMerged(_ context.Context, id, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	anon, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if anon.Merged() {
		return sentinel.ErrInvalidState
	}
	anon.Status = StatusMerged
	anon.MergedUserID = &userID
	mergedAt := at
	anon.MergedAt = &mergedAt
	return nil
}

func (s *MemoryStore) ListByIDs(_ context.Context, ids []uuid.UUID) ([]Anonymous, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Anonymous, 0, len(ids))
	for _, id := range ids {
		if anon, ok := s.byID[id]; ok {
			out = append(out, *cloneAnonymous(anon))
		}
	}
	return out, nil
}

func cloneAnonymous(anon *Anonymous) *Anonymous {
	cp := *anon
	cp.Flags = append([]ModerationFlag(nil), anon.Flags...)
	if anon.MergedUserID != nil {
		v := *anon.MergedUserID
		cp.MergedUserID = &v
	}
	if anon.MergedAt != nil {
		v := *anon.MergedAt
		cp.MergedAt = &v
	}
	return &cp
}

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]Registered
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[uuid.UUID]Registered)}
}

func (s *MemoryUserStore) Save(_ context.Context, user Registered) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id uuid.UUID) (*Registered, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return &user, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryUserStore) FindByUsername(_ context.Context, username string) (*Registered, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
