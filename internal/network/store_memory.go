package network

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"termtrust/pkg/platform/sentinel"
)

type obsKey struct {
	owner  uuid.UUID
	ipHash string
}

type MemoryObservationStore struct {
	mu  sync.RWMutex
	obs map[obsKey]*Observation
}

func NewMemoryObservationStore() *MemoryObservationStore {
	return &MemoryObservationStore{obs: make(map[obsKey]*Observation)}
}

func (s *MemoryObservationStore) Upsert(_ context.Context, obs *Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := obsKey{owner: obs.OwnerID, ipHash: obs.IPHash}
	if existing, ok := s.obs[key]; ok {
		existing.LastSeen = obs.LastSeen
		existing.Country = obs.Country
		existing.City = obs.City
		existing.ISP = obs.ISP
		existing.Org = obs.Org
		existing.ASN = obs.ASN
		existing.VPN = obs.VPN
		existing.Tor = obs.Tor
		return nil
	}
	cp := *obs
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	s.obs[key] = &cp
	return nil
}

func (s *MemoryObservationStore) LatestByOwner(_ context.Context, ownerID uuid.UUID) (*Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Observation
	for key, o := range s.obs {
		if key.owner != ownerID {
			continue
		}
		if latest == nil || o.LastSeen.After(latest.LastSeen) {
			latest = o
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryObservationStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Observation
	for key, o := range s.obs {
		if key.owner == ownerID {
			out = append(out, *o)
		}
	}
	sortObservations(out)
	return out, nil
}

func (s *MemoryObservationStore) ListByIPHash(_ context.Context, ipHash string) ([]Observation, error) {
	if ipHash == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Observation
	for key, o := range s.obs {
		if key.ipHash == ipHash {
			out = append(out, *o)
		}
	}
	sortObservations(out)
	return out, nil
}

func sortObservations(obs []Observation) {
	sort.Slice(obs, func(i, j int) bool {
		return obs[i].LastSeen.After(obs[j].LastSeen)
	})
}
