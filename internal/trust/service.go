package trust

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"termtrust/internal/activity"
	"termtrust/internal/identity"
	"termtrust/internal/network"
	dErrors "termtrust/pkg/domain-errors"
	"termtrust/pkg/platform/sentinel"
)

const postSampleLimit = 500

// Service assembles RiskInput snapshots from the stores and runs the pure
// scorer over them. Assess never mutates state; Rescore persists the result
// back onto the identity.
type Service struct {
	identities   identity.Store
	observations network.ObservationStore
	activities   activity.Store
	logger       *slog.Logger
}

func NewService(
	identities identity.Store,
	observations network.ObservationStore,
	activities activity.Store,
	logger *slog.Logger,
) *Service {
	return &Service{
		identities:   identities,
		observations: observations,
		activities:   activities,
		logger:       logger,
	}
}

// Assess scores an identity without side effects.
func (s *Service) Assess(ctx context.Context, anonID uuid.UUID) (Assessment, error) {
	anon, err := s.identities.FindByID(ctx, anonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Assessment{}, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return Assessment{}, err
	}

	in, err := s.BuildInput(ctx, anon)
	if err != nil {
		return Assessment{}, err
	}
	return Score(in), nil
}

// Rescore runs an assessment and writes the resulting score back onto the
// identity. Merged identities keep their final score untouched.
func (s *Service) Rescore(ctx context.Context, anonID uuid.UUID) (Assessment, error) {
	anon, err := s.identities.FindByID(ctx, anonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Assessment{}, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return Assessment{}, err
	}

	in, err := s.BuildInput(ctx, anon)
	if err != nil {
		return Assessment{}, err
	}
	assessment := Score(in)

	if !anon.Merged() && anon.TrustScore != assessment.Score {
		anon.TrustScore = assessment.Score
		if err := s.identities.Update(ctx, anon); err != nil {
			s.logger.Warn("persisting rescored trust score failed",
				"anonymous_id", anonID, "error", err)
		}
	}

	return assessment, nil
}

// BuildInput gathers the full evidence snapshot for one identity.
func (s *Service) BuildInput(ctx context.Context, anon *identity.Anonymous) (RiskInput, error) {
	now := time.Now().UTC()
	in := RiskInput{
		Version:           InputVersion,
		Now:               now,
		FirstSeen:         anon.FirstSeen,
		HasEmail:          anon.Email != "",
		EmailVerified:     anon.EmailVerified,
		PreviouslyBlocked: anon.PreviouslyBlocked(),
		FlagCount:         len(anon.Flags),
	}

	obs, err := s.observations.LatestByOwner(ctx, anon.ID)
	switch {
	case err == nil:
		in.NetworkKnown = true
		in.VPN = obs.VPN
		in.Tor = obs.Tor
	case errors.Is(err, sentinel.ErrNotFound):
		// No observation yet; network deltas stay out of the score.
	default:
		return RiskInput{}, err
	}

	// The velocity count is windowed by time, not taken from the recency
	// sample below: a prolific identity's first-day posts would age out of
	// any capped sample.
	first24h, err := s.activities.CountByAnonymousBefore(ctx, anon.ID, activity.KindPost, anon.FirstSeen.Add(velocityWindow))
	if err != nil {
		return RiskInput{}, err
	}
	in.PostsFirst24h = first24h

	posts, err := s.activities.ListByAnonymous(ctx, anon.ID, activity.KindPost, postSampleLimit)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return RiskInput{}, err
	}
	samples := make([]PostSample, 0, len(posts))
	for _, p := range posts {
		samples = append(samples, PostSample{CreatedAt: p.CreatedAt, Body: p.Body})
	}
	in.Patterns = DetectPatterns(samples)

	others, registered, err := s.sharedIPNeighbors(ctx, anon.ID)
	if err != nil {
		return RiskInput{}, err
	}
	in.SharedIPIdentities = others
	in.SharedIPRegistered = registered

	return in, nil
}

// sharedIPNeighbors counts distinct other identities seen from any address
// this identity was observed on, and whether any of them is registered.
func (s *Service) sharedIPNeighbors(ctx context.Context, anonID uuid.UUID) (int, bool, error) {
	own, err := s.observations.ListByOwner(ctx, anonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}

	seen := make(map[uuid.UUID]struct{})
	registered := false
	for _, o := range own {
		neighbors, err := s.observations.ListByIPHash(ctx, o.IPHash)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return 0, false, err
		}
		for _, n := range neighbors {
			if n.OwnerKind == network.OwnerAnonymous && n.OwnerID == anonID {
				continue
			}
			if n.OwnerKind == network.OwnerRegistered {
				registered = true
			}
			seen[n.OwnerID] = struct{}{}
		}
	}
	return len(seen), registered, nil
}
