// Package investigation builds the admin dossier: everything the engine
// knows about one anonymous identity, gathered read-only.
package investigation

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"termtrust/internal/activity"
	"termtrust/internal/identity"
	"termtrust/internal/network"
	"termtrust/internal/trust"
	dErrors "termtrust/pkg/domain-errors"
	"termtrust/pkg/platform/sentinel"
)

type Service struct {
	identities identity.Store
	obs        network.ObservationStore
	activities activity.Store
	scorer     *trust.Service
	logger     *slog.Logger
}

func NewService(
	identities identity.Store,
	obs network.ObservationStore,
	activities activity.Store,
	scorer *trust.Service,
	logger *slog.Logger,
) *Service {
	return &Service{
		identities: identities,
		obs:        obs,
		activities: activities,
		scorer:     scorer,
		logger:     logger,
	}
}

// Investigate assembles the dossier. Evidence sources are independent, so
// they are gathered in parallel; any one failing fails the dossier rather
// than presenting a partial picture as complete.
func (s *Service) Investigate(ctx context.Context, actor identity.Actor, anonID uuid.UUID) (*Dossier, error) {
	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin privileges required")
	}

	anon, err := s.identities.FindByID(ctx, anonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, err
	}

	dossier := &Dossier{Identity: summarize(anon)}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		latest, err := s.obs.LatestByOwner(ctx, anon.ID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		dossier.Network = latest
		return nil
	})

	g.Go(func() error {
		posts, err := s.activities.ListByAnonymous(ctx, anon.ID, activity.KindPost, contentSampleLimit)
		if err != nil {
			return err
		}
		dossier.Posts = previews(posts)
		return nil
	})

	g.Go(func() error {
		comments, err := s.activities.ListByAnonymous(ctx, anon.ID, activity.KindComment, contentSampleLimit)
		if err != nil {
			return err
		}
		dossier.Comments = previews(comments)
		return nil
	})

	g.Go(func() error {
		shared, err := s.sharedIdentities(ctx, anon.ID)
		if err != nil {
			return err
		}
		dossier.SharedIdentities = shared
		return nil
	})

	var assessment trust.Assessment
	var patterns trust.PatternStats
	g.Go(func() error {
		in, err := s.scorer.BuildInput(ctx, anon)
		if err != nil {
			return err
		}
		assessment = trust.Score(in)
		// One sample backs both: the headline figures and the pattern
		// factors inside the assessment must not disagree.
		patterns = in.Patterns
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dossier.Risk = assessment
	dossier.Patterns = patterns
	return dossier, nil
}

// SuggestAction maps the current assessment onto the advisory suggestion
// list. Pure read; nothing is enforced here.
func (s *Service) SuggestAction(ctx context.Context, actor identity.Actor, anonID uuid.UUID) (*Advice, error) {
	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin privileges required")
	}

	anon, err := s.identities.FindByID(ctx, anonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, err
	}

	in, err := s.scorer.BuildInput(ctx, anon)
	if err != nil {
		return nil, err
	}
	assessment := trust.Score(in)

	return &Advice{
		Score:          assessment.Score,
		Recommendation: assessment.Recommendation,
		Suggestions:    trust.Suggest(assessment.Score, in.HasEmail, in.SharedIPRegistered),
	}, nil
}

// ExplainScore returns the full factor breakdown without the rest of the
// dossier.
func (s *Service) ExplainScore(ctx context.Context, actor identity.Actor, anonID uuid.UUID) (*trust.Assessment, error) {
	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin privileges required")
	}
	assessment, err := s.scorer.Assess(ctx, anonID)
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (s *Service) sharedIdentities(ctx context.Context, anonID uuid.UUID) ([]SharedIdentity, error) {
	own, err := s.obs.ListByOwner(ctx, anonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	type neighbor struct {
		kind     network.OwnerKind
		lastSeen network.Observation
	}
	found := make(map[uuid.UUID]neighbor)
	for _, o := range own {
		peers, err := s.obs.ListByIPHash(ctx, o.IPHash)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, p := range peers {
			if p.OwnerKind == network.OwnerAnonymous && p.OwnerID == anonID {
				continue
			}
			prev, ok := found[p.OwnerID]
			if !ok || p.LastSeen.After(prev.lastSeen.LastSeen) {
				found[p.OwnerID] = neighbor{kind: p.OwnerKind, lastSeen: p}
			}
		}
	}
	if len(found) == 0 {
		return nil, nil
	}

	anonIDs := make([]uuid.UUID, 0, len(found))
	for id, n := range found {
		if n.kind == network.OwnerAnonymous {
			anonIDs = append(anonIDs, id)
		}
	}
	details := make(map[uuid.UUID]identity.Anonymous)
	if len(anonIDs) > 0 {
		listed, err := s.identities.ListByIDs(ctx, anonIDs)
		if err != nil {
			return nil, err
		}
		for _, a := range listed {
			details[a.ID] = a
		}
	}

	out := make([]SharedIdentity, 0, len(found))
	for id, n := range found {
		entry := SharedIdentity{
			ID:       id,
			Kind:     n.kind,
			LastSeen: n.lastSeen.LastSeen,
		}
		if a, ok := details[id]; ok {
			entry.TrustScore = a.TrustScore
			entry.Status = a.Status
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out, nil
}

func previews(records []activity.Record) []ContentPreview {
	out := make([]ContentPreview, 0, len(records))
	for _, r := range records {
		text, truncated := preview(r.Body)
		out = append(out, ContentPreview{
			ID:        r.ID,
			Preview:   text,
			Truncated: truncated,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}
