package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"termtrust/internal/activity"
	"termtrust/internal/audit"
	"termtrust/internal/identity"
	"termtrust/internal/platform/metrics"
	dErrors "termtrust/pkg/domain-errors"
	"termtrust/pkg/platform/sentinel"
	"termtrust/pkg/platform/tx"
)

// Service is the merge engine: the single writer allowed to move ownership
// from an anonymous identity to a registered account. A merge re-points every
// content kind, marks the identity merged, and leaves an audit record, all in
// one atomic unit. There is no unmerge.
type Service struct {
	identities identity.Store
	users      identity.UserStore
	activities activity.Store
	auditor    *audit.Pipeline
	runner     tx.Runner
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewService(
	identities identity.Store,
	users identity.UserStore,
	activities activity.Store,
	auditor *audit.Pipeline,
	runner tx.Runner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		identities: identities,
		users:      users,
		activities: activities,
		auditor:    auditor,
		runner:     runner,
		metrics:    m,
		logger:     logger,
	}
}

// Merge transfers everything the anonymous identity owns to the registered
// account. Safe to retry: a repeat of a completed merge reports
// CodeAlreadyMerged rather than doing anything twice. When two merges race,
// the first committed transaction wins and the loser surfaces the same code.
func (s *Service) Merge(ctx context.Context, anonID, userID uuid.UUID, actor identity.Actor, trigger Trigger) (*Result, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countOutcome("error")
			return nil, dErrors.New(dErrors.CodeNotFound, "registered account not found")
		}
		s.countOutcome("error")
		return nil, err
	}

	var result *Result
	var ev *audit.Event
	err = s.runner.InTx(ctx, func(ctx context.Context) error {
		anon, err := s.identities.FindByID(ctx, anonID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "anonymous identity not found")
			}
			return err
		}
		if anon.Merged() {
			return dErrors.New(dErrors.CodeAlreadyMerged, "identity already merged")
		}

		now := time.Now().UTC()
		reassigned := make(map[string]int64, len(activity.AllKinds))
		for _, kind := range activity.AllKinds {
			n, err := s.activities.ReassignOwner(ctx, kind, anon.ID, user.ID)
			if err != nil {
				return fmt.Errorf("reassigning %s: %w", kind, err)
			}
			reassigned[string(kind)] = n
		}

		ev = &audit.Event{
			Kind:        audit.KindMergeCompleted,
			SubjectKind: audit.SubjectAnonymous,
			SubjectID:   anon.ID,
			System:      actor.System,
			Payload: audit.Payload{
				MergeTrigger: string(trigger),
				TargetUserID: &user.ID,
				Reassigned:   reassigned,
				Snapshot:     snapshotOf(anon),
			},
			CreatedAt: now,
		}
		if !actor.System {
			actorID := actor.ID
			ev.ActorID = &actorID
		}
		// Append only: the sink copy waits until the transaction commits,
		// so a lost race never broadcasts a merge that rolled back.
		if err := s.auditor.Append(ctx, ev); err != nil {
			return fmt.Errorf("recording merge audit: %w", err)
		}

		// The claim goes last so a lost race rolls back the re-pointing
		// above instead of leaving content stranded.
		if err := s.identities.ClaimMerged(ctx, anon.ID, user.ID, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeAlreadyMerged, "identity already merged")
			}
			return err
		}

		result = &Result{
			AnonymousID: anon.ID,
			UserID:      user.ID,
			Trigger:     trigger,
			Reassigned:  reassigned,
			Merged:      true,
			MergedAt:    now,
		}
		return nil
	})
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeAlreadyMerged {
			s.countOutcome("already_merged")
		} else {
			s.countOutcome("error")
		}
		return nil, err
	}

	s.auditor.Enqueue(*ev)
	s.countOutcome("merged")
	s.logger.Info("identity merged",
		"anonymous_id", result.AnonymousID,
		"user_id", result.UserID,
		"trigger", trigger)
	return result, nil
}

// AutoMerge runs after registration completes: if a bearer token or, failing
// that, a fingerprint resolves to an unmerged identity, its history is
// claimed by the new account. No resolvable identity is a clean no-op, not
// an error.
func (s *Service) AutoMerge(ctx context.Context, userID uuid.UUID, token, fingerprintHash string) (*Result, error) {
	anon, err := s.resolveCandidate(ctx, token, fingerprintHash)
	if err != nil {
		return nil, err
	}
	if anon == nil {
		return &Result{UserID: userID, Trigger: TriggerAuto}, nil
	}
	return s.Merge(ctx, anon.ID, userID, identity.SystemActor(), TriggerAuto)
}

func (s *Service) resolveCandidate(ctx context.Context, token, fingerprintHash string) (*identity.Anonymous, error) {
	if token != "" {
		anon, err := s.identities.FindByToken(ctx, token)
		switch {
		case err == nil:
			if !anon.Merged() {
				return anon, nil
			}
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, err
		}
	}
	if fingerprintHash != "" {
		anon, err := s.identities.FindByFingerprint(ctx, fingerprintHash)
		switch {
		case err == nil:
			return anon, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, err
		}
	}
	return nil, nil
}

// AdminMerge is the manual path: an operator ties an anonymous identity to an
// account by username. Non-admin callers get the same refusal whether or not
// the target exists.
func (s *Service) AdminMerge(ctx context.Context, actor identity.Actor, anonID uuid.UUID, username string) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin privileges required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registered account not found")
		}
		return nil, err
	}

	return s.Merge(ctx, anonID, user.ID, actor, TriggerAdmin)
}

func (s *Service) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.Merges.WithLabelValues(outcome).Inc()
	}
}

func snapshotOf(anon *identity.Anonymous) *audit.Snapshot {
	return &audit.Snapshot{
		FingerprintHash: anon.FingerprintHash,
		Email:           anon.Email,
		EmailVerified:   anon.EmailVerified,
		TrustScore:      anon.TrustScore,
		PostCount:       anon.PostCount,
		CommentCount:    anon.CommentCount,
		PageViews:       anon.PageViews,
		Status:          string(anon.Status),
		FlagCount:       len(anon.Flags),
		FirstSeen:       anon.FirstSeen,
		LastSeen:        anon.LastSeen,
	}
}
