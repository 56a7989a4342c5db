// Package moderation applies operator status decisions to anonymous
// identities. It is the write-side counterpart to the advisory suggestions:
// nothing here happens automatically.
package moderation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"termtrust/internal/audit"
	"termtrust/internal/identity"
	dErrors "termtrust/pkg/domain-errors"
	"termtrust/pkg/platform/sentinel"
)

type Service struct {
	identities identity.Store
	auditor    *audit.Pipeline
	logger     *slog.Logger
}

func NewService(identities identity.Store, auditor *audit.Pipeline, logger *slog.Logger) *Service {
	return &Service{identities: identities, auditor: auditor, logger: logger}
}

// SetStatus moves an identity to a new lifecycle status and records the
// action. Merged identities are immutable; merging itself never goes through
// here.
func (s *Service) SetStatus(ctx context.Context, actor identity.Actor, anonID uuid.UUID, status identity.Status, reason string) error {
	if !actor.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "admin privileges required")
	}
	if status == identity.StatusMerged {
		return dErrors.New(dErrors.CodeBadRequest, "merged status is set by the merge engine only")
	}

	anon, err := s.identities.FindByID(ctx, anonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return err
	}
	if anon.Merged() {
		return dErrors.New(dErrors.CodeAlreadyMerged, "identity already merged")
	}
	if anon.Status == status {
		return nil
	}

	now := time.Now().UTC()
	if err := s.identities.UpdateStatus(ctx, anonID, status, now); err != nil {
		return err
	}

	actorID := actor.ID
	if action, flagged := flagFor(status); flagged {
		flag := identity.ModerationFlag{
			Action:    action,
			Reason:    reason,
			ActorID:   actor.ID,
			CreatedAt: now,
		}
		if err := s.identities.AddFlag(ctx, anonID, flag); err != nil {
			s.logger.WarnContext(ctx, "recording moderation flag failed",
				"anonymous_id", anonID, "error", err)
		} else if err := s.auditor.Record(ctx, &audit.Event{
			Kind:        audit.KindFlagAdded,
			SubjectKind: audit.SubjectAnonymous,
			SubjectID:   anonID,
			ActorID:     &actorID,
			Payload: audit.Payload{
				FlagAction: string(action),
				Reason:     reason,
			},
			CreatedAt: now,
		}); err != nil {
			s.logger.WarnContext(ctx, "recording flag audit failed",
				"anonymous_id", anonID, "error", err)
		}
	}

	ev := &audit.Event{
		Kind:        audit.KindStatusChanged,
		SubjectKind: audit.SubjectAnonymous,
		SubjectID:   anonID,
		ActorID:     &actorID,
		Payload: audit.Payload{
			StatusFrom: string(anon.Status),
			StatusTo:   string(status),
			Reason:     reason,
		},
		CreatedAt: now,
	}
	if err := s.auditor.Record(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "recording status audit failed",
			"anonymous_id", anonID, "error", err)
	}

	s.logger.InfoContext(ctx, "identity status changed",
		"anonymous_id", anonID, "from", anon.Status, "to", status, "actor_id", actor.ID)
	return nil
}

func flagFor(status identity.Status) (identity.FlagAction, bool) {
	switch status {
	case identity.StatusRestricted:
		return identity.FlagActionRestrict, true
	case identity.StatusBlocked:
		return identity.FlagActionBlock, true
	default:
		return "", false
	}
}
