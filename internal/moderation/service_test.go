package moderation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"termtrust/internal/audit"
	"termtrust/internal/identity"
	dErrors "termtrust/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	identities *identity.MemoryStore
	auditStore *audit.MemoryStore
	svc        *Service
	admin      identity.Actor
}

func (s *ServiceSuite) SetupTest() {
	s.identities = identity.NewMemoryStore()
	s.auditStore = audit.NewMemoryStore()
	auditor := audit.NewPipeline(s.auditStore, audit.NopSink{}, nil, slog.Default())
	s.svc = NewService(s.identities, auditor, slog.Default())
	s.admin = identity.Actor{ID: uuid.New(), Role: identity.RoleAdmin}
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) seedAnon() *identity.Anonymous {
	anon := &identity.Anonymous{
		ID:        uuid.New(),
		Token:     uuid.NewString(),
		Status:    identity.StatusActive,
		FirstSeen: time.Now().UTC(),
		LastSeen:  time.Now().UTC(),
	}
	s.Require().NoError(s.identities.Create(context.Background(), anon))
	return anon
}

func (s *ServiceSuite) TestSetStatusRequiresAdmin() {
	anon := s.seedAnon()
	actor := identity.Actor{ID: uuid.New(), Role: identity.RoleUser}

	err := s.svc.SetStatus(context.Background(), actor, anon.ID, identity.StatusBlocked, "spam")
	s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestBlockRecordsFlagAndAudit() {
	anon := s.seedAnon()

	err := s.svc.SetStatus(context.Background(), s.admin, anon.ID, identity.StatusBlocked, "spam wave")
	s.Require().NoError(err)

	stored, findErr := s.identities.FindByID(context.Background(), anon.ID)
	s.Require().NoError(findErr)
	s.Equal(identity.StatusBlocked, stored.Status)
	s.Require().Len(stored.Flags, 1)
	s.Equal(identity.FlagActionBlock, stored.Flags[0].Action)
	s.Equal("spam wave", stored.Flags[0].Reason)

	events, listErr := s.auditStore.ListBySubject(context.Background(), anon.ID, 0)
	s.Require().NoError(listErr)
	s.Require().Len(events, 2)

	byKind := make(map[audit.Kind]audit.Event, len(events))
	for _, ev := range events {
		byKind[ev.Kind] = ev
	}
	status, ok := byKind[audit.KindStatusChanged]
	s.Require().True(ok)
	s.Equal("blocked", status.Payload.StatusTo)
	flag, ok := byKind[audit.KindFlagAdded]
	s.Require().True(ok)
	s.Equal(string(identity.FlagActionBlock), flag.Payload.FlagAction)
	s.Equal("spam wave", flag.Payload.Reason)
	s.Require().NotNil(flag.ActorID)
	s.Equal(s.admin.ID, *flag.ActorID)
}

func (s *ServiceSuite) TestReactivationAddsNoFlagEvent() {
	anon := s.seedAnon()
	s.Require().NoError(s.svc.SetStatus(context.Background(), s.admin, anon.ID, identity.StatusBlocked, "spam"))
	s.Require().NoError(s.svc.SetStatus(context.Background(), s.admin, anon.ID, identity.StatusActive, "appeal accepted"))

	events, err := s.auditStore.ListBySubject(context.Background(), anon.ID, 0)
	s.Require().NoError(err)

	flagEvents := 0
	for _, ev := range events {
		if ev.Kind == audit.KindFlagAdded {
			flagEvents++
		}
	}
	s.Equal(1, flagEvents, "only the block carries a flag")
}

func (s *ServiceSuite) TestReactivationLeavesBlockHistory() {
	anon := s.seedAnon()
	s.Require().NoError(s.svc.SetStatus(context.Background(), s.admin, anon.ID, identity.StatusBlocked, "spam"))
	s.Require().NoError(s.svc.SetStatus(context.Background(), s.admin, anon.ID, identity.StatusActive, "appeal accepted"))

	stored, err := s.identities.FindByID(context.Background(), anon.ID)
	s.Require().NoError(err)
	s.Equal(identity.StatusActive, stored.Status)
	s.True(stored.PreviouslyBlocked())
}

func (s *ServiceSuite) TestMergedIdentityIsImmutable() {
	anon := s.seedAnon()
	s.Require().NoError(s.identities.ClaimMerged(context.Background(), anon.ID, uuid.New(), time.Now().UTC()))

	err := s.svc.SetStatus(context.Background(), s.admin, anon.ID, identity.StatusBlocked, "late")
	s.Equal(dErrors.CodeAlreadyMerged, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestCannotSetMergedDirectly() {
	anon := s.seedAnon()

	err := s.svc.SetStatus(context.Background(), s.admin, anon.ID, identity.StatusMerged, "")
	s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
}
