package merge

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"termtrust/internal/activity"
	"termtrust/internal/audit"
	"termtrust/internal/identity"
	dErrors "termtrust/pkg/domain-errors"
	"termtrust/pkg/platform/sentinel"
	"termtrust/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite

	identities *identity.MemoryStore
	users      *identity.MemoryUserStore
	activities *activity.MemoryStore
	auditStore *audit.MemoryStore
	svc        *Service
}

func (s *ServiceSuite) SetupTest() {
	s.identities = identity.NewMemoryStore()
	s.users = identity.NewMemoryUserStore()
	s.activities = activity.NewMemoryStore()
	s.auditStore = audit.NewMemoryStore()
	auditor := audit.NewPipeline(s.auditStore, audit.NopSink{}, nil, slog.Default())
	s.svc = NewService(s.identities, s.users, s.activities, auditor, tx.NewSerialRunner(), nil, slog.Default())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) seedAnon() *identity.Anonymous {
	anon := &identity.Anonymous{
		ID:         uuid.New(),
		Token:      uuid.NewString(),
		TrustScore: identity.DefaultTrustScore,
		Status:     identity.StatusActive,
		FirstSeen:  time.Now().UTC().Add(-time.Hour),
		LastSeen:   time.Now().UTC(),
	}
	s.Require().NoError(s.identities.Create(context.Background(), anon))
	return anon
}

func (s *ServiceSuite) seedUser(username string) identity.Registered {
	user := identity.Registered{
		ID:        uuid.New(),
		Username:  username,
		Role:      identity.RoleUser,
		CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.users.Save(context.Background(), user))
	return user
}

func (s *ServiceSuite) seedContent(anonID uuid.UUID, posts, comments int) {
	now := time.Now().UTC()
	for i := 0; i < posts; i++ {
		rec := activity.NewAnonymousRecord(activity.KindPost, anonID, "post body", now)
		s.Require().NoError(s.activities.Save(context.Background(), rec))
	}
	for i := 0; i < comments; i++ {
		rec := activity.NewAnonymousRecord(activity.KindComment, anonID, "comment body", now)
		s.Require().NoError(s.activities.Save(context.Background(), rec))
	}
}

func (s *ServiceSuite) TestMergeTransfersEverything() {
	anon := s.seedAnon()
	user := s.seedUser("nightwriter")
	s.seedContent(anon.ID, 3, 2)

	got, err := s.svc.Merge(context.Background(), anon.ID, user.ID, identity.SystemActor(), TriggerAuto)

	s.Require().NoError(err)
	s.True(got.Merged)
	s.False(got.Reversible)
	s.Equal(int64(3), got.Reassigned[string(activity.KindPost)])
	s.Equal(int64(2), got.Reassigned[string(activity.KindComment)])

	stored, err := s.identities.FindByID(context.Background(), anon.ID)
	s.Require().NoError(err)
	s.Equal(identity.StatusMerged, stored.Status)
	s.Require().NotNil(stored.MergedUserID)
	s.Equal(user.ID, *stored.MergedUserID)
	s.NotNil(stored.MergedAt)

	// Content now belongs to the account.
	remaining, err := s.activities.ListByAnonymous(context.Background(), anon.ID, activity.KindPost, 0)
	s.Require().NoError(err)
	s.Empty(remaining)
	owned, err := s.activities.CountByUser(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Equal(5, owned)
}

func (s *ServiceSuite) TestMergeWritesAuditRecord() {
	anon := s.seedAnon()
	anon.Email = "ghost@example.net"
	s.Require().NoError(s.identities.Update(context.Background(), anon))
	user := s.seedUser("ghost")

	_, err := s.svc.Merge(context.Background(), anon.ID, user.ID, identity.SystemActor(), TriggerAuto)
	s.Require().NoError(err)

	events, err := s.auditStore.ListBySubject(context.Background(), anon.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(events, 1)

	ev := events[0]
	s.Equal(audit.KindMergeCompleted, ev.Kind)
	s.True(ev.System)
	s.Nil(ev.ActorID)
	s.Equal(string(TriggerAuto), ev.Payload.MergeTrigger)
	s.Require().NotNil(ev.Payload.Snapshot)
	s.Equal("ghost@example.net", ev.Payload.Snapshot.Email)
}

func (s *ServiceSuite) TestMergeIsSingleShot() {
	anon := s.seedAnon()
	user := s.seedUser("once")

	_, err := s.svc.Merge(context.Background(), anon.ID, user.ID, identity.SystemActor(), TriggerAuto)
	s.Require().NoError(err)

	_, err = s.svc.Merge(context.Background(), anon.ID, user.ID, identity.SystemActor(), TriggerAuto)
	s.Equal(dErrors.CodeAlreadyMerged, dErrors.CodeOf(err))

	// Only the first attempt left an audit record.
	events, listErr := s.auditStore.ListBySubject(context.Background(), anon.ID, 0)
	s.Require().NoError(listErr)
	s.Len(events, 1)
}

// raceLosingStore simulates losing the claim race: every ClaimMerged fails
// as if another transaction committed first.
type raceLosingStore struct {
	identity.Store
}

func (raceLosingStore) ClaimMerged(context.Context, uuid.UUID, uuid.UUID, time.Time) error {
	return sentinel.ErrInvalidState
}

type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureSink) Publish(_ context.Context, ev audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSink) Close() {}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (s *ServiceSuite) TestMergeLostRaceReachesNoSink() {
	anon := s.seedAnon()
	user := s.seedUser("racer")

	sink := &captureSink{}
	auditor := audit.NewPipeline(s.auditStore, sink, nil, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	go auditor.Run(ctx)
	svc := NewService(raceLosingStore{s.identities}, s.users, s.activities, auditor, tx.NewSerialRunner(), nil, slog.Default())

	_, err := svc.Merge(context.Background(), anon.ID, user.ID, identity.SystemActor(), TriggerAuto)
	s.Equal(dErrors.CodeAlreadyMerged, dErrors.CodeOf(err))

	cancel()
	auditor.Wait()
	s.Zero(sink.count(), "a merge that did not commit must not reach the sink")
}

func (s *ServiceSuite) TestMergeDeliversSinkCopyAfterCommit() {
	anon := s.seedAnon()
	user := s.seedUser("committed")

	sink := &captureSink{}
	auditor := audit.NewPipeline(s.auditStore, sink, nil, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	go auditor.Run(ctx)
	svc := NewService(s.identities, s.users, s.activities, auditor, tx.NewSerialRunner(), nil, slog.Default())

	_, err := svc.Merge(context.Background(), anon.ID, user.ID, identity.SystemActor(), TriggerAuto)
	s.Require().NoError(err)

	cancel()
	auditor.Wait()
	s.Require().Equal(1, sink.count())
	s.Equal(audit.KindMergeCompleted, sink.events[0].Kind)
}

func (s *ServiceSuite) TestMergeUnknownIdentity() {
	user := s.seedUser("lonely")

	_, err := s.svc.Merge(context.Background(), uuid.New(), user.ID, identity.SystemActor(), TriggerAuto)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestMergeUnknownUser() {
	anon := s.seedAnon()

	_, err := s.svc.Merge(context.Background(), anon.ID, uuid.New(), identity.SystemActor(), TriggerAuto)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestAutoMergePrefersToken() {
	byToken := s.seedAnon()
	byFingerprint := s.seedAnon()
	byFingerprint.FingerprintHash = "fp-hash"
	s.Require().NoError(s.identities.Update(context.Background(), byFingerprint))
	user := s.seedUser("newcomer")

	got, err := s.svc.AutoMerge(context.Background(), user.ID, byToken.Token, "fp-hash")

	s.Require().NoError(err)
	s.True(got.Merged)
	s.Equal(byToken.ID, got.AnonymousID)

	other, err := s.identities.FindByID(context.Background(), byFingerprint.ID)
	s.Require().NoError(err)
	s.False(other.Merged())
}

func (s *ServiceSuite) TestAutoMergeFallsBackToFingerprint() {
	anon := s.seedAnon()
	anon.FingerprintHash = "fp-only"
	s.Require().NoError(s.identities.Update(context.Background(), anon))
	user := s.seedUser("returning")

	got, err := s.svc.AutoMerge(context.Background(), user.ID, "unknown-token", "fp-only")

	s.Require().NoError(err)
	s.True(got.Merged)
	s.Equal(anon.ID, got.AnonymousID)
}

func (s *ServiceSuite) TestAutoMergeNothingToClaim() {
	user := s.seedUser("fresh")

	got, err := s.svc.AutoMerge(context.Background(), user.ID, "", "")

	s.Require().NoError(err)
	s.False(got.Merged)
	s.Equal(user.ID, got.UserID)
}

func (s *ServiceSuite) TestAutoMergeSkipsAlreadyMergedToken() {
	claimed := s.seedAnon()
	first := s.seedUser("first")
	_, err := s.svc.Merge(context.Background(), claimed.ID, first.ID, identity.SystemActor(), TriggerAuto)
	s.Require().NoError(err)

	second := s.seedUser("second")
	got, err := s.svc.AutoMerge(context.Background(), second.ID, claimed.Token, "")

	s.Require().NoError(err)
	s.False(got.Merged)
}

func (s *ServiceSuite) TestAdminMergeRequiresAdmin() {
	anon := s.seedAnon()
	s.seedUser("target")
	actor := identity.Actor{ID: uuid.New(), Role: identity.RoleUser}

	_, err := s.svc.AdminMerge(context.Background(), actor, anon.ID, "target")
	s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestAdminMergeByUsername() {
	anon := s.seedAnon()
	user := s.seedUser("operator-pick")
	admin := identity.Actor{ID: uuid.New(), Role: identity.RoleAdmin}

	got, err := s.svc.AdminMerge(context.Background(), admin, anon.ID, "operator-pick")

	s.Require().NoError(err)
	s.True(got.Merged)
	s.Equal(user.ID, got.UserID)
	s.Equal(TriggerAdmin, got.Trigger)

	events, err := s.auditStore.ListBySubject(context.Background(), anon.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Require().NotNil(events[0].ActorID)
	s.Equal(admin.ID, *events[0].ActorID)
}

func (s *ServiceSuite) TestAdminMergeUnknownUsername() {
	anon := s.seedAnon()
	admin := identity.Actor{ID: uuid.New(), Role: identity.RoleAdmin}

	_, err := s.svc.AdminMerge(context.Background(), admin, anon.ID, "nobody")
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}
