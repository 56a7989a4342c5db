// Package resolver turns the signal bundle of an inbound request into
// exactly one canonical identity. Matching is by fixed priority, never by
// recency, and resolution itself must not fail just because optional signals
// are absent or an external lookup degraded.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"termtrust/internal/audit"
	"termtrust/internal/identity"
	"termtrust/internal/identity/device"
	"termtrust/internal/network"
	"termtrust/internal/network/reputation"
	"termtrust/internal/platform/metrics"
	dErrors "termtrust/pkg/domain-errors"
	"termtrust/pkg/platform/sentinel"
	"termtrust/pkg/requestcontext"
)

const tracerName = "termtrust/resolver"

// Resolution is the outcome of one resolve call. Geo carries derived
// geography only; the transport layer decides what of this reaches a client,
// and raw network internals are never part of it.
type Resolution struct {
	Anon      *identity.Anonymous
	User      *identity.Registered
	Kind      identity.Kind
	MatchType identity.MatchType
	IsNew     bool
	Geo       network.Reputation
}

// Service is the identity resolver.
type Service struct {
	identities identity.Store
	users      identity.UserStore
	obs        network.ObservationStore
	devices    *device.Service
	reputation reputation.Lookup
	auditor    *audit.Pipeline
	metrics    *metrics.Metrics
	logger     *slog.Logger

	lookupTimeout time.Duration
}

func NewService(
	identities identity.Store,
	users identity.UserStore,
	obs network.ObservationStore,
	devices *device.Service,
	rep reputation.Lookup,
	auditor *audit.Pipeline,
	m *metrics.Metrics,
	logger *slog.Logger,
	lookupTimeout time.Duration,
) *Service {
	if lookupTimeout <= 0 {
		lookupTimeout = 2 * time.Second
	}
	return &Service{
		identities:    identities,
		users:         users,
		obs:           obs,
		devices:       devices,
		reputation:    rep,
		auditor:       auditor,
		metrics:       m,
		logger:        logger,
		lookupTimeout: lookupTimeout,
	}
}

// Resolve walks the priority chain: session, token, fingerprint, soft link,
// create. Lookup failures on one rung fall through to the next; only a
// failure to create a fresh identity surfaces as an error.
func (s *Service) Resolve(ctx context.Context, sig identity.Signals) (*Resolution, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "resolver.Resolve")
	defer span.End()

	res, err := s.resolve(ctx, sig)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("identity.match_type", string(res.MatchType)),
		attribute.Bool("identity.is_new", res.IsNew),
	)
	if s.metrics != nil {
		s.metrics.Resolutions.WithLabelValues(string(res.MatchType)).Inc()
	}

	res.Geo = s.observeNetwork(ctx, span, res)
	return res, nil
}

func (s *Service) resolve(ctx context.Context, sig identity.Signals) (*Resolution, error) {
	if res := s.bySession(ctx, sig); res != nil {
		return res, nil
	}
	now := requestcontext.Now(ctx)

	if res := s.byToken(ctx, sig, now); res != nil {
		return res, nil
	}

	hash := device.HashFingerprint(sig.Fingerprint)
	if hash == "" {
		hash = s.devices.ComputeFingerprint(sig.Device.UserAgent)
	}
	if res := s.byFingerprint(ctx, sig, hash, now); res != nil {
		return res, nil
	}
	if res := s.bySoftLink(ctx, sig, now); res != nil {
		return res, nil
	}

	return s.create(ctx, sig, hash, now)
}

func (s *Service) bySession(ctx context.Context, sig identity.Signals) *Resolution {
	if sig.RegisteredUserID == "" {
		return nil
	}
	userID, err := uuid.Parse(sig.RegisteredUserID)
	if err != nil {
		return nil
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "registered lookup failed, falling through", "error", err)
		}
		return nil
	}
	return &Resolution{
		User:      user,
		Kind:      identity.KindRegistered,
		MatchType: identity.MatchSession,
	}
}

func (s *Service) byToken(ctx context.Context, sig identity.Signals, now time.Time) *Resolution {
	if sig.Token == "" {
		return nil
	}
	anon, err := s.identities.FindByToken(ctx, sig.Token)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "token lookup failed, falling through", "error", err)
		}
		return nil
	}
	// A merged token is dead. A blocked one does not resolve here either:
	// the token stops working as a live credential, and the fingerprint rung
	// below reattaches the visitor to the blocked identity, so the block
	// holds instead of the visitor minting a clean replacement.
	if anon.Merged() || anon.Status == identity.StatusBlocked {
		return nil
	}

	s.refresh(ctx, anon, sig, now)
	return &Resolution{
		Anon:      anon,
		Kind:      identity.KindAnonymous,
		MatchType: identity.MatchToken,
	}
}

func (s *Service) byFingerprint(ctx context.Context, sig identity.Signals, hash string, now time.Time) *Resolution {
	if hash == "" {
		return nil
	}
	anon, err := s.identities.FindByFingerprint(ctx, hash)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "fingerprint lookup failed, falling through", "error", err)
		}
		return nil
	}

	s.refresh(ctx, anon, sig, now)
	return &Resolution{
		Anon:      anon,
		Kind:      identity.KindAnonymous,
		MatchType: identity.MatchFingerprint,
	}
}

func (s *Service) bySoftLink(ctx context.Context, sig identity.Signals, now time.Time) *Resolution {
	if sig.LegacyID == "" {
		return nil
	}
	legacyID, err := uuid.Parse(sig.LegacyID)
	if err != nil {
		return nil
	}
	anon, err := s.identities.FindByID(ctx, legacyID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "soft link lookup failed, falling through", "error", err)
		}
		return nil
	}
	if anon.Merged() {
		return nil
	}

	// Soft link: the new signals attach to the existing record without
	// rewriting its token or fingerprint, so the prior association survives.
	s.refresh(ctx, anon, sig, now)
	return &Resolution{
		Anon:      anon,
		Kind:      identity.KindAnonymous,
		MatchType: identity.MatchSoftLink,
	}
}

func (s *Service) create(ctx context.Context, sig identity.Signals, hash string, now time.Time) (*Resolution, error) {
	token, err := identity.NewToken()
	if err != nil {
		return nil, err
	}
	anon := &identity.Anonymous{
		ID:              uuid.New(),
		Token:           token,
		FingerprintHash: hash,
		TrustScore:      identity.DefaultTrustScore,
		Status:          identity.StatusActive,
		Device:          deviceRecord(sig),
		FirstSeen:       now,
		LastSeen:        now,
	}

	err = s.identities.Create(ctx, anon)
	if errors.Is(err, sentinel.ErrConflict) {
		// Token collision. Practically unreachable with 256-bit tokens, but
		// a single regeneration beats returning an error to the visitor.
		if anon.Token, err = identity.NewToken(); err != nil {
			return nil, err
		}
		err = s.identities.Create(ctx, anon)
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IdentitiesCreated.Inc()
	}
	if s.auditor != nil {
		ev := &audit.Event{
			Kind:        audit.KindIdentityCreated,
			SubjectKind: audit.SubjectAnonymous,
			SubjectID:   anon.ID,
			System:      true,
			CreatedAt:   now,
		}
		if err := s.auditor.Record(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "recording identity creation failed", "error", err)
		}
	}

	return &Resolution{
		Anon:      anon,
		Kind:      identity.KindAnonymous,
		MatchType: identity.MatchCreated,
		IsNew:     true,
	}, nil
}

// refresh applies the request's device metadata and bumps last_seen. Last
// writer wins on these fields; identity keys are never touched here.
func (s *Service) refresh(ctx context.Context, anon *identity.Anonymous, sig identity.Signals, now time.Time) {
	anon.LastSeen = now
	if rec := deviceRecord(sig); rec != (identity.Device{}) {
		anon.Device = rec
	}
	if err := s.identities.Update(ctx, anon); err != nil {
		s.logger.WarnContext(ctx, "refreshing identity failed", "anonymous_id", anon.ID, "error", err)
	}
}

// observeNetwork runs the best-effort reputation lookup and records the
// observation. Failure or timeout degrades to Unknown geography; it never
// fails the resolution.
func (s *Service) observeNetwork(ctx context.Context, span trace.Span, res *Resolution) network.Reputation {
	ip := requestcontext.ClientIP(ctx)
	if ip == "" {
		return network.Unknown()
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	start := time.Now()
	rep, err := s.reputation.Lookup(lookupCtx, ip)
	if s.metrics != nil {
		s.metrics.ObserveReputationLatency(time.Since(start))
	}
	if err != nil {
		rep = network.Unknown()
		span.SetAttributes(attribute.Bool("network.degraded", true))
		if s.metrics != nil {
			s.metrics.ReputationErrors.Inc()
		}
		s.logger.DebugContext(ctx, "reputation lookup degraded", "error", err)
	}

	ownerKind := network.OwnerAnonymous
	ownerID := uuid.Nil
	switch {
	case res.Anon != nil:
		ownerID = res.Anon.ID
	case res.User != nil:
		ownerKind = network.OwnerRegistered
		ownerID = res.User.ID
	}
	if ownerID == uuid.Nil {
		return rep
	}

	now := requestcontext.Now(ctx)
	obs := &network.Observation{
		ID:        uuid.New(),
		OwnerKind: ownerKind,
		OwnerID:   ownerID,
		RealIP:    ip,
		IPHash:    network.HashIP(ip),
		Country:   rep.Country,
		City:      rep.City,
		ISP:       rep.ISP,
		Org:       rep.Org,
		ASN:       rep.ASN,
		VPN:       network.IsVPN(rep),
		Tor:       network.IsTor(rep),
		FirstSeen: now,
		LastSeen:  now,
	}
	if err := s.obs.Upsert(ctx, obs); err != nil {
		s.logger.WarnContext(ctx, "recording network observation failed", "error", err)
	}
	return rep
}

// TrackPageView bumps the page-view counter for a known token. Unknown or
// dead tokens report NotFound; callers treat that as a signal to re-init.
func (s *Service) TrackPageView(ctx context.Context, token string) error {
	if token == "" {
		return dErrors.New(dErrors.CodeBadRequest, "token required")
	}
	anon, err := s.identities.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return err
	}
	if anon.Merged() {
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	return s.identities.Touch(ctx, anon.ID, requestcontext.Now(ctx))
}

func deviceRecord(sig identity.Signals) identity.Device {
	rec := identity.Device{
		Platform: sig.Device.Platform,
		Timezone: sig.Device.Timezone,
		Language: sig.Device.Language,
	}
	if sig.Device.UserAgent != "" {
		rec.DisplayName = device.ParseUserAgent(sig.Device.UserAgent)
	}
	return rec
}
