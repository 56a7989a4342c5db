package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"termtrust/internal/activity"
	"termtrust/internal/audit"
	"termtrust/internal/identity"
	"termtrust/internal/identity/device"
	"termtrust/internal/identity/resolver"
	"termtrust/internal/investigation"
	"termtrust/internal/jwtauth"
	"termtrust/internal/merge"
	"termtrust/internal/moderation"
	"termtrust/internal/network"
	"termtrust/internal/network/reputation"
	"termtrust/internal/trust"
	"termtrust/pkg/platform/tx"
)

// The handler suite runs the full route tree against in-memory stores so
// requests exercise the same wiring main assembles.
type HandlerSuite struct {
	suite.Suite

	identities *identity.MemoryStore
	users      *identity.MemoryUserStore
	jwt        *jwtauth.Service
	router     chi.Router
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.Default()
	s.identities = identity.NewMemoryStore()
	s.users = identity.NewMemoryUserStore()
	activities := activity.NewMemoryStore()
	observations := network.NewMemoryObservationStore()
	auditor := audit.NewPipeline(audit.NewMemoryStore(), audit.NopSink{}, nil, logger)

	res := resolver.NewService(
		s.identities, s.users, observations,
		device.NewService(true),
		reputation.NewHTTPClient("", time.Second), // always degrades
		auditor, nil, logger, time.Second,
	)
	scorer := trust.NewService(s.identities, observations, activities, logger)
	merges := merge.NewService(s.identities, s.users, activities, auditor, tx.NewSerialRunner(), nil, logger)
	investigations := investigation.NewService(s.identities, observations, activities, scorer, logger)
	moderators := moderation.NewService(s.identities, auditor, logger)

	s.jwt = jwtauth.NewService("test-signing-key", "termtrust-test")
	s.router = NewRouter(RouterDeps{
		Identity: NewIdentityHandler(res, merges, s.users, logger),
		Activity: NewActivityHandler(activity.NewRecorder(activities, s.identities), s.identities, logger),
		Admin:    NewAdminHandler(investigations, merges, moderators, s.identities, logger),
		JWT:      s.jwt,
		Logger:   logger,
	})
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.50:45000"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/130.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func (s *HandlerSuite) adminHeader() map[string]string {
	token, err := s.jwt.GenerateAccessToken(uuid.New(), "admin", time.Hour)
	s.Require().NoError(err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func (s *HandlerSuite) initIdentity() (string, string) {
	rec, body := s.do(http.MethodPost, "/identity/init", InitRequest{}, nil)
	s.Require().Equal(http.StatusCreated, rec.Code)
	return body["identity_id"].(string), body["token"].(string)
}

func (s *HandlerSuite) TestInitCreatesIdentity() {
	rec, body := s.do(http.MethodPost, "/identity/init", InitRequest{}, nil)

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal(true, body["is_new"])
	s.Equal("created", body["match_type"])
	s.NotEmpty(body["token"])
	s.EqualValues(50, body["trust_score"])

	// Degraded lookup means Unknown geography, and network internals never
	// appear in the payload.
	geo := body["geo"].(map[string]any)
	s.Equal("Unknown", geo["country"])
	s.NotContains(body, "real_ip")
	s.NotContains(body, "vpn")
	s.NotContains(body, "isp")
}

func (s *HandlerSuite) TestInitReusesToken() {
	id, token := s.initIdentity()

	rec, body := s.do(http.MethodPost, "/identity/init", InitRequest{Token: token}, nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(false, body["is_new"])
	s.Equal("token", body["match_type"])
	s.Equal(id, body["identity_id"])
}

func (s *HandlerSuite) TestInitRejectsMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/identity/init", bytes.NewBufferString("{broken"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestPageView() {
	_, token := s.initIdentity()

	rec, _ := s.do(http.MethodPost, "/identity/page-view", PageViewRequest{Token: token}, nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec, _ = s.do(http.MethodPost, "/identity/page-view", PageViewRequest{}, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestActivityRecordBumpsCounters() {
	id, token := s.initIdentity()

	rec, body := s.do(http.MethodPost, "/activity/record", RecordRequest{
		Token: token, Kind: "post", Body: "hello from the terminal",
	}, nil)
	s.Equal(http.StatusCreated, rec.Code)
	s.NotEmpty(body["id"])

	stored, err := s.identities.FindByID(context.Background(), uuid.MustParse(id))
	s.Require().NoError(err)
	s.Equal(1, stored.PostCount)
}

func (s *HandlerSuite) TestActivityRecordValidation() {
	_, token := s.initIdentity()

	// Unknown kind.
	rec, _ := s.do(http.MethodPost, "/activity/record", RecordRequest{Token: token, Kind: "poem"}, nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	// Neither owner reference.
	rec, _ = s.do(http.MethodPost, "/activity/record", RecordRequest{Kind: "post"}, nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	// Dead token.
	rec, _ = s.do(http.MethodPost, "/activity/record", RecordRequest{Token: "no-such-token", Kind: "post"}, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestRegistrationCompleteMergesHistory() {
	_, token := s.initIdentity()
	userID := uuid.New()

	rec, body := s.do(http.MethodPost, "/registration/complete", RegistrationRequest{
		UserID:   userID.String(),
		Username: "fresh-user",
		Token:    token,
	}, nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, body["merged"])
	s.Equal(false, body["reversible"])

	// The claimed token is dead: the next init starts over.
	rec, body = s.do(http.MethodPost, "/identity/init", InitRequest{Token: token}, nil)
	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("created", body["match_type"])
}

func (s *HandlerSuite) TestRegistrationCompleteNothingToMerge() {
	rec, body := s.do(http.MethodPost, "/registration/complete", RegistrationRequest{
		UserID:   uuid.NewString(),
		Username: "no-history",
	}, nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(false, body["merged"])
}

func (s *HandlerSuite) TestAdminRoutesRequireAuth() {
	id, _ := s.initIdentity()

	rec, _ := s.do(http.MethodGet, "/admin/identities/"+id, nil, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	userToken, err := s.jwt.GenerateAccessToken(uuid.New(), "user", time.Hour)
	s.Require().NoError(err)
	rec, _ = s.do(http.MethodGet, "/admin/identities/"+id, nil,
		map[string]string{"Authorization": "Bearer " + userToken})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestAdminInvestigate() {
	id, _ := s.initIdentity()

	rec, body := s.do(http.MethodGet, "/admin/identities/"+id, nil, s.adminHeader())

	s.Equal(http.StatusOK, rec.Code)
	ident := body["identity"].(map[string]any)
	s.Equal(id, ident["id"])
	s.Contains(body, "risk")
	// The dossier's network view carries the hash, never the address.
	if netView, ok := body["network"].(map[string]any); ok {
		s.NotContains(netView, "RealIP")
		s.NotContains(netView, "real_ip")
	}
}

func (s *HandlerSuite) TestAdminSuggestions() {
	id, _ := s.initIdentity()

	rec, body := s.do(http.MethodGet, "/admin/identities/"+id+"/suggestions", nil, s.adminHeader())

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(body, "suggestions")
	s.Contains(body, "recommendation")
}

func (s *HandlerSuite) TestAdminSetStatusBlocksToken() {
	id, token := s.initIdentity()

	rec, _ := s.do(http.MethodPost, "/admin/identities/"+id+"/status",
		StatusRequest{Status: "blocked", Reason: "spam"}, s.adminHeader())
	s.Equal(http.StatusNoContent, rec.Code)

	// Blocked identities no longer resolve by token.
	rec, body := s.do(http.MethodPost, "/identity/init", InitRequest{Token: token}, nil)
	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("created", body["match_type"])
}

func (s *HandlerSuite) TestAdminMergeByUsername() {
	id, _ := s.initIdentity()
	user := identity.Registered{ID: uuid.New(), Username: "claimant", Role: identity.RoleUser, CreatedAt: time.Now().UTC()}
	s.Require().NoError(s.users.Save(context.Background(), user))

	rec, body := s.do(http.MethodPost, "/admin/merge",
		MergeRequest{AnonymousID: id, Username: "claimant"}, s.adminHeader())

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, body["merged"])
	s.Equal(user.ID.String(), body["user_id"])
}

func (s *HandlerSuite) TestAdminMergeValidation() {
	rec, body := s.do(http.MethodPost, "/admin/merge",
		MergeRequest{Username: "claimant"}, s.adminHeader())

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("bad_request", body["error"])
}

func (s *HandlerSuite) TestHealthz() {
	rec, body := s.do(http.MethodGet, "/healthz", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", body["status"])
}
