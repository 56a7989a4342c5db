package httptransport

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"termtrust/internal/identity"
	"termtrust/internal/identity/resolver"
	"termtrust/internal/merge"
	dErrors "termtrust/pkg/domain-errors"
	"termtrust/pkg/platform/httputil"
	"termtrust/pkg/platform/sentinel"
	"termtrust/pkg/requestcontext"
)

// IdentityHandler serves the public surface: identity initialization, page
// views, and the registration-completion hook.
type IdentityHandler struct {
	resolver *resolver.Service
	merges   *merge.Service
	users    identity.UserStore
	logger   *slog.Logger
}

func NewIdentityHandler(res *resolver.Service, merges *merge.Service, users identity.UserStore, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{resolver: res, merges: merges, users: users, logger: logger}
}

func (h *IdentityHandler) Register(r chi.Router) {
	r.Post("/identity/init", h.HandleInit)
	r.Post("/identity/page-view", h.HandlePageView)
	r.Post("/registration/complete", h.HandleRegistrationComplete)
}

// HandleInit handles POST /identity/init requests.
func (h *IdentityHandler) HandleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[InitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.resolver.Resolve(ctx, req.Signals())
	if err != nil {
		h.logger.ErrorContext(ctx, "identity resolution failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if res.IsNew {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, initResponse(res))
}

// HandlePageView handles POST /identity/page-view requests.
func (h *IdentityHandler) HandlePageView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PageViewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.resolver.TrackPageView(ctx, req.Token); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegistrationComplete handles POST /registration/complete requests.
// It records the new account and claims any live anonymous history for it.
func (h *IdentityHandler) HandleRegistrationComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegistrationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	userID := uuid.MustParse(req.UserID)
	if _, err := h.users.FindByID(ctx, userID); err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, err)
			return
		}
		user := identity.Registered{
			ID:        userID,
			Username:  req.Username,
			Role:      identity.RoleUser,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.users.Save(ctx, user); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	result, err := h.merges.AutoMerge(ctx, userID, req.Token, req.Fingerprint)
	if err != nil {
		// A lost race with another registration is reported as a conflict,
		// not an internal failure.
		if dErrors.CodeOf(err) == dErrors.CodeAlreadyMerged {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "auto-merge failed", "request_id", requestID, "user_id", userID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
