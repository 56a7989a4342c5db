package httptransport

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"termtrust/internal/identity"
	"termtrust/internal/investigation"
	"termtrust/internal/merge"
	"termtrust/internal/moderation"
	dErrors "termtrust/pkg/domain-errors"
	"termtrust/pkg/platform/httputil"
	"termtrust/pkg/platform/sentinel"
	"termtrust/pkg/requestcontext"
)

// AdminHandler serves the operator console. Every route behind it runs under
// the admin-auth middleware; the resolved actor is still threaded explicitly
// into each service call.
type AdminHandler struct {
	investigations *investigation.Service
	merges         *merge.Service
	moderators     *moderation.Service
	identities     identity.Store
	logger         *slog.Logger
}

func NewAdminHandler(
	investigations *investigation.Service,
	merges *merge.Service,
	moderators *moderation.Service,
	identities identity.Store,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		investigations: investigations,
		merges:         merges,
		moderators:     moderators,
		identities:     identities,
		logger:         logger,
	}
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Get("/identities/{id}", h.HandleInvestigate)
	r.Get("/identities/{id}/score", h.HandleExplainScore)
	r.Get("/identities/{id}/suggestions", h.HandleSuggestions)
	r.Post("/identities/{id}/status", h.HandleSetStatus)
	r.Post("/merge", h.HandleMerge)
}

func actorFrom(r *http.Request) (identity.Actor, bool) {
	ctx := r.Context()
	actorID, err := uuid.Parse(requestcontext.ActorID(ctx))
	if err != nil {
		return identity.Actor{}, false
	}
	return identity.Actor{ID: actorID, Role: identity.Role(requestcontext.ActorRole(ctx))}, true
}

func identityIDFrom(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid identity id "+raw)
	}
	return id, nil
}

// HandleInvestigate handles GET /admin/identities/{id} requests.
func (h *AdminHandler) HandleInvestigate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin credentials required"))
		return
	}
	anonID, err := identityIDFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	dossier, err := h.investigations.Investigate(r.Context(), actor, anonID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dossier)
}

// HandleExplainScore handles GET /admin/identities/{id}/score requests.
func (h *AdminHandler) HandleExplainScore(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin credentials required"))
		return
	}
	anonID, err := identityIDFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	assessment, err := h.investigations.ExplainScore(r.Context(), actor, anonID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, assessment)
}

// HandleSuggestions handles GET /admin/identities/{id}/suggestions requests.
func (h *AdminHandler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin credentials required"))
		return
	}
	anonID, err := identityIDFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	advice, err := h.investigations.SuggestAction(r.Context(), actor, anonID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, advice)
}

// HandleSetStatus handles POST /admin/identities/{id}/status requests.
func (h *AdminHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := actorFrom(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin credentials required"))
		return
	}
	anonID, err := identityIDFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.moderators.SetStatus(ctx, actor, anonID, identity.Status(req.Status), req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMerge handles POST /admin/merge requests.
func (h *AdminHandler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := actorFrom(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin credentials required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[MergeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	anonID, err := h.resolveTarget(r, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.merges.AdminMerge(ctx, actor, anonID, req.Username)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "admin merge completed",
		"request_id", requestID, "anonymous_id", anonID, "actor_id", actor.ID)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// resolveTarget accepts either the identity id or its fingerprint hash as
// the anonymous-side key.
func (h *AdminHandler) resolveTarget(r *http.Request, req MergeRequest) (uuid.UUID, error) {
	if req.AnonymousID != "" {
		return uuid.MustParse(req.AnonymousID), nil
	}
	anon, err := h.identities.FindByFingerprint(r.Context(), req.Fingerprint)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return uuid.Nil, dErrors.New(dErrors.CodeNotFound, "no identity for fingerprint "+req.Fingerprint)
		}
		return uuid.Nil, err
	}
	return anon.ID, nil
}
