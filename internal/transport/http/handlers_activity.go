package httptransport

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"termtrust/internal/activity"
	"termtrust/internal/identity"
	dErrors "termtrust/pkg/domain-errors"
	"termtrust/pkg/platform/httputil"
	"termtrust/pkg/platform/sentinel"
	"termtrust/pkg/requestcontext"
)

// ActivityHandler is the inbound seam for the content collaborator: every
// created post, comment, reaction, message, or log entry is reported here so
// ownership and the per-identity counters stay in step.
type ActivityHandler struct {
	recorder   *activity.Recorder
	identities identity.Store
	logger     *slog.Logger
}

func NewActivityHandler(recorder *activity.Recorder, identities identity.Store, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{recorder: recorder, identities: identities, logger: logger}
}

func (h *ActivityHandler) Register(r chi.Router) {
	r.Post("/activity/record", h.HandleRecord)
}

// HandleRecord handles POST /activity/record requests.
func (h *ActivityHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	now := time.Now().UTC()
	kind := activity.Kind(req.Kind)

	var rec *activity.Record
	if req.Token != "" {
		anon, err := h.identities.FindByToken(ctx, req.Token)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown token"))
				return
			}
			httputil.WriteError(w, err)
			return
		}
		// Merged tokens are dead; their content belongs to the account now.
		if anon.Merged() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown token"))
			return
		}
		rec = activity.NewAnonymousRecord(kind, anon.ID, req.Body, now)
	} else {
		rec = activity.NewRegisteredRecord(kind, uuid.MustParse(req.UserID), req.Body, now)
	}

	if err := h.recorder.Record(ctx, rec); err != nil {
		h.logger.ErrorContext(ctx, "recording activity failed", "request_id", requestID, "kind", kind, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, RecordResponse{ID: rec.ID})
}
