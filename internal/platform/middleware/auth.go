package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"termtrust/pkg/requestcontext"
)

// Claims represents the claims we expect from the token validator.
type Claims struct {
	ActorID string
	Role    string
}

// TokenValidator validates bearer tokens presented on admin endpoints.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// RequireAdmin authenticates the caller and requires the admin role. The
// resolved actor is injected into context; handlers thread it explicitly into
// services rather than re-reading ambient state. Non-admin callers receive a
// uniform response that does not reveal whether a target resource exists.
func RequireAdmin(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "admin access denied - missing token", "request_id", requestID)
				writeUnauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "admin access denied - invalid token",
					"request_id", requestID,
					"error", err,
				)
				writeUnauthorized(w)
				return
			}
			if claims.Role != "admin" {
				logger.WarnContext(ctx, "admin access denied - insufficient role",
					"request_id", requestID,
					"actor_id", claims.ActorID,
				)
				writeUnauthorized(w)
				return
			}

			ctx = requestcontext.WithActor(ctx, claims.ActorID, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin credentials required"}`))
}
