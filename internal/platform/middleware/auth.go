package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator validates a bearer token and extracts the auditor identity.
// The identity is opaque to the core: it is embedded in outcomes, never
// interpreted.
type TokenValidator interface {
	ValidateToken(tokenString string) (auditorIdentity string, err error)
}

type contextKeyAuditor struct{}

// ContextKeyAuditor is exported for use in handlers.
var ContextKeyAuditor = contextKeyAuditor{}

// GetAuditorIdentity retrieves the authenticated auditor from the context.
func GetAuditorIdentity(ctx context.Context) string {
	auditor, ok := ctx.Value(ContextKeyAuditor).(string)
	if !ok {
		return ""
	}
	return auditor
}

// RequireAuth rejects requests without a valid bearer token and stores the
// auditor identity in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				unauthorized(w, r, logger, "missing or malformed Authorization header")
				return
			}

			auditor, err := validator.ValidateToken(token)
			if err != nil {
				unauthorized(w, r, logger, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAuditor, auditor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	logger.WarnContext(r.Context(), "unauthorized access",
		"reason", reason,
		"request_id", GetRequestID(r.Context()),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
