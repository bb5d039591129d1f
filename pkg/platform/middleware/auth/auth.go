package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"custodian/internal/domain"
	"custodian/pkg/platform/middleware/metadata"
	"custodian/pkg/requestcontext"
)

// TokenValidator turns a bearer token into a verified identity.
// Verification belongs to the authentication collaborator; the engine only
// consumes the result.
type TokenValidator interface {
	IdentityFromToken(token string) (domain.Identity, error)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth validates the bearer token and injects the verified identity
// into the request context. Requests without a valid token are rejected
// before any rule evaluation runs.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			identity, err := validator.IdentityFromToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", metadata.GetClientIP(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := requestcontext.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
