package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"arbor/internal/auth"
	"arbor/internal/domain/models/wiki"
	"arbor/internal/httputil"
)

// AuthMiddleware validates the Bearer token on every request and stores the
// operator id and membership principal in the request context.
func AuthMiddleware(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Probes carry no token.
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				httputil.RespondError(w, http.StatusUnauthorized, "Authorization header must use the Bearer scheme")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("rejected token", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			r = httputil.WithOperatorID(r, claims.GetOperatorID())
			r = httputil.WithPrincipal(r, &wiki.Principal{
				DepartmentIDs: claims.DepartmentIDs,
				RankIDs:       claims.RankIDs,
				PositionIDs:   claims.PositionIDs,
			})
			next.ServeHTTP(w, r)
		})
	}
}
