package chi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain/tenant"
	"github.com/kailas-cloud/recall/internal/logger"
)

// APIKeyAuthMiddleware resolves the caller's API key to a tenant identity.
// The key is read from "Authorization: Bearer <key>" or "X-API-Key".
// Requests without a known key are rejected before any parsing.
func APIKeyAuthMiddleware(keys map[string]tenant.Identity) func(http.Handler) http.Handler {
	valid := make(map[string]tenant.Identity, len(keys))
	for k, id := range keys {
		if k != "" && id.Valid() {
			valid[k] = id
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := apiKey(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing api key")
				return
			}
			id, ok := valid[key]
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}

			ctx := tenant.ContextWithIdentity(r.Context(), id)
			ctx = logger.With(ctx, zap.String("tenant_id", id.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func apiKey(r *http.Request) (string, bool) {
	const bearerPrefix = "Bearer "
	if auth := r.Header.Get("Authorization"); auth != "" {
		if !strings.HasPrefix(auth, bearerPrefix) {
			return "", false
		}
		key := strings.TrimSpace(auth[len(bearerPrefix):])
		return key, key != ""
	}
	key := strings.TrimSpace(r.Header.Get("X-API-Key"))
	return key, key != ""
}
