package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/watchtowerhq/watchtower/internal/api/response"
)

// AdminAuth verifies fernet bearer tokens on mutating endpoints. Tokens are
// minted out of band with the shared key and expire after ttl. An empty key
// disables authentication (development mode).
func AdminAuth(key string, ttl time.Duration) func(http.Handler) http.Handler {
	var keys []*fernet.Key
	if key != "" {
		if k, err := fernet.DecodeKey(key); err == nil {
			keys = []*fernet.Key{k}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys == nil {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			if msg := fernet.VerifyAndDecrypt([]byte(token), ttl, keys); msg == nil {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
