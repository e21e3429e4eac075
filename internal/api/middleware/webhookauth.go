package middleware

import (
	"net/http"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/crypto"
)

// WebhookAuth rejects any request whose X-Webhook-Secret header doesn't
// match secretHash, the bcrypt hash of the shared secret the out-of-scope
// parsing/bot-UI boundary was issued out of band.
func WebhookAuth(secretHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := r.Header.Get("X-Webhook-Secret")
			if secret == "" || !crypto.CheckPasswordMatch(secret, secretHash) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
