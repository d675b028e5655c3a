package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mcoot/ari-accounts/internal/services/session"
)

const clientContextKey contextKey = "client"

// GetClientID returns the anonymous client id of the request
func GetClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientContextKey).(string)
	return id
}

// ClientSession makes sure every visitor carries a signed client token,
// minting one when the cookie is missing or invalid
func ClientSession(sessions *session.Manager, cookies Cookies, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var clientID string
			if cookie, err := r.Cookie(ClientCookieName); err == nil {
				if id, err := sessions.ParseClient(cookie.Value); err == nil {
					clientID = id
				}
			}

			if clientID == "" {
				id, token, err := sessions.NewClient()
				if err != nil {
					logger.Error("failed to mint client token", slog.String("error", err.Error()))
					ErrorPage(w, r, http.StatusInternalServerError)
					return
				}
				clientID = id
				cookies.Set(w, ClientCookieName, token, sessions.ClientLifetime())
			}

			ctx := context.WithValue(r.Context(), clientContextKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
