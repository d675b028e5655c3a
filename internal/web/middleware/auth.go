package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/services/credentials"
	"github.com/mcoot/ari-accounts/internal/services/session"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	rejectedContextKey contextKey = "auth_rejected"
)

// Identity is the signed-in user behind a request
type Identity struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// GetIdentity returns the request's identity, or nil when anonymous
func GetIdentity(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey).(*Identity)
	return identity
}

// GetUser returns the signed-in user, or nil when anonymous
func GetUser(ctx context.Context) *model.User {
	if identity := GetIdentity(ctx); identity != nil {
		return identity.User
	}
	return nil
}

// WithIdentity stores identity on the context
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// RequestFingerprint derives the session fingerprint of r
func RequestFingerprint(r *http.Request) string {
	return session.Fingerprint(r.UserAgent(), r.RemoteAddr)
}

// OptionalAuth resolves the authorization cookie into an identity when it
// is valid and clears it when it is not
func OptionalAuth(sessions *session.Manager, creds *credentials.Service, cookies Cookies, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AuthCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			identity, err := resolve(ctx, sessions, creds, cookie.Value, RequestFingerprint(r))
			if err != nil {
				if !errors.Is(err, session.ErrInvalidToken) && !errors.Is(err, session.ErrRevoked) &&
					!errors.Is(err, session.ErrFingerprintMismatch) && !errors.Is(err, model.ErrUserNotFound) {
					logger.Error("session resolve failed", slog.String("error", err.Error()))
				}
				cookies.Clear(w, AuthCookieName)
				ctx = context.WithValue(ctx, rejectedContextKey, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func resolve(ctx context.Context, sessions *session.Manager, creds *credentials.Service, token, fingerprint string) (*Identity, error) {
	sess, err := sessions.Resolve(ctx, token, fingerprint)
	if err != nil {
		return nil, err
	}
	user, err := creds.Lookup(ctx, sess.Username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			_ = sessions.RevokeID(ctx, sess.ID)
		}
		return nil, err
	}
	return &Identity{User: user, Session: sess, Token: token}, nil
}

// RequireLogin sends anonymous visitors to the signin page, remembering
// where they were going
func RequireLogin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetIdentity(r.Context()) == nil {
				message := "please sign in"
				if rejected, _ := r.Context().Value(rejectedContextKey).(bool); rejected {
					message = "your login expired, please sign in again"
				}
				SetFlash(w, FlashInfo, message)
				http.Redirect(w, r, "/auth/signin?next="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoLogin sends signed-in users home
func NoLogin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetIdentity(r.Context()) != nil {
				SetFlash(w, FlashInfo, "you are already signed in")
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
