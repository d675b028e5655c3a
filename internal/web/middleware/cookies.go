package middleware

import (
	"net/http"
	"time"
)

// Cookie names
const (
	// AuthCookieName holds the signed-in session token
	AuthCookieName = "authorization"
	// ClientCookieName holds the anonymous client token captchas are bound to
	ClientCookieName = "session"
)

// Cookies sets and clears cookies with consistent attributes
type Cookies struct {
	// Secure marks cookies Secure and SameSite=None. Without it cookies
	// fall back to SameSite=Lax so plain-HTTP development works.
	Secure bool
}

func (c Cookies) sameSite() http.SameSite {
	if c.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// Set writes an HttpOnly cookie living for maxAge
func (c Cookies) Set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.sameSite(),
	})
}

// Clear expires the cookie
func (c Cookies) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.sameSite(),
	})
}
