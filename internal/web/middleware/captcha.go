package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mcoot/ari-accounts/internal/services/captcha"
)

// CaptchaField is the form field carrying the captcha answer
const CaptchaField = "captcha"

// Captcha guards a form submission with the client's pending captcha.
// Requests failing the check are handed to reject instead of next.
func Captcha(service *captcha.Service, reject http.HandlerFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := GetClientID(r.Context())
			if clientID == "" {
				reject(w, r)
				return
			}

			err := service.Validate(r.Context(), clientID, r.PostFormValue(CaptchaField))
			if err != nil {
				if !errors.Is(err, captcha.ErrNoChallenge) && !errors.Is(err, captcha.ErrExpired) && !errors.Is(err, captcha.ErrMismatch) {
					logger.Error("captcha validation failed", slog.String("error", err.Error()))
				} else {
					logger.Debug("captcha rejected", slog.String("path", r.URL.Path), slog.String("reason", err.Error()))
				}
				reject(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
