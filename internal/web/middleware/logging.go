package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/ari-accounts/internal/middleware"
)

// Logging logs each web request under component=web. Form bodies and
// query strings are never logged, since they carry passwords and PINs.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger.With(slog.String("component", "web")))
}
