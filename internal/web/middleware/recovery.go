package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/ari-accounts/internal/middleware"
)

// Recovery creates panic recovery middleware for the web interface
// Renders the generic 500 page on panic
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, webPanicHandler)
}

func webPanicHandler(w http.ResponseWriter, r *http.Request, _ any) {
	ErrorPage(w, r, http.StatusInternalServerError)
}
