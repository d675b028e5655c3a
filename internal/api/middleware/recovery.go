package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/ari-accounts/internal/api/apierr"
	"github.com/mcoot/ari-accounts/internal/middleware"
)

// Recovery turns API panics into an INTERNAL_ERROR JSON response
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger.With(slog.String("component", "api")), apiPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	w.Header().Set("Cache-Control", "no-store")
	apierr.WriteError(w, apierr.NewInternalError())
}
