package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/ari-accounts/internal/api/handler"
	"github.com/mcoot/ari-accounts/internal/api/middleware"
	"github.com/mcoot/ari-accounts/internal/services/credentials"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Credentials *credentials.Service
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	userHandler := handler.NewUserHandler(cfg.Credentials, cfg.Logger)

	// Create middleware
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)
	api.Use(middleware.NoStore)

	// Health check endpoint
	api.HandleFunc("/health", handler.Health).Methods(http.MethodGet)

	// Role levels
	api.HandleFunc("/roles", handler.Roles).Methods(http.MethodGet)

	// Public profiles
	api.HandleFunc("/users/{username}", userHandler.Get).Methods(http.MethodGet)

	r.NotFoundHandler = recoveryMiddleware(loggingMiddleware(http.HandlerFunc(handler.NotFound)))
	r.MethodNotAllowedHandler = recoveryMiddleware(loggingMiddleware(http.HandlerFunc(handler.MethodNotAllowed)))

	return r
}
