package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/ari-accounts/internal/api/response"
	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/services/credentials"
)

// UserHandler serves public account profiles
type UserHandler struct {
	credentials *credentials.Service
	logger      *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(credentials *credentials.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		credentials: credentials,
		logger:      logger,
	}
}

// Get handles GET /api/v1/users/{username}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	if err := credentials.ValidateUsername(username); err != nil {
		WriteError(w, err)
		return
	}

	user, err := h.credentials.Lookup(r.Context(), username)
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			h.logger.Error("user lookup failed", slog.String("error", err.Error()))
		}
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}
