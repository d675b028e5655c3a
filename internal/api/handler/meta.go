package handler

import (
	"net/http"

	"github.com/mcoot/ari-accounts/internal/api/response"
	"github.com/mcoot/ari-accounts/internal/model"
)

// Health handles GET /api/v1/health
func Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

// Roles handles GET /api/v1/roles
func Roles(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Roles{Roles: model.RoleLevels()})
}
