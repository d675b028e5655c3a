package handler

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/ari-accounts/internal/web/middleware"
	"github.com/mcoot/ari-accounts/internal/web/templates/layout"
	"github.com/mcoot/ari-accounts/internal/web/templates/pages"
)

// HomeHandler handles the home page
type HomeHandler struct {
	logger *slog.Logger
}

// NewHomeHandler creates a new HomeHandler
func NewHomeHandler(logger *slog.Logger) *HomeHandler {
	return &HomeHandler{logger: logger}
}

// Home renders the home page
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	data := pages.HomeData{
		PageData: layout.PageData{
			Title: "home",
			User:  middleware.GetUser(r.Context()),
			Flash: middleware.GetFlash(r.Context()),
		},
	}

	render(w, r, http.StatusOK, pages.Home(data), h.logger)
}
