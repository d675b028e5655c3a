package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mcoot/ari-accounts/internal/web/templates/layout"
	"github.com/mcoot/ari-accounts/internal/web/templates/pages"
)

var errorDescriptions = map[int]string{
	http.StatusBadRequest:          "the browser (or proxy) sent a request that this server could not understand.",
	http.StatusUnauthorized:        "the server could not verify that you are authorized to access the url requested.",
	http.StatusForbidden:           "you don't have the permission to access the requested resource.",
	http.StatusNotFound:            "the requested url was not found on the server. if you entered the url manually please check your spelling and try again.",
	http.StatusMethodNotAllowed:    "the method is not allowed for the requested url.",
	http.StatusInternalServerError: "the server encountered an internal error and was unable to complete your request. either the server is overloaded or there is an error in the application.",
}

// ErrorPage renders the generic HTTP error page for code
func ErrorPage(w http.ResponseWriter, r *http.Request, code int) {
	ErrorPageWithFlash(w, r, code, nil)
}

// ErrorPageWithFlash renders the error page with flash shown inline
func ErrorPageWithFlash(w http.ResponseWriter, r *http.Request, code int, flash *layout.FlashMessage) {
	summary := strings.ToLower(http.StatusText(code))
	description, ok := errorDescriptions[code]
	if !ok {
		description = "http error code " + strconv.Itoa(code)
	}

	data := pages.ErrorData{
		PageData: layout.PageData{
			Title: summary,
			User:  GetUser(r.Context()),
			Flash: flash,
		},
		Code:        code,
		Summary:     summary,
		Description: description,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = pages.Error(data).Render(r.Context(), w)
}

// NotFound renders the 404 page
func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorPage(w, r, http.StatusNotFound)
	})
}

// MethodNotAllowed renders the 405 page
func MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorPage(w, r, http.StatusMethodNotAllowed)
	})
}
