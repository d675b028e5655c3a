package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/mcoot/ari-accounts/internal/services/account"
	"github.com/mcoot/ari-accounts/internal/services/captcha"
	"github.com/mcoot/ari-accounts/internal/services/session"
	"github.com/mcoot/ari-accounts/internal/web/middleware"
	"github.com/mcoot/ari-accounts/internal/web/templates/layout"
	"github.com/mcoot/ari-accounts/internal/web/templates/pages"
)

const captchaRejectedMessage = "invalid captcha"

// AuthHandler handles authentication pages and actions
type AuthHandler struct {
	accounts *account.Controller
	captcha  *captcha.Service
	sessions *session.Manager
	cookies  middleware.Cookies
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts *account.Controller, captchaService *captcha.Service, sessions *session.Manager, cookies middleware.Cookies, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		captcha:  captchaService,
		sessions: sessions,
		cookies:  cookies,
		logger:   logger,
	}
}

// Captcha issues a fresh challenge for the client as a JSON pair of
// [image, audio] data URLs
func (h *AuthHandler) Captcha(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.captcha.Issue(r.Context(), middleware.GetClientID(r.Context()))
	if err != nil {
		h.logger.Error("captcha issue failed", slog.String("error", err.Error()))
		middleware.ErrorPage(w, r, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode([]string{challenge.Image, challenge.Audio})
}

// Index sends /auth/ to the signin page
func (h *AuthHandler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/auth/signin", http.StatusFound)
}

// Signout ends the current session
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if err := h.accounts.Signout(r.Context(), identity.Token); err != nil {
		middleware.ErrorPage(w, r, http.StatusInternalServerError)
		return
	}

	h.cookies.Clear(w, middleware.AuthCookieName)
	middleware.SetFlash(w, middleware.FlashInfo, "you have been signed out")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Signup

// SignupPage renders the signup form
func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.renderSignup(w, r, http.StatusOK, middleware.GetFlash(r.Context()), "")
}

// Signup handles the signup form
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	result, err := h.accounts.Signup(r.Context(), account.SignupRequest{
		Username: username,
		Password: r.PostFormValue("password"),
		Terms:    r.PostFormValue("terms"),
	})
	if err != nil {
		h.renderSignup(w, r, flowStatus(err), flowFlash(err), username)
		return
	}

	data := pages.CreatedData{
		PageData: h.pageData(r, "account created", nil),
		Username: result.Username,
		PIN:      result.PIN,
	}
	w.Header().Set("Cache-Control", "no-store")
	h.render(w, r, http.StatusOK, pages.Created(data))
}

// RejectSignup re-renders the signup form after a failed captcha
func (h *AuthHandler) RejectSignup(w http.ResponseWriter, r *http.Request) {
	h.renderSignup(w, r, http.StatusUnauthorized, captchaFlash(), r.PostFormValue("username"))
}

func (h *AuthHandler) renderSignup(w http.ResponseWriter, r *http.Request, status int, flash *layout.FlashMessage, username string) {
	data := pages.SignupData{
		PageData: h.pageData(r, "sign up", flash),
		Username: username,
	}
	h.render(w, r, status, pages.Signup(data))
}

// Signin

// SigninPage renders the signin form
func (h *AuthHandler) SigninPage(w http.ResponseWriter, r *http.Request) {
	h.renderSignin(w, r, http.StatusOK, middleware.GetFlash(r.Context()), "", r.URL.Query().Get("next"))
}

// Signin handles the signin form
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	next := r.PostFormValue("next")

	result, err := h.accounts.Signin(r.Context(), account.SigninRequest{
		Username:    username,
		Password:    r.PostFormValue("password"),
		PIN:         r.PostFormValue("pin"),
		Fingerprint: middleware.RequestFingerprint(r),
	})
	if err != nil {
		h.renderSignin(w, r, flowStatus(err), flowFlash(err), username, next)
		return
	}

	h.cookies.Set(w, middleware.AuthCookieName, result.Token, h.sessions.Lifetime())
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

// RejectSignin re-renders the signin form after a failed captcha
func (h *AuthHandler) RejectSignin(w http.ResponseWriter, r *http.Request) {
	h.renderSignin(w, r, http.StatusUnauthorized, captchaFlash(), r.PostFormValue("username"), r.PostFormValue("next"))
}

func (h *AuthHandler) renderSignin(w http.ResponseWriter, r *http.Request, status int, flash *layout.FlashMessage, username, next string) {
	data := pages.SigninData{
		PageData: h.pageData(r, "sign in", flash),
		Username: username,
		Next:     next,
	}
	h.render(w, r, status, pages.Signin(data))
}

// Manage

// ManagePage renders the account settings form
func (h *AuthHandler) ManagePage(w http.ResponseWriter, r *http.Request) {
	h.renderManage(w, r, http.StatusOK, middleware.GetFlash(r.Context()))
}

// Manage handles the account settings form
func (h *AuthHandler) Manage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	req := account.ManageRequest{
		PasswordOld: r.PostFormValue("password_old"),
		Password:    r.PostFormValue("password"),
		PIN:         r.PostFormValue("pin"),
	}
	// An absent bio field leaves the bio alone, an empty one clears it
	if values, ok := r.PostForm["bio"]; ok && len(values) > 0 {
		bio := values[0]
		req.Bio = &bio
	}

	user, err := h.accounts.Manage(r.Context(), identity.User.Username, req)
	if err != nil {
		h.renderManage(w, r, flowStatus(err), flowFlash(err))
		return
	}

	identity.User = user
	h.renderManage(w, r, http.StatusOK, &layout.FlashMessage{Type: middleware.FlashInfo, Message: "user updated"})
}

// RejectManage re-renders the settings form after a failed captcha
func (h *AuthHandler) RejectManage(w http.ResponseWriter, r *http.Request) {
	h.renderManage(w, r, http.StatusUnauthorized, captchaFlash())
}

func (h *AuthHandler) renderManage(w http.ResponseWriter, r *http.Request, status int, flash *layout.FlashMessage) {
	data := pages.ManageData{
		PageData: h.pageData(r, "manage account", flash),
	}
	h.render(w, r, status, pages.Manage(data))
}

// Delete

// DeletePage renders the delete confirmation
func (h *AuthHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pages.Delete(h.pageData(r, "delete account", middleware.GetFlash(r.Context()))))
}

// Delete handles the delete confirmation
func (h *AuthHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	err := h.accounts.Delete(r.Context(), identity.User.Username, r.PostFormValue("sure"))
	switch {
	case errors.Is(err, account.ErrNotConfirmed):
		middleware.SetFlash(w, middleware.FlashInfo, err.Error())
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case err != nil:
		middleware.ErrorPageWithFlash(w, r, http.StatusInternalServerError,
			&layout.FlashMessage{Type: middleware.FlashError, Message: err.Error()})
		return
	}

	h.cookies.Clear(w, middleware.AuthCookieName)
	middleware.SetFlash(w, middleware.FlashInfo, "account deleted")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RejectDelete re-renders the delete confirmation after a failed captcha
func (h *AuthHandler) RejectDelete(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusUnauthorized, pages.Delete(h.pageData(r, "delete account", captchaFlash())))
}

func (h *AuthHandler) pageData(r *http.Request, title string, flash *layout.FlashMessage) layout.PageData {
	return layout.PageData{
		Title: title,
		User:  middleware.GetUser(r.Context()),
		Flash: flash,
	}
}

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, page templ.Component) {
	render(w, r, status, page, h.logger)
}

func render(w http.ResponseWriter, r *http.Request, status int, page templ.Component, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		logger.Error("render failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
}

func captchaFlash() *layout.FlashMessage {
	return &layout.FlashMessage{Type: middleware.FlashError, Message: captchaRejectedMessage}
}

// safeNext only follows same-site absolute paths
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
