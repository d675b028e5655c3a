package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/ari-accounts/internal/services/account"
	"github.com/mcoot/ari-accounts/internal/services/captcha"
	"github.com/mcoot/ari-accounts/internal/services/credentials"
	"github.com/mcoot/ari-accounts/internal/services/session"
	"github.com/mcoot/ari-accounts/internal/web/handler"
	"github.com/mcoot/ari-accounts/internal/web/middleware"
)

// maxFormBytes bounds form submissions. Passwords are capped well below this.
const maxFormBytes = 64 << 10

// RouterConfig holds configuration for the web router
type RouterConfig struct {
	Logger      *slog.Logger
	Accounts    *account.Controller
	Sessions    *session.Manager
	Credentials *credentials.Service
	Captcha     *captcha.Service
	Cookies     middleware.Cookies
	StaticDir   string // Path to static files directory
}

// NewRouter creates a new web router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create middleware
	recoveryMiddleware := middleware.Recovery(cfg.Logger)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	limitMiddleware := middleware.LimitBody(maxFormBytes)
	clientMiddleware := middleware.ClientSession(cfg.Sessions, cfg.Cookies, cfg.Logger)
	flashMiddleware := middleware.Flash()
	optionalAuthMiddleware := middleware.OptionalAuth(cfg.Sessions, cfg.Credentials, cfg.Cookies, cfg.Logger)

	chain := []mux.MiddlewareFunc{
		recoveryMiddleware,
		loggingMiddleware,
		limitMiddleware,
		clientMiddleware,
		flashMiddleware,
		optionalAuthMiddleware,
	}

	// Apply global middleware to all routes
	r.Use(chain...)

	// mux skips r.Use middleware for these, so wrap them by hand to keep
	// the nav and logging consistent on error pages
	r.NotFoundHandler = wrap(middleware.NotFound(), chain)
	r.MethodNotAllowedHandler = wrap(middleware.MethodNotAllowed(), chain)

	// Create handlers
	homeHandler := handler.NewHomeHandler(cfg.Logger)
	authHandler := handler.NewAuthHandler(cfg.Accounts, cfg.Captcha, cfg.Sessions, cfg.Cookies, cfg.Logger)

	captchaGuard := func(reject http.HandlerFunc, next http.HandlerFunc) http.Handler {
		return middleware.Captcha(cfg.Captcha, reject, cfg.Logger)(next)
	}

	// Static files
	if cfg.StaticDir != "" {
		staticHandler := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir)))
		r.PathPrefix("/static/").Handler(staticHandler)
	}

	// Open routes
	r.HandleFunc("/", homeHandler.Home).Methods(http.MethodGet)
	r.HandleFunc("/auth/", authHandler.Index).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/auth/captcha", authHandler.Captcha).Methods(http.MethodGet)

	// Anonymous only
	anonymous := r.NewRoute().Subrouter()
	anonymous.Use(middleware.NoLogin())
	anonymous.HandleFunc("/auth/signup", authHandler.SignupPage).Methods(http.MethodGet)
	anonymous.Handle("/auth/signup", captchaGuard(authHandler.RejectSignup, authHandler.Signup)).Methods(http.MethodPost)
	anonymous.HandleFunc("/auth/signin", authHandler.SigninPage).Methods(http.MethodGet)
	anonymous.Handle("/auth/signin", captchaGuard(authHandler.RejectSignin, authHandler.Signin)).Methods(http.MethodPost)

	// Signed in only
	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.RequireLogin())
	protected.HandleFunc("/auth/signout", authHandler.Signout).Methods(http.MethodGet)
	protected.HandleFunc("/auth/manage", authHandler.ManagePage).Methods(http.MethodGet)
	protected.Handle("/auth/manage", captchaGuard(authHandler.RejectManage, authHandler.Manage)).Methods(http.MethodPost)
	protected.HandleFunc("/auth/delete", authHandler.DeletePage).Methods(http.MethodGet)
	protected.Handle("/auth/delete", captchaGuard(authHandler.RejectDelete, authHandler.Delete)).Methods(http.MethodPost)

	return r
}

func wrap(h http.Handler, chain []mux.MiddlewareFunc) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
