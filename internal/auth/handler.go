// Package auth implements the console's login and logout endpoints. The
// backend is the credential authority; this handler only brokers tokens into
// the browser session.
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/KakaCheng2010/go-admin/internal/gateway"
	"github.com/KakaCheng2010/go-admin/internal/observability"
	"github.com/KakaCheng2010/go-admin/internal/routes"
	"github.com/KakaCheng2010/go-admin/internal/session"
	"github.com/KakaCheng2010/go-admin/internal/shared"
	"github.com/KakaCheng2010/go-admin/internal/view"
)

// Handler serves the login form and processes login/logout.
type Handler struct {
	logger    *slog.Logger
	gateway   *gateway.Client
	sessions  *session.Manager
	csrf      *session.CSRFManager
	templates *view.Engine
	resolver  *routes.Resolver
	metrics   *observability.Metrics
	validate  *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, gw *gateway.Client, sessions *session.Manager, csrf *session.CSRFManager, templates *view.Engine, resolver *routes.Resolver, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		gateway:   gw,
		sessions:  sessions,
		csrf:      csrf,
		templates: templates,
		resolver:  resolver,
		metrics:   metrics,
		validate:  validator.New(),
	}
}

type loginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// ShowLogin renders the login page; an authenticated session is sent straight
// to the shell.
func (h *Handler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess != nil && sess.Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, "", http.StatusOK)
}

// Login validates the form, exchanges credentials with the backend and
// transitions the session into the authenticated state. Menus embedded in the
// login response seed the route resolver directly.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validate.Struct(form); err != nil {
		h.renderLogin(w, r, "Username and password are required.", http.StatusBadRequest)
		return
	}

	result, err := h.gateway.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		h.metrics.LoginAttempt("failure")
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.renderLogin(w, r, shared.UserSafeMessage(shared.ErrInvalidCredentials), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login call failed", slog.Any("error", err))
		h.renderLogin(w, r, "Login is unavailable right now. Please try again.", http.StatusBadGateway)
		return
	}

	sess.Login(result.Token, result.User)
	principal := strconv.FormatInt(result.User.ID, 10)
	if len(result.Menus) > 0 {
		h.resolver.Seed(r.Context(), sess.ID, principal, result.Menus)
	} else {
		h.resolver.Reset(sess.ID)
	}

	h.metrics.LoginAttempt("success")
	h.logger.Info("login", slog.String("username", result.User.Username))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout tears the local session down synchronously. The backend logout call
// is best effort; its failure never leaves the user locally logged in.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess != nil && sess.Authenticated() {
		if err := h.gateway.Logout(r.Context(), sess.Token()); err != nil {
			h.logger.Warn("backend logout failed", slog.Any("error", err))
		}
		h.resolver.Logout(r.Context(), sess.ID, Principal(sess))
		sess.Logout()
		h.sessions.Destroy(sess)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Principal returns the cache key for the session's account: the backend user
// id, or empty when logged out.
func Principal(sess *session.Session) string {
	if sess == nil || sess.User() == nil {
		return ""
	}
	return strconv.FormatInt(sess.User().ID, 10)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, message string, status int) {
	sess := session.FromContext(r.Context())
	var token string
	if sess != nil {
		token, _ = h.csrf.EnsureToken(r.Context(), sess)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/login.html", view.TemplateData{
		Title:     "Sign in",
		CSRFToken: token,
		Error:     message,
	}); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}
