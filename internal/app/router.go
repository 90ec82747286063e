package app

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/KakaCheng2010/go-admin/internal/auth"
	"github.com/KakaCheng2010/go-admin/internal/observability"
	"github.com/KakaCheng2010/go-admin/internal/platform/httpx"
	"github.com/KakaCheng2010/go-admin/internal/routes"
	"github.com/KakaCheng2010/go-admin/internal/session"
	"github.com/KakaCheng2010/go-admin/internal/view"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *session.Manager
	CSRFManager    *session.CSRFManager
	AuthHandler    *auth.Handler
	Resolver       *routes.Resolver
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router for the console shell.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Get("/login", params.AuthHandler.ShowLogin)
	r.Post("/login", params.AuthHandler.Login)
	r.Post("/logout", params.AuthHandler.Logout)

	// Session introspection for client-side scripts: the current user plus
	// the advisory permission set derived from the live menu tree.
	r.Get("/api/session", sessionInfoHandler(params))

	// Every other path belongs to the authenticated shell. Its route table is
	// not known statically; it is generated per session from the menu set.
	r.NotFound(shellHandler(params))

	return r
}

func sessionInfoHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil || !sess.Authenticated() {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		principal := auth.Principal(sess)
		rs, err := params.Resolver.Routes(r.Context(), sess.ID, principal, sess)
		if err != nil {
			if errors.Is(err, httpx.ErrUnauthorized) {
				params.Resolver.Logout(r.Context(), sess.ID, principal)
				sess.Logout()
				params.SessionManager.Destroy(sess)
			}
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		idx := rs.Permissions()
		perms := make([]string, 0, len(idx))
		for p := range idx {
			perms = append(perms, p)
		}
		sort.Strings(perms)
		httpx.JSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"user":          sess.User(),
			"permissions":   perms,
		})
	}
}

// shellHandler decides between the unauthenticated view and the authenticated
// shell with menu-generated routes.
func shellHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil || !sess.Authenticated() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		principal := auth.Principal(sess)
		rs, err := params.Resolver.Routes(r.Context(), sess.ID, principal, sess)
		if err != nil {
			if errors.Is(err, httpx.ErrUnauthorized) {
				// Global invalidation: the backend rejected the token. Clear
				// session and menu cache, then return to the login entry.
				params.Resolver.Logout(r.Context(), sess.ID, principal)
				sess.Logout()
				params.SessionManager.Destroy(sess)
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if errors.Is(err, routes.ErrSessionEnded) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			params.Logger.Error("resolve routes", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if r.URL.Path == "/" {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}

		handler, ok := rs.Handler(r.URL.Path)
		if !ok {
			renderNotFound(params, w, r, sess, rs)
			return
		}
		ctx := routes.ContextWithRouteSet(r.Context(), rs)
		handler.ServeHTTP(w, r.WithContext(ctx))
	}
}

func renderNotFound(params RouterParams, w http.ResponseWriter, r *http.Request, sess *session.Session, rs *routes.RouteSet) {
	token, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	err := params.Templates.Render(w, "pages/page.html", view.TemplateData{
		Title:       "Not Found",
		CSRFToken:   token,
		CurrentPath: r.URL.Path,
		Nav:         rs.Nav(),
		User:        sess.User(),
		Error:       "The page you were looking for does not exist.",
	})
	if err != nil {
		params.Logger.Error("render not found", slog.Any("error", err))
	}
}
