// Package pages provides the console's page modules and registers them under
// the component references menu records select them by. Pages are thin views;
// all CRUD goes through the backend's own API.
package pages

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/KakaCheng2010/go-admin/internal/routes"
	"github.com/KakaCheng2010/go-admin/internal/session"
	"github.com/KakaCheng2010/go-admin/internal/view"
)

// Deps groups what every page needs to render.
type Deps struct {
	Logger    *slog.Logger
	Templates *view.Engine
	CSRF      *session.CSRFManager
}

// NewRegistry returns the component registry populated with the console's
// page set.
func NewRegistry(deps Deps) *routes.Registry {
	reg := routes.NewRegistry()
	reg.Register("Dashboard", deps.template("pages/dashboard.html", "Dashboard"))
	reg.Register("Debug", deps.debugPage())
	reg.Register("user/UserManagement", deps.template("pages/page.html", "User Management"))
	reg.Register("user/Profile", deps.template("pages/page.html", "Profile"))
	reg.Register("organization/OrganizationManagement", deps.template("pages/page.html", "Organization Management"))
	reg.Register("role/RoleManagement", deps.template("pages/page.html", "Role Management"))
	reg.Register("menu/MenuManagement", deps.template("pages/page.html", "Menu Management"))
	reg.Register("dict/DictManagement", deps.template("pages/page.html", "Dictionary Management"))
	reg.Register("log/LogManagement", deps.template("pages/page.html", "Log Management"))
	return reg
}

// template builds a PageFunc rendering one named template with the shared
// shell chrome (nav, user, CSRF token).
func (d Deps) template(name, title string) routes.PageFunc {
	return func() (http.Handler, error) {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d.render(w, r, name, title, nil)
		}), nil
	}
}

// debugPage lists the session's effective permission strings. The list is
// advisory UI state; the backend enforces authorization on every call.
func (d Deps) debugPage() routes.PageFunc {
	return func() (http.Handler, error) {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idx := routes.RouteSetFromContext(r.Context()).Permissions()
			perms := make([]string, 0, len(idx))
			for p := range idx {
				perms = append(perms, p)
			}
			sort.Strings(perms)
			d.render(w, r, "pages/debug.html", "Debug", perms)
		}), nil
	}
}

func (d Deps) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	sess := session.FromContext(r.Context())
	rs := routes.RouteSetFromContext(r.Context())

	td := view.TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Nav:         rs.Nav(),
		Data:        data,
	}
	if sess != nil {
		td.User = sess.User()
		if token, err := d.CSRF.EnsureToken(r.Context(), sess); err == nil {
			td.CSRFToken = token
		}
	}
	if err := d.Templates.Render(w, name, td); err != nil {
		d.Logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
