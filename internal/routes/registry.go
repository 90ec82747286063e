// Package routes resolves a user's menu set into live console routes: a
// registry of known page modules, a generated route table with lazily
// constructed handlers, and a per-session resolver that keeps the table
// consistent with the session lifecycle.
package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// PageFunc constructs the handler for a page module. It runs at most once per
// generated route, on the first navigation to it.
type PageFunc func() (http.Handler, error)

// ErrPageNotFound is returned by Resolve for component references no page
// module was registered under.
var ErrPageNotFound = errors.New("routes: page module not found")

// Registry maps logical component references (as carried by menu records,
// e.g. "user/UserManagement") to page constructors. It is populated once at
// startup; menu records can only ever select from this fixed set.
type Registry struct {
	pages map[string]PageFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string]PageFunc)}
}

// Register binds a component reference to a page constructor. The reference
// is normalized first.
func (r *Registry) Register(ref string, fn PageFunc) {
	r.pages[NormalizeRef(ref)] = fn
}

// Resolve looks up the page constructor for ref, normalizing it first.
// Unknown references return ErrPageNotFound.
func (r *Registry) Resolve(ref string) (PageFunc, error) {
	fn, ok := r.pages[NormalizeRef(ref)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPageNotFound, ref)
	}
	return fn, nil
}

// NormalizeRef canonicalizes a component reference: leading slashes and a
// page-module extension are tolerated in backend data and stripped here, so
// "/user/UserManagement.tsx" and "user/UserManagement" select the same page.
func NormalizeRef(ref string) string {
	ref = strings.TrimPrefix(ref, "/")
	ref = strings.TrimSuffix(ref, ".tsx")
	ref = strings.TrimSuffix(ref, ".ts")
	return ref
}
