package routes

import (
	"fmt"
	"html"
	"net/http"
	"sync"

	"github.com/KakaCheng2010/go-admin/internal/menu"
)

// RouteSet is the route table generated from one definitive menu list. It is
// immutable once generated; the resolver swaps whole sets rather than
// mutating one in place.
type RouteSet struct {
	records []menu.Record
	nav     []menu.NavItem
	byPath  map[string]*dynamicRoute
}

// Generate builds the route table for records. Only routable records (visible
// pages with both route and component) produce entries; handlers are
// constructed lazily on first navigation.
func Generate(registry *Registry, records []menu.Record) *RouteSet {
	nav, err := menu.BuildNavItems(records)
	if err != nil {
		// Callers validate the record set before generation; a cycle at
		// this point means an empty, safe table.
		return &RouteSet{byPath: map[string]*dynamicRoute{}}
	}
	rs := &RouteSet{
		records: records,
		nav:     nav,
		byPath:  make(map[string]*dynamicRoute),
	}
	for _, rec := range records {
		if !rec.Routable() {
			continue
		}
		rs.byPath[rec.Route] = &dynamicRoute{
			id:       rec.ID,
			path:     rec.Route,
			ref:      rec.Component,
			registry: registry,
		}
	}
	return rs
}

// Handler returns the handler bound to path, if any.
func (rs *RouteSet) Handler(path string) (http.Handler, bool) {
	if rs == nil {
		return nil, false
	}
	route, ok := rs.byPath[path]
	if !ok {
		return nil, false
	}
	return route, true
}

// Len reports the number of generated routes.
func (rs *RouteSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.byPath)
}

// Nav returns the navigation items derived from the same menu list.
func (rs *RouteSet) Nav() []menu.NavItem {
	if rs == nil {
		return nil
	}
	return rs.nav
}

// Records returns the flat menu list this set was generated from.
func (rs *RouteSet) Records() []menu.Record {
	if rs == nil {
		return nil
	}
	return rs.records
}

// Permissions derives the permission index from the current menu list. It is
// recomputed on every call so a swapped route set is immediately reflected;
// a nil set yields the default-deny index.
func (rs *RouteSet) Permissions() menu.Index {
	if rs == nil {
		return nil
	}
	return menu.Permissions(rs.records)
}

// dynamicRoute lazily resolves its page module on first hit. A module that
// cannot be resolved degrades to an inline diagnostic page for this one
// route; other routes are unaffected.
type dynamicRoute struct {
	id       string
	path     string
	ref      string
	registry *Registry

	once    sync.Once
	handler http.Handler
}

func (d *dynamicRoute) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.once.Do(func() {
		fn, err := d.registry.Resolve(d.ref)
		if err != nil {
			d.handler = fallbackHandler(d.ref)
			return
		}
		h, err := fn()
		if err != nil {
			d.handler = fallbackHandler(d.ref)
			return
		}
		d.handler = h
	})
	d.handler.ServeHTTP(w, r)
}

// fallbackHandler renders the diagnostic page for an unresolvable module.
// The page renders instead of the route's content, so the shell stays up and
// the broken entry is visible rather than fatal.
func fallbackHandler(ref string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `<div class="page-error"><h3>Page failed to load</h3><p>Unable to load page module: %s</p><p>Check that the menu entry's component reference is correct.</p></div>`,
			html.EscapeString(ref))
	})
}
