// Package menu turns the backend's flat menu records into navigation trees,
// permission sets and cached per-user menu payloads.
package menu

// RecordType discriminates page entries from permission-gated actions.
type RecordType int

const (
	// TypePage is a navigable menu entry that may carry a route and component.
	TypePage RecordType = 1
	// TypeAction is a permission-gated operation. It never produces a route
	// or a navigation entry.
	TypeAction RecordType = 2
)

// Record is a single menu entry as delivered by the backend. The set is flat;
// hierarchy is expressed through ParentID.
type Record struct {
	ID         string     `json:"id"`
	ParentID   string     `json:"parent_id,omitempty"`
	Name       string     `json:"name"`
	Route      string     `json:"route,omitempty"`
	Component  string     `json:"component,omitempty"`
	Icon       string     `json:"icon,omitempty"`
	Type       RecordType `json:"type"`
	Permission string     `json:"permission,omitempty"`
	Hidden     bool       `json:"hidden,omitempty"`
	Sort       int        `json:"sort,omitempty"`
}

// Routable reports whether the record can produce a dynamic route: a visible
// page with both a route and a component reference.
func (r Record) Routable() bool {
	return r.Type == TypePage && !r.Hidden && r.Route != "" && r.Component != ""
}

// Node is a record placed into its position in the menu hierarchy.
type Node struct {
	Record
	Children []*Node
}

// NavItem is a navigation menu entry derived from a visible page record.
// Children is nil, not empty, for leaves so tree UIs do not render a spurious
// expand affordance.
type NavItem struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Icon     string    `json:"icon,omitempty"`
	Children []NavItem `json:"children,omitempty"`
}
