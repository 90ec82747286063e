package menu

import (
	"errors"
	"fmt"
)

// ErrMenuCycle indicates a parent chain that loops back on itself. Well-formed
// backend data never contains cycles, but a corrupted set must fail loudly at
// ingestion instead of hanging a traversal.
var ErrMenuCycle = errors.New("menu: cycle in parent chain")

// BuildTree nests a flat record set by ParentID. Root order follows input
// order; Sort is advisory metadata and is not applied. A record whose
// ParentID does not resolve to any known id is promoted to a root rather than
// dropped.
func BuildTree(records []Record) ([]*Node, error) {
	if err := detectCycles(records); err != nil {
		return nil, err
	}

	nodes := make(map[string]*Node, len(records))
	for _, rec := range records {
		nodes[rec.ID] = &Node{Record: rec}
	}

	roots := make([]*Node, 0, len(records))
	for _, rec := range records {
		node := nodes[rec.ID]
		if parent, ok := nodes[rec.ParentID]; ok && rec.ParentID != rec.ID {
			parent.Children = append(parent.Children, node)
			continue
		}
		roots = append(roots, node)
	}
	return roots, nil
}

// Flatten walks nodes depth first and returns the records in traversal order.
func Flatten(nodes []*Node) []Record {
	var out []Record
	var walk func([]*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			out = append(out, n.Record)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

// BuildNavItems derives the navigation menu from a flat record set. Only
// visible pages survive; actions and hidden entries are filtered out before
// the hierarchy is assembled, so a child of a hidden parent surfaces as a
// root instead of vanishing.
func BuildNavItems(records []Record) ([]NavItem, error) {
	if err := detectCycles(records); err != nil {
		return nil, err
	}

	type entry struct {
		item     NavItem
		children []*entry
	}
	entries := make(map[string]*entry, len(records))
	for _, rec := range records {
		if rec.Type != TypePage || rec.Hidden {
			continue
		}
		key := rec.Route
		if key == "" {
			key = rec.ID
		}
		entries[rec.ID] = &entry{item: NavItem{Key: key, Label: rec.Name, Icon: IconFor(rec.Icon)}}
	}

	var rootIDs []string
	for _, rec := range records {
		if _, ok := entries[rec.ID]; !ok {
			continue
		}
		if parent, ok := entries[rec.ParentID]; ok && rec.ParentID != rec.ID {
			parent.children = append(parent.children, entries[rec.ID])
			continue
		}
		rootIDs = append(rootIDs, rec.ID)
	}

	// Materialize after linking so parents see all of their children
	// regardless of input order. Leaves keep a nil Children slice.
	var build func(e *entry) NavItem
	build = func(e *entry) NavItem {
		item := e.item
		for _, child := range e.children {
			item.Children = append(item.Children, build(child))
		}
		return item
	}
	var roots []NavItem
	for _, id := range rootIDs {
		roots = append(roots, build(entries[id]))
	}
	return roots, nil
}

// detectCycles follows every parent chain with a visited set. Unresolvable
// parents terminate a chain (they become roots), so only genuine loops fail.
func detectCycles(records []Record) error {
	byID := make(map[string]string, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec.ParentID
	}
	state := make(map[string]int, len(records)) // 0 unvisited, 1 on path, 2 done
	for _, rec := range records {
		id := rec.ID
		var path []string
		for {
			if state[id] == 2 {
				break
			}
			if state[id] == 1 {
				return fmt.Errorf("%w: %q", ErrMenuCycle, id)
			}
			state[id] = 1
			path = append(path, id)
			parent, ok := byID[id]
			if !ok || parent == "" {
				break
			}
			if _, known := byID[parent]; !known {
				break
			}
			id = parent
		}
		for _, seen := range path {
			state[seen] = 2
		}
	}
	return nil
}
