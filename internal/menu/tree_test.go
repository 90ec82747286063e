package menu

import (
	"errors"
	"testing"
)

func pageRecord(id, parent, route string) Record {
	return Record{ID: id, ParentID: parent, Name: "node " + id, Route: route, Type: TypePage}
}

func TestBuildTreeRoundTrip(t *testing.T) {
	records := []Record{
		pageRecord("1", "", "/a"),
		pageRecord("2", "1", "/a/b"),
		pageRecord("3", "1", "/a/c"),
		pageRecord("4", "2", "/a/b/d"),
		pageRecord("5", "", "/e"),
	}
	roots, err := BuildTree(records)
	if err != nil {
		t.Fatalf("BuildTree returned error: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots got %d", len(roots))
	}

	flat := Flatten(roots)
	if len(flat) != len(records) {
		t.Fatalf("flatten lost records: got %d want %d", len(flat), len(records))
	}
	seen := map[string]bool{}
	for _, rec := range flat {
		seen[rec.ID] = true
	}
	for _, rec := range records {
		if !seen[rec.ID] {
			t.Fatalf("record %s missing after round trip", rec.ID)
		}
	}

	if roots[0].ID != "1" || roots[1].ID != "5" {
		t.Fatalf("root order should follow input order, got %s,%s", roots[0].ID, roots[1].ID)
	}
	if len(roots[0].Children) != 2 {
		t.Fatalf("expected node 1 to have 2 children got %d", len(roots[0].Children))
	}
	if roots[0].Children[0].ID != "2" || len(roots[0].Children[0].Children) != 1 {
		t.Fatalf("expected node 4 under node 2")
	}
}

func TestBuildTreeOrphanPromotion(t *testing.T) {
	records := []Record{
		pageRecord("1", "", "/a"),
		pageRecord("2", "missing", "/b"),
	}
	roots, err := BuildTree(records)
	if err != nil {
		t.Fatalf("BuildTree returned error: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("orphan must be promoted to root, got %d roots", len(roots))
	}
	if roots[1].ID != "2" {
		t.Fatalf("expected orphan 2 as second root got %s", roots[1].ID)
	}
}

func TestBuildTreeCycle(t *testing.T) {
	records := []Record{
		pageRecord("a", "b", "/a"),
		pageRecord("b", "a", "/b"),
	}
	if _, err := BuildTree(records); !errors.Is(err, ErrMenuCycle) {
		t.Fatalf("expected ErrMenuCycle got %v", err)
	}
	if _, err := BuildNavItems(records); !errors.Is(err, ErrMenuCycle) {
		t.Fatalf("expected ErrMenuCycle from BuildNavItems got %v", err)
	}
}

func TestBuildTreeSelfParent(t *testing.T) {
	records := []Record{pageRecord("a", "a", "/a")}
	if _, err := BuildTree(records); !errors.Is(err, ErrMenuCycle) {
		t.Fatalf("expected ErrMenuCycle for self parent got %v", err)
	}
}

func TestBuildNavItemsFiltering(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "A", Type: TypePage, Route: "/a"},
		{ID: "2", Name: "B", Type: TypeAction, Permission: "b:do"},
		{ID: "3", Name: "C", Type: TypePage, Hidden: true, Route: "/b"},
	}
	items, err := BuildNavItems(records)
	if err != nil {
		t.Fatalf("BuildNavItems returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly 1 nav item got %d", len(items))
	}
	if items[0].Key != "/a" || items[0].Label != "A" {
		t.Fatalf("unexpected nav item %+v", items[0])
	}
	if items[0].Children != nil {
		t.Fatalf("leaf must have nil children, got %v", items[0].Children)
	}
}

func TestBuildNavItemsNesting(t *testing.T) {
	// Grandchild appears before its parent in the input; nesting must not
	// depend on input order.
	records := []Record{
		pageRecord("3", "2", "/sys/users/detail"),
		pageRecord("1", "", "/sys"),
		pageRecord("2", "1", "/sys/users"),
	}
	items, err := BuildNavItems(records)
	if err != nil {
		t.Fatalf("BuildNavItems returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 root got %d", len(items))
	}
	if len(items[0].Children) != 1 || len(items[0].Children[0].Children) != 1 {
		t.Fatalf("expected three levels of nesting, got %+v", items)
	}
	if items[0].Children[0].Children[0].Key != "/sys/users/detail" {
		t.Fatalf("unexpected grandchild %+v", items[0].Children[0].Children[0])
	}
}

func TestBuildNavItemsKeyFallsBackToID(t *testing.T) {
	records := []Record{{ID: "42", Name: "Group", Type: TypePage}}
	items, err := BuildNavItems(records)
	if err != nil {
		t.Fatalf("BuildNavItems returned error: %v", err)
	}
	if items[0].Key != "42" {
		t.Fatalf("expected key to fall back to id, got %q", items[0].Key)
	}
}

func TestBuildNavItemsHiddenParentPromotesChild(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "Hidden", Type: TypePage, Hidden: true},
		pageRecord("2", "1", "/visible"),
	}
	items, err := BuildNavItems(records)
	if err != nil {
		t.Fatalf("BuildNavItems returned error: %v", err)
	}
	if len(items) != 1 || items[0].Key != "/visible" {
		t.Fatalf("child of hidden parent must surface as root, got %+v", items)
	}
}

func TestIconFor(t *testing.T) {
	if IconFor("user") == "user" {
		t.Fatalf("known icon should map to a glyph")
	}
	if IconFor("no-such-icon") != "no-such-icon" {
		t.Fatalf("unknown icon must pass through as plain text")
	}
}

func TestRoutable(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		want bool
	}{
		{"page with route and component", Record{Type: TypePage, Route: "/a", Component: "A"}, true},
		{"hidden page", Record{Type: TypePage, Route: "/a", Component: "A", Hidden: true}, false},
		{"action", Record{Type: TypeAction, Route: "/a", Component: "A"}, false},
		{"missing route", Record{Type: TypePage, Component: "A"}, false},
		{"missing component", Record{Type: TypePage, Route: "/a"}, false},
	}
	for _, tc := range cases {
		if got := tc.rec.Routable(); got != tc.want {
			t.Fatalf("%s: Routable() = %v want %v", tc.name, got, tc.want)
		}
	}
}
