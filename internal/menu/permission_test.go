package menu

import "testing"

func TestPermissionsDefaultDeny(t *testing.T) {
	var idx Index
	if idx.Has("user:delete") {
		t.Fatalf("nil index must deny everything")
	}
	if Permissions(nil).Has("user:delete") {
		t.Fatalf("empty menu set must deny everything")
	}
}

func TestPermissionsCollection(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "Users", Type: TypePage, Route: "/users"},
		{ID: "2", ParentID: "1", Name: "Delete", Type: TypeAction, Permission: "user:delete"},
		{ID: "3", ParentID: "2", Name: "Deep", Type: TypeAction, Permission: "  user:purge  "},
		{ID: "4", Name: "Blank", Type: TypeAction, Permission: "   "},
	}
	idx := Permissions(records)
	if !idx.Has("user:delete") {
		t.Fatalf("expected user:delete present")
	}
	if !idx.Has("user:purge") {
		t.Fatalf("permission annotations must be trimmed")
	}
	if idx.Has("") || idx.Has("   ") {
		t.Fatalf("blank permissions must not be collected")
	}
	if idx.Has("user:create") {
		t.Fatalf("unexpected permission granted")
	}
}
