package menu

import "strings"

// Index is the set of permission strings present in a menu set. It is
// recomputed from the current records on every derivation rather than cached;
// the menu payload itself is already cached and changes rarely.
//
// The index is advisory UI gating only. The backend re-checks every operation
// and stays the authorization authority.
type Index map[string]struct{}

// Permissions collects every non-empty, trimmed permission annotation from
// the record set. Flat and tree forms carry the same annotations, so the flat
// set is canonical here.
func Permissions(records []Record) Index {
	idx := make(Index, len(records))
	for _, rec := range records {
		if p := strings.TrimSpace(rec.Permission); p != "" {
			idx[p] = struct{}{}
		}
	}
	return idx
}

// Has reports membership. A nil index answers false for everything, which is
// the default-deny posture required before a session is bootstrapped.
func (i Index) Has(permission string) bool {
	if len(i) == 0 {
		return false
	}
	_, ok := i[strings.TrimSpace(permission)]
	return ok
}
