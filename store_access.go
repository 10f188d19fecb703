package auth

import (
	"sort"
	"strings"
)

// StoreAccessAll grants access to every store.
const StoreAccessAll = "all"

// StoreAccess is the set of stores a session may view or operate on.
type StoreAccess struct {
	all    bool
	stores map[string]struct{}
}

// ParseStoreAccess reads the custom:store_access attribute: either the literal
// "all" or a comma separated list of store identifiers.
func ParseStoreAccess(raw string) StoreAccess {
	raw = strings.TrimSpace(raw)
	if raw == StoreAccessAll {
		return StoreAccess{all: true}
	}

	access := StoreAccess{stores: map[string]struct{}{}}
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		access.stores[id] = struct{}{}
	}
	return access
}

// All reports whether access covers every store.
func (a StoreAccess) All() bool {
	return a.all
}

// Has reports whether storeID is covered. Empty access covers nothing.
func (a StoreAccess) Has(storeID string) bool {
	if a.all {
		return true
	}
	_, ok := a.stores[strings.TrimSpace(storeID)]
	return ok
}

// Stores returns the explicit store identifiers in sorted order.
func (a StoreAccess) Stores() []string {
	out := make([]string, 0, len(a.stores))
	for id := range a.stores {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (a StoreAccess) IsEmpty() bool {
	return !a.all && len(a.stores) == 0
}

func (a StoreAccess) String() string {
	if a.all {
		return StoreAccessAll
	}
	return strings.Join(a.Stores(), ",")
}
