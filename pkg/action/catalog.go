package action

import (
	"fmt"
	"sort"
)

// The action set is closed at build time. The one explicit kind-to-variant
// table lives in pkg/plan (which can import every action package without a
// cycle) and is installed here before any receipt is decoded.
var catalog map[string]func() Action

// SetCatalog installs the discriminant-to-variant table used to decode
// receipts. Called exactly once, from the pkg/plan catalog.
func SetCatalog(m map[string]func() Action) {
	catalog = m
}

func newByKind(kind string) (Action, error) {
	if catalog == nil {
		return nil, fmt.Errorf("action catalog not installed; decoding %q is impossible", kind)
	}
	factory, ok := catalog[kind]
	if !ok {
		return nil, fmt.Errorf("unknown action kind %q; refusing to partially interpret this receipt", kind)
	}
	return factory(), nil
}

// Kinds returns the sorted discriminants of every known action variant.
func Kinds() []string {
	kinds := make([]string, 0, len(catalog))
	for k := range catalog {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
