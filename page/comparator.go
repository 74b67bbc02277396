package page

import "cmp"

// Comparator defines a strict total order over K: negative if a is
// less than b, zero if equal, positive if a is greater than b.
// Equality is always derived as !less(a,b) && !less(b,a); nothing in
// this package or the btree package assumes bitwise identity implies
// key equality (spec.md §4.7).
type Comparator[K any] func(a, b K) int

// Ordered builds the natural comparator for any cmp.Ordered key type,
// backed by the standard library's cmp.Compare. Most trees use this;
// a tree over keys that need custom equality (e.g. a record type that
// compares by one field only) supplies its own Comparator instead.
func Ordered[K cmp.Ordered]() Comparator[K] {
	return func(a, b K) int { return cmp.Compare(a, b) }
}
