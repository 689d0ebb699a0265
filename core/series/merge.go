// Package series holds the merge policy shared by every reconciled series:
// one record per timestamp, the record from the set merged first wins, and
// the output is sorted ascending.
package series

import (
	"sort"
	"time"

	"github.com/kilianp07/octowatt/core/model"
)

// Merge unions the given sets in order. When two records share a key the one
// from the earlier set (or earlier within a set) is kept. The inputs are not
// modified.
func Merge[T model.Keyed](sets ...[]T) []T {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	seen := make(map[int64]struct{}, n)
	out := make([]T, 0, n)
	for _, s := range sets {
		for _, rec := range s {
			k := rec.Key().UnixNano()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key().Before(out[j].Key()) })
	return out
}

// Canonical reports whether s is strictly increasing by key.
func Canonical[T model.Keyed](s []T) bool {
	for i := 1; i < len(s); i++ {
		if !s[i-1].Key().Before(s[i].Key()) {
			return false
		}
	}
	return true
}

// Equal reports whether a and b hold the same keys in the same order and eq
// holds for every pair.
func Equal[T model.Keyed](a, b []T, eq func(x, y T) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Key().Equal(b[i].Key()) || !eq(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Window returns the records with from <= key < to. A zero bound is open.
func Window[T model.Keyed](s []T, from, to time.Time) []T {
	var out []T
	for _, rec := range s {
		k := rec.Key()
		if !from.IsZero() && k.Before(from) {
			continue
		}
		if !to.IsZero() && !k.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
