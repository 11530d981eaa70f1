// Package filter derives the visible subset of a record collection from a
// free-text query and an optional categorical predicate. Filtering never
// reorders records; it only removes them.
package filter

import (
	"iter"
	"strings"
)

// All is the sentinel category value that disables a predicate
const All = "all"

// Searchable is a record exposing the fields a query is matched against
type Searchable interface {
	SearchFields() []string
}

// Predicate selects records. A nil Predicate selects everything.
type Predicate[R any] func(R) bool

// Seq yields, in input order, the records that contain query in at
// least one searchable field (case-insensitive) and satisfy pred. The
// sequence is recomputed every time it is ranged over.
func Seq[R Searchable](records []R, query string, pred Predicate[R]) iter.Seq[R] {
	needle := strings.ToLower(query)
	return func(yield func(R) bool) {
		for _, r := range records {
			if pred != nil && !pred(r) {
				continue
			}
			if !contains(r, needle) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Apply collects Seq into a new slice
func Apply[R Searchable](records []R, query string, pred Predicate[R]) []R {
	out := make([]R, 0, len(records))
	for r := range Seq(records, query, pred) {
		out = append(out, r)
	}
	return out
}

// Matches reports whether r contains query in any searchable field
func Matches[R Searchable](r R, query string) bool {
	return contains(r, strings.ToLower(query))
}

func contains[R Searchable](r R, needle string) bool {
	if needle == "" {
		return true
	}
	for _, field := range r.SearchFields() {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Field returns a predicate matching records whose field equals value.
// An empty value or All yields a nil predicate.
func Field[R any](value string, field func(R) string) Predicate[R] {
	if value == "" || value == All {
		return nil
	}
	return func(r R) bool { return field(r) == value }
}

// And combines predicates with logical AND, skipping nil ones
func And[R any](preds ...Predicate[R]) Predicate[R] {
	var active []Predicate[R]
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(r R) bool {
		for _, p := range active {
			if !p(r) {
				return false
			}
		}
		return true
	}
}
