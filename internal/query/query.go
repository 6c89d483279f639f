// Package query holds the matched-query-terms model shared by the
// matcher and the query expansion engine.
package query

import (
	"strconv"
	"strings"
)

// Terms is an insertion-ordered mapping from term to weight. It is
// created per search request and mutated in place by query expansion:
// existing weights are updated, new terms are appended at the end.
//
// Terms is not safe for concurrent use; a request owns its Terms.
type Terms struct {
	order   []string
	weights map[string]float64
}

// New creates an empty term set.
func New() *Terms {
	return &Terms{weights: make(map[string]float64)}
}

// FromStrings creates a term set with every term at weight 1.0.
// Duplicate terms accumulate weight, matching Add semantics.
func FromStrings(terms []string) *Terms {
	t := New()
	for _, term := range terms {
		t.Add(term, 1.0)
	}
	return t
}

// Add merges weight w into the term's weight. If the term is not yet
// present it is appended with weight w. The merge is plain addition,
// so merging a batch of contributions is order-independent.
func (t *Terms) Add(term string, w float64) {
	if _, ok := t.weights[term]; !ok {
		t.order = append(t.order, term)
	}
	t.weights[term] += w
}

// Weight returns the term's weight and whether the term is present.
func (t *Terms) Weight(term string) (float64, bool) {
	w, ok := t.weights[term]
	return w, ok
}

// Has reports whether the term is present.
func (t *Terms) Has(term string) bool {
	_, ok := t.weights[term]
	return ok
}

// Len returns the number of distinct terms.
func (t *Terms) Len() int {
	return len(t.order)
}

// Terms returns the terms in insertion order. The slice is a copy.
func (t *Terms) Terms() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Clone returns an independent copy.
func (t *Terms) Clone() *Terms {
	c := &Terms{
		order:   make([]string, len(t.order)),
		weights: make(map[string]float64, len(t.weights)),
	}
	copy(c.order, t.order)
	for k, v := range t.weights {
		c.weights[k] = v
	}
	return c
}

// Serialize renders the term set as space-separated term^weight pairs
// in insertion order, weights formatted with the given number of
// decimal places.
func (t *Terms) Serialize(decimals int) string {
	var sb strings.Builder
	for i, term := range t.order {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(term)
		sb.WriteByte('^')
		sb.WriteString(strconv.FormatFloat(t.weights[term], 'f', decimals, 64))
	}
	return sb.String()
}
