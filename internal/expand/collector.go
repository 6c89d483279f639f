package expand

import (
	"context"
	"sort"
	"unicode"

	cerrors "github.com/coraxsearch/corax/internal/errors"
	"github.com/coraxsearch/corax/internal/index"
	"github.com/coraxsearch/corax/internal/query"
)

// CandidateTerm is one scored expansion candidate. Weight is the
// model's score and becomes the term's weight contribution when merged
// into the query.
type CandidateTerm struct {
	Term   string
	Weight float64

	// FeedbackFrequency and FeedbackDocuments are the accumulated
	// statistics the weight was derived from, kept for diagnostics.
	FeedbackFrequency float64
	FeedbackDocuments float64
}

// TermCollector accumulates candidate expansion terms from feedback
// documents and ranks them with the bound model. Collectors form the
// same base/wrapper chain as feedback selectors. A collector instance
// serves exactly one expansion call: accumulated statistics never
// carry over between calls.
type TermCollector interface {
	// SetModel binds the scoring model used by ExpandedTerms.
	SetModel(m Model)

	// SetOriginalQueryTerms informs the collector which terms the
	// query already contains, for conservative expansion.
	SetOriginalQueryTerms(q *query.Terms)

	// InsertDocument accumulates one feedback document's term
	// statistics. Accumulation is commutative: insertion order does
	// not affect the final scores.
	InsertDocument(ctx context.Context, doc FeedbackDocument) error

	// NumberOfUniqueTerms returns the count of distinct accumulated
	// terms. Diagnostics only.
	NumberOfUniqueTerms() int

	// ExpandedTerms scores every accumulated candidate and returns the
	// top k by descending score. With k == 0 it returns no new terms
	// but still re-scores the original query terms found in the
	// feedback set (conservative expansion).
	ExpandedTerms(k int) ([]CandidateTerm, error)
}

// CollectorFactory constructs one kind of collector chain node.
// Terminal collectors are built from the statistics dependencies;
// wrappers take only the inner collector.
type CollectorFactory struct {
	NewBase func(stats index.CollectionStatistics, lex index.Lexicon, direct index.PostingReader, docs index.DocumentIndex) TermCollector
	Wrap    func(inner TermCollector) TermCollector
}

// CollectorRegistry maps collector names to factories.
type CollectorRegistry struct {
	factories map[string]CollectorFactory
}

// NewCollectorRegistry creates a registry with the built-in
// collectors: "dfrbag" (terminal) and "termfilter" (wrapper).
func NewCollectorRegistry() *CollectorRegistry {
	r := &CollectorRegistry{factories: make(map[string]CollectorFactory)}
	r.Register("dfrbag", CollectorFactory{
		NewBase: func(stats index.CollectionStatistics, lex index.Lexicon, direct index.PostingReader, docs index.DocumentIndex) TermCollector {
			return &DFRBagCollector{stats: stats, lexicon: lex, direct: direct, docs: docs}
		},
	})
	r.Register("termfilter", CollectorFactory{
		Wrap: func(inner TermCollector) TermCollector {
			return &TermFilterCollector{inner: inner}
		},
	})
	return r
}

// Register adds a collector factory under a name.
func (r *CollectorRegistry) Register(name string, f CollectorFactory) {
	r.factories[name] = f
}

// BuildChain assembles a collector chain from an ordered name list,
// last name first as the terminal node. A fresh chain must be built
// for every expansion call.
func (r *CollectorRegistry) BuildChain(names []string, idx *index.Index) (TermCollector, error) {
	if len(names) == 0 {
		return nil, cerrors.Newf(cerrors.ErrCodeBadChain, "empty term collector chain")
	}

	var chain TermCollector
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		factory, ok := r.factories[name]
		if !ok {
			return nil, cerrors.Newf(cerrors.ErrCodeUnknownCollector,
				"unknown term collector %q", name).WithDetail("name", name)
		}

		var next TermCollector
		if i == len(names)-1 {
			if factory.NewBase == nil {
				return nil, cerrors.Newf(cerrors.ErrCodeBadChain,
					"term collector %q cannot terminate a chain", name).WithDetail("name", name)
			}
			next = factory.NewBase(idx.Stats, idx.Lexicon, idx.Direct, idx.Documents)
		} else {
			if factory.Wrap == nil {
				return nil, cerrors.Newf(cerrors.ErrCodeBadChain,
					"term collector %q cannot wrap another collector", name).WithDetail("name", name)
			}
			next = factory.Wrap(chain)
		}
		chain = next
	}
	return chain, nil
}

// candidate accumulates one term's feedback-set statistics.
type candidate struct {
	frequency float64
	documents float64
}

// DFRBagCollector is the terminal bag-of-terms collector: it reads
// each feedback document's term vector from the direct index and
// accumulates per-term frequency and document counts.
type DFRBagCollector struct {
	stats   index.CollectionStatistics
	lexicon index.Lexicon
	direct  index.PostingReader
	docs    index.DocumentIndex

	model          Model
	original       *query.Terms
	candidates     map[int32]*candidate
	feedbackLength float64
}

// SetModel implements TermCollector.
func (c *DFRBagCollector) SetModel(m Model) {
	c.model = m
}

// SetOriginalQueryTerms implements TermCollector.
func (c *DFRBagCollector) SetOriginalQueryTerms(q *query.Terms) {
	c.original = q
}

// InsertDocument implements TermCollector. Failures reading the direct
// index surface as IO errors.
func (c *DFRBagCollector) InsertDocument(ctx context.Context, doc FeedbackDocument) error {
	vector, err := c.direct.Postings(ctx, doc.DocID)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodePostingRead, err)
	}
	length, err := c.docs.DocumentLength(doc.DocID)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodePostingRead, err)
	}

	if c.candidates == nil {
		c.candidates = make(map[int32]*candidate)
	}
	for _, p := range vector {
		acc := c.candidates[p.ID]
		if acc == nil {
			acc = &candidate{}
			c.candidates[p.ID] = acc
		}
		acc.frequency += float64(p.Frequency)
		acc.documents++
	}
	c.feedbackLength += float64(length)
	return nil
}

// NumberOfUniqueTerms implements TermCollector.
func (c *DFRBagCollector) NumberOfUniqueTerms() int {
	return len(c.candidates)
}

// ExpandedTerms implements TermCollector. Equal scores are broken by
// ascending term text, so the ranking is reproducible and independent
// of both map iteration and document insertion order.
func (c *DFRBagCollector) ExpandedTerms(k int) ([]CandidateTerm, error) {
	if c.model == nil {
		return nil, cerrors.InternalError("no model bound to term collector", nil)
	}
	if k < 0 {
		return nil, cerrors.Newf(cerrors.ErrCodeInvalidInput, "negative expansion term count %d", k)
	}

	col := Collection{
		FeedbackLength:        c.feedbackLength,
		Documents:             float64(c.stats.Documents),
		Tokens:                float64(c.stats.Tokens),
		AverageDocumentLength: c.stats.AverageDocumentLength,
	}

	scored := make([]CandidateTerm, 0, len(c.candidates))
	for termid, acc := range c.candidates {
		term, ok := c.lexicon.Term(termid)
		if !ok {
			return nil, cerrors.Newf(cerrors.ErrCodeInternal, "term id %d missing from lexicon", termid)
		}
		entry, ok := c.lexicon.Entry(term)
		if !ok {
			return nil, cerrors.Newf(cerrors.ErrCodeInternal, "term %q missing from lexicon", term)
		}
		score := c.model.Score(TermStats{
			FeedbackFrequency:   acc.frequency,
			FeedbackDocuments:   acc.documents,
			CollectionFrequency: float64(entry.Frequency),
			DocumentFrequency:   float64(entry.DocumentFrequency),
		}, col)
		scored = append(scored, CandidateTerm{
			Term:              term,
			Weight:            score,
			FeedbackFrequency: acc.frequency,
			FeedbackDocuments: acc.documents,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Weight != scored[j].Weight {
			return scored[i].Weight > scored[j].Weight
		}
		return scored[i].Term < scored[j].Term
	})

	if k == 0 {
		// Conservative expansion: re-weight the original query terms
		// found in the feedback set, add nothing.
		if c.original == nil {
			return nil, nil
		}
		var kept []CandidateTerm
		for _, ct := range scored {
			if c.original.Has(ct.Term) {
				kept = append(kept, ct)
			}
		}
		return kept, nil
	}

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// TermFilterCollector wraps an inner collector and drops candidates
// that make poor query terms: purely numeric tokens and terms shorter
// than three characters.
type TermFilterCollector struct {
	inner TermCollector
}

// SetModel implements TermCollector.
func (c *TermFilterCollector) SetModel(m Model) {
	c.inner.SetModel(m)
}

// SetOriginalQueryTerms implements TermCollector.
func (c *TermFilterCollector) SetOriginalQueryTerms(q *query.Terms) {
	c.inner.SetOriginalQueryTerms(q)
}

// InsertDocument implements TermCollector.
func (c *TermFilterCollector) InsertDocument(ctx context.Context, doc FeedbackDocument) error {
	return c.inner.InsertDocument(ctx, doc)
}

// NumberOfUniqueTerms implements TermCollector.
func (c *TermFilterCollector) NumberOfUniqueTerms() int {
	return c.inner.NumberOfUniqueTerms()
}

// ExpandedTerms implements TermCollector. The inner collector is asked
// for twice the requested terms as filtering headroom; the filtered
// ranking is then truncated to k. The conservative k == 0 path passes
// through unfiltered: original query terms are the user's own.
func (c *TermFilterCollector) ExpandedTerms(k int) ([]CandidateTerm, error) {
	if k == 0 {
		return c.inner.ExpandedTerms(0)
	}

	candidates, err := c.inner.ExpandedTerms(2 * k)
	if err != nil {
		return nil, err
	}
	kept := candidates[:0]
	for _, ct := range candidates {
		if acceptableTerm(ct.Term) {
			kept = append(kept, ct)
		}
	}
	if len(kept) > k {
		kept = kept[:k]
	}
	return kept, nil
}

// acceptableTerm reports whether a candidate is worth adding to a
// query.
func acceptableTerm(term string) bool {
	if len(term) < 3 {
		return false
	}
	for _, r := range term {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
