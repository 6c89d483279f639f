package expand

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/coraxsearch/corax/internal/config"
	cerrors "github.com/coraxsearch/corax/internal/errors"
	"github.com/coraxsearch/corax/internal/index"
	"github.com/coraxsearch/corax/internal/pipeline"
)

// FeedbackDocument is one document of the pseudo relevance set,
// identified into the document space with its first-pass rank and
// score. Immutable once produced by a selector.
type FeedbackDocument struct {
	DocID int32
	Rank  int
	Score float64
}

// FeedbackSelector produces the ordered feedback document set for a
// request. Selectors form a chain: a terminal selector reads the
// result set, wrappers refine an inner selector's output. Returning an
// empty set is a normal outcome, not an error.
type FeedbackSelector interface {
	// SetIndex binds the index scope. Called on every chain node
	// before use.
	SetIndex(idx *index.Index)

	// Select returns the feedback documents for the request.
	Select(ctx context.Context, rq *pipeline.Request) ([]FeedbackDocument, error)
}

// SelectorFactory constructs one kind of chain node. Exactly one of
// NewBase and Wrap is set: terminal selectors have no inner
// dependency, wrappers take exactly one.
type SelectorFactory struct {
	NewBase func(defaults config.ExpansionConfig) FeedbackSelector
	Wrap    func(inner FeedbackSelector) FeedbackSelector
}

// SelectorRegistry maps selector names to factories.
type SelectorRegistry struct {
	factories map[string]SelectorFactory
}

// NewSelectorRegistry creates a registry with the built-in selectors:
// "pseudo" (terminal) and "scorecutoff" (wrapper).
func NewSelectorRegistry() *SelectorRegistry {
	r := &SelectorRegistry{factories: make(map[string]SelectorFactory)}
	r.Register("pseudo", SelectorFactory{
		NewBase: func(defaults config.ExpansionConfig) FeedbackSelector {
			return &PseudoSelector{defaults: defaults}
		},
	})
	r.Register("scorecutoff", SelectorFactory{
		Wrap: func(inner FeedbackSelector) FeedbackSelector {
			return &ScoreCutoffSelector{inner: inner, Ratio: DefaultScoreCutoffRatio}
		},
	})
	return r
}

// Register adds a selector factory under a name.
func (r *SelectorRegistry) Register(name string, f SelectorFactory) {
	r.factories[name] = f
}

// BuildChain assembles a selector chain from an ordered name list.
// Construction proceeds from the last name (the terminal selector) to
// the first (the outermost wrapper); every node receives the index
// binding. Unknown names and shape mismatches are configuration
// errors.
func (r *SelectorRegistry) BuildChain(names []string, defaults config.ExpansionConfig, idx *index.Index) (FeedbackSelector, error) {
	if len(names) == 0 {
		return nil, cerrors.Newf(cerrors.ErrCodeBadChain, "empty feedback selector chain")
	}

	var chain FeedbackSelector
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		factory, ok := r.factories[name]
		if !ok {
			return nil, cerrors.Newf(cerrors.ErrCodeUnknownSelector,
				"unknown feedback selector %q", name).WithDetail("name", name)
		}

		var next FeedbackSelector
		if i == len(names)-1 {
			if factory.NewBase == nil {
				return nil, cerrors.Newf(cerrors.ErrCodeBadChain,
					"feedback selector %q cannot terminate a chain", name).WithDetail("name", name)
			}
			next = factory.NewBase(defaults)
		} else {
			if factory.Wrap == nil {
				return nil, cerrors.Newf(cerrors.ErrCodeBadChain,
					"feedback selector %q cannot wrap another selector", name).WithDetail("name", name)
			}
			next = factory.Wrap(chain)
		}
		next.SetIndex(idx)
		chain = next
	}
	return chain, nil
}

// PseudoSelector is the terminal pseudo-relevance selector: the top
// ranked documents of the first-pass result set are assumed relevant.
type PseudoSelector struct {
	defaults config.ExpansionConfig
	idx      *index.Index
}

// SetIndex implements FeedbackSelector.
func (s *PseudoSelector) SetIndex(idx *index.Index) {
	s.idx = idx
}

// Select implements FeedbackSelector. The document count comes from
// the qe_fb_docs control, falling back to the process default.
func (s *PseudoSelector) Select(_ context.Context, rq *pipeline.Request) ([]FeedbackDocument, error) {
	if rq.Results.Len() == 0 {
		return nil, nil
	}
	n := SettingsFromRequest(rq, s.defaults).Documents
	if n > rq.Results.Len() {
		n = rq.Results.Len()
	}
	if n <= 0 {
		return nil, nil
	}

	feedback := make([]FeedbackDocument, n)
	for i := 0; i < n; i++ {
		res := rq.Results.Results[i]
		feedback[i] = FeedbackDocument{DocID: res.DocID, Rank: i, Score: res.Score}
	}
	return feedback, nil
}

// DefaultScoreCutoffRatio is the default fraction of the top feedback
// score below which the score-cutoff wrapper drops documents.
const DefaultScoreCutoffRatio = 0.1

// ScoreCutoffSelector wraps an inner selector and drops feedback
// documents whose first-pass score falls below Ratio times the best
// feedback score. Low-scoring tail documents dilute the candidate term
// statistics.
type ScoreCutoffSelector struct {
	inner FeedbackSelector
	Ratio float64
}

// SetIndex implements FeedbackSelector.
func (s *ScoreCutoffSelector) SetIndex(idx *index.Index) {
	s.inner.SetIndex(idx)
}

// Select implements FeedbackSelector. The ratio can be overridden per
// request with the qe_score_cutoff control.
func (s *ScoreCutoffSelector) Select(ctx context.Context, rq *pipeline.Request) ([]FeedbackDocument, error) {
	feedback, err := s.inner.Select(ctx, rq)
	if err != nil || len(feedback) == 0 {
		return feedback, err
	}

	ratio := s.Ratio
	if v, ok := rq.Control(CtrlScoreCutoff); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			ratio = f
		} else {
			slog.Warn("ignoring invalid control", slog.String("control", CtrlScoreCutoff), slog.String("value", v))
		}
	}

	cutoff := feedback[0].Score * ratio
	kept := feedback[:0]
	for _, doc := range feedback {
		if doc.Score >= cutoff {
			kept = append(kept, doc)
		}
	}
	return kept, nil
}
