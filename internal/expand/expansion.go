// Package expand implements pseudo-relevance-feedback query expansion:
// the top documents of a first-pass result set are assumed relevant,
// candidate terms are extracted from them and scored with a pluggable
// weighting model, and the best candidates are merged back into the
// query for a second retrieval pass.
package expand

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/coraxsearch/corax/internal/config"
	cerrors "github.com/coraxsearch/corax/internal/errors"
	"github.com/coraxsearch/corax/internal/index"
	"github.com/coraxsearch/corax/internal/pipeline"
	"github.com/coraxsearch/corax/internal/query"
)

// StageName is the pipeline name of the query expansion stage.
const StageName = "qe"

// weightDecimals is the fixed precision of serialized query weights.
const weightDecimals = 9

// QueryExpansion is the query expansion engine and its two-phase
// retrieval controller. One instance serves one pipeline; the model
// registry it resolves from may be shared process-wide.
type QueryExpansion struct {
	cfg        config.ExpansionConfig
	models     *ModelRegistry
	selectors  *SelectorRegistry
	collectors *CollectorRegistry

	idx      *index.Index
	selector FeedbackSelector
	model    Model

	warnedModelDefault bool
	warnedDirect       bool

	warnedMu sync.Mutex
	warned   map[string]struct{}
}

// Option configures the engine.
type Option func(*QueryExpansion)

// WithModelRegistry replaces the default model registry, typically to
// share one cache across pipelines.
func WithModelRegistry(r *ModelRegistry) Option {
	return func(e *QueryExpansion) {
		e.models = r
	}
}

// WithSelectorRegistry replaces the default feedback selector registry.
func WithSelectorRegistry(r *SelectorRegistry) Option {
	return func(e *QueryExpansion) {
		e.selectors = r
	}
}

// WithCollectorRegistry replaces the default term collector registry.
func WithCollectorRegistry(r *CollectorRegistry) Option {
	return func(e *QueryExpansion) {
		e.collectors = r
	}
}

// New creates a query expansion engine.
func New(cfg config.ExpansionConfig, opts ...Option) *QueryExpansion {
	e := &QueryExpansion{
		cfg:        cfg,
		models:     NewModelRegistry(),
		selectors:  NewSelectorRegistry(),
		collectors: NewCollectorRegistry(),
		warned:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ConfigureIndex (re)binds the index scope. Rebinding discards the
// lazily built selector chain, which carries bindings to the previous
// index.
func (e *QueryExpansion) ConfigureIndex(idx *index.Index) {
	if e.idx == idx {
		return
	}
	e.idx = idx
	e.selector = nil
	e.warnedDirect = false
}

// Info returns the active model's human-readable identifier.
func (e *QueryExpansion) Info() string {
	if e.model != nil {
		return e.model.Info()
	}
	return ""
}

// ExpandQuery expands q from the request's result set. It returns true
// when the query was rewritten. Configuration problems (unknown model,
// selector or collector names) are logged once per offending name and
// reported as "not expanded"; I/O failures reading feedback documents
// and context cancellation are returned as errors, always before any
// mutation of q.
func (e *QueryExpansion) ExpandQuery(ctx context.Context, q *query.Terms, rq *pipeline.Request) (bool, error) {
	settings := SettingsFromRequest(rq, e.cfg)

	modelName, ok := rq.Control(CtrlModel)
	if !ok || modelName == "" {
		if !e.warnedModelDefault {
			slog.Warn("qemodel control not set, using default model",
				slog.String("default", e.cfg.Model))
			e.warnedModelDefault = true
		}
		modelName = e.cfg.Model
		if modelName == "" {
			modelName = "Bo1"
		}
	}
	model, err := e.models.Resolve(modelName)
	if err != nil {
		e.warnConfigOnce("model:"+modelName, err)
		return false, nil
	}
	e.model = model
	slog.Debug("expansion model resolved", slog.String("model", model.Info()))

	// The number of terms to re-weight is the maximum of the setting
	// and the query length: when the query is longer than the setting
	// it makes no sense to run relevance feedback for only a portion
	// of it. Zero keeps zero: conservative expansion.
	numberOfTermsToReweight := settings.Terms
	if q.Len() > numberOfTermsToReweight {
		numberOfTermsToReweight = q.Len()
	}
	if settings.Terms == 0 {
		numberOfTermsToReweight = 0
	}

	if e.selector == nil {
		selector, err := e.selectors.BuildChain(e.cfg.Selectors, e.cfg, e.idx)
		if err != nil {
			e.warnConfigOnce(configWarnKey("selector", err, chainKey(e.cfg.Selectors)), err)
			return false, nil
		}
		e.selector = selector
	}

	feedback, err := e.selector.Select(ctx, rq)
	if err != nil {
		return false, cerrors.Wrap(cerrors.ErrCodePostingRead, err)
	}
	if len(feedback) == 0 {
		slog.Debug("no feedback documents, not expanding", slog.String("request", rq.ID))
		return false, nil
	}

	// The collector chain is built fresh per call: accumulated term
	// statistics must never leak between expansion calls.
	collector, err := e.collectors.BuildChain(e.cfg.Collectors, e.idx)
	if err != nil {
		e.warnConfigOnce(configWarnKey("collector", err, chainKey(e.cfg.Collectors)), err)
		return false, nil
	}
	collector.SetModel(model)
	collector.SetOriginalQueryTerms(q)

	for _, doc := range feedback {
		if err := collector.InsertDocument(ctx, doc); err != nil {
			return false, err
		}
	}
	slog.Debug("selecting expansion terms",
		slog.Int("reweight", numberOfTermsToReweight),
		slog.Int("unique_terms", collector.NumberOfUniqueTerms()))

	expanded, err := collector.ExpandedTerms(numberOfTermsToReweight)
	if err != nil {
		return false, err
	}

	// Abort check before committing: a canceled request must not see a
	// partially applied expansion.
	if err := ctx.Err(); err != nil {
		return false, err
	}

	for _, ct := range expanded {
		q.Add(ct.Term, ct.Weight)
		if w, ok := q.Weight(ct.Term); ok {
			slog.Debug("expansion term merged",
				slog.String("term", ct.Term),
				slog.String("weight", strconv.FormatFloat(w, 'f', 4, 64)))
		}
	}
	return true, nil
}

// Process is the post-process entry point of two-phase retrieval: it
// binds the index scope, expands the query from the first-pass result
// set, records the rewritten query on the request, and re-invokes the
// stage that produced the result set. Every failure path degrades to
// keeping the first-pass results.
func (e *QueryExpansion) Process(ctx context.Context, m pipeline.Manager, rq *pipeline.Request) error {
	idx := m.Index()
	if idx == nil {
		slog.Error("query expansion requires an index binding")
		return nil
	}
	e.ConfigureIndex(idx)

	if e.idx.Direct == nil {
		if !e.warnedDirect {
			slog.Error("index has no direct index, query expansion disabled")
			e.warnedDirect = true
		}
		return nil
	}

	if rq.Query == nil || rq.Query.Len() == 0 {
		slog.Warn("no query terms, skipping query expansion", slog.String("request", rq.ID))
		return nil
	}

	expanded, err := e.ExpandQuery(ctx, rq.Query, rq)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		slog.Error("query expansion failed, keeping first-pass results",
			slog.String("request", rq.ID),
			slog.String("error", err.Error()))
		return nil
	}
	if !expanded {
		slog.Debug("query not expanded", slog.String("request", rq.ID))
		return nil
	}

	rewritten := rq.Query.Serialize(weightDecimals)
	rq.SetControl(CtrlExpandedQuery, rewritten)
	slog.Info("query_expanded",
		slog.String("request", rq.ID),
		slog.Int("query_length", rq.Query.Len()),
		slog.String("query", rewritten))

	if e.skipSecondPass(rq) {
		return nil
	}

	prev, ok := rq.Control(pipeline.CtrlPreviousProcess)
	if !ok || prev == "" {
		slog.Warn("no previous process recorded, skipping second pass",
			slog.String("request", rq.ID))
		return nil
	}
	stage, ok := m.Stage(prev)
	if !ok {
		slog.Warn("previous process not found, skipping second pass",
			slog.String("request", rq.ID),
			slog.String("stage", prev))
		return nil
	}
	slog.Debug("second matching pass", slog.String("request", rq.ID), slog.String("stage", prev))
	return stage.Process(ctx, m, rq)
}

// skipSecondPass resolves the skip flag from the request control,
// falling back to the process configuration.
func (e *QueryExpansion) skipSecondPass(rq *pipeline.Request) bool {
	if v, ok := rq.Control(CtrlSkipSecondPass); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		slog.Warn("ignoring invalid control", slog.String("control", CtrlSkipSecondPass), slog.String("value", v))
	}
	return e.cfg.SkipSecondPass
}

// warnConfigOnce logs a configuration error once per offending name
// for the lifetime of the engine.
func (e *QueryExpansion) warnConfigOnce(key string, err error) {
	e.warnedMu.Lock()
	defer e.warnedMu.Unlock()
	if _, seen := e.warned[key]; seen {
		return
	}
	e.warned[key] = struct{}{}
	slog.Error("query expansion configuration error, expansion skipped",
		slog.String("name", key),
		slog.String("error", err.Error()))
}

// configWarnKey keys a configuration warning by the offending chain
// node name when the error identifies one, so each bad name warns once
// regardless of the chain it appeared in.
func configWarnKey(kind string, err error, fallback string) string {
	var ce *cerrors.CoraxError
	if errors.As(err, &ce) {
		if name, ok := ce.Details["name"]; ok && name != "" {
			return kind + ":" + name
		}
	}
	return kind + ":" + fallback
}

// chainKey renders a chain name list as a stable map key.
func chainKey(names []string) string {
	key := ""
	for i, n := range names {
		if i > 0 {
			key += ","
		}
		key += n
	}
	return key
}
