// Package pipeline defines the request model and the stage pipeline
// that carries a search request through matching and post-processing.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/coraxsearch/corax/internal/index"
	"github.com/coraxsearch/corax/internal/query"
)

// CtrlPreviousProcess names the stage that produced the current result
// set. The pipeline maintains it after each stage so post-processes can
// re-invoke their predecessor.
const CtrlPreviousProcess = "previousprocess"

// Stage is one pipeline step. Stages mutate the request in place.
type Stage interface {
	Process(ctx context.Context, m Manager, rq *Request) error
}

// Manager is the capability interface stages depend on: stage lookup
// by name plus access to the bound index. Stages never depend on a
// concrete pipeline implementation.
type Manager interface {
	// Stage returns the named stage, or false if unknown.
	Stage(name string) (Stage, bool)

	// Index returns the index-scope binding for this pipeline.
	Index() *index.Index
}

// Request carries one search request through the pipeline.
type Request struct {
	// ID identifies the request in logs and diagnostics.
	ID string

	// Query is the matched query terms mapping, mutated in place by
	// query expansion.
	Query *query.Terms

	// Results is the current ranked result set, replaced by each
	// matching pass.
	Results *ResultSet

	controls map[string]string
}

// NewRequest creates a request for the given query terms.
func NewRequest(id string, q *query.Terms) *Request {
	return &Request{
		ID:       id,
		Query:    q,
		controls: make(map[string]string),
	}
}

// Control returns the named control value.
func (r *Request) Control(key string) (string, bool) {
	v, ok := r.controls[key]
	return v, ok
}

// ControlOr returns the named control value or def when unset or empty.
func (r *Request) ControlOr(key, def string) string {
	if v, ok := r.controls[key]; ok && v != "" {
		return v
	}
	return def
}

// SetControl sets a control value.
func (r *Request) SetControl(key, value string) {
	r.controls[key] = value
}

// Result is one scored document in a result set.
type Result struct {
	DocID int32
	Score float64
}

// ResultSet is a ranked list of documents, best first.
type ResultSet struct {
	Results []Result
}

// Len returns the number of results.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Results)
}

type namedStage struct {
	name  string
	stage Stage
}

// Local is the in-process pipeline: an ordered stage list over one
// index binding.
type Local struct {
	idx    *index.Index
	stages []namedStage
	byName map[string]Stage
}

// NewLocal creates an empty pipeline over the index binding.
func NewLocal(idx *index.Index) *Local {
	return &Local{
		idx:    idx,
		byName: make(map[string]Stage),
	}
}

// Append adds a stage at the end of the pipeline.
func (l *Local) Append(name string, s Stage) *Local {
	l.stages = append(l.stages, namedStage{name: name, stage: s})
	l.byName[name] = s
	return l
}

// Stage implements Manager.
func (l *Local) Stage(name string) (Stage, bool) {
	s, ok := l.byName[name]
	return s, ok
}

// Index implements Manager.
func (l *Local) Index() *index.Index {
	return l.idx
}

// Run executes the stage list in order. After each stage completes,
// the previousprocess control is set to its name so the next stage can
// re-invoke it.
func (l *Local) Run(ctx context.Context, rq *Request) error {
	for _, ns := range l.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		slog.Debug("pipeline_stage", slog.String("request", rq.ID), slog.String("stage", ns.name))
		if err := ns.stage.Process(ctx, l, rq); err != nil {
			return err
		}
		rq.SetControl(CtrlPreviousProcess, ns.name)
	}
	return nil
}
