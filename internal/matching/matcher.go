// Package matching implements the first-pass ranked retrieval stage.
// It scores documents against the weighted query terms with BM25 over
// the inverted index.
package matching

import (
	"context"
	"log/slog"
	"math"
	"sort"

	cerrors "github.com/coraxsearch/corax/internal/errors"
	"github.com/coraxsearch/corax/internal/pipeline"
)

// StageName is the pipeline name of the matching stage.
const StageName = "matching"

// BM25 is the Okapi BM25 weighting model.
type BM25 struct {
	// K1 is the term frequency saturation parameter.
	K1 float64

	// B is the length normalization parameter.
	B float64
}

// DefaultBM25 returns the standard parameterization.
func DefaultBM25() BM25 {
	return BM25{K1: 1.2, B: 0.75}
}

// Score computes the BM25 contribution of one term occurrence.
func (m BM25) Score(tf, docLength, avgDocLength float64, documentFrequency, numberOfDocuments int) float64 {
	idf := math.Log(1 + (float64(numberOfDocuments)-float64(documentFrequency)+0.5)/(float64(documentFrequency)+0.5))
	norm := 1 - m.B + m.B*(docLength/avgDocLength)
	return idf * (tf * (m.K1 + 1)) / (tf + m.K1*norm)
}

// Matcher is the first-pass retrieval stage.
type Matcher struct {
	model      BM25
	maxResults int
}

// NewMatcher creates a matcher with the given model and result cap.
func NewMatcher(model BM25, maxResults int) *Matcher {
	if maxResults <= 0 {
		maxResults = 1000
	}
	return &Matcher{model: model, maxResults: maxResults}
}

// Process scores every document containing a query term and attaches
// the ranked result set to the request. Ties are broken by ascending
// document id so ranking is deterministic.
func (m *Matcher) Process(ctx context.Context, mgr pipeline.Manager, rq *pipeline.Request) error {
	idx := mgr.Index()
	if idx == nil {
		return cerrors.New(cerrors.ErrCodeNoIndex, "matching requires an index binding", nil)
	}
	if rq.Query == nil || rq.Query.Len() == 0 {
		rq.Results = &pipeline.ResultSet{}
		return nil
	}

	stats := idx.Stats
	scores := make(map[int32]float64)

	for _, term := range rq.Query.Terms() {
		entry, ok := idx.Lexicon.Entry(term)
		if !ok {
			continue
		}
		weight, _ := rq.Query.Weight(term)

		postings, err := idx.Inverted.Postings(ctx, entry.TermID)
		if err != nil {
			return cerrors.Wrap(cerrors.ErrCodePostingRead, err)
		}
		for _, p := range postings {
			docLength, err := idx.Documents.DocumentLength(p.ID)
			if err != nil {
				return cerrors.Wrap(cerrors.ErrCodePostingRead, err)
			}
			scores[p.ID] += weight * m.model.Score(
				float64(p.Frequency),
				float64(docLength),
				stats.AverageDocumentLength,
				entry.DocumentFrequency,
				stats.Documents,
			)
		}
	}

	results := make([]pipeline.Result, 0, len(scores))
	for docid, score := range scores {
		results = append(results, pipeline.Result{DocID: docid, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	if len(results) > m.maxResults {
		results = results[:m.maxResults]
	}

	rq.Results = &pipeline.ResultSet{Results: results}
	slog.Debug("matching_complete",
		slog.String("request", rq.ID),
		slog.Int("query_terms", rq.Query.Len()),
		slog.Int("results", len(results)))
	return nil
}
