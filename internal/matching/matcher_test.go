package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coraxsearch/corax/internal/index"
	"github.com/coraxsearch/corax/internal/pipeline"
	"github.com/coraxsearch/corax/internal/query"
)

func testIndex() *index.Index {
	m := index.NewMemoryIndex()
	m.AddDocument("doc-a", "a.txt", []string{"terrier", "terrier", "search"})
	m.AddDocument("doc-b", "b.txt", []string{"terrier", "index"})
	m.AddDocument("doc-c", "c.txt", []string{"unrelated", "words"})
	return m.Snapshot()
}

func run(t *testing.T, idx *index.Index, terms []string) *pipeline.Request {
	t.Helper()
	matcher := NewMatcher(DefaultBM25(), 100)
	mgr := pipeline.NewLocal(idx).Append(StageName, matcher)
	rq := pipeline.NewRequest("test", query.FromStrings(terms))
	require.NoError(t, mgr.Run(context.Background(), rq))
	return rq
}

func TestMatcher_RanksMatchingDocuments(t *testing.T) {
	rq := run(t, testIndex(), []string{"terrier"})

	require.Equal(t, 2, rq.Results.Len())
	// doc-a has the higher term frequency.
	assert.Equal(t, int32(0), rq.Results.Results[0].DocID)
	assert.Equal(t, int32(1), rq.Results.Results[1].DocID)
	assert.Greater(t, rq.Results.Results[0].Score, rq.Results.Results[1].Score)
}

func TestMatcher_ScoresAreDescending(t *testing.T) {
	rq := run(t, testIndex(), []string{"terrier", "search", "index"})

	require.NotZero(t, rq.Results.Len())
	for i := 1; i < rq.Results.Len(); i++ {
		assert.GreaterOrEqual(t,
			rq.Results.Results[i-1].Score, rq.Results.Results[i].Score)
	}
}

func TestMatcher_NoMatches(t *testing.T) {
	rq := run(t, testIndex(), []string{"missing"})
	assert.Zero(t, rq.Results.Len())
}

func TestMatcher_EmptyQuery(t *testing.T) {
	matcher := NewMatcher(DefaultBM25(), 100)
	mgr := pipeline.NewLocal(testIndex()).Append(StageName, matcher)
	rq := pipeline.NewRequest("test", query.New())

	require.NoError(t, mgr.Run(context.Background(), rq))
	assert.Zero(t, rq.Results.Len())
}

func TestMatcher_QueryWeightScalesScore(t *testing.T) {
	idx := testIndex()

	plain := run(t, idx, []string{"terrier"})

	weighted := query.New()
	weighted.Add("terrier", 2.0)
	matcher := NewMatcher(DefaultBM25(), 100)
	mgr := pipeline.NewLocal(idx).Append(StageName, matcher)
	rq := pipeline.NewRequest("test", weighted)
	require.NoError(t, mgr.Run(context.Background(), rq))

	require.Equal(t, plain.Results.Len(), rq.Results.Len())
	assert.InDelta(t, 2*plain.Results.Results[0].Score, rq.Results.Results[0].Score, 1e-12)
}

func TestMatcher_MaxResultsCap(t *testing.T) {
	m := index.NewMemoryIndex()
	for i := 0; i < 10; i++ {
		m.AddDocument("doc", "doc.txt", []string{"common"})
	}
	matcher := NewMatcher(DefaultBM25(), 5)
	mgr := pipeline.NewLocal(m.Snapshot()).Append(StageName, matcher)
	rq := pipeline.NewRequest("test", query.FromStrings([]string{"common"}))

	require.NoError(t, mgr.Run(context.Background(), rq))
	assert.Equal(t, 5, rq.Results.Len())
}
