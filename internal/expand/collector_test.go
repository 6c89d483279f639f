package expand

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/coraxsearch/corax/internal/errors"
	"github.com/coraxsearch/corax/internal/index"
	"github.com/coraxsearch/corax/internal/query"
)

// newBagCollector builds a fresh dfrbag chain over the fixture index
// with the fixture model bound.
func newBagCollector(t *testing.T, idx *index.Index) TermCollector {
	t.Helper()
	chain, err := NewCollectorRegistry().BuildChain([]string{"dfrbag"}, idx)
	require.NoError(t, err)
	chain.SetModel(fixedModel{})
	return chain
}

func insertFeedback(t *testing.T, c TermCollector, docids ...int32) {
	t.Helper()
	for i, id := range docids {
		err := c.InsertDocument(context.Background(), FeedbackDocument{DocID: id, Rank: i})
		require.NoError(t, err)
	}
}

func TestDFRBagCollector_Accumulation(t *testing.T) {
	idx := feedbackIndex()
	c := newBagCollector(t, idx)
	insertFeedback(t, c, 0, 1, 2)

	assert.Equal(t, 5, c.NumberOfUniqueTerms())

	terms, err := c.ExpandedTerms(10)
	require.NoError(t, err)
	require.Len(t, terms, 5)

	// engine occurs 8 times in the feedback set, fast 5, the rest 3.
	assert.Equal(t, "engine", terms[0].Term)
	assert.InDelta(t, 0.8, terms[0].Weight, 1e-12)
	assert.Equal(t, 8.0, terms[0].FeedbackFrequency)
	assert.Equal(t, 3.0, terms[0].FeedbackDocuments)
	assert.Equal(t, "fast", terms[1].Term)
	assert.InDelta(t, 0.5, terms[1].Weight, 1e-12)
}

func TestDFRBagCollector_InsertionOrderIrrelevant(t *testing.T) {
	idx := feedbackIndex()

	a := newBagCollector(t, idx)
	insertFeedback(t, a, 0, 1, 2)
	b := newBagCollector(t, idx)
	insertFeedback(t, b, 2, 0, 1)

	termsA, err := a.ExpandedTerms(10)
	require.NoError(t, err)
	termsB, err := b.ExpandedTerms(10)
	require.NoError(t, err)

	assert.Equal(t, termsA, termsB)
}

func TestDFRBagCollector_RankingIsDeterministic(t *testing.T) {
	idx := feedbackIndex()
	c := newBagCollector(t, idx)
	insertFeedback(t, c, 0, 1, 2)

	terms, err := c.ExpandedTerms(10)
	require.NoError(t, err)
	require.Len(t, terms, 5)

	for i := 1; i < len(terms); i++ {
		assert.LessOrEqual(t, terms[i].Weight, terms[i-1].Weight)
	}
	// index, search and terrier tie at 0.3; ties break on term text.
	assert.Equal(t, []string{"index", "search", "terrier"},
		[]string{terms[2].Term, terms[3].Term, terms[4].Term})
}

func TestDFRBagCollector_TopK(t *testing.T) {
	idx := feedbackIndex()
	c := newBagCollector(t, idx)
	insertFeedback(t, c, 0, 1, 2)

	terms, err := c.ExpandedTerms(2)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "engine", terms[0].Term)
	assert.Equal(t, "fast", terms[1].Term)
}

func TestDFRBagCollector_ConservativeExpansion(t *testing.T) {
	idx := feedbackIndex()
	c := newBagCollector(t, idx)
	c.SetOriginalQueryTerms(query.FromStrings([]string{"terrier", "search"}))
	insertFeedback(t, c, 0, 1, 2)

	// k == 0 re-scores only the terms the query already contains.
	terms, err := c.ExpandedTerms(0)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "search", terms[0].Term)
	assert.Equal(t, "terrier", terms[1].Term)
	assert.InDelta(t, 0.3, terms[0].Weight, 1e-12)
	assert.InDelta(t, 0.3, terms[1].Weight, 1e-12)
}

func TestDFRBagCollector_ConservativeWithoutOriginals(t *testing.T) {
	idx := feedbackIndex()
	c := newBagCollector(t, idx)
	insertFeedback(t, c, 0)

	terms, err := c.ExpandedTerms(0)
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestDFRBagCollector_ErrorPaths(t *testing.T) {
	idx := feedbackIndex()

	chain, err := NewCollectorRegistry().BuildChain([]string{"dfrbag"}, idx)
	require.NoError(t, err)

	// Unknown document ids surface as IO errors.
	chain.SetModel(fixedModel{})
	insertErr := chain.InsertDocument(context.Background(), FeedbackDocument{DocID: 99})
	require.Error(t, insertErr)
	assert.True(t, cerrors.IsCategory(insertErr, cerrors.CategoryIO))

	// Scoring without a model is an internal error.
	bare, err := NewCollectorRegistry().BuildChain([]string{"dfrbag"}, idx)
	require.NoError(t, err)
	_, err = bare.ExpandedTerms(5)
	require.Error(t, err)

	_, err = chain.ExpandedTerms(-1)
	require.Error(t, err)
}

func TestTermFilterCollector_DropsShortAndNumericTerms(t *testing.T) {
	m := index.NewMemoryIndex()
	m.AddDocument("a", "a.txt", strings.Fields("go go go go 2024 2024 2024 engine engine fast"))
	idx := m.Snapshot()

	chain, err := NewCollectorRegistry().BuildChain([]string{"termfilter", "dfrbag"}, idx)
	require.NoError(t, err)
	chain.SetModel(fixedModel{})
	insertFeedback(t, chain, 0)

	// "go" and "2024" outscore everything but make poor query terms.
	terms, err := chain.ExpandedTerms(2)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "engine", terms[0].Term)
	assert.Equal(t, "fast", terms[1].Term)
}

func TestTermFilterCollector_ConservativePassthrough(t *testing.T) {
	m := index.NewMemoryIndex()
	m.AddDocument("a", "a.txt", strings.Fields("go go terrier"))
	idx := m.Snapshot()

	chain, err := NewCollectorRegistry().BuildChain([]string{"termfilter", "dfrbag"}, idx)
	require.NoError(t, err)
	chain.SetModel(fixedModel{})
	chain.SetOriginalQueryTerms(query.FromStrings([]string{"go"}))
	insertFeedback(t, chain, 0)

	// Re-weighting the user's own terms is never filtered.
	terms, err := chain.ExpandedTerms(0)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "go", terms[0].Term)
}

func TestAcceptableTerm(t *testing.T) {
	assert.True(t, acceptableTerm("engine"))
	assert.True(t, acceptableTerm("bo1"))
	assert.False(t, acceptableTerm("go"))
	assert.False(t, acceptableTerm("2024"))
	assert.False(t, acceptableTerm(""))
}

func TestCollectorChain_Errors(t *testing.T) {
	idx := feedbackIndex()
	r := NewCollectorRegistry()

	_, err := r.BuildChain(nil, idx)
	require.Error(t, err)

	_, err = r.BuildChain([]string{"nonexistent"}, idx)
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))

	_, err = r.BuildChain([]string{"termfilter"}, idx)
	require.Error(t, err)

	_, err = r.BuildChain([]string{"dfrbag", "dfrbag"}, idx)
	require.Error(t, err)
}
