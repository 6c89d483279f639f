package expand

import (
	"strings"

	"github.com/coraxsearch/corax/internal/config"
	"github.com/coraxsearch/corax/internal/index"
	"github.com/coraxsearch/corax/internal/pipeline"
	"github.com/coraxsearch/corax/internal/query"
)

// feedbackIndex builds a small collection where the top three documents
// for the query "terrier search" make an interesting feedback set:
// "engine" occurs 8 times across them, "fast" 5 times, "index" 3 times,
// and the query terms 3 times each. Document d matches nothing.
func feedbackIndex() *index.Index {
	m := index.NewMemoryIndex()
	m.AddDocument("a", "a.txt", strings.Fields("terrier search engine engine engine fast fast index"))
	m.AddDocument("b", "b.txt", strings.Fields("terrier search engine engine engine fast fast index"))
	m.AddDocument("c", "c.txt", strings.Fields("terrier search engine engine fast index"))
	m.AddDocument("d", "d.txt", strings.Fields("golang module tooling"))
	return m.Snapshot()
}

// feedbackRequest is a request whose result set ranks the feedback
// documents a, b, c ahead of the unrelated d.
func feedbackRequest() *pipeline.Request {
	rq := pipeline.NewRequest("test-request", query.FromStrings([]string{"terrier", "search"}))
	rq.Results = &pipeline.ResultSet{Results: []pipeline.Result{
		{DocID: 0, Score: 5.0},
		{DocID: 1, Score: 4.0},
		{DocID: 2, Score: 3.0},
		{DocID: 3, Score: 0.2},
	}}
	return rq
}

func expansionDefaults() config.ExpansionConfig {
	return config.ExpansionConfig{
		Documents:  3,
		Terms:      2,
		Model:      "fixed",
		Selectors:  []string{"pseudo"},
		Collectors: []string{"dfrbag"},
	}
}

// fixedModel scores a candidate as its feedback frequency over ten,
// making expected weights trivial to read off the fixture.
type fixedModel struct{}

func (fixedModel) Info() string { return "fixed" }

func (fixedModel) Score(term TermStats, _ Collection) float64 {
	return term.FeedbackFrequency / 10
}

// fixedModelRegistry is a registry with the fixture model registered.
func fixedModelRegistry() *ModelRegistry {
	r := NewModelRegistry()
	r.Register("fixed", func() Model { return fixedModel{} })
	return r
}
