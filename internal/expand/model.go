package expand

import (
	"math"
)

// TermStats are the accumulated statistics of one candidate term that
// a model scores from.
type TermStats struct {
	// FeedbackFrequency is the term's total occurrence count within
	// the feedback document set.
	FeedbackFrequency float64

	// FeedbackDocuments is the number of feedback documents containing
	// the term.
	FeedbackDocuments float64

	// CollectionFrequency is the term's total occurrence count in the
	// whole collection.
	CollectionFrequency float64

	// DocumentFrequency is the number of collection documents
	// containing the term.
	DocumentFrequency float64
}

// Collection carries the collection-wide and feedback-set-wide counts
// shared by every candidate of one scoring run.
type Collection struct {
	// FeedbackLength is the total token count of the feedback set.
	FeedbackLength float64

	// Documents is the number of documents in the collection.
	Documents float64

	// Tokens is the number of tokens in the collection.
	Tokens float64

	// AverageDocumentLength is Tokens / Documents.
	AverageDocumentLength float64
}

// Model scores a candidate expansion term. Implementations must be
// pure functions of their inputs: no side effects, no per-call state,
// so instances can be cached for the process lifetime and shared
// across concurrent requests. Scores are non-negative and comparable
// across candidates within a single scoring run.
type Model interface {
	// Info returns the model's human-readable identifier.
	Info() string

	// Score maps the candidate's statistics to its expected relevance
	// contribution.
	Score(term TermStats, col Collection) float64
}

// Bo1 is the Bose-Einstein 1 divergence-from-randomness model. The
// prior is the term's collection frequency spread over the collection's
// documents.
type Bo1 struct{}

// Info implements Model.
func (Bo1) Info() string { return "Bo1" }

// Score implements Model.
func (Bo1) Score(term TermStats, col Collection) float64 {
	if term.FeedbackFrequency <= 0 || col.Documents <= 0 || term.CollectionFrequency <= 0 {
		return 0
	}
	pn := term.CollectionFrequency / col.Documents
	return term.FeedbackFrequency*math.Log2((1+pn)/pn) + math.Log2(1+pn)
}

// Bo2 is the Bose-Einstein 2 model. Unlike Bo1 its prior scales the
// collection frequency by the size of the feedback set relative to the
// collection.
type Bo2 struct{}

// Info implements Model.
func (Bo2) Info() string { return "Bo2" }

// Score implements Model.
func (Bo2) Score(term TermStats, col Collection) float64 {
	if term.FeedbackFrequency <= 0 || col.Tokens <= 0 || term.CollectionFrequency <= 0 {
		return 0
	}
	pn := term.CollectionFrequency * col.FeedbackLength / col.Tokens
	if pn <= 0 {
		return 0
	}
	return term.FeedbackFrequency*math.Log2((1+pn)/pn) + math.Log2(1+pn)
}

// KL is the Kullback-Leibler divergence model: the candidate's
// distribution in the feedback set against its collection distribution.
type KL struct{}

// Info implements Model.
func (KL) Info() string { return "KL" }

// Score implements Model.
func (KL) Score(term TermStats, col Collection) float64 {
	if term.FeedbackFrequency <= 0 || col.FeedbackLength <= 0 || col.Tokens <= 0 {
		return 0
	}
	px := term.FeedbackFrequency / col.FeedbackLength
	pc := term.CollectionFrequency / col.Tokens
	if pc <= 0 || px <= pc {
		return 0
	}
	return px * math.Log2(px/pc)
}
