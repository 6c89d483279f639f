// Package index provides the corax index structures: lexicon, inverted
// and direct posting lists, document and meta indexes, and collection
// statistics. The on-disk format is SQLite; an in-memory variant backs
// index builds and tests.
package index

import (
	"context"
)

// Posting records one (id, frequency) pair in a posting list. For the
// inverted index the list is keyed by term id and ids are document
// ids; for the direct index the list is keyed by document id and ids
// are term ids.
type Posting struct {
	ID        int32
	Frequency int32
}

// LexiconEntry holds the per-term statistics kept in the lexicon.
type LexiconEntry struct {
	TermID int32

	// DocumentFrequency is the number of documents containing the term.
	DocumentFrequency int

	// Frequency is the term's total occurrence count in the collection.
	Frequency int64
}

// Lexicon maps terms to ids and collection-wide statistics.
type Lexicon interface {
	// Entry looks up the lexicon entry for a term.
	Entry(term string) (LexiconEntry, bool)

	// Term resolves a term id back to its string form.
	Term(id int32) (string, bool)

	// NumberOfEntries returns the number of distinct terms.
	NumberOfEntries() int
}

// PostingReader provides posting lists keyed by id: term id for the
// inverted index, document id for the direct index.
type PostingReader interface {
	Postings(ctx context.Context, id int32) ([]Posting, error)
}

// DocumentIndex provides per-document statistics.
type DocumentIndex interface {
	// DocumentLength returns the token count of a document.
	DocumentLength(docid int32) (int32, error)

	// NumberOfDocuments returns the collection size.
	NumberOfDocuments() int
}

// DocumentMeta is the per-document metadata kept in the meta index.
type DocumentMeta struct {
	DocNo string // external document identifier
	Path  string // source file path
}

// MetaIndex resolves document ids to external metadata.
type MetaIndex interface {
	Document(docid int32) (DocumentMeta, error)
}

// CollectionStatistics holds collection-wide counts used by weighting
// and expansion models.
type CollectionStatistics struct {
	Documents             int
	Tokens                int64
	UniqueTerms           int
	AverageDocumentLength float64
}

// Index is the read-only index-scope binding handed to the matcher and
// the query expansion engine. Direct is nil when the index was built
// without a direct (document to term) index, in which case query
// expansion is structurally impossible.
type Index struct {
	Lexicon   Lexicon
	Inverted  PostingReader
	Direct    PostingReader
	Documents DocumentIndex
	Meta      MetaIndex
	Stats     CollectionStatistics
}
