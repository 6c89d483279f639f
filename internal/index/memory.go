package index

import (
	"context"
	"fmt"
	"sort"
)

// MemoryIndex is the in-memory index used while building and in tests.
// Documents are added with AddDocument; Snapshot produces the read-only
// Index binding over the accumulated structures.
//
// MemoryIndex is not safe for concurrent mutation.
type MemoryIndex struct {
	terms    map[string]int32 // term -> term id
	termList []string         // term id -> term
	df       []int            // term id -> document frequency
	cf       []int64          // term id -> collection frequency

	inverted [][]Posting // term id -> document postings
	direct   [][]Posting // doc id -> term vector

	lengths []int32
	metas   []DocumentMeta
	tokens  int64

	withDirect bool
}

// NewMemoryIndex creates an empty in-memory index. The direct index is
// materialized unless disabled with SkipDirect.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		terms:      make(map[string]int32),
		withDirect: true,
	}
}

// SkipDirect disables the direct index. An index built this way cannot
// serve query expansion.
func (m *MemoryIndex) SkipDirect() {
	m.withDirect = false
}

// AddDocument indexes one document and returns its document id.
// Tokens are taken as already normalized by the Tokenizer.
func (m *MemoryIndex) AddDocument(docno, path string, tokens []string) int32 {
	docid := int32(len(m.lengths))
	m.lengths = append(m.lengths, int32(len(tokens)))
	m.metas = append(m.metas, DocumentMeta{DocNo: docno, Path: path})
	m.tokens += int64(len(tokens))

	tf := make(map[string]int32, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	var vector []Posting
	for term, freq := range tf {
		id, ok := m.terms[term]
		if !ok {
			id = int32(len(m.termList))
			m.terms[term] = id
			m.termList = append(m.termList, term)
			m.df = append(m.df, 0)
			m.cf = append(m.cf, 0)
			m.inverted = append(m.inverted, nil)
		}
		m.df[id]++
		m.cf[id] += int64(freq)
		m.inverted[id] = append(m.inverted[id], Posting{ID: docid, Frequency: freq})
		if m.withDirect {
			vector = append(vector, Posting{ID: id, Frequency: freq})
		}
	}

	if m.withDirect {
		// Keep the vector ordered by term id so the on-disk and
		// in-memory forms agree byte for byte.
		sort.Slice(vector, func(i, j int) bool { return vector[i].ID < vector[j].ID })
		m.direct = append(m.direct, vector)
	}
	return docid
}

// Stats computes the collection statistics for the current contents.
func (m *MemoryIndex) Stats() CollectionStatistics {
	stats := CollectionStatistics{
		Documents:   len(m.lengths),
		Tokens:      m.tokens,
		UniqueTerms: len(m.termList),
	}
	if stats.Documents > 0 {
		stats.AverageDocumentLength = float64(stats.Tokens) / float64(stats.Documents)
	}
	return stats
}

// Snapshot returns the read-only Index binding over this memory index.
// The snapshot shares storage with the MemoryIndex; do not mutate the
// MemoryIndex after taking a snapshot.
func (m *MemoryIndex) Snapshot() *Index {
	idx := &Index{
		Lexicon:   (*memLexicon)(m),
		Inverted:  &memPostings{lists: m.inverted, kind: "term"},
		Documents: (*memDocuments)(m),
		Meta:      (*memMeta)(m),
		Stats:     m.Stats(),
	}
	if m.withDirect {
		idx.Direct = &memPostings{lists: m.direct, kind: "document"}
	}
	return idx
}

type memLexicon MemoryIndex

func (l *memLexicon) Entry(term string) (LexiconEntry, bool) {
	id, ok := l.terms[term]
	if !ok {
		return LexiconEntry{}, false
	}
	return LexiconEntry{
		TermID:            id,
		DocumentFrequency: l.df[id],
		Frequency:         l.cf[id],
	}, true
}

func (l *memLexicon) Term(id int32) (string, bool) {
	if id < 0 || int(id) >= len(l.termList) {
		return "", false
	}
	return l.termList[id], true
}

func (l *memLexicon) NumberOfEntries() int {
	return len(l.termList)
}

type memPostings struct {
	lists [][]Posting
	kind  string
}

func (p *memPostings) Postings(_ context.Context, id int32) ([]Posting, error) {
	if id < 0 || int(id) >= len(p.lists) {
		return nil, fmt.Errorf("unknown %s id %d", p.kind, id)
	}
	return p.lists[id], nil
}

type memDocuments MemoryIndex

func (d *memDocuments) DocumentLength(docid int32) (int32, error) {
	if docid < 0 || int(docid) >= len(d.lengths) {
		return 0, fmt.Errorf("unknown document id %d", docid)
	}
	return d.lengths[docid], nil
}

func (d *memDocuments) NumberOfDocuments() int {
	return len(d.lengths)
}

type memMeta MemoryIndex

func (mm *memMeta) Document(docid int32) (DocumentMeta, error) {
	if docid < 0 || int(docid) >= len(mm.metas) {
		return DocumentMeta{}, fmt.Errorf("unknown document id %d", docid)
	}
	return mm.metas[docid], nil
}
