package index

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	cerrors "github.com/coraxsearch/corax/internal/errors"
)

// directCacheSize bounds the LRU of decoded direct-index term vectors.
// Feedback documents are re-read on every expansion call, so the top of
// the result set stays hot across requests.
const directCacheSize = 256

const schema = `
CREATE TABLE IF NOT EXISTS terms (
	termid INTEGER PRIMARY KEY,
	term   TEXT NOT NULL UNIQUE,
	df     INTEGER NOT NULL,
	cf     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	docid  INTEGER PRIMARY KEY,
	docno  TEXT NOT NULL UNIQUE,
	path   TEXT NOT NULL,
	length INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS inverted (
	termid INTEGER NOT NULL,
	docid  INTEGER NOT NULL,
	tf     INTEGER NOT NULL,
	PRIMARY KEY (termid, docid)
) WITHOUT ROWID;
CREATE TABLE IF NOT EXISTS stats (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const directSchema = `
CREATE TABLE IF NOT EXISTS direct (
	docid  INTEGER NOT NULL,
	termid INTEGER NOT NULL,
	tf     INTEGER NOT NULL,
	PRIMARY KEY (docid, termid)
) WITHOUT ROWID;
`

// Write persists a memory index to a SQLite database at path.
// Any existing database contents are replaced.
func Write(ctx context.Context, path string, m *MemoryIndex) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}
	if m.withDirect {
		if _, err := db.ExecContext(ctx, directSchema); err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}
	defer tx.Rollback()

	if err := writeTables(ctx, tx, m); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}
	return nil
}

func writeTables(ctx context.Context, tx *sql.Tx, m *MemoryIndex) error {
	termStmt, err := tx.PrepareContext(ctx, "INSERT INTO terms(termid, term, df, cf) VALUES(?, ?, ?, ?)")
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}
	defer termStmt.Close()
	for id, term := range m.termList {
		if _, err := termStmt.ExecContext(ctx, id, term, m.df[id], m.cf[id]); err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx, "INSERT INTO documents(docid, docno, path, length) VALUES(?, ?, ?, ?)")
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}
	defer docStmt.Close()
	for docid, meta := range m.metas {
		if _, err := docStmt.ExecContext(ctx, docid, meta.DocNo, meta.Path, m.lengths[docid]); err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
		}
	}

	invStmt, err := tx.PrepareContext(ctx, "INSERT INTO inverted(termid, docid, tf) VALUES(?, ?, ?)")
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}
	defer invStmt.Close()
	for termid, postings := range m.inverted {
		for _, p := range postings {
			if _, err := invStmt.ExecContext(ctx, termid, p.ID, p.Frequency); err != nil {
				return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
			}
		}
	}

	if m.withDirect {
		dirStmt, err := tx.PrepareContext(ctx, "INSERT INTO direct(docid, termid, tf) VALUES(?, ?, ?)")
		if err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
		}
		defer dirStmt.Close()
		for docid, vector := range m.direct {
			for _, p := range vector {
				if _, err := dirStmt.ExecContext(ctx, docid, p.ID, p.Frequency); err != nil {
					return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
				}
			}
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO stats(key, value) VALUES('tokens', ?)", m.tokens); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}
	return nil
}

// Store is a SQLite-backed index. The lexicon and document lengths are
// loaded into memory at open; postings are read on demand, direct-index
// term vectors through an LRU cache.
type Store struct {
	db      *sql.DB
	lexicon *storeLexicon
	lengths []int32
	stats   CollectionStatistics

	hasDirect   bool
	directCache *lru.Cache[int32, []Posting]
}

// Open opens a SQLite index previously produced by Write.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}

	s := &Store{db: db}
	if err := s.load(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.directCache, err = lru.New[int32, []Posting](directCacheSize)
	if err != nil {
		db.Close()
		return nil, cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	lex := &storeLexicon{terms: make(map[string]int32)}
	rows, err := s.db.QueryContext(ctx, "SELECT termid, term, df, cf FROM terms ORDER BY termid")
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int32
		var term string
		var df int
		var cf int64
		if err := rows.Scan(&id, &term, &df, &cf); err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
		}
		if int(id) != len(lex.termList) {
			return cerrors.Newf(cerrors.ErrCodeIndexRead, "non-contiguous term id %d", id)
		}
		lex.terms[term] = id
		lex.termList = append(lex.termList, term)
		lex.df = append(lex.df, df)
		lex.cf = append(lex.cf, cf)
	}
	if err := rows.Err(); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}
	s.lexicon = lex

	docRows, err := s.db.QueryContext(ctx, "SELECT docid, length FROM documents ORDER BY docid")
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}
	defer docRows.Close()
	for docRows.Next() {
		var docid int32
		var length int32
		if err := docRows.Scan(&docid, &length); err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
		}
		if int(docid) != len(s.lengths) {
			return cerrors.Newf(cerrors.ErrCodeIndexRead, "non-contiguous document id %d", docid)
		}
		s.lengths = append(s.lengths, length)
	}
	if err := docRows.Err(); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}

	var tokensStr string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM stats WHERE key = 'tokens'").Scan(&tokensStr)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}
	tokens, err := strconv.ParseInt(tokensStr, 10, 64)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}

	s.stats = CollectionStatistics{
		Documents:   len(s.lengths),
		Tokens:      tokens,
		UniqueTerms: len(lex.termList),
	}
	if s.stats.Documents > 0 {
		s.stats.AverageDocumentLength = float64(tokens) / float64(s.stats.Documents)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'direct'").Scan(new(string))
	switch err {
	case nil:
		s.hasDirect = true
	case sql.ErrNoRows:
		s.hasDirect = false
	default:
		return cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}
	return nil
}

// Binding returns the read-only index-scope binding for this store.
func (s *Store) Binding() *Index {
	idx := &Index{
		Lexicon:   s.lexicon,
		Inverted:  &storePostings{s: s, table: "inverted", key: "termid", value: "docid"},
		Documents: (*storeDocuments)(s),
		Meta:      (*storeMeta)(s),
		Stats:     s.stats,
	}
	if s.hasDirect {
		idx.Direct = &cachedPostings{
			inner: &storePostings{s: s, table: "direct", key: "docid", value: "termid"},
			cache: s.directCache,
		}
	}
	return idx
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type storeLexicon struct {
	terms    map[string]int32
	termList []string
	df       []int
	cf       []int64
}

func (l *storeLexicon) Entry(term string) (LexiconEntry, bool) {
	id, ok := l.terms[term]
	if !ok {
		return LexiconEntry{}, false
	}
	return LexiconEntry{TermID: id, DocumentFrequency: l.df[id], Frequency: l.cf[id]}, true
}

func (l *storeLexicon) Term(id int32) (string, bool) {
	if id < 0 || int(id) >= len(l.termList) {
		return "", false
	}
	return l.termList[id], true
}

func (l *storeLexicon) NumberOfEntries() int {
	return len(l.termList)
}

type storePostings struct {
	s     *Store
	table string
	key   string
	value string
}

func (p *storePostings) Postings(ctx context.Context, id int32) ([]Posting, error) {
	q := fmt.Sprintf("SELECT %s, tf FROM %s WHERE %s = ? ORDER BY %s",
		p.value, p.table, p.key, p.value)
	rows, err := p.s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePostingRead, err)
	}
	defer rows.Close()

	var postings []Posting
	for rows.Next() {
		var entry Posting
		if err := rows.Scan(&entry.ID, &entry.Frequency); err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodePostingRead, err)
		}
		postings = append(postings, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePostingRead, err)
	}
	return postings, nil
}

// cachedPostings memoizes decoded posting lists. Safe for concurrent
// readers: the LRU is internally locked and lists are never mutated
// after insertion.
type cachedPostings struct {
	inner PostingReader
	cache *lru.Cache[int32, []Posting]
}

func (c *cachedPostings) Postings(ctx context.Context, id int32) ([]Posting, error) {
	if cached, ok := c.cache.Get(id); ok {
		return cached, nil
	}
	postings, err := c.inner.Postings(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, postings)
	return postings, nil
}

type storeDocuments Store

func (d *storeDocuments) DocumentLength(docid int32) (int32, error) {
	if docid < 0 || int(docid) >= len(d.lengths) {
		return 0, cerrors.Newf(cerrors.ErrCodeIndexRead, "unknown document id %d", docid)
	}
	return d.lengths[docid], nil
}

func (d *storeDocuments) NumberOfDocuments() int {
	return len(d.lengths)
}

type storeMeta Store

func (m *storeMeta) Document(docid int32) (DocumentMeta, error) {
	var meta DocumentMeta
	err := m.db.QueryRow("SELECT docno, path FROM documents WHERE docid = ?", docid).
		Scan(&meta.DocNo, &meta.Path)
	if err != nil {
		return DocumentMeta{}, cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}
	return meta, nil
}
