package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	cerrors "github.com/coraxsearch/corax/internal/errors"
)

// DatabaseName is the index database file inside the index directory.
const DatabaseName = "corax.db"

// LockName is the advisory lock file guarding index builds.
const LockName = "index.lock"

// indexableExtensions are the file types picked up by Build.
var indexableExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".text": true,
	".rst":  true,
}

// Builder builds an index from a directory of text documents.
type Builder struct {
	tokenizer *Tokenizer
	workers   int
	direct    bool
}

// BuilderOption configures the builder.
type BuilderOption func(*Builder)

// WithWorkers sets the number of concurrent tokenization workers.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithoutDirect skips building the direct index. Query expansion is
// unavailable over such an index.
func WithoutDirect() BuilderOption {
	return func(b *Builder) {
		b.direct = false
	}
}

// NewBuilder creates a builder using the given tokenizer.
func NewBuilder(tokenizer *Tokenizer, opts ...BuilderOption) *Builder {
	b := &Builder{
		tokenizer: tokenizer,
		workers:   4,
		direct:    true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build indexes every supported file under root and writes the index
// database into indexDir. The index directory is locked for the
// duration of the build so concurrent builds cannot interleave.
func (b *Builder) Build(ctx context.Context, root, indexDir string) (CollectionStatistics, error) {
	var zero CollectionStatistics

	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return zero, cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}

	lock := flock.New(filepath.Join(indexDir, LockName))
	locked, err := lock.TryLock()
	if err != nil {
		return zero, cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}
	if !locked {
		return zero, cerrors.Newf(cerrors.ErrCodeIndexWrite, "index at %s is locked by another build", indexDir)
	}
	defer lock.Unlock()

	paths, err := collectFiles(root)
	if err != nil {
		return zero, err
	}
	slog.Info("index_build_started",
		slog.String("root", root),
		slog.Int("files", len(paths)),
		slog.Int("workers", b.workers))

	// Tokenize in parallel, then insert sequentially so document ids
	// depend only on the sorted file order.
	tokenized := make([][]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
			}
			tokenized[i] = b.tokenizer.Tokenize(string(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return zero, err
	}

	mem := NewMemoryIndex()
	if !b.direct {
		mem.SkipDirect()
	}
	seen := make(map[string]struct{}, len(paths))
	for i, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		// Extension-stripped docnos collide when two files differ only
		// by extension (readme.txt vs readme.md); colliders keep their
		// full relative path.
		docno := docnoFromPath(rel)
		if _, dup := seen[docno]; dup {
			docno = filepath.ToSlash(rel)
		}
		seen[docno] = struct{}{}
		mem.AddDocument(docno, rel, tokenized[i])
	}

	dbPath := filepath.Join(indexDir, DatabaseName)
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return zero, cerrors.Wrap(cerrors.ErrCodeIndexWrite, err)
	}
	if err := Write(ctx, dbPath, mem); err != nil {
		return zero, err
	}

	stats := mem.Stats()
	slog.Info("index_build_complete",
		slog.Int("documents", stats.Documents),
		slog.Int("unique_terms", stats.UniqueTerms),
		slog.Int64("tokens", stats.Tokens))
	return stats, nil
}

// collectFiles returns the sorted list of indexable files under root.
func collectFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if indexableExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeIndexRead, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// docnoFromPath derives the external document identifier from the
// relative file path.
func docnoFromPath(rel string) string {
	return strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
}
