package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestBuilder_Build(t *testing.T) {
	root := writeCorpus(t, map[string]string{
		"a.txt":        "terrier search engine",
		"b.md":         "fast search index",
		"sub/c.txt":    "terrier terrier fast",
		"ignored.json": `{"not": "indexed"}`,
	})
	indexDir := t.TempDir()

	builder := NewBuilder(NewTokenizer(2, nil), WithWorkers(2))
	stats, err := builder.Build(context.Background(), root, indexDir)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, int64(9), stats.Tokens)

	store, err := Open(context.Background(), filepath.Join(indexDir, DatabaseName))
	require.NoError(t, err)
	defer store.Close()
	idx := store.Binding()

	// Files are indexed in sorted path order: a.txt, b.md, sub/c.txt.
	meta, err := idx.Meta.Document(0)
	require.NoError(t, err)
	assert.Equal(t, "a", meta.DocNo)
	meta, err = idx.Meta.Document(2)
	require.NoError(t, err)
	assert.Equal(t, "sub/c", meta.DocNo)

	entry, ok := idx.Lexicon.Entry("terrier")
	require.True(t, ok)
	assert.Equal(t, 2, entry.DocumentFrequency)
	assert.Equal(t, int64(3), entry.Frequency)

	require.NotNil(t, idx.Direct, "builds carry a direct index by default")
}

func TestBuilder_DocnoCollision(t *testing.T) {
	// Two files differing only by extension must both index: the later
	// one keeps its full relative path as docno.
	root := writeCorpus(t, map[string]string{
		"readme.txt": "terrier search",
		"readme.md":  "fast index",
	})
	indexDir := t.TempDir()

	builder := NewBuilder(NewTokenizer(2, nil))
	stats, err := builder.Build(context.Background(), root, indexDir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)

	store, err := Open(context.Background(), filepath.Join(indexDir, DatabaseName))
	require.NoError(t, err)
	defer store.Close()
	idx := store.Binding()

	// Sorted path order: readme.md first, so it wins the short docno.
	meta, err := idx.Meta.Document(0)
	require.NoError(t, err)
	assert.Equal(t, "readme", meta.DocNo)
	meta, err = idx.Meta.Document(1)
	require.NoError(t, err)
	assert.Equal(t, "readme.txt", meta.DocNo)
}

func TestBuilder_WithoutDirect(t *testing.T) {
	root := writeCorpus(t, map[string]string{"a.txt": "terrier search"})
	indexDir := t.TempDir()

	builder := NewBuilder(NewTokenizer(2, nil), WithoutDirect())
	_, err := builder.Build(context.Background(), root, indexDir)
	require.NoError(t, err)

	store, err := Open(context.Background(), filepath.Join(indexDir, DatabaseName))
	require.NoError(t, err)
	defer store.Close()

	assert.Nil(t, store.Binding().Direct)
}

func TestBuilder_RebuildReplacesIndex(t *testing.T) {
	indexDir := t.TempDir()
	builder := NewBuilder(NewTokenizer(2, nil))

	root1 := writeCorpus(t, map[string]string{"a.txt": "one two three"})
	_, err := builder.Build(context.Background(), root1, indexDir)
	require.NoError(t, err)

	root2 := writeCorpus(t, map[string]string{"b.txt": "four five"})
	stats, err := builder.Build(context.Background(), root2, indexDir)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, int64(2), stats.Tokens)
}
