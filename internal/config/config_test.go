package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/coraxsearch/corax/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultDirName, cfg.Index.Dir)
	assert.Equal(t, 3, cfg.Expansion.Documents)
	assert.Equal(t, 10, cfg.Expansion.Terms)
	assert.Equal(t, "Bo1", cfg.Expansion.Model)
	assert.Equal(t, []string{"pseudo"}, cfg.Expansion.Selectors)
	assert.Equal(t, []string{"dfrbag"}, cfg.Expansion.Collectors)
	assert.False(t, cfg.Expansion.SkipSecondPass)
	assert.Equal(t, 1.2, cfg.Search.K1)
	assert.Equal(t, 0.75, cfg.Search.B)

	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
expansion:
  documents: 5
  model: KL
search:
  k1: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Expansion.Documents)
	assert.Equal(t, "KL", cfg.Expansion.Model)
	assert.Equal(t, 0.9, cfg.Search.K1)

	// Untouched values keep their defaults.
	assert.Equal(t, 10, cfg.Expansion.Terms)
	assert.Equal(t, 0.75, cfg.Search.B)
	assert.Equal(t, []string{"pseudo"}, cfg.Expansion.Selectors)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("expansion: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))
}

func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("expansion:\n  documents: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expansion.documents")
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative terms", func(c *Config) { c.Expansion.Terms = -1 }},
		{"empty selector chain", func(c *Config) { c.Expansion.Selectors = nil }},
		{"empty collector chain", func(c *Config) { c.Expansion.Collectors = nil }},
		{"zero k1", func(c *Config) { c.Search.K1 = 0 }},
		{"b out of range", func(c *Config) { c.Search.B = 1.5 }},
		{"zero max results", func(c *Config) { c.Search.MaxResults = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Expansion.Model = "Bo2"
	cfg.Expansion.SkipSecondPass = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
