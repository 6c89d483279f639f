// Package config loads and validates corax configuration.
// Configuration is YAML on disk; every value has a process-wide default
// and the expansion values can additionally be overridden per request
// through request controls.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	cerrors "github.com/coraxsearch/corax/internal/errors"
)

// DefaultDirName is the per-project data directory.
const DefaultDirName = ".corax"

// Config represents the complete corax configuration.
type Config struct {
	Index     IndexConfig     `yaml:"index" json:"index"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Expansion ExpansionConfig `yaml:"expansion" json:"expansion"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// IndexConfig configures index storage and tokenization.
type IndexConfig struct {
	// Dir is the index data directory.
	Dir string `yaml:"dir" json:"dir"`

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int `yaml:"min_token_length" json:"min_token_length"`

	// StopWords is a list of words dropped during tokenization.
	StopWords []string `yaml:"stop_words" json:"stop_words"`

	// Workers is the number of concurrent tokenization workers
	// during index builds (default: 4).
	Workers int `yaml:"workers" json:"workers"`
}

// SearchConfig configures the first-pass BM25 matcher.
type SearchConfig struct {
	// K1 is the term frequency saturation parameter (default: 1.2).
	K1 float64 `yaml:"k1" json:"k1"`

	// B is the length normalization parameter (default: 0.75).
	B float64 `yaml:"b" json:"b"`

	// MaxResults caps the result set size (default: 1000).
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// ExpansionConfig configures pseudo-relevance-feedback query expansion.
// Documents, Terms and Model can be overridden per request via the
// qe_fb_docs, qe_fb_terms and qemodel controls.
type ExpansionConfig struct {
	// Documents is the number of top first-pass documents used as the
	// pseudo relevance set (default: 3).
	Documents int `yaml:"documents" json:"documents"`

	// Terms is the maximum number of expansion terms added to the
	// query. Zero selects conservative expansion: original query terms
	// are re-weighted but no new terms are added (default: 10).
	Terms int `yaml:"terms" json:"terms"`

	// Model names the expansion weighting model (default: "Bo1").
	Model string `yaml:"model" json:"model"`

	// Selectors is the feedback selector chain, outermost first.
	// The last name is the terminal selector (default: ["pseudo"]).
	Selectors []string `yaml:"selectors" json:"selectors"`

	// Collectors is the expansion term collector chain, outermost
	// first. The last name is the terminal collector
	// (default: ["dfrbag"]).
	Collectors []string `yaml:"collectors" json:"collectors"`

	// SkipSecondPass disables the second matching pass over the
	// rewritten query (default: false).
	SkipSecondPass bool `yaml:"skip_second_pass" json:"skip_second_pass"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Dir:            DefaultDirName,
			MinTokenLength: 2,
			Workers:        4,
		},
		Search: SearchConfig{
			K1:         1.2,
			B:          0.75,
			MaxResults: 1000,
		},
		Expansion: ExpansionConfig{
			Documents:  3,
			Terms:      10,
			Model:      "Bo1",
			Selectors:  []string{"pseudo"},
			Collectors: []string{"dfrbag"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from path, overlaying it on the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, cerrors.IOError(fmt.Sprintf("read config %s: %v", path, err), err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, cerrors.ConfigError(fmt.Sprintf("parse config %s: %v", path, err), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, cerrors.ConfigError(err.Error(), err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Expansion.Documents < 0 {
		return fmt.Errorf("expansion.documents must be >= 0, got %d", c.Expansion.Documents)
	}
	if c.Expansion.Terms < 0 {
		return fmt.Errorf("expansion.terms must be >= 0, got %d", c.Expansion.Terms)
	}
	if len(c.Expansion.Selectors) == 0 {
		return fmt.Errorf("expansion.selectors must name at least a terminal selector")
	}
	if len(c.Expansion.Collectors) == 0 {
		return fmt.Errorf("expansion.collectors must name at least a terminal collector")
	}
	if c.Search.K1 <= 0 {
		return fmt.Errorf("search.k1 must be > 0, got %g", c.Search.K1)
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		return fmt.Errorf("search.b must be in [0,1], got %g", c.Search.B)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0, got %d", c.Search.MaxResults)
	}
	return nil
}
