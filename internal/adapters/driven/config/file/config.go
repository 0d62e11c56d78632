// Package file provides the TOML configuration layer. Settings written
// to ~/.mailsleuth/config.toml override the built-in run defaults;
// command-line flags override both.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

// Config is the on-disk configuration. Zero values mean "use the
// built-in default" throughout.
type Config struct {
	// DataDir overrides the default data directory (~/.mailsleuth/data).
	DataDir string `toml:"data_dir,omitempty"`

	// OutputDir is where run artifacts are exported. Defaults to the
	// working directory.
	OutputDir string `toml:"output_dir,omitempty"`

	Run RunSettings `toml:"run"`

	path string
}

// RunSettings overrides the run parameter defaults.
type RunSettings struct {
	MaxIterations      int     `toml:"max_iterations,omitempty"`
	EnableRerank       *bool   `toml:"enable_rerank,omitempty"`
	ChunkSize          int     `toml:"chunk_size,omitempty"`
	ChunkOverlap       int     `toml:"chunk_overlap,omitempty"`
	LexicalTopK        int     `toml:"lexical_top_k,omitempty"`
	VectorTopK         int     `toml:"vector_top_k,omitempty"`
	SelectionTopN      int     `toml:"selection_top_n,omitempty"`
	MaxNewTerms        int     `toml:"max_new_terms,omitempty"`
	MinNoveltyGain     float64 `toml:"min_novelty_gain,omitempty"`
	MinPrecision       float64 `toml:"min_precision,omitempty"`
	RelevanceThreshold float64 `toml:"relevance_threshold,omitempty"`
	LexicalWeight      float64 `toml:"lexical_weight,omitempty"`
	VectorWeight       float64 `toml:"vector_weight,omitempty"`
	RerankWeight       float64 `toml:"rerank_weight,omitempty"`
	MaxRetries         int     `toml:"max_retries,omitempty"`
	WallClockBudget    string  `toml:"wall_clock_budget,omitempty"`
}

// Load reads the configuration from configDir, creating the directory
// if needed. If configDir is empty, defaults to ~/.mailsleuth. A missing
// config file is not an error; it means all defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".mailsleuth")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	cfg := &Config{path: filepath.Join(configDir, "config.toml")}
	data, err := os.ReadFile(cfg.path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration back to disk.
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Apply overlays the configured run settings onto base, leaving
// unconfigured fields untouched.
func (c *Config) Apply(base domain.RunConfig) domain.RunConfig {
	r := c.Run
	if r.MaxIterations > 0 {
		base.MaxIterations = r.MaxIterations
	}
	if r.EnableRerank != nil {
		base.EnableRerank = *r.EnableRerank
	}
	if r.ChunkSize > 0 {
		base.ChunkSize = r.ChunkSize
	}
	if r.ChunkOverlap > 0 {
		base.ChunkOverlap = r.ChunkOverlap
	}
	if r.LexicalTopK > 0 {
		base.LexicalTopK = r.LexicalTopK
	}
	if r.VectorTopK > 0 {
		base.VectorTopK = r.VectorTopK
	}
	if r.SelectionTopN > 0 {
		base.SelectionTopN = r.SelectionTopN
	}
	if r.MaxNewTerms > 0 {
		base.MaxNewTerms = r.MaxNewTerms
	}
	if r.MinNoveltyGain > 0 {
		base.MinNoveltyGain = r.MinNoveltyGain
	}
	if r.MinPrecision > 0 {
		base.MinPrecision = r.MinPrecision
	}
	if r.RelevanceThreshold > 0 {
		base.RelevanceThreshold = r.RelevanceThreshold
	}
	if r.LexicalWeight > 0 || r.VectorWeight > 0 || r.RerankWeight > 0 {
		base.Weights = domain.RankWeights{
			Lexical: r.LexicalWeight,
			Vector:  r.VectorWeight,
			Rerank:  r.RerankWeight,
		}
	}
	if r.MaxRetries > 0 {
		base.MaxRetries = r.MaxRetries
	}
	if r.WallClockBudget != "" {
		if d, err := time.ParseDuration(r.WallClockBudget); err == nil && d > 0 {
			base.WallClockBudget = d
		}
	}
	return base
}
