// Package cli implements the mailsleuth command-line interface. The CLI
// is a thin driving adapter: it wires providers into the run service and
// renders events and results; all behaviour lives in the core.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/ai/local"
	configfile "github.com/custodia-labs/mailsleuth/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/export/jsonfile"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/grammar/gmail"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/index/bm25"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/index/vector"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/source/fixture"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driving"
	"github.com/custodia-labs/mailsleuth/internal/core/services"
	"github.com/custodia-labs/mailsleuth/internal/events"
	"github.com/custodia-labs/mailsleuth/internal/logger"
)

const version = "0.1.0"

var (
	verboseFlag   bool
	configDirFlag string
	dataDirFlag   string
	outputDirFlag string
	ephemeralFlag bool
)

var (
	appConfig  *configfile.Config
	runService driving.RunService
	runStore   driven.RunStore
	closeStore func() error
)

var rootCmd = &cobra.Command{
	Use:   "mailsleuth",
	Short: "Iterative email corpus investigation",
	Long: `Mailsleuth answers natural-language questions about an email corpus.
It plans searches, ranks the evidence with hybrid lexical and vector
scoring, expands its query vocabulary from what it finds, and produces
per-thread summaries whose every bullet carries a verifiable citation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verboseFlag)
		if cmd.Name() == "version" {
			return nil
		}
		return initServices()
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		if closeStore != nil {
			return closeStore()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "config directory (default ~/.mailsleuth)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default ~/.mailsleuth/data)")
	rootCmd.PersistentFlags().StringVarP(&outputDirFlag, "output-dir", "o", "", "directory for exported run artifacts")
	rootCmd.PersistentFlags().BoolVar(&ephemeralFlag, "ephemeral", false, "keep all state in memory, nothing on disk")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// initServices wires the provider stack into the run service. The
// message source is the built-in fixture corpus; a remote source
// adapter slots in here without further changes.
func initServices() error {
	cfg, err := configfile.Load(configDirFlag)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	appConfig = cfg

	dataDir := dataDirFlag
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	outputDir := outputDirFlag
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	var store driven.RunStore
	var cache driven.MessageCache
	if ephemeralFlag {
		store = memory.NewRunStore()
		cache = memory.NewMessageCache()
		closeStore = func() error { return nil }
	} else {
		db, err := sqlite.NewStore(dataDir)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		store = db.RunStore()
		cache = db.MessageCache()
		closeStore = db.Close
	}
	runStore = store

	embedder := local.NewEmbedder(local.DefaultDimensions)
	providers := services.Providers{
		Source:     fixture.New(),
		Embedder:   embedder,
		Reranker:   local.NewReranker(),
		Summariser: local.NewSummariser(),
		Exporter:   jsonfile.New(outputDir),
		Grammar:    gmail.New(),
		Store:      store,
		Cache:      cache,
		NewSearchEngine: func() driven.SearchEngine {
			return bm25.New()
		},
		NewVectorIndex: func(dimensions int) (driven.VectorIndex, error) {
			return vector.New(dimensions)
		},
	}
	runService = services.NewService(providers, events.NewBus())
	return nil
}
