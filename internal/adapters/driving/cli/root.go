// Package cli implements the command-line interface. Commands are thin
// wrappers over the driving ports; services are injected at startup via
// Configure.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-indexd/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Injected services. Nil until Configure is called; commands guard
// against missing services so tests can run subsets.
var (
	reconciler      driving.Reconciler
	searchService   driving.SearchService
	materializer    driving.Materializer
	sourceStore     driven.SourceStore
	syncStore       driven.SyncStateStore
	configStore     driven.ConfigStore
	rebuildInterval = 5 * time.Minute
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sercha-indexd",
	Short: "Permission-aware retrieval index",
	Long: `sercha-indexd maintains a permission-aware retrieval index.
It mirrors documents and sharing grants from configured sources,
chunks and embeds their content, and answers permission-filtered
similarity queries.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Services carries the wired application services into the CLI.
type Services struct {
	Reconciler      driving.Reconciler
	Search          driving.SearchService
	Materializer    driving.Materializer
	Sources         driven.SourceStore
	SyncStates      driven.SyncStateStore
	Config          driven.ConfigStore
	RebuildInterval time.Duration
	Version         string
}

// Configure injects services into the command tree.
func Configure(s Services) {
	reconciler = s.Reconciler
	searchService = s.Search
	materializer = s.Materializer
	sourceStore = s.Sources
	syncStore = s.SyncStates
	configStore = s.Config
	if s.RebuildInterval > 0 {
		rebuildInterval = s.RebuildInterval
	}
	if s.Version != "" {
		version = s.Version
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
