// Package cmd provides the CLI commands for corax.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/coraxsearch/corax/internal/config"
	"github.com/coraxsearch/corax/internal/logging"
	"github.com/coraxsearch/corax/pkg/version"
)

var (
	configPath string
	debugMode  bool
)

// NewRootCmd creates the root command for the corax CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corax",
		Short: "Document retrieval with pseudo-relevance-feedback query expansion",
		Long: `Corax indexes directories of text documents and retrieves them with
BM25 ranking and optional two-pass retrieval: the top documents of the
first pass feed a query expansion model (Bo1, Bo2, KL) whose best terms
are merged back into the query before a second matching pass.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("corax version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .corax/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logCfg := logging.DefaultConfig()
		if debugMode {
			logCfg = logging.DebugConfig()
		}
		logging.SetupDefault(logCfg)
		return nil
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultDirName + "/config.yaml"
	}
	return config.Load(path)
}
