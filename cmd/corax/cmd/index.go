package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coraxsearch/corax/internal/index"
)

func newIndexCmd() *cobra.Command {
	var (
		noDirect bool
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory of text documents",
		Long: `Index a directory to enable retrieval over its contents.

Every .txt, .md, .text and .rst file under the path becomes one
document. The build produces an inverted index for matching and a
direct (document to term) index for query expansion.

Use --no-direct to skip the direct index; the resulting index cannot
serve query expansion.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if workers > 0 {
				cfg.Index.Workers = workers
			}

			stopWords := cfg.Index.StopWords
			if stopWords == nil {
				stopWords = index.DefaultStopWords
			}
			tokenizer := index.NewTokenizer(cfg.Index.MinTokenLength, stopWords)

			opts := []index.BuilderOption{index.WithWorkers(cfg.Index.Workers)}
			if noDirect {
				opts = append(opts, index.WithoutDirect())
			}
			builder := index.NewBuilder(tokenizer, opts...)

			start := time.Now()
			stats, err := builder.Build(ctx, root, cfg.Index.Dir)
			if err != nil {
				return fmt.Errorf("index build failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Indexed %d documents (%d unique terms, %d tokens) in %s\n",
				stats.Documents, stats.UniqueTerms, stats.Tokens,
				time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noDirect, "no-direct", false, "Skip the direct index (disables query expansion)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Tokenization workers (default from config)")

	return cmd
}
