package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cerrors "github.com/coraxsearch/corax/internal/errors"
	"github.com/coraxsearch/corax/internal/expand"
	"github.com/coraxsearch/corax/internal/index"
	"github.com/coraxsearch/corax/internal/matching"
	"github.com/coraxsearch/corax/internal/pipeline"
	"github.com/coraxsearch/corax/internal/query"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit        int
	format       string // "text", "json"
	expandQuery  bool
	model        string
	fbDocs       int
	fbTerms      int
	noSecondPass bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Search the indexed documents with BM25 ranking.

With --expand, the top first-pass documents are used as pseudo
relevance feedback: the highest scoring terms from them are merged
into the query and matching runs a second time.

Examples:
  corax search "information retrieval"
  corax search "query expansion" --expand
  corax search "ranking" --expand --model KL --fb-docs 5 --fb-terms 20`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.expandQuery, "expand", false, "Enable pseudo-relevance-feedback query expansion")
	cmd.Flags().StringVar(&opts.model, "model", "", "Expansion model (Bo1, Bo2, KL)")
	cmd.Flags().IntVar(&opts.fbDocs, "fb-docs", -1, "Feedback documents (overrides config)")
	cmd.Flags().IntVar(&opts.fbTerms, "fb-terms", -1, "Expansion terms, 0 for conservative expansion (overrides config)")
	cmd.Flags().BoolVar(&opts.noSecondPass, "no-second-pass", false, "Expand the query but skip the second matching pass")

	return cmd
}

// searchResult is one row of search output.
type searchResult struct {
	Rank  int     `json:"rank"`
	DocNo string  `json:"docno"`
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

func runSearch(cmd *cobra.Command, text string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := index.Open(ctx, filepath.Join(cfg.Index.Dir, index.DatabaseName))
	if err != nil {
		return fmt.Errorf("no index found at %s, run 'corax index' first: %w", cfg.Index.Dir, err)
	}
	defer store.Close()
	idx := store.Binding()

	stopWords := cfg.Index.StopWords
	if stopWords == nil {
		stopWords = index.DefaultStopWords
	}
	tokenizer := index.NewTokenizer(cfg.Index.MinTokenLength, stopWords)
	terms := tokenizer.Tokenize(text)
	if len(terms) == 0 {
		return fmt.Errorf("query %q has no indexable terms", text)
	}

	matcher := matching.NewMatcher(
		matching.BM25{K1: cfg.Search.K1, B: cfg.Search.B},
		cfg.Search.MaxResults,
	)
	mgr := pipeline.NewLocal(idx).Append(matching.StageName, matcher)
	if opts.expandQuery {
		if idx.Direct == nil {
			return cerrors.StructuralError(
				"index has no direct index; rebuild without --no-direct to enable query expansion")
		}
		mgr.Append(expand.StageName, expand.New(cfg.Expansion))
	}

	rq := pipeline.NewRequest("cli", query.FromStrings(terms))
	if opts.model != "" {
		rq.SetControl(expand.CtrlModel, opts.model)
	}
	if opts.fbDocs >= 0 {
		rq.SetControl(expand.CtrlFeedbackDocs, strconv.Itoa(opts.fbDocs))
	}
	if opts.fbTerms >= 0 {
		rq.SetControl(expand.CtrlFeedbackTerms, strconv.Itoa(opts.fbTerms))
	}
	if opts.noSecondPass {
		rq.SetControl(expand.CtrlSkipSecondPass, "true")
	}

	if err := mgr.Run(ctx, rq); err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]searchResult, 0, opts.limit)
	for i, res := range rq.Results.Results {
		if i >= opts.limit {
			break
		}
		meta, err := idx.Meta.Document(res.DocID)
		if err != nil {
			return err
		}
		results = append(results, searchResult{
			Rank:  i + 1,
			DocNo: meta.DocNo,
			Path:  meta.Path,
			Score: res.Score,
		})
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if expanded := rq.ControlOr(expand.CtrlExpandedQuery, ""); expanded != "" {
		fmt.Fprintf(out, "Expanded query: %s\n\n", expanded)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(out, "%2d. %-40s %.4f  %s\n", r.Rank, r.DocNo, r.Score, r.Path)
	}
	return nil
}
