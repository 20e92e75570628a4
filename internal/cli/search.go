package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crowdframe/internal/model"
	"github.com/ppiankov/crowdframe/internal/search"
)

var (
	searchProvider string
	searchOffset   int
	searchPageSize int
	searchTimeout  time.Duration
	searchNoCache  bool
	searchJSON     bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one page of a search query against the configured provider",
	Long: `Search queries the provider a task's search box would use, applies the
blocked domain filter and prints the decoded results.

Example:
  crowdframe search "sky is green"
  crowdframe search "vaccine trial" --provider pubmed --page-size 5
  crowdframe search "moon landing" --offset 10 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchProvider, "provider", "", "search provider (bing, brave, google, pubmed, fake)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "result offset")
	searchCmd.Flags().IntVar(&searchPageSize, "page-size", 0, "results per page (default from config)")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 30*time.Second, "request timeout")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "disable cache (force fresh query)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if searchNoCache {
		cfg.Cache.Enabled = false
	}

	svc, err := search.NewServiceFromConfig(cfg, model.SearchEngineSettings{
		Provider: searchProvider,
		PageSize: searchPageSize,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Provider: %s\n", svc.ProviderName())
		fmt.Fprintf(os.Stderr, "Query:    %s\n", query)
		fmt.Fprintf(os.Stderr, "Offset:   %d (page size %d)\n", searchOffset, svc.PageSize())
		fmt.Fprintln(os.Stderr)
	}

	results, err := svc.Search(ctx, query, searchOffset)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintf(os.Stderr, "✗ No results\n")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%3d. %s\n", searchOffset+i+1, r.Name)
		fmt.Printf("     %s\n", r.URL)
		if r.Snippet != "" {
			fmt.Printf("     %s\n", r.Snippet)
		}
		fmt.Println()
	}
	fmt.Fprintf(os.Stderr, "✓ %d results from %s\n", len(results), svc.ProviderName())
	return nil
}
