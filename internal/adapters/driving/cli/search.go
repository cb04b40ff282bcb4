package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

var (
	searchPrincipal string
	searchLimit     int
	searchMinScore  float64
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed chunks",
	Long: `Performs a semantic similarity search over indexed chunks.
Only chunks from files the given principal may access are considered;
a principal with no access gets an empty result.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchPrincipal, "principal", "p", "", "principal to search as (required)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "similarity floor, 0 uses the configured default")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	_ = searchCmd.MarkFlagRequired("principal")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	query := domain.SearchQuery{
		Text:        args[0],
		PrincipalID: searchPrincipal,
		K:           searchLimit,
		MinScore:    searchMinScore,
	}

	results, err := searchService.Search(context.Background(), query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, result := range results {
		snippet := result.Chunk.Text
		if len(snippet) > 120 {
			snippet = snippet[:117] + "..."
		}
		cmd.Printf("[%d] %s #%d (%.3f)\n", i+1, result.Filename, result.Chunk.Index, result.Score)
		cmd.Printf("    %s\n", snippet)
	}
	return nil
}
