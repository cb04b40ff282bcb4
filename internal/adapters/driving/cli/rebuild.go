package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the permission snapshot",
	Long: `Recomputes the queryable access snapshot from currently effective
grants and swaps it in atomically. Normally this happens on a schedule;
run it manually after changing group definitions.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	if materializer == nil {
		return errors.New("materializer not configured")
	}

	entries, err := materializer.Rebuild(context.Background())
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	cmd.Printf("Access snapshot rebuilt: %d entries.\n", entries)
	return nil
}
