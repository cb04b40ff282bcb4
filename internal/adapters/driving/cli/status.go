package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driving"
)

var statusCmd = &cobra.Command{
	Use:   "status [source-id]",
	Short: "Show reconciliation status",
	Long: `Shows sync health, cursor progress and counters for one source,
or for every registered source when no ID is given.`,
	RunE: runStatus,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <source-id>",
	Short: "Check the index against the remote corpus",
	Long: `Compares the remote corpus listing against indexed documents and
reports files missing from the index or orphaned in it. Read-only
unless --prune is given; run sync to repair missing files.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var verifyPrune bool

func init() {
	verifyCmd.Flags().BoolVar(&verifyPrune, "prune", false,
		"delete orphaned documents from the index")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errors.New("reconciler not configured")
	}

	ctx := context.Background()

	if len(args) > 0 {
		status, err := reconciler.Status(ctx, args[0])
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		printStatus(cmd, status)
		return nil
	}

	if sourceStore == nil {
		return errors.New("source store not configured")
	}

	sources, err := sourceStore.List(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		cmd.Println("No sources registered.")
		return nil
	}

	for _, source := range sources {
		status, err := reconciler.Status(ctx, source.ID)
		if err != nil {
			cmd.Printf("%s: status unavailable: %v\n", source.ID, err)
			continue
		}
		printStatus(cmd, status)
	}
	return nil
}

func printStatus(cmd *cobra.Command, status *driving.SyncStatus) {
	state := string(status.Status)
	if status.Running {
		state = "running"
	}

	cmd.Printf("%s: %s\n", status.SourceID, state)
	cmd.Printf("  files: %d  chunks: %d  errors: %d\n",
		status.FilesProcessed, status.ChunksCreated, status.ErrorCount)
	if status.LastError != "" {
		cmd.Printf("  last error: %s\n", status.LastError)
	}
	if !status.LastSync.IsZero() {
		cmd.Printf("  last sync: %s\n", status.LastSync.Format("2006-01-02 15:04:05"))
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errors.New("reconciler not configured")
	}

	report, err := reconciler.VerifyIntegrity(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	cmd.Printf("%s: %d remote files, %d indexed\n",
		report.SourceID, report.RemoteFiles, report.IndexedFiles)

	if len(report.Missing) == 0 && len(report.Orphaned) == 0 {
		cmd.Println("Index is consistent with the remote corpus.")
		return nil
	}

	for _, id := range report.Missing {
		cmd.Printf("  missing from index: %s\n", id)
	}
	for _, id := range report.Orphaned {
		cmd.Printf("  orphaned in index: %s\n", id)
	}

	if verifyPrune && len(report.Orphaned) > 0 {
		pruned, err := reconciler.PruneOrphans(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}
		cmd.Printf("Pruned %d orphaned documents.\n", pruned)
	}
	return nil
}
