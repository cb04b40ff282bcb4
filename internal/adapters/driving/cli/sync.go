package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync [source-id]",
	Short: "Reconcile sources with their remote corpora",
	Long: `Pulls pending changes from configured sources and applies them to
the index. If a source ID is provided, only that source is reconciled.
Otherwise, all sources are reconciled.`,
	RunE: runSync,
}

var resyncCmd = &cobra.Command{
	Use:   "resync <source-id>",
	Short: "Re-ingest a source's entire corpus",
	Long: `Resets the source's cursor and walks the whole corpus again.
Unchanged files are detected by content version and skipped, so a
resync is safe to run at any time.`,
	Args: cobra.ExactArgs(1),
	RunE: runResync,
}

var pauseCmd = &cobra.Command{
	Use:   "pause <source-id>",
	Short: "Suspend reconciliation for a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reconciler == nil {
			return errors.New("reconciler not configured")
		}
		if err := reconciler.Pause(context.Background(), args[0]); err != nil {
			return err
		}
		cmd.Printf("Source %s paused.\n", args[0])
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <source-id>",
	Short: "Re-enable reconciliation for a paused source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reconciler == nil {
			return errors.New("reconciler not configured")
		}
		if err := reconciler.Resume(context.Background(), args[0]); err != nil {
			return err
		}
		cmd.Printf("Source %s resumed.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(resyncCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errors.New("reconciler not configured")
	}

	ctx := context.Background()

	if len(args) > 0 {
		sourceID := args[0]
		cmd.Printf("Reconciling source: %s...\n", sourceID)

		report, err := syncWithProgress(ctx, cmd, sourceID, false)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		printReport(cmd, report)
		return nil
	}

	cmd.Println("Reconciling all sources...")
	if err := reconciler.ReconcileAll(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	cmd.Println("All sources reconciled.")
	return nil
}

func runResync(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errors.New("reconciler not configured")
	}

	sourceID := args[0]
	cmd.Printf("Re-ingesting source: %s...\n", sourceID)

	report, err := syncWithProgress(context.Background(), cmd, sourceID, true)
	if err != nil {
		return fmt.Errorf("resync failed: %w", err)
	}

	printReport(cmd, report)
	return nil
}

type syncResult struct {
	report *domain.SyncReport
	err    error
}

// syncWithProgress runs a reconciliation while displaying progress updates.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	sourceID string,
	full bool,
) (*domain.SyncReport, error) {
	resCh := make(chan syncResult, 1)
	go func() {
		var res syncResult
		if full {
			res.report, res.err = reconciler.Resync(ctx, sourceID)
		} else {
			res.report, res.err = reconciler.Reconcile(ctx, sourceID)
		}
		resCh <- res
	}()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case res := <-resCh:
			return res.report, res.err
		case <-ticker.C:
			// Check progress (ignore status error - best effort)
			status, statusErr := reconciler.Status(ctx, sourceID)
			if statusErr == nil && status != nil && status.FilesProcessed > lastCount {
				cmd.Printf("\rProcessing... %d files", status.FilesProcessed)
				lastCount = status.FilesProcessed
			}
		}
	}
}

func printReport(cmd *cobra.Command, report *domain.SyncReport) {
	if report == nil {
		return
	}

	cmd.Printf("\rProcessed %d files, %d chunks in %s\n",
		report.FilesProcessed, report.ChunksCreated, report.Duration.Round(time.Millisecond))
	if report.FilesDeleted > 0 {
		cmd.Printf("Removed %d files.\n", report.FilesDeleted)
	}
	if report.FilesFailed > 0 {
		cmd.Printf("%d files failed; first error: %v\n", report.FilesFailed, report.FirstError)
	}
}
