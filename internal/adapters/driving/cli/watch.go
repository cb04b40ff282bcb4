package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-indexd/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously reconcile sources and refresh the access snapshot",
	Long: `Runs until interrupted. Every interval all registered sources are
reconciled, and the access snapshot is rebuilt on its own schedule or
sooner when a sync touches sharing grants.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Minute,
		"delay between reconciliation passes")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if reconciler == nil || materializer == nil {
		return errors.New("services not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Watching sources every %s, rebuilding access snapshot every %s. Ctrl-C to stop.\n",
		watchInterval, rebuildInterval)

	watchLoop(ctx, watchInterval)
	cmd.Println("Stopped.")
	return nil
}

// watchLoop alternates reconciliation passes with the rebuild scheduler
// until ctx is cancelled.
func watchLoop(ctx context.Context, interval time.Duration) {
	go materializer.Run(ctx, rebuildInterval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := reconciler.ReconcileAll(ctx); err != nil {
			logger.Error("Reconciliation pass failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
