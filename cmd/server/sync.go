package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jonasrichard/mediamosaic/internal/models"
	"github.com/jonasrichard/mediamosaic/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Build the gallery of one directory and exit",
	Long: `Rebuild the composites and bundles.json of a directory below the root.
The path is relative to the root; the root itself is synced when omitted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

// outcome captures the final event of a run.
type outcome struct {
	event *models.SyncEvent
}

func (o *outcome) Publish(event models.SyncEvent) {
	if event.Type == models.EventSyncDone || event.Type == models.EventSyncFailed {
		o.event = &event
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	rel := ""
	if len(args) == 1 {
		rel = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := &outcome{}
	queue := syncer.NewQueue(1)
	coord := syncer.NewCoordinator(a.sandbox, queue, a.recorder(), result, a.logger)
	worker := syncer.NewWorker(queue, a.pipeline, a.recorder(), result, a.logger)

	run, err := coord.Sync(ctx, rel)
	if err != nil {
		return err
	}
	queue.Close()

	if err := worker.Run(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	if result.event == nil {
		return fmt.Errorf("sync %s finished without a result", run.ID)
	}
	if result.event.Type == models.EventSyncFailed {
		return fmt.Errorf("sync of /%s failed: %s", run.Directory, result.event.Error)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "synced /%s: %s in %s (run %s, took %s)\n",
		run.Directory,
		plural(result.event.ImageCount, "image"),
		plural(result.event.BundleCount, "bundle"),
		run.ID,
		time.Since(run.QueuedAt).Round(time.Millisecond))
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), noun)
}
