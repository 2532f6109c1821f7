package main

import (
	"context"

	"github.com/ojtools/ojsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun runs a full judge → board sync.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfigFlag(cmd); err != nil {
		return err
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("reset") {
		r.logger.Info("resetting record store before sync")
		if err := store.Reset(); err != nil {
			return err
		}
		r.writePlain("✓ Record store cleared, full resync follows\n\n")
	}

	r.logger.Info("starting sync", "sources", len(r.sources), "destinations", len(r.bindings))
	r.writePlain("Starting sync run...\n\n")

	// Create progress channel and goroutine to handle updates
	progressCh := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchSubmissions:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.StoreRecords:
				r.writePlain("💾 %s\n", update.Message)
			case tasks.ResolveContainer:
				r.writePlain("\n📋 %s\n", update.Message)
			case tasks.UploadCards:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	engine := r.buildEngine(store)
	result, err := engine.Run(ctx, progressCh)
	close(progressCh)

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete!")
	for _, src := range result.Sources {
		if src.Err != nil {
			r.writePlain("Source %s: skipped (%v)\n", src.Judge, src.Err)
			continue
		}
		r.writePlain("Source %s: %d fetched, %d new\n", src.Judge, src.Fetched, src.Stored)
	}
	for _, dest := range result.Destinations {
		if dest.Err != nil {
			r.writePlain("Destination %s: skipped (%v)\n", dest.Destination, dest.Err)
			continue
		}
		r.writePlain("Destination %s (%s): %d uploaded, %d failed\n", dest.Destination, dest.Container, dest.Uploaded, dest.Failed)
	}

	if result.TotalFailed() > 0 {
		r.writePlain("\n%d uploads failed and stay pending for the next run\n", result.TotalFailed())
	}

	return nil
}
