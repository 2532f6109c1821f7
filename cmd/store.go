package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ojtools/ojsync/internal/formatter"
	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// StoreLs lists recorded submissions with optional judge/status filters.
func (r *Runner) StoreLs(ctx context.Context, cmd *cli.Command) error {
	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{}
	if judge := cmd.String("judge"); judge != "" {
		criteria["judge"] = judge
	}
	if status := cmd.String("status"); status != "" {
		switch status {
		case "accepted":
			criteria["status"] = string(models.StatusAccepted)
		case "other":
			criteria["status"] = string(models.StatusOther)
		default:
			return fmt.Errorf("%w: status must be 'accepted' or 'other'", shared.ErrInvalidFlag)
		}
	}

	subs, err := store.Submissions(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(subs, cmd.Bool("pretty"))
	}

	layout := r.config.SubmitTimeFormat(r.config.Trello.SubmitTimeFormat)
	r.writePlain("Recorded submissions: %d\n\n", len(subs))
	for _, sub := range subs {
		r.writePlain("  %-10s %-40s %s (%s)\n",
			sub.Judge,
			formatter.CardName(sub),
			formatter.FormatSubmitTime(sub.SubmitTime, layout),
			sub.Language,
		)
	}

	return nil
}

// StorePending lists submissions awaiting upload per destination.
func (r *Runner) StorePending(ctx context.Context, cmd *cli.Command) error {
	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	destinations := []string{}
	if dest := cmd.String("dest"); dest != "" {
		destinations = append(destinations, dest)
	} else {
		for _, binding := range r.bindings {
			destinations = append(destinations, binding.Destination.Name())
		}
	}
	if len(destinations) == 0 {
		return fmt.Errorf("%w: no destinations configured, pass --dest", shared.ErrInvalidArgument)
	}

	pendingByDest := map[string][]models.Submission{}
	for _, destination := range destinations {
		pending, err := store.PendingForDestination(destination)
		if err != nil {
			return err
		}
		pendingByDest[destination] = pending
	}

	if cmd.Bool("json") {
		return r.writeJSON(pendingByDest, true)
	}

	for _, destination := range destinations {
		pending := pendingByDest[destination]
		r.writePlain("Pending for %s: %d\n", destination, len(pending))
		for _, sub := range pending {
			r.writePlain("  %s\n", formatter.CardName(sub))
		}
		r.writePlain("\n")
	}

	return nil
}

// StoreExport writes recorded submissions to a file in the chosen format.
func (r *Runner) StoreExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	outputPath := cmd.String("output")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	subs, err := store.Submissions(nil)
	if err != nil {
		return err
	}

	var data []byte
	switch strings.ToLower(format) {
	case "csv":
		data, err = formatter.ExportToCSV(subs)
	case "markdown", "md":
		data, err = formatter.ExportToMarkdown(subs)
	case "json":
		data, err = formatter.ExportToJSON(subs)
	default:
		return fmt.Errorf("%w: format must be json, csv, or markdown", shared.ErrInvalidFlag)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if outputPath == "" {
		outputPath = fmt.Sprintf("ojsync_export_%d.%s", time.Now().Unix(), exportExtension(format))
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	r.logger.Info("export written", "path", outputPath, "submissions", len(subs))
	r.writePlain("✓ Exported %d submissions to %s\n", len(subs), outputPath)
	return nil
}

func exportExtension(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return "csv"
	case "markdown", "md":
		return "md"
	default:
		return "json"
	}
}

// StoreReset clears the record store after confirmation.
func (r *Runner) StoreReset(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("force") {
		r.writePlain("This clears all recorded submissions, uploads, watermarks, and logins.\n")
		r.writePlain("The next sync re-fetches everything and may create duplicate cards.\n")
		r.writePlain("Re-run with --force to proceed.\n")
		return nil
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Reset(); err != nil {
		return err
	}

	r.logger.Info("record store reset")
	r.writePlain("✓ Record store cleared\n")
	return nil
}
