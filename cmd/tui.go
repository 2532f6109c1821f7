package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ojtools/ojsync/internal/shared"
	"github.com/ojtools/ojsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for sync runs.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/ojsync-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	destinations := make([]string, 0, len(r.bindings))
	for _, binding := range r.bindings {
		destinations = append(destinations, binding.Destination.Name())
	}

	engine := r.buildEngine(store)
	model := ui.NewModel(ctx, engine, store, destinations)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
