package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/ojtools/ojsync/internal/repositories"
	"github.com/ojtools/ojsync/internal/services"
	"github.com/ojtools/ojsync/internal/shared"
	"github.com/ojtools/ojsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		loadedConfig, err := shared.LoadConfig("config.toml")
		if err != nil {
			logger.Fatalf("failed to load config.toml: %v", err)
		}
		config = loadedConfig
	}

	sources, bindings := buildAdapters(config, logger)

	runner := NewRunner(RunnerOpts{
		Config:   config,
		Sources:  sources,
		Bindings: bindings,
		Logger:   logger,
	})

	app := &cli.Command{
		Name:     "ojsync",
		Usage:    "Sync accepted online judge submissions onto task boards",
		Version:  "0.5.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

// buildAdapters constructs the source and destination adapters named by
// the config's sources and handlers lists. A missing Trello token falls
// back to one cached by `setup trello`.
func buildAdapters(config *shared.Config, logger *log.Logger) ([]services.Source, []tasks.DestinationBinding) {
	var sources []services.Source
	for _, name := range config.Sources {
		if name == "leetcode" {
			sources = append(sources, services.NewLeetCodeSource(config.Credentials.LeetCode, logger))
		}
	}

	trelloAuth := config.Credentials.Trello
	if trelloAuth.Token == "" {
		if token, err := storedToken(config, "trello"); err == nil {
			trelloAuth.Token = token
		}
	}

	var bindings []tasks.DestinationBinding
	for _, name := range config.Handlers {
		if name == "trello" {
			dest := services.NewTrelloDestination(
				trelloAuth,
				config.Trello.TargetBoardName,
				config.SubmitTimeFormat(config.Trello.SubmitTimeFormat),
				logger,
			)
			bindings = append(bindings, tasks.DestinationBinding{
				Destination: dest,
				Container:   config.Trello.TargetListName,
			})
		}
	}

	return sources, bindings
}

// storedToken reads a cached token from the logins table without keeping
// the database open past startup.
func storedToken(config *shared.Config, service string) (string, error) {
	if _, err := os.Stat(config.Database.Path); err != nil {
		return "", err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var provider services.CredentialProvider = repositories.NewStore(db)
	return provider.Token(service)
}
