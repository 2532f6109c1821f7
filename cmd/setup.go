package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ojtools/ojsync/internal/server"
	"github.com/ojtools/ojsync/internal/shared"
	"github.com/urfave/cli/v3"
)

const tokenServerAddr = "localhost:3000"

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// SetupTrello runs the browser authorization flow and caches the granted
// token in the record store's logins table.
func (r *Runner) SetupTrello(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfigFlag(cmd); err != nil {
		return err
	}

	if r.config.Credentials.Trello.APIKey == "" {
		return fmt.Errorf("%w: credentials.trello.api_key must be set in config.toml", shared.ErrMissingCredentials)
	}

	token, err := r.captureToken()
	if err != nil {
		return err
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.SaveToken("trello", token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token saved to %s\n\n", r.config.Database.Path)
	r.writePlain("You can now use: ojsync sync run\n")

	return nil
}

// captureToken runs the browser token flow behind a local HTTP server.
func (r *Runner) captureToken() (string, error) {
	state := shared.GenerateID()

	authURL := server.AuthorizeURL(r.config.Credentials.Trello.APIKey, "http://"+tokenServerAddr+"/callback")
	tokenHandler := server.NewTokenHandler(state)
	router := server.NewBasicRouter()
	router.Handler(tokenHandler)

	httpServer := &http.Server{
		Addr:    tokenServerAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting token capture server at %v", tokenServerAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Trello authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.TokenResult

	select {
	case result = <-tokenHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return "", fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return "", fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return "", fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == "" {
		return "", fmt.Errorf("no token received")
	}

	return result.Token, nil
}
