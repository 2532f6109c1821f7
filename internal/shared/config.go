package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Sources and Handlers list the judge and destination identifiers enabled
// for a run; credentials and per-destination targets live in their own
// sections.
type Config struct {
	Sources     []string          `toml:"sources"`
	Handlers    []string          `toml:"handlers"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Sync        SyncConfig        `toml:"sync"`
	Trello      TrelloConfig      `toml:"trello"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	LeetCode LeetCodeConfig `toml:"leetcode"`
	Trello   TrelloAuth     `toml:"trello"`
}

// LeetCodeConfig contains LeetCode login settings. Session, when set,
// takes precedence over username/password login.
type LeetCodeConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Session  string `toml:"session"`
}

// TrelloAuth contains the Trello API key and user token.
type TrelloAuth struct {
	APIKey string `toml:"api_key"`
	Token  string `toml:"token"`
}

// TrelloConfig names the board and list cards are created on.
type TrelloConfig struct {
	TargetBoardName  string `toml:"target_board_name"`
	TargetListName   string `toml:"target_list_name"`
	SubmitTimeFormat string `toml:"submit_time_format"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SyncConfig contains engine tuning and display settings.
type SyncConfig struct {
	RateLimit        float64 `toml:"rate_limit"`
	SubmitTimeFormat string  `toml:"submit_time_format"`
}

// LoadConfig reads and parses a TOML configuration file from the specified
// path, then overlays credential fields from the environment (a .env file
// beside the process is loaded first when present).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.overlayEnv()
	return &config, nil
}

// overlayEnv fills credential fields from OJSYNC_* environment variables,
// loading a .env file first if one exists. Environment values win over
// the TOML file so secrets can stay out of config.toml.
func (c *Config) overlayEnv() {
	godotenv.Load()

	for env, target := range map[string]*string{
		"OJSYNC_LEETCODE_USERNAME": &c.Credentials.LeetCode.Username,
		"OJSYNC_LEETCODE_PASSWORD": &c.Credentials.LeetCode.Password,
		"OJSYNC_LEETCODE_SESSION":  &c.Credentials.LeetCode.Session,
		"OJSYNC_TRELLO_KEY":        &c.Credentials.Trello.APIKey,
		"OJSYNC_TRELLO_TOKEN":      &c.Credentials.Trello.Token,
	} {
		if v := os.Getenv(env); v != "" {
			*target = v
		}
	}
}

// SubmitTimeFormat resolves the display layout for a handler: the
// per-handler override wins, then the sync-wide setting, then the
// embedded default.
func (c *Config) SubmitTimeFormat(handlerFormat string) string {
	if handlerFormat != "" {
		return handlerFormat
	}
	if c.Sync.SubmitTimeFormat != "" {
		return c.Sync.SubmitTimeFormat
	}
	return DefaultConfig().Sync.SubmitTimeFormat
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
