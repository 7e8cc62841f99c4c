// Package config loads the green service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/covercash2/green/pkg/types"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "config.yaml"

// Config is the top-level service configuration.
type Config struct {
	CAPath       string       `yaml:"ca_path"`    // CA certificate served at /api/ca
	Port         int          `yaml:"port"`       // port to bind the server to
	LogLevel     string       `yaml:"log_level"`  // debug, info, warn, error
	LogFormat    string       `yaml:"log_format"` // json, console
	AssetsPath   string       `yaml:"assets_path"`
	AssetsIgnore []string     `yaml:"assets_ignore"` // gitignore-style patterns hidden from /assets
	Routes       types.Routes `yaml:"routes"`

	Ultron UltronConfig `yaml:"ultron"`
	GitHub GitHubConfig `yaml:"github"`
	Deploy DeployConfig `yaml:"deploy"`
	Store  StoreConfig  `yaml:"store"`
}

// UltronConfig configures the chat relay.
type UltronConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
	User    string `yaml:"user"`
	Timeout string `yaml:"timeout"`
}

// GitHubConfig configures webhook validation and API access.
type GitHubConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
	Token         string `yaml:"token"` // optional; raises API rate limits
}

// DeployConfig selects which pushes update which flake input.
type DeployConfig struct {
	Repo        string `yaml:"repo"`   // owner/name of the tracked repository
	Branch      string `yaml:"branch"` // branch whose pushes are deployed
	FlakePath   string `yaml:"flake_path"`
	Input       string `yaml:"input"`  // flake input pinned to the tracked repository
	Commit      bool   `yaml:"commit"` // commit the updated flake with git
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Enabled reports whether pushes should update the flake.
func (d DeployConfig) Enabled() bool {
	return d.Repo != "" && d.FlakePath != ""
}

// StoreConfig configures the deployment history store.
type StoreConfig struct {
	// Path is a SQLite file, ":memory:" or a postgres:// URL.
	Path string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:       8080,
		LogLevel:   "info",
		LogFormat:  "json",
		AssetsPath: "assets",
		Routes:     types.Routes{},
		Ultron: UltronConfig{
			URL:     "https://ultron.green.chrash.net",
			User:    "green",
			Timeout: "10s",
		},
		Deploy: DeployConfig{
			Branch:      "main",
			FlakePath:   "~/.local/share/chezmoi/nixos/flake.nix",
			Input:       "ultron",
			AuthorName:  "green",
			AuthorEmail: "green@localhost",
		},
		Store: StoreConfig{
			Path: ":memory:",
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults and
// applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML bytes on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if cfg.Routes == nil {
		cfg.Routes = types.Routes{}
	}

	var err error
	if cfg.CAPath, err = ExpandHome(cfg.CAPath); err != nil {
		return nil, err
	}
	if cfg.Deploy.FlakePath, err = ExpandHome(cfg.Deploy.FlakePath); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("GREEN_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if port := os.Getenv("GREEN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}
	if secret := os.Getenv("GREEN_WEBHOOK_SECRET"); secret != "" {
		c.GitHub.WebhookSecret = secret
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		c.GitHub.Token = token
	}
	if path := os.Getenv("GREEN_STORE"); path != "" {
		c.Store.Path = path
	}
}

// Validate checks the settings required to run the server.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.CAPath == "" {
		return fmt.Errorf("ca_path is required")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log_format: %s (valid: json, console)", c.LogFormat)
	}
	if c.Deploy.Repo != "" && strings.Count(c.Deploy.Repo, "/") != 1 {
		return fmt.Errorf("invalid deploy.repo %q, expected owner/repo", c.Deploy.Repo)
	}
	if _, err := c.UltronTimeout(); err != nil {
		return err
	}
	return nil
}

// Address returns the listen address for the server.
func (c *Config) Address() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// UltronTimeout returns the parsed chat relay request timeout.
func (c *Config) UltronTimeout() (time.Duration, error) {
	if c.Ultron.Timeout == "" {
		return 10 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Ultron.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid ultron.timeout %q: %w", c.Ultron.Timeout, err)
	}
	return d, nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
