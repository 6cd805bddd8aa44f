package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/dshills/critic/internal/gitctx"
	"github.com/dshills/critic/internal/projctx"
	"github.com/dshills/critic/internal/providers"
	"github.com/dshills/critic/internal/review"
)

const appName = "critic"

// Config represents the critic configuration.
type Config struct {
	Model               string        `json:"model"`
	Format              string        `json:"format"`
	ContextLines        int           `json:"contextLines"`
	CommitLimit         int           `json:"commitLimit"`
	IgnoreDirs          []string      `json:"ignoreDirs"`
	OverviewFiles       []string      `json:"overviewFiles"`
	Include             []string      `json:"include,omitempty"`
	Exclude             []string      `json:"exclude,omitempty"`
	MaxDiffBytes        int           `json:"maxDiffBytes"`
	MaxFileBytes        int64         `json:"maxFileBytes"`
	MaxTreeEntries      int           `json:"maxTreeEntries"`
	IncludeFileContents bool          `json:"includeFileContents"`
	TimeoutSeconds      int           `json:"timeoutSeconds"`
	MaxConcurrency      int           `json:"maxConcurrency"`
	Prompts             []string      `json:"prompts,omitempty"`
	Privacy             PrivacyConfig `json:"privacy"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `json:"redactSecrets"`
	RedactPaths   []string `json:"redactPaths,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Model:               providers.DefaultModel,
		Format:              "text",
		ContextLines:        gitctx.DefaultContextLines,
		CommitLimit:         review.DefaultCommitLimit,
		IgnoreDirs:          projctx.DefaultIgnoreDirs(),
		OverviewFiles:       append([]string(nil), projctx.DefaultOverviewFiles...),
		MaxDiffBytes:        500000,
		MaxFileBytes:        200000,
		MaxTreeEntries:      2000,
		IncludeFileContents: true,
		TimeoutSeconds:      120,
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for critic.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		return filepath.Join(home, ".config", appName), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile decodes the config file over the defaults, so keys absent from
// the file keep their default values. A missing file yields Default().
func LoadFile() (Config, error) {
	cfg := Default()
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags; keys use the same names as SetField.
func Load(overrides map[string]string) (Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	for key, value := range overrides {
		if err := SetField(&cfg, key, value); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKeys maps environment variables onto SetField keys.
var envKeys = []struct{ env, key string }{
	{"CRITIC_MODEL", "model"},
	{"CRITIC_FORMAT", "format"},
	{"CRITIC_CONTEXT_LINES", "contextLines"},
	{"CRITIC_COMMIT_LIMIT", "commitLimit"},
	{"CRITIC_IGNORE_DIRS", "ignoreDirs"},
	{"CRITIC_INCLUDE", "include"},
	{"CRITIC_EXCLUDE", "exclude"},
	{"CRITIC_MAX_FILE_BYTES", "maxFileBytes"},
	{"CRITIC_TIMEOUT_SECONDS", "timeoutSeconds"},
	{"CRITIC_MAX_CONCURRENCY", "maxConcurrency"},
	{"CRITIC_REDACT_SECRETS", "privacy.redactSecrets"},
}

func mergeEnv(cfg *Config) error {
	for _, e := range envKeys {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, e.key, v); err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
	}
	return nil
}

// SetField sets a single config field by key name. List values are comma
// separated. Returns error if key is unknown or the value does not parse.
func SetField(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "model":
		cfg.Model = value
	case "format":
		cfg.Format = value
	case "contextLines":
		cfg.ContextLines, err = parseInt(key, value)
	case "commitLimit":
		cfg.CommitLimit, err = parseInt(key, value)
	case "ignoreDirs":
		cfg.IgnoreDirs = splitList(value)
	case "overviewFiles":
		cfg.OverviewFiles = splitList(value)
	case "include":
		cfg.Include = splitList(value)
	case "exclude":
		cfg.Exclude = splitList(value)
	case "maxDiffBytes":
		cfg.MaxDiffBytes, err = parseInt(key, value)
	case "maxFileBytes":
		var n int
		n, err = parseInt(key, value)
		cfg.MaxFileBytes = int64(n)
	case "maxTreeEntries":
		cfg.MaxTreeEntries, err = parseInt(key, value)
	case "includeFileContents":
		cfg.IncludeFileContents, err = parseBool(key, value)
	case "timeoutSeconds":
		cfg.TimeoutSeconds, err = parseInt(key, value)
	case "maxConcurrency":
		cfg.MaxConcurrency, err = parseInt(key, value)
	case "prompts":
		cfg.Prompts = splitList(value)
	case "privacy.redactSecrets":
		cfg.Privacy.RedactSecrets, err = parseBool(key, value)
	case "privacy.redactPaths":
		cfg.Privacy.RedactPaths = splitList(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return err
}

// Validate rejects values no command can run with.
func (c Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", c.Format)
	}
	if c.ContextLines < 0 {
		return fmt.Errorf("contextLines must not be negative")
	}
	if c.CommitLimit < 0 {
		return fmt.Errorf("commitLimit must not be negative")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeoutSeconds must not be negative")
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("maxConcurrency must not be negative")
	}
	return nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s must be true or false: %w", key, err)
	}
	return b, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
