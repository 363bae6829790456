// Package config loads daemon configuration from config.yaml and OVERLAY_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/polyglot-overlay/internal/shortcut"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "config.yaml"

const envPrefix = "OVERLAY_"

// AppDirName is the directory under the user config dir holding state.
const AppDirName = "polyglot-overlay"

type Config struct {
	// Path is the absolute path of the file Load was given, whether or not
	// it existed.
	Path string `koanf:"-"`

	Server    ServerConfig    `koanf:"server"`
	Gateway   GatewayConfig   `koanf:"gateway"`
	Shortcut  ShortcutConfig  `koanf:"shortcut"`
	Overlay   OverlayConfig   `koanf:"overlay"`
	Storage   StorageConfig   `koanf:"storage"`
	Autostart AutostartConfig `koanf:"autostart"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Addr      string `koanf:"addr"`
	TokenPath string `koanf:"token_path"` // "" disables the command API token
}

type GatewayConfig struct {
	BaseURL      string        `koanf:"base_url"`
	APIKey       string        `koanf:"api_key"` // Used only when a command omits its own key
	DefaultModel string        `koanf:"default_model"`
	Timeout      time.Duration `koanf:"timeout"`
	Referer      string        `koanf:"referer"` // Optional: OpenRouter HTTP-Referer attribution
	Title        string        `koanf:"title"`   // Optional: OpenRouter X-Title attribution
}

type ShortcutConfig struct {
	Default string `koanf:"default"`
}

type OverlayConfig struct {
	Width float64 `koanf:"width"`
}

type StorageConfig struct {
	SettingsPath string `koanf:"settings_path"`
	HistoryPath  string `koanf:"history_path"` // "" disables history
}

type AutostartConfig struct {
	Name  string   `koanf:"name"`
	Label string   `koanf:"label"`
	Args  []string `koanf:"args"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (a missing file is fine), applies environment overrides
// and fills defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// OVERLAY_GATEWAY__API_KEY -> gateway.api_key
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	stateDir := defaultStateDir()
	defaults := map[string]any{
		"server.addr":           "127.0.0.1:4319",
		"server.token_path":     filepath.Join(stateDir, "api-token"),
		"gateway.base_url":      "https://openrouter.ai/api/v1",
		"gateway.default_model": "openai/gpt-4o-mini",
		"gateway.timeout":       "60s",
		"shortcut.default":      shortcut.DefaultAccelerator,
		"overlay.width":         500,
		"storage.settings_path": filepath.Join(stateDir, "settings.json"),
		"storage.history_path":  filepath.Join(stateDir, "history.db"),
		"autostart.name":        "polyglot-overlay",
		"autostart.label":       "com.polyglot.overlay",
		"log.level":             "info",
		"log.format":            "json",
		"telemetry.enabled":     false,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Gateway.APIKey = substituteEnvVars(cfg.Gateway.APIKey)

	if abs, err := filepath.Abs(path); err == nil {
		cfg.Path = abs
	} else {
		cfg.Path = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := shortcut.Parse(c.Shortcut.Default); err != nil {
		return fmt.Errorf("shortcut.default: %w", err)
	}
	if c.Overlay.Width <= 0 {
		return fmt.Errorf("overlay.width must be positive, got %v", c.Overlay.Width)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive, got %s", c.Gateway.Timeout)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (l LogConfig) SlogLevel() slog.Level {
	lvl, _ := parseLevel(l.Level)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// ResolveAPIKey prefers an explicit key from the caller. A nil key falls
// back to gateway.api_key; an empty explicit key is kept.
func (c *Config) ResolveAPIKey(explicit *string) string {
	if explicit != nil {
		return *explicit
	}
	return c.Gateway.APIKey
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, AppDirName)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
