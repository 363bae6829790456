package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-overlay/internal/api/openrouter"
	"github.com/tjfontaine/polyglot-overlay/internal/app"
	"github.com/tjfontaine/polyglot-overlay/internal/assist"
	"github.com/tjfontaine/polyglot-overlay/internal/config"
	"github.com/tjfontaine/polyglot-overlay/internal/desktop/autostart"
	"github.com/tjfontaine/polyglot-overlay/internal/desktop/clipboard"
	"github.com/tjfontaine/polyglot-overlay/internal/desktop/memory"
	"github.com/tjfontaine/polyglot-overlay/internal/history"
	"github.com/tjfontaine/polyglot-overlay/internal/overlay"
	"github.com/tjfontaine/polyglot-overlay/internal/settings"
	"github.com/tjfontaine/polyglot-overlay/internal/shortcut"
	"github.com/tjfontaine/polyglot-overlay/internal/tokens"
)

// components holds the wired pieces for one invocation.
type components struct {
	cfg       *config.Config
	logger    *slog.Logger
	settings  *settings.Store
	registry  *memory.Registry
	shortcuts *shortcut.Manager
	surface   *memory.Surface
	history   *history.Store
	app       *app.App
}

type componentOptions struct {
	// systemClipboard selects the exec clipboard instead of the in-memory one
	systemClipboard bool
	// withHistory opens the SQLite history store
	withHistory bool
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func newComponents(cfg *config.Config, logger *slog.Logger, opts componentOptions) (*components, error) {
	rt := &components{cfg: cfg, logger: logger}

	rt.settings = settings.New(cfg.Storage.SettingsPath, logger)
	if err := rt.settings.Load(); err != nil {
		return nil, err
	}

	rt.registry = memory.NewRegistry(nil)
	rt.shortcuts = shortcut.NewManager(rt.registry, rt.settings,
		shortcut.WithDefault(cfg.Shortcut.Default),
		shortcut.WithLogger(logger))

	rt.surface = memory.NewSurface()
	controller := overlay.NewController(rt.surface, cfg.Overlay.Width, logger)

	var clip app.Clipboard = memory.NewClipboard()
	if opts.systemClipboard {
		c, err := clipboard.New()
		if err != nil {
			logger.Warn("system clipboard unavailable, using in-process clipboard",
				slog.String("error", err.Error()))
		} else {
			clip = c
		}
	}

	auto, err := autostart.New(autostart.Config{
		Name:  cfg.Autostart.Name,
		Label: cfg.Autostart.Label,
		Args:  autostartArgs(cfg),
	})
	if err != nil {
		return nil, err
	}

	client := openrouter.NewClient(
		openrouter.WithBaseURL(cfg.Gateway.BaseURL),
		openrouter.WithAttribution(cfg.Gateway.Referer, cfg.Gateway.Title),
		openrouter.WithHTTPClient(&http.Client{
			Timeout:   cfg.Gateway.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	)

	estimator := tokens.NewEstimator()
	assistOpts := []assist.Option{
		assist.WithTokenCounter(estimator),
		assist.WithLogger(logger),
	}

	var lister app.HistoryLister
	if opts.withHistory && cfg.Storage.HistoryPath != "" {
		store, err := openHistory(cfg.Storage.HistoryPath)
		if err != nil {
			logger.Warn("history disabled", slog.String("error", err.Error()))
		} else {
			rt.history = store
			lister = store
			assistOpts = append(assistOpts, assist.WithRecorder(store))
		}
	}

	rt.app = app.New(app.Deps{
		Overlay:      controller,
		Shortcuts:    rt.shortcuts,
		Clipboard:    clip,
		Autostart:    auto,
		Assistant:    assist.NewService(client, assistOpts...),
		History:      lister,
		Tokens:       estimator,
		Logger:       logger,
		DefaultModel: cfg.Gateway.DefaultModel,
		APIKey:       cfg.Gateway.APIKey,
	})

	return rt, nil
}

func (rt *components) Close() {
	if rt.history != nil {
		if err := rt.history.Close(); err != nil {
			rt.logger.Warn("failed to close history", slog.String("error", err.Error()))
		}
	}
}

func openHistory(path string) (*history.Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	return history.New(path)
}

// autostartArgs pins the config file by absolute path; a login item starts
// in the home directory, not where the config was loaded from.
func autostartArgs(cfg *config.Config) []string {
	if len(cfg.Autostart.Args) > 0 {
		return cfg.Autostart.Args
	}
	args := []string{"serve"}
	if cfg.Path != "" {
		args = append(args, "--config", cfg.Path)
	}
	return args
}
