package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/polyglot-overlay/internal/app"
	"github.com/tjfontaine/polyglot-overlay/internal/server"
	"github.com/tjfontaine/polyglot-overlay/internal/shortcut"
	"github.com/tjfontaine/polyglot-overlay/internal/telemetry"
)

const (
	serviceName = "polyglot-overlay"

	// serverTimeoutMargin lets the gateway timeout fire before the command
	// timeout so callers see a classified network error.
	serverTimeoutMargin = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the overlay daemon and its local command API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	cmd.Flags().String("addr", "", "Command API listen address (overrides server.addr)")
	cmd.Flags().Bool("system-clipboard", true, "Use the OS clipboard tools instead of an in-process clipboard")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer(telemetry.Options{
		ServiceName: serviceName,
		Enabled:     cfg.Telemetry.Enabled,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	systemClipboard, _ := cmd.Flags().GetBool("system-clipboard")
	c, err := newComponents(cfg, logger, componentOptions{
		systemClipboard: systemClipboard,
		withHistory:     true,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.registry.OnPress(func(shortcut.Accelerator) {
		c.app.Dispatch(ctx, app.EventShortcutPressed)
	})

	// Startup binding failures are logged inside Start and never abort.
	_ = c.shortcuts.Start(ctx)

	if err := c.settings.Watch(ctx, func() {
		if err := c.shortcuts.Sync(ctx); err != nil {
			logger.Warn("failed to apply shortcut from settings", slog.String("error", err.Error()))
		}
	}); err != nil {
		logger.Warn("settings watch disabled", slog.String("error", err.Error()))
	}

	srvOpts := []server.Option{server.WithTimeout(cfg.Gateway.Timeout + serverTimeoutMargin)}
	if cfg.Server.TokenPath != "" {
		token, err := server.LoadOrCreateToken(cfg.Server.TokenPath)
		if err != nil {
			return err
		}
		srvOpts = append(srvOpts, server.WithToken(token))
		logger.Info("command API token required", slog.String("token_path", cfg.Server.TokenPath))
	} else {
		logger.Warn("command API token disabled", slog.String("addr", cfg.Server.Addr))
	}
	srv := server.New(cfg.Server.Addr, c.app, logger, srvOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		err := c.app.Run(gctx)
		if err == nil {
			// exit chosen from the tray menu
			stop()
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	logger.Info("overlay daemon started",
		slog.String("addr", cfg.Server.Addr),
		slog.String("shortcut", c.app.GetShortcut()))

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("overlay daemon stopped")
	return nil
}
