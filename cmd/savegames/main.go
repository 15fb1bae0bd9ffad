// Package main is the entry point for the savegames application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term" //nolint:depguard // Required for TTY detection

	"github.com/joe/savegames/internal/config"
	"github.com/joe/savegames/internal/logging"
	"github.com/joe/savegames/internal/metrics"
)

func main() {
	args := config.ParseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, args)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args *config.Args) error {
	cfg, err := config.Resolve(args)
	if err != nil {
		return err
	}

	interactive := args.Watch != nil && !args.Watch.Plain && term.IsTerminal(int(os.Stdout.Fd()))

	// The terminal UI owns the screen, so logs go to a file.
	if interactive && cfg.Log.OutputPath == "" {
		cfg.Log.OutputPath = filepath.Join(os.TempDir(), "savegames.log")
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	defer func() { _ = logger.Sync() }()

	m := metrics.New()

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				logger.Error("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	app, err := newApp(cfg, logger, m)
	if err != nil {
		return err
	}

	switch {
	case args.Profiles != nil:
		return app.profiles(os.Stdout)
	case args.List != nil:
		return app.list(ctx, os.Stdout, args.List)
	case args.Transfer != nil:
		return app.transfer(ctx, os.Stdout, args.Transfer)
	case args.Delete != nil:
		return app.deleteSaves(ctx, os.Stdin, os.Stdout, args.Delete)
	case args.Screenshot != nil:
		return app.screenshot(ctx, os.Stdout, args.Screenshot)
	case args.Plugins != nil:
		return app.plugins(ctx, os.Stdin, os.Stdout, args.Plugins)
	case interactive:
		return app.browse(ctx)
	default:
		return app.watchPlain(ctx)
	}
}
