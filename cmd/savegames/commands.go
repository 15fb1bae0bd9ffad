package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term" //nolint:depguard // Required for TTY detection

	"github.com/joe/savegames/internal/config"
	"github.com/joe/savegames/internal/games"
	"github.com/joe/savegames/internal/metrics"
	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/syncengine"
	"github.com/joe/savegames/internal/tui"
	"github.com/joe/savegames/internal/tui/shared"
)

// Exported variables.
var (
	ErrAborted      = errors.New("aborted")
	ErrIncomplete   = errors.New("operation incomplete")
	ErrNoScreenshot = errors.New("save has no screenshot")
	ErrNotATerminal = errors.New("stdin is not a terminal; pass --yes to delete without confirmation")
)

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	resolver games.Resolver
}

func newApp(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*app, error) {
	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, fmt.Errorf("failed to locate the documents folder: %w", err)
	}

	return &app{cfg: cfg, logger: logger, metrics: m, resolver: resolver}, nil
}

// engineConfig returns the engine settings shared by every command. Commands
// run in the foreground, so the engine starts focused.
func (a *app) engineConfig() syncengine.Config {
	return syncengine.Config{
		Resolver:    a.resolver,
		Emitter:     &logEmitter{logger: a.logger},
		QuietPeriod: a.cfg.Engine.QuietPeriod.Duration,
		Focused:     true,
		MaxSaves:    a.cfg.Engine.MaxSaves,
		Recursive:   !a.cfg.Engine.DirectOnly,
		LoadDetail:  a.cfg.Engine.LoadDetail,
		RetryPolicy: a.cfg.RetryPolicy(),
		DataDir:     a.resolver.DataDirectory(),
		Logger:      a.logger,
		Metrics:     a.metrics,
	}
}

// startEngine builds an engine and makes the active profile current.
func (a *app) startEngine(ctx context.Context, cfg syncengine.Config) (*syncengine.Engine, error) {
	profile, err := a.cfg.Active()
	if err != nil {
		return nil, err
	}

	engine := syncengine.New(cfg)

	err = engine.SetProfile(ctx, profile)
	if err != nil {
		engine.Close()

		return nil, err
	}

	return engine, nil
}

func (a *app) browse(ctx context.Context) error {
	profile, err := a.cfg.Active()
	if err != nil {
		return err
	}

	bridge := shared.NewEventBridge()

	cfg := a.engineConfig()
	cfg.Publisher = bridge
	cfg.Emitter = teeEmitter{bridge, cfg.Emitter}

	engine := syncengine.New(cfg)
	defer engine.Close()

	go func() {
		// Scan failures reach the browser as notifications.
		if err := engine.SetProfile(ctx, profile); err != nil {
			a.logger.Error("failed to open profile", zap.String("profile", profile.ID), zap.Error(err))
		}
	}()

	return tui.Run(ctx, engine, bridge)
}

func (a *app) deleteSaves(ctx context.Context, in io.Reader, out io.Writer, opts *config.DeleteCmd) error {
	engine, err := a.startEngine(ctx, a.engineConfig())
	if err != nil {
		return err
	}
	defer engine.Close()

	if !opts.Yes {
		ok, err := confirm(in, out, fmt.Sprintf("Delete %d save(s) from %s?", len(opts.Files), engine.Dir()))
		if err != nil {
			return err
		}

		if !ok {
			return ErrAborted
		}
	}

	result, err := engine.Delete(ctx, opts.Files)
	if err != nil {
		return err
	}

	return writeResult(out, savegame.OpDelete, result)
}

func (a *app) list(ctx context.Context, out io.Writer, opts *config.ListCmd) error {
	cfg := a.engineConfig()
	cfg.LoadDetail = opts.Detail

	if opts.Filter != "" {
		cfg.Filter = savegame.NewGlobFilter(opts.Filter)
	}

	if opts.Global {
		cfg.Resolver = globalResolver{a.resolver}
	}

	engine, err := a.startEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	_, err = fmt.Fprintln(out, renderSaveTable(engine.Catalog(), opts.Detail))

	return err
}

// plugins lists the save's plugins and whether each is installed. Writing the
// load order with plugins missing needs a confirmation or --yes.
func (a *app) plugins(ctx context.Context, in io.Reader, out io.Writer, opts *config.PluginsCmd) error {
	cfg := a.engineConfig()
	cfg.LoadDetail = false

	engine, err := a.startEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	req := syncengine.PluginRequest{ID: opts.File, DataDir: opts.Data, LoadOrderPath: opts.Write, Force: opts.Yes}

	report, err := engine.RestorePlugins(ctx, req)

	var missing *savegame.MissingPluginsError
	if errors.As(err, &missing) {
		fmt.Fprintln(out, renderPluginTable(report))

		ok, confirmErr := confirm(in, out, fmt.Sprintf(
			"%d plugin(s) are missing and can't be enabled. Write the load order anyway?", len(missing.Missing)))
		if confirmErr != nil {
			return confirmErr
		}

		if !ok {
			return ErrAborted
		}

		req.Force = true

		_, err = engine.RestorePlugins(ctx, req)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "wrote %s\n", opts.Write)

		return err
	}

	if err != nil {
		return err
	}

	fmt.Fprintln(out, renderPluginTable(report))

	if opts.Write != "" {
		_, err = fmt.Fprintf(out, "wrote %s\n", opts.Write)

		return err
	}

	if !report.Complete() {
		return &savegame.MissingPluginsError{Missing: report.Missing}
	}

	return nil
}

func (a *app) profiles(out io.Writer) error {
	_, err := fmt.Fprintln(out, renderProfileTable(a.cfg.AllProfiles(), a.resolver, a.cfg.ActiveProfile))

	return err
}

func (a *app) screenshot(ctx context.Context, out io.Writer, opts *config.ScreenshotCmd) error {
	cfg := a.engineConfig()
	cfg.LoadDetail = false

	engine, err := a.startEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	save, err := engine.LoadDetail(ctx, opts.File)
	if err != nil {
		return err
	}

	if save.Detail.Screenshot == nil {
		return fmt.Errorf("%w: %s", ErrNoScreenshot, save.ID)
	}

	img, err := save.Detail.Screenshot.Thumbnail(opts.Width)
	if err != nil {
		return fmt.Errorf("failed to read screenshot of %s: %w", save.ID, err)
	}

	path := opts.Out
	if path == "" {
		path = strings.TrimSuffix(filepath.Base(save.ID), filepath.Ext(save.ID)) + ".png"
	}

	file, err := os.Create(path) //nolint:gosec // Path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	err = png.Encode(file, img)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	bounds := img.Bounds()
	_, err = fmt.Fprintf(out, "wrote %s (%dx%d)\n", path, bounds.Dx(), bounds.Dy())

	return err
}

func (a *app) transfer(ctx context.Context, out io.Writer, opts *config.TransferCmd) error {
	from, err := a.cfg.Profile(opts.From)
	if err != nil {
		return err
	}

	to, err := a.cfg.Profile(opts.To)
	if err != nil {
		return err
	}

	engine := syncengine.New(a.engineConfig())
	defer engine.Close()

	result, err := engine.TransferProfiles(ctx, from, to, opts.Files, opts.Copy)
	if err != nil {
		return err
	}

	operation := savegame.OpMove
	if opts.Copy {
		operation = savegame.OpCopy
	}

	return writeResult(out, operation, result)
}

func (a *app) watchPlain(ctx context.Context) error {
	cfg := a.engineConfig()
	cfg.Publisher = &logPublisher{logger: a.logger}

	engine, err := a.startEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	a.logger.Info("watching save directory", zap.String("dir", engine.Dir()))

	<-ctx.Done()

	return nil
}

// confirm asks a yes/no question on a terminal. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if file, ok := in.(*os.File); ok && !term.IsTerminal(int(file.Fd())) {
		return false, ErrNotATerminal
	}

	_, err := fmt.Fprintf(out, "%s [y/N] ", question)
	if err != nil {
		return false, err
	}

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// globalResolver lists the game's shared save directory for every profile.
type globalResolver struct {
	games.Resolver
}

func (r globalResolver) SaveDirectory(profile games.Profile) (string, error) {
	return r.SaveDirectoryGlobal(profile)
}

func writeResult(out io.Writer, operation string, result *savegame.TransferResult) error {
	for _, name := range result.Done {
		fmt.Fprintf(out, "%s %s\n", shared.RenderSuccess("✓"), name)
	}

	for _, failure := range result.Failures {
		fmt.Fprintf(out, "%s %s\n", shared.ErrorSymbol(), failure)
	}

	if result.Failed() {
		return fmt.Errorf("%w: %d file(s) failed to %s", ErrIncomplete, len(result.Failures), operation)
	}

	return nil
}
