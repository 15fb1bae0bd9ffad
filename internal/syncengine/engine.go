// Package syncengine keeps the savegame catalog of the active profile in step
// with its save directory, and carries out transfers and deletions.
//
// The engine publishes every committed catalog through a Publisher and
// reports activity and failures through an EventEmitter. It never renders
// anything itself.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/joe/savegames/internal/games"
	"github.com/joe/savegames/internal/logging"
	"github.com/joe/savegames/internal/metrics"
	"github.com/joe/savegames/internal/refresh"
	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/watch"
	pkgerrors "github.com/joe/savegames/pkg/errors"
	"github.com/joe/savegames/pkg/fileops"
	"github.com/joe/savegames/pkg/filesystem"
)

// Activity names reported through ActivityStarted and ActivityStopped.
const (
	// RefreshKey is the refresh key and activity name of the active profile's catalog.
	RefreshKey       = "savegames"
	ActivityTransfer = "transfer"
	ActivityDelete   = "delete"
	ActivityImport   = "import"
)

// Exported variables.
var (
	ErrNoProfile   = errors.New("no active profile")
	ErrUnknownSave = errors.New("unknown save")
)

// SaveDirResolver maps a profile to its save directory.
type SaveDirResolver interface {
	SaveDirectory(profile games.Profile) (string, error)
}

// Config configures an Engine. Only Resolver is required.
type Config struct {
	FS        filesystem.FileSystem
	Resolver  SaveDirResolver
	Sidecars  savegame.SidecarFunc
	Publisher Publisher
	Emitter   EventEmitter

	QuietPeriod time.Duration
	Clock       refresh.Clock
	// Focused is the initial focus state. Refreshes only run while focused.
	Focused bool

	MaxSaves int
	// Recursive also lists saves in subdirectories of the save directory.
	Recursive bool
	// LoadDetail reads every save header during a refresh.
	LoadDetail  bool
	Filter      savegame.FileFilter
	RetryPolicy savegame.RetryPolicy
	// DataDir is the game's Data folder used to check save plugins.
	DataDir string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Engine owns the catalog of the active profile.
type Engine struct {
	scanner    *savegame.Scanner
	loader     *savegame.Loader
	transferer *savegame.Transferer
	deleter    *savegame.Deleter
	scheduler  *refresh.Scheduler
	watch      *watch.Lifecycle
	fs         filesystem.FileSystem
	resolver   SaveDirResolver
	publisher  Publisher
	emitter    EventEmitter
	loadDetail bool
	dataDir    string
	logger     *zap.Logger
	metrics    *metrics.Metrics

	catalog atomic.Pointer[savegame.Catalog]

	// mu serializes catalog writers and guards the fields below.
	mu        sync.Mutex
	profile   *games.Profile
	dir       string
	importDir string
}

// New creates an engine. No directory is watched until SetProfile is called.
func New(cfg Config) *Engine {
	fs := cfg.FS
	if fs == nil {
		fs = filesystem.NewRealFileSystem()
	}

	sidecars := cfg.Sidecars
	if sidecars == nil {
		sidecars = games.SaveFiles
	}

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = nopPublisher{}
	}

	logger := logging.OrNop(cfg.Logger)
	ops := fileops.NewFileOps(fs)

	scanner := savegame.NewScanner(fs)
	scanner.DirectOnly = !cfg.Recursive
	scanner.Filter = cfg.Filter
	scanner.Logger = logger
	scanner.Metrics = cfg.Metrics

	if cfg.MaxSaves > 0 {
		scanner.MaxSaves = cfg.MaxSaves
	}

	loader := savegame.NewLoader()
	loader.Logger = logger
	loader.Metrics = cfg.Metrics

	if cfg.RetryPolicy != (savegame.RetryPolicy{}) {
		loader.Policy = cfg.RetryPolicy
	}

	transferer := savegame.NewTransferer(ops, sidecars)
	transferer.Logger = logger
	transferer.Metrics = cfg.Metrics

	deleter := savegame.NewDeleter(ops, sidecars)
	deleter.Logger = logger
	deleter.Metrics = cfg.Metrics

	engine := &Engine{
		scanner:    scanner,
		loader:     loader,
		transferer: transferer,
		deleter:    deleter,
		fs:         fs,
		resolver:   cfg.Resolver,
		publisher:  publisher,
		emitter:    cfg.Emitter,
		loadDetail: cfg.LoadDetail,
		dataDir:    cfg.DataDir,
		logger:     logger,
		metrics:    cfg.Metrics,
	}

	engine.catalog.Store(&savegame.Catalog{})

	engine.scheduler = refresh.New(engine.refresh, engine, refresh.Config{
		QuietPeriod: cfg.QuietPeriod,
		Clock:       cfg.Clock,
		Logger:      logger,
		Focused:     cfg.Focused,
	})

	engine.watch = watch.NewLifecycle(RefreshKey, fs, engine.scheduler, engine)
	engine.watch.Logger = logger
	engine.watch.Metrics = cfg.Metrics

	return engine
}

// Catalog returns the current catalog. It never blocks on a refresh.
func (e *Engine) Catalog() savegame.Catalog {
	return *e.catalog.Load()
}

// Close stops watching and waits for in-flight refreshes.
func (e *Engine) Close() {
	e.watch.Stop()
	e.scheduler.Close()
}

// Delete removes saves, sidecars included, from the active profile and
// re-scans its directory.
func (e *Engine) Delete(ctx context.Context, ids []string) (*savegame.TransferResult, error) {
	profile, dir := e.active()
	if dir == "" {
		return nil, ErrNoProfile
	}

	e.StartActivity(ActivityDelete)
	result := e.deleter.Delete(ctx, dir, profile.GameID, ids)
	e.StopActivity(ActivityDelete)

	e.report(ActivityDelete, savegame.OpDelete, result)
	e.rescan(ctx, "delete", dir)

	return result, nil
}

// Dir returns the save directory of the active profile, or "" before SetProfile.
func (e *Engine) Dir() string {
	_, dir := e.active()

	return dir
}

// Focused reports whether refreshes may run.
func (e *Engine) Focused() bool {
	return e.scheduler.Focused()
}

// ImportScan lists dir and reads the header of every save in it. Files whose
// header cannot be read are listed in FailedReads and reported once.
func (e *Engine) ImportScan(ctx context.Context, dir string) (*savegame.ScanResult, error) {
	dir = filepath.Clean(dir)

	e.StartActivity(ActivityImport)
	defer e.StopActivity(ActivityImport)

	listed, err := e.scanner.Scan(ctx, dir)
	if err != nil {
		e.NotifyError(ActivityImport, err)

		return nil, err
	}

	saves, failed := e.loader.LoadAll(ctx, listed.Savegames)
	result := &savegame.ScanResult{Savegames: saves, FailedReads: failed, Truncated: listed.Truncated}

	e.mu.Lock()
	e.importDir = dir
	e.mu.Unlock()

	if len(failed) > 0 {
		e.emit(readFailures(ActivityImport, failed))
	}

	e.emit(ImportScanned{Dir: dir, Result: result})

	return result, nil
}

// LoadDetail returns the save with its header read, reading it on first
// demand. The loaded record replaces the stub in a new catalog.
func (e *Engine) LoadDetail(ctx context.Context, id string) (*savegame.Savegame, error) {
	save, ok := e.Catalog().Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSave, id)
	}

	if save.Detail != nil {
		return save, nil
	}

	detail, err := e.loader.Load(ctx, save.FilePath)
	if err != nil {
		e.metrics.ObserveReadFailure()

		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}

	loaded := save.WithDetail(detail)

	e.mu.Lock()
	current := e.Catalog()

	// The file may have been replaced while its header was read.
	if latest, ok := current.Get(id); ok && latest.Detail == nil &&
		latest.Size == save.Size && latest.ModTime.Equal(save.ModTime) {
		loaded = latest.WithDetail(detail)
		next := current.With(loaded)
		e.catalog.Store(&next)
		e.publisher.ReplaceCatalog(next)
	}
	e.mu.Unlock()

	e.emit(DetailLoaded{ID: id})

	return loaded, nil
}

// Pending returns the refresh waiting for its quiet period or for focus.
func (e *Engine) Pending() (refresh.Target, bool) {
	return e.scheduler.Pending(RefreshKey)
}

// Profile returns the active profile.
func (e *Engine) Profile() (games.Profile, bool) {
	profile, _ := e.active()
	if profile == nil {
		return games.Profile{}, false
	}

	return *profile, true
}

// Refresh re-scans the active profile right away, bypassing the quiet
// period. While unfocused the refresh waits for focus.
func (e *Engine) Refresh(ctx context.Context) error {
	dir := e.Dir()
	if dir == "" {
		return ErrNoProfile
	}

	return e.scheduler.RunNow(ctx, RefreshKey, refresh.Target{Dir: dir, Reason: "requested"})
}

// SetFocused forwards the host's focus state to the scheduler.
func (e *Engine) SetFocused(focused bool) {
	e.scheduler.SetFocused(focused)
}

// SetProfile makes profile the active one: the catalog is cleared, its save
// directory is watched and scanned. The returned error is that of the first
// scan, or of resolving or watching the directory.
func (e *Engine) SetProfile(ctx context.Context, profile games.Profile) error {
	dir, err := e.resolver.SaveDirectory(profile)
	if err != nil {
		return fmt.Errorf("failed to resolve save directory of profile %s: %w", profile.ID, err)
	}

	dir = filepath.Clean(dir)

	e.mu.Lock()
	e.profile = &profile
	e.dir = dir
	e.catalog.Store(&savegame.Catalog{})
	e.publisher.ClearCatalog()
	e.mu.Unlock()

	e.logger.Info("profile activated", zap.String("profile", profile.ID), zap.String("dir", dir))
	e.emit(ProfileChanged{Profile: profile, Dir: dir})

	return e.watch.Start(ctx, dir)
}

// Transfer copies or moves saves and re-scans the affected directories.
func (e *Engine) Transfer(ctx context.Context, req savegame.TransferRequest) *savegame.TransferResult {
	e.StartActivity(ActivityTransfer)
	result := e.transferer.Transfer(ctx, req)
	e.StopActivity(ActivityTransfer)

	operation := savegame.OpMove
	if req.KeepSource {
		operation = savegame.OpCopy
	}

	e.report(ActivityTransfer, operation, result)

	if req.KeepSource {
		e.rescan(ctx, operation, req.DestDir)
	} else {
		e.rescan(ctx, operation, req.SourceDir, req.DestDir)
	}

	return result
}

// TransferProfiles copies or moves saves from one profile to another. With
// no files given, every save of the source profile is transferred.
func (e *Engine) TransferProfiles(
	ctx context.Context,
	from, to games.Profile,
	files []string,
	keepSource bool,
) (*savegame.TransferResult, error) {
	source, err := e.resolver.SaveDirectory(from)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve save directory of profile %s: %w", from.ID, err)
	}

	dest, err := e.resolver.SaveDirectory(to)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve save directory of profile %s: %w", to.ID, err)
	}

	if len(files) == 0 {
		listed, err := e.scanner.Scan(ctx, source)
		if err != nil {
			return nil, err
		}

		for _, save := range listed.Savegames {
			files = append(files, save.ID)
		}
	}

	return e.Transfer(ctx, savegame.TransferRequest{
		Files:      files,
		SourceDir:  source,
		DestDir:    dest,
		KeepSource: keepSource,
		GameID:     from.GameID,
	}), nil
}

// Sink and notifier implementation

// NotifyError reports a failed activity as one notification.
func (e *Engine) NotifyError(key string, err error) {
	e.emit(Notification{
		Key:         key,
		Title:       key + " failed",
		Details:     []string{err.Error()},
		AllowReport: !pkgerrors.IsActionable(err),
		Err:         err,
	})
}

// StartActivity reports that the named activity began.
func (e *Engine) StartActivity(name string) {
	e.emit(ActivityStarted{Name: name})
}

// StopActivity reports that the named activity ended.
func (e *Engine) StopActivity(name string) {
	e.emit(ActivityStopped{Name: name})
}

func (e *Engine) active() (*games.Profile, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.profile, e.dir
}

func (e *Engine) emit(event Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

// refresh scans target.Dir and publishes the result unless the differ finds
// nothing worth publishing.
func (e *Engine) refresh(ctx context.Context, key string, target refresh.Target) error {
	result, err := e.scanner.Scan(ctx, target.Dir)
	if err != nil {
		return err
	}

	saves := result.Savegames

	var failed []string
	if e.loadDetail {
		saves, failed = e.loader.LoadAll(ctx, savegame.CarryDetail(e.Catalog(), saves))
	}

	events, err := e.commit(key, filepath.Clean(target.Dir), saves, result.Truncated, failed)
	for _, event := range events {
		e.emit(event)
	}

	return err
}

func (e *Engine) commit(key, dir string, saves []*savegame.Savegame, truncated bool, failed []string) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if dir != e.dir {
		e.logger.Debug("dropping scan of inactive directory", zap.String("dir", dir))

		return nil, nil
	}

	old := e.Catalog()
	fresh := savegame.NewCatalog(savegame.CarryDetail(old, saves), truncated)

	if savegame.Unchanged(old, fresh) && !savegame.DetailReplaced(old, fresh) {
		e.metrics.ObserveSkippedPublish()
		e.logger.Debug("catalog unchanged", zap.String("dir", dir), zap.Int("saves", fresh.Len()))

		return nil, nil
	}

	e.catalog.Store(&fresh)
	e.publisher.ReplaceCatalog(fresh)
	e.metrics.SetCatalogSize(fresh.Len())

	e.logger.Info("catalog updated",
		zap.String("dir", dir),
		zap.Int("saves", fresh.Len()),
		zap.Bool("truncated", fresh.Truncated()),
	)

	events := []Event{CatalogReplaced{Count: fresh.Len(), Truncated: fresh.Truncated()}}
	if len(failed) > 0 {
		events = append(events, readFailures(key, failed))
	}

	return events, nil
}

// report turns a batch result into a single notification or a success event.
func (e *Engine) report(key, operation string, result *savegame.TransferResult) {
	if !result.Failed() {
		e.emit(Succeeded{Operation: operation, Files: result.Done})

		return
	}

	e.emit(Notification{
		Key:         key,
		Title:       fmt.Sprintf("%d file(s) could not be %s", len(result.Failures), pastTense(operation)),
		Details:     result.Failures,
		AllowReport: result.AllowReport(),
		Err:         errors.Join(result.Errors()...),
	})
}

// rescan refreshes every view showing one of dirs.
func (e *Engine) rescan(ctx context.Context, operation string, dirs ...string) {
	e.mu.Lock()
	active, imported := e.dir, e.importDir
	e.mu.Unlock()

	seen := make(map[string]bool, len(dirs))

	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if seen[dir] {
			continue
		}

		seen[dir] = true

		if dir == active {
			// Failures reach the user through NotifyError.
			_ = e.scheduler.RunNow(ctx, RefreshKey, refresh.Target{Dir: dir, Reason: "after " + operation})
		}

		if dir == imported {
			_, _ = e.ImportScan(ctx, dir)
		}
	}
}

func readFailures(key string, ids []string) Notification {
	return Notification{
		Key:         key,
		Title:       fmt.Sprintf("%d save(s) could not be read", len(ids)),
		Details:     ids,
		AllowReport: false,
	}
}

func pastTense(operation string) string {
	switch operation {
	case savegame.OpCopy:
		return "copied"
	case savegame.OpMove:
		return "moved"
	case savegame.OpDelete:
		return "deleted"
	default:
		return operation + "ed"
	}
}

type nopPublisher struct{}

func (nopPublisher) ReplaceCatalog(savegame.Catalog) {}

func (nopPublisher) ClearCatalog() {}
