package savegame

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/joe/savegames/internal/logging"
	"github.com/joe/savegames/internal/metrics"
	pkgerrors "github.com/joe/savegames/pkg/errors"
	"github.com/joe/savegames/pkg/fileops"
)

// Operation names recorded in metrics.
const (
	OpCopy   = "copy"
	OpMove   = "move"
	OpDelete = "delete"
)

// ErrInvalidID is recorded for a save id that is not a plain save file name.
var ErrInvalidID = errors.New("invalid savegame id")

// ValidID reports whether id names a save file inside its save directory.
// Ids from a recursive scan may contain subdirectories but never leave the
// directory.
func ValidID(id string) bool {
	return filepath.IsLocal(id) && IsSaveFile(id)
}

// SidecarFunc expands a save file name into the full set of files that travel
// with it, the save itself first.
type SidecarFunc func(gameID, name string) []string

// NoSidecars treats every save as a single file.
func NoSidecars(_ string, name string) []string {
	return []string{name}
}

// TransferRequest describes a batch copy or move between save directories.
type TransferRequest struct {
	Files      []string
	SourceDir  string
	DestDir    string
	KeepSource bool
	GameID     string
}

// TransferResult aggregates the outcome of a batch. One failing file never
// stops the others.
type TransferResult struct {
	// Done lists the files that were handled, sidecars included.
	Done []string
	// Failures holds one "<file> - <error message>" entry per failed file.
	Failures []string

	errs []error
}

// AllowReport is false when any failure is something the operator can fix
// alone, such as a full disk or a missing permission.
func (r *TransferResult) AllowReport() bool {
	for _, err := range r.errs {
		if pkgerrors.IsActionable(err) {
			return false
		}
	}

	return true
}

// Errors returns the underlying errors in failure order.
func (r *TransferResult) Errors() []error {
	return r.errs
}

// Failed reports whether any file failed.
func (r *TransferResult) Failed() bool {
	return len(r.Failures) > 0
}

func (r *TransferResult) fail(name string, err error) {
	r.Failures = append(r.Failures, fmt.Sprintf("%s - %s", name, err.Error()))
	r.errs = append(r.errs, err)
}

// Transferer copies or moves saves together with their sidecars.
type Transferer struct {
	Ops      *fileops.FileOps
	Sidecars SidecarFunc
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	enricher pkgerrors.Enricher
}

// NewTransferer creates a transferer over ops.
func NewTransferer(ops *fileops.FileOps, sidecars SidecarFunc) *Transferer {
	return &Transferer{Ops: ops, Sidecars: sidecars, enricher: pkgerrors.NewEnricher()}
}

// Transfer performs the batch described by req.
func (t *Transferer) Transfer(ctx context.Context, req TransferRequest) *TransferResult {
	result := &TransferResult{}
	logger := logging.OrNop(t.Logger)

	err := t.Ops.FS.MkdirAll(req.DestDir, fileops.DefaultDirPermissions)
	if err != nil {
		result.fail(req.DestDir, fmt.Errorf("failed to create destination directory: %w", err))
		logger.Error("transfer aborted", zap.String("dest", req.DestDir), zap.Error(err))

		return result
	}

	operation := OpMove
	if req.KeepSource {
		operation = OpCopy
	}

	for _, file := range req.Files {
		if !ValidID(file) {
			logger.Warn("rejecting save id", zap.String("id", file))
			result.fail(file, ErrInvalidID)

			continue
		}

		for _, name := range expand(t.Sidecars, req.GameID, file) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.fail(name, ctxErr)

				continue
			}

			err := t.transferOne(req, name)
			t.Metrics.ObserveFile(operation, err)

			if err != nil {
				t.report(logger, operation, name, err)
				result.fail(name, err)

				continue
			}

			result.Done = append(result.Done, name)
		}
	}

	logger.Info("transfer finished",
		zap.String("operation", operation),
		zap.String("source", req.SourceDir),
		zap.String("dest", req.DestDir),
		zap.Int("done", len(result.Done)),
		zap.Int("failed", len(result.Failures)),
	)

	return result
}

func (t *Transferer) transferOne(req TransferRequest, name string) error {
	src := filepath.Join(req.SourceDir, name)
	dst := filepath.Join(req.DestDir, name)

	same, err := t.Ops.SameFile(src, dst)
	if err != nil {
		return err
	}

	if same {
		logging.OrNop(t.Logger).Info("source and destination are the same file",
			zap.String("path", src))

		return nil
	}

	if req.KeepSource {
		_, err = t.Ops.CopyFile(src, dst, nil)

		return err
	}

	return t.Ops.MoveFile(src, dst)
}

func (t *Transferer) report(logger *zap.Logger, operation, name string, err error) {
	enricher := t.enricher
	if enricher == nil {
		enricher = pkgerrors.NewEnricher()
	}

	enriched := enricher.Enrich(err, "")
	logger.Warn("file "+operation+" failed",
		zap.String("file", name),
		zap.Error(err),
		zap.String("suggestions", pkgerrors.FormatSuggestions(enriched)),
	)
}

func expand(sidecars SidecarFunc, gameID, name string) []string {
	if sidecars == nil {
		return NoSidecars(gameID, name)
	}

	return sidecars(gameID, name)
}
