package savegame

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/joe/savegames/internal/logging"
	"github.com/joe/savegames/internal/metrics"
	"github.com/joe/savegames/pkg/fileops"
)

// Deleter removes saves together with their sidecars.
type Deleter struct {
	Ops      *fileops.FileOps
	Sidecars SidecarFunc
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// NewDeleter creates a deleter over ops.
func NewDeleter(ops *fileops.FileOps, sidecars SidecarFunc) *Deleter {
	return &Deleter{Ops: ops, Sidecars: sidecars}
}

// Delete removes every save in ids from dir. Sidecars that do not exist are
// skipped silently; a missing save is reported. Ids that are not plain save
// file names fail with ErrInvalidID and touch nothing.
func (d *Deleter) Delete(ctx context.Context, dir, gameID string, ids []string) *TransferResult {
	result := &TransferResult{}
	logger := logging.OrNop(d.Logger)

	for _, id := range ids {
		if !ValidID(id) {
			logger.Warn("rejecting save id", zap.String("id", id))
			result.fail(id, ErrInvalidID)

			continue
		}

		for i, name := range expand(d.Sidecars, gameID, id) {
			if err := ctx.Err(); err != nil {
				result.fail(name, err)

				continue
			}

			err := d.Ops.Remove(filepath.Join(dir, name))
			if err != nil && i > 0 && errors.Is(err, fs.ErrNotExist) {
				continue
			}

			d.Metrics.ObserveFile(OpDelete, err)

			if err != nil {
				logger.Warn("failed to delete save file", zap.String("file", name), zap.Error(err))
				result.fail(name, err)

				continue
			}

			result.Done = append(result.Done, name)
		}
	}

	logger.Info("delete finished",
		zap.String("dir", dir),
		zap.Int("done", len(result.Done)),
		zap.Int("failed", len(result.Failures)),
	)

	return result
}
