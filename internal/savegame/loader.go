package savegame

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/joe/savegames/internal/logging"
	"github.com/joe/savegames/internal/metrics"
	"github.com/joe/savegames/pkg/gamebryo"
)

// RetryPolicy bounds how often a header read is retried when the file is
// briefly held by another process.
type RetryPolicy struct {
	Retries    int           // Additional attempts after the first
	Delay      time.Duration // Wait before the first retry
	MaxDelay   time.Duration // Upper bound on any single wait
	Multiplier float64       // Backoff multiplier
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:    2,
		Delay:      100 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2.0,
	}
}

func (p RetryPolicy) wait(retry int) time.Duration {
	wait := float64(p.Delay) * math.Pow(p.Multiplier, float64(retry))
	if p.MaxDelay > 0 && wait > float64(p.MaxDelay) {
		wait = float64(p.MaxDelay)
	}

	return time.Duration(wait)
}

// Loader reads save headers into Detail records.
type Loader struct {
	Policy  RetryPolicy
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// ReadHeader parses the header at path. Defaults to gamebryo.Open.
	ReadHeader func(path string) (*gamebryo.Header, error)
	// Probe checks whether the file can be opened at all. Defaults to a plain open.
	Probe func(path string) error

	group singleflight.Group
}

// NewLoader creates a loader using the default retry policy.
func NewLoader() *Loader {
	return &Loader{Policy: DefaultRetryPolicy()}
}

// Load reads the header of the save at path. Concurrent loads of the same
// path share one read.
func (l *Loader) Load(ctx context.Context, path string) (*Detail, error) {
	result, err, _ := l.group.Do(path, func() (any, error) {
		return l.loadWithRetry(ctx, path)
	})
	if err != nil {
		return nil, err
	}

	detail, _ := result.(*Detail)

	return detail, nil
}

// LoadAll loads detail for every save. Saves whose header cannot be read
// keep their stub record and are reported by ID.
func (l *Loader) LoadAll(ctx context.Context, saves []*Savegame) ([]*Savegame, []string) {
	loaded := make([]*Savegame, len(saves))
	failed := make([]string, 0)

	for i, save := range saves {
		loaded[i] = save

		if save.Detail != nil {
			continue
		}

		detail, err := l.Load(ctx, save.FilePath)
		if err != nil {
			logging.OrNop(l.Logger).Warn("failed to read save header",
				zap.String("id", save.ID),
				zap.Error(err),
			)
			l.Metrics.ObserveReadFailure()

			failed = append(failed, save.ID)

			continue
		}

		loaded[i] = save.WithDetail(detail)
	}

	return loaded, failed
}

func (l *Loader) loadWithRetry(ctx context.Context, path string) (*Detail, error) {
	readHeader := l.ReadHeader
	if readHeader == nil {
		readHeader = gamebryo.Open
	}

	probe := l.Probe
	if probe == nil {
		probe = probeOpen
	}

	var lastErr error

	for attempt := 0; attempt <= l.Policy.Retries; attempt++ {
		if attempt > 0 {
			l.Metrics.ObserveReadRetry()

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("reading %s cancelled: %w", path, ctx.Err())
			case <-time.After(l.Policy.wait(attempt - 1)):
			}
		}

		header, err := readHeader(path)
		if err == nil {
			return detailFromHeader(path, header), nil
		}

		lastErr = err

		// A file that cannot even be opened is gone or locked for good.
		if probeErr := probe(path); probeErr != nil {
			return nil, probeErr
		}

		logging.OrNop(l.Logger).Debug("retrying save header read",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return nil, lastErr
}

func detailFromHeader(path string, header *gamebryo.Header) *Detail {
	detail := &Detail{
		SaveNumber:    header.SaveNumber,
		CharacterName: header.CharacterName,
		Level:         header.Level,
		Location:      header.Location,
		FileName:      filepath.Base(path),
		Plugins:       header.Plugins,
		CreationTime:  header.CreationTime,
	}

	if header.ScreenshotWidth > 0 && header.ScreenshotHeight > 0 {
		detail.Screenshot = NewScreenshot(
			int(header.ScreenshotWidth),
			int(header.ScreenshotHeight),
			func() ([]byte, error) { return gamebryo.ReadScreenshot(path, header) },
		)
	}

	return detail
}

func probeOpen(path string) error {
	file, err := os.Open(path) //nolint:gosec // Path comes from a directory listing
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	return file.Close()
}
