package savegame

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/joe/savegames/internal/logging"
	"github.com/joe/savegames/internal/metrics"
	"github.com/joe/savegames/pkg/filesystem"
)

// DefaultMaxSaves is the default cap on the number of saves kept from one directory.
const DefaultMaxSaves = 200

// ErrListing marks a failure to list a save directory other than it not existing.
var ErrListing = errors.New("failed to list save directory")

// ScanResult is the outcome of listing a save directory.
type ScanResult struct {
	// Savegames are stub records in listing order.
	Savegames []*Savegame
	// FailedReads holds IDs whose header could not be read during a detail scan.
	FailedReads []string
	// Truncated is set when the directory held more than MaxSaves saves.
	Truncated bool
}

// Catalog builds a catalog from the result.
func (r *ScanResult) Catalog() Catalog {
	return NewCatalog(r.Savegames, r.Truncated)
}

// Scanner lists save directories.
type Scanner struct {
	FS filesystem.FileSystem
	// MaxSaves caps the result; the most recently modified saves are kept.
	MaxSaves int
	// DirectOnly ignores saves in subdirectories.
	DirectOnly bool
	// Filter optionally restricts which saves are kept.
	Filter  FileFilter
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// NewScanner creates a scanner with default settings.
func NewScanner(fs filesystem.FileSystem) *Scanner {
	return &Scanner{
		FS:         fs,
		MaxSaves:   DefaultMaxSaves,
		DirectOnly: true,
	}
}

// Scan lists dir and returns a stub record for every recognized save file.
// A directory that does not exist yields an empty result.
func (s *Scanner) Scan(ctx context.Context, dir string) (*ScanResult, error) {
	start := time.Now()

	result, err := s.scan(ctx, dir)
	s.Metrics.ObserveScan(time.Since(start), err)

	if err != nil {
		return nil, err
	}

	logging.OrNop(s.Logger).Debug("scanned save directory",
		zap.String("dir", dir),
		zap.Int("saves", len(result.Savegames)),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (s *Scanner) scan(ctx context.Context, dir string) (*ScanResult, error) {
	var iter filesystem.FileScanner
	if s.DirectOnly {
		iter = s.FS.List(dir)
	} else {
		iter = s.FS.Scan(dir)
	}

	saves := make([]*Savegame, 0)

	for info := range filesystem.Entries(iter) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan of %s cancelled: %w", dir, err)
		}

		if info.IsDir || !IsSaveFile(info.Name()) {
			continue
		}

		if s.Filter != nil && !s.Filter.ShouldInclude(info.RelativePath) {
			continue
		}

		saves = append(saves, newStub(dir, info.RelativePath, info.Size, info.ModTime))
	}

	if err := iter.Err(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ScanResult{Savegames: []*Savegame{}}, nil
		}

		return nil, fmt.Errorf("%w %s: %w", ErrListing, dir, err)
	}

	limit := s.MaxSaves
	if limit <= 0 {
		limit = DefaultMaxSaves
	}

	if len(saves) <= limit {
		return &ScanResult{Savegames: saves}, nil
	}

	return &ScanResult{Savegames: keepNewest(saves, limit), Truncated: true}, nil
}

// keepNewest keeps the limit most recently modified saves without
// disturbing their relative order.
func keepNewest(saves []*Savegame, limit int) []*Savegame {
	order := make([]int, len(saves))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return saves[order[a]].ModTime.After(saves[order[b]].ModTime)
	})

	keep := make([]bool, len(saves))
	for _, idx := range order[:limit] {
		keep[idx] = true
	}

	kept := make([]*Savegame, 0, limit)

	for i, save := range saves {
		if keep[i] {
			kept = append(kept, save)
		}
	}

	return kept
}
