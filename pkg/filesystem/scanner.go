package filesystem

import (
	"iter"
	"path/filepath"
	"time"
)

// FileScanner iterates over the entries of a directory listing.
//
// Next returns (FileInfo{}, false) once the listing is exhausted or failed;
// Err then tells the two apart. A root that does not exist is reported by Err
// as an error wrapping fs.ErrNotExist.
type FileScanner interface {
	Next() (FileInfo, bool)
	Err() error
}

// FileInfo describes one listed entry.
type FileInfo struct {
	// RelativePath is relative to the listed root, using the OS separator.
	RelativePath string
	Size         int64
	ModTime      time.Time
	IsDir        bool
}

// Name returns the last element of RelativePath.
func (i FileInfo) Name() string {
	return filepath.Base(i.RelativePath)
}

// Entries adapts scanner to a range-over-func sequence. Stopping the range
// early leaves the scanner where it was; check scanner.Err after the loop.
func Entries(scanner FileScanner) iter.Seq[FileInfo] {
	return func(yield func(FileInfo) bool) {
		for info, ok := scanner.Next(); ok; info, ok = scanner.Next() {
			if !yield(info) {
				return
			}
		}
	}
}
