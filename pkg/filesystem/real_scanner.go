package filesystem

import (
	"path/filepath"

	"github.com/kr/fs"
)

// realFileScanner implements FileScanner on top of a kr/fs walker.
// Entries are produced one step at a time in lexical order.
type realFileScanner struct {
	root      string
	walkRoot  string
	recursive bool
	walker    *fs.Walker
	err       error
	done      bool
}

// newRealFileScanner creates a new scanner for the given directory.
// When recursive is false, subdirectories are reported but not entered.
func newRealFileScanner(root string, recursive bool) *realFileScanner {
	return &realFileScanner{
		root:      root,
		recursive: recursive,
	}
}

// Err returns any error that occurred during scanning.
func (s *realFileScanner) Err() error {
	return s.err
}

// Next advances to the next file and returns its info.
func (s *realFileScanner) Next() (FileInfo, bool) {
	if s.done {
		return FileInfo{}, false
	}

	if s.walker == nil {
		// The walker uses Lstat, so a symlinked root would not be entered.
		s.walkRoot = s.root
		if resolved, err := filepath.EvalSymlinks(s.root); err == nil {
			s.walkRoot = resolved
		}

		s.walker = fs.Walk(s.walkRoot)
	}

	for s.walker.Step() {
		if err := s.walker.Err(); err != nil {
			s.err = err
			s.done = true

			return FileInfo{}, false
		}

		path := s.walker.Path()

		relPath, err := filepath.Rel(s.walkRoot, path)
		if err != nil {
			s.err = err
			s.done = true

			return FileInfo{}, false
		}

		// Skip the root directory itself
		if relPath == "." {
			continue
		}

		info := s.walker.Stat()
		if info.IsDir() && !s.recursive {
			s.walker.SkipDir()
		}

		return FileInfo{
			RelativePath: relPath,
			Size:         info.Size(),
			ModTime:      info.ModTime(),
			IsDir:        info.IsDir(),
		}, true
	}

	s.done = true

	return FileInfo{}, false
}
