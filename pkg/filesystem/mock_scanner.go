package filesystem

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// mockFileScanner implements FileScanner for MockFileSystem.
type mockFileScanner struct {
	fs        *MockFileSystem
	root      string
	recursive bool
	files     []FileInfo
	index     int
	err       error
	scanned   bool
}

// newMockFileScanner creates a new scanner for the given directory.
func newMockFileScanner(fs *MockFileSystem, root string, recursive bool) *mockFileScanner {
	return &mockFileScanner{
		fs:        fs,
		root:      root,
		recursive: recursive,
		files:     make([]FileInfo, 0),
		index:     -1,
	}
}

// Err returns any error that occurred during scanning.
func (s *mockFileScanner) Err() error {
	return s.err
}

// Next advances to the next file and returns its info.
func (s *mockFileScanner) Next() (FileInfo, bool) {
	if !s.scanned {
		s.scan()
		s.scanned = true
	}

	if s.err != nil {
		return FileInfo{}, false
	}

	s.index++
	if s.index >= len(s.files) {
		return FileInfo{}, false
	}

	return s.files[s.index], true
}

// scan collects the entries under the root directory.
func (s *mockFileScanner) scan() {
	s.fs.mu.RLock()
	defer s.fs.mu.RUnlock()

	if err := s.fs.failureLocked("list", s.root); err != nil {
		s.err = err

		return
	}

	rootFile, exists := s.fs.files[s.root]
	if !exists {
		s.err = pathError("lstat", s.root, os.ErrNotExist)

		return
	}

	if !rootFile.isDir {
		return
	}

	for path, file := range s.fs.files {
		if !strings.HasPrefix(path, s.root+"/") {
			continue
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil || relPath == "." {
			continue
		}

		if !s.recursive && strings.ContainsRune(relPath, '/') {
			continue
		}

		s.files = append(s.files, FileInfo{
			RelativePath: relPath,
			Size:         int64(len(file.data)),
			ModTime:      file.modTime,
			IsDir:        file.isDir,
		})
	}

	// Sort files by path for consistent ordering
	sort.Slice(s.files, func(i, j int) bool {
		return s.files[i].RelativePath < s.files[j].RelativePath
	})
}
