package filesystem

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockFileSystem is an in-memory filesystem implementation for testing.
type MockFileSystem struct {
	mu       sync.RWMutex
	files    map[string]*mockFile
	failures map[mockFailureKey]error
}

// NewMockFileSystem creates a new in-memory filesystem.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		files:    make(map[string]*mockFile),
		failures: make(map[mockFailureKey]error),
	}
}

// Chtimes changes the access and modification times of a file.
func (fs *MockFileSystem) Chtimes(path string, _, mtime time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.failureLocked("chtimes", path); err != nil {
		return err
	}

	file, exists := fs.files[path]
	if !exists {
		return pathError("chtimes", path, os.ErrNotExist)
	}

	file.modTime = mtime

	return nil
}

// Create creates a file for writing.
func (fs *MockFileSystem) Create(path string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.failureLocked("create", path); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		_ = fs.mkdirAllLocked(dir, 0o755)
	}

	fs.files[path] = &mockFile{
		path:    path,
		data:    []byte{},
		modTime: time.Now(),
		perm:    0o644,
	}

	return &mockFileHandle{
		fs:     fs,
		path:   path,
		writer: &bytes.Buffer{},
	}, nil
}

// List returns an iterator over the direct children of path.
func (fs *MockFileSystem) List(path string) FileScanner {
	return newMockFileScanner(fs, path, false)
}

// MkdirAll creates a directory and all necessary parents.
func (fs *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.failureLocked("mkdir", path); err != nil {
		return err
	}

	return fs.mkdirAllLocked(path, perm)
}

// Open opens a file for reading.
func (fs *MockFileSystem) Open(path string) (File, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if err := fs.failureLocked("open", path); err != nil {
		return nil, err
	}

	file, exists := fs.files[path]
	if !exists {
		return nil, pathError("open", path, os.ErrNotExist)
	}

	if file.isDir {
		return nil, pathError("open", path, fmt.Errorf("is a directory"))
	}

	return &mockFileHandle{
		fs:     fs,
		path:   path,
		reader: bytes.NewReader(file.data),
	}, nil
}

// Remove removes a file or empty directory.
func (fs *MockFileSystem) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.failureLocked("remove", path); err != nil {
		return err
	}

	file, exists := fs.files[path]
	if !exists {
		return pathError("remove", path, os.ErrNotExist)
	}

	if file.isDir {
		for p := range fs.files {
			if strings.HasPrefix(p, path+"/") {
				return pathError("remove", path, fmt.Errorf("directory not empty"))
			}
		}
	}

	delete(fs.files, path)

	return nil
}

// Rename moves a file, replacing the destination if it exists.
func (fs *MockFileSystem) Rename(oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.failureLocked("rename", oldPath); err != nil {
		return err
	}

	file, exists := fs.files[oldPath]
	if !exists {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: os.ErrNotExist}
	}

	if oldPath == newPath {
		return nil
	}

	delete(fs.files, oldPath)

	file.path = newPath
	fs.files[newPath] = file

	return nil
}

// Scan returns an iterator over all files in a directory tree.
func (fs *MockFileSystem) Scan(path string) FileScanner {
	return newMockFileScanner(fs, path, true)
}

// Stat returns file information.
func (fs *MockFileSystem) Stat(path string) (os.FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if err := fs.failureLocked("stat", path); err != nil {
		return nil, err
	}

	file, exists := fs.files[path]
	if !exists {
		return nil, pathError("stat", path, os.ErrNotExist)
	}

	return file.info(), nil
}

// Helper methods for testing

// AddDir adds a directory to the mock filesystem.
func (fs *MockFileSystem) AddDir(path string, modTime time.Time) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.files[path] = &mockFile{
		path:    path,
		modTime: modTime,
		isDir:   true,
		perm:    0o755,
	}
}

// AddFile adds a file to the mock filesystem with the given content and modtime.
func (fs *MockFileSystem) AddFile(path string, content []byte, modTime time.Time) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		_ = fs.mkdirAllLocked(dir, 0o755)
	}

	fs.files[path] = &mockFile{
		path:    path,
		data:    append([]byte(nil), content...),
		modTime: modTime,
		perm:    0o644,
	}
}

// ClearFailures removes every failure registered with FailOn.
func (fs *MockFileSystem) ClearFailures() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.failures = make(map[mockFailureKey]error)
}

// Exists checks if a path exists in the mock filesystem.
func (fs *MockFileSystem) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, exists := fs.files[path]

	return exists
}

// FailOn makes the named operation ("open", "create", "mkdir", "remove",
// "rename", "stat", "chtimes", "list") fail for path with err.
// For rename the path is the source.
func (fs *MockFileSystem) FailOn(op, path string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.failures[mockFailureKey{op: op, path: path}] = err
}

// GetFile retrieves a file's content from the mock filesystem.
func (fs *MockFileSystem) GetFile(path string) ([]byte, time.Time, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	file, exists := fs.files[path]
	if !exists {
		return nil, time.Time{}, os.ErrNotExist
	}

	if file.isDir {
		return nil, time.Time{}, fmt.Errorf("is a directory")
	}

	return append([]byte(nil), file.data...), file.modTime, nil
}

// ListFiles returns all file paths in the mock filesystem.
func (fs *MockFileSystem) ListFiles() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	paths := make([]string, 0, len(fs.files))
	for p := range fs.files {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

func (fs *MockFileSystem) failureLocked(op, path string) error {
	err, ok := fs.failures[mockFailureKey{op: op, path: path}]
	if !ok {
		return nil
	}

	return pathError(op, path, err)
}

// mkdirAllLocked is the internal implementation that assumes the lock is held.
func (fs *MockFileSystem) mkdirAllLocked(path string, perm os.FileMode) error {
	if path == "." || path == "/" {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		if err := fs.mkdirAllLocked(dir, perm); err != nil {
			return err
		}
	}

	if existing, exists := fs.files[path]; exists {
		if !existing.isDir {
			return pathError("mkdir", path, fmt.Errorf("not a directory"))
		}

		return nil
	}

	fs.files[path] = &mockFile{
		path:    path,
		modTime: time.Now(),
		isDir:   true,
		perm:    perm,
	}

	return nil
}

// mockFailureKey identifies an injected failure.
type mockFailureKey struct {
	op   string
	path string
}

// mockFile represents a file in the mock filesystem.
type mockFile struct {
	path    string
	data    []byte
	modTime time.Time
	isDir   bool
	perm    os.FileMode
}

func (f *mockFile) info() *mockFileInfo {
	return &mockFileInfo{
		name:    filepath.Base(f.path),
		size:    int64(len(f.data)),
		modTime: f.modTime,
		isDir:   f.isDir,
		perm:    f.perm,
	}
}

// mockFileHandle implements the File interface for reading/writing.
type mockFileHandle struct {
	fs     *MockFileSystem
	path   string
	reader *bytes.Reader
	writer *bytes.Buffer
	closed bool
}

func (f *mockFileHandle) Close() error {
	if f.closed {
		return os.ErrClosed
	}

	f.closed = true

	if f.writer == nil {
		return nil
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if file, exists := f.fs.files[f.path]; exists {
		file.data = f.writer.Bytes()
		file.modTime = time.Now()
	} else {
		f.fs.files[f.path] = &mockFile{
			path:    f.path,
			data:    f.writer.Bytes(),
			modTime: time.Now(),
			perm:    0o644,
		}
	}

	return nil
}

func (f *mockFileHandle) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	if f.reader == nil {
		return 0, io.EOF
	}

	return f.reader.Read(p)
}

func (f *mockFileHandle) Stat() (os.FileInfo, error) {
	if f.closed {
		return nil, os.ErrClosed
	}

	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()

	file, exists := f.fs.files[f.path]
	if !exists {
		return nil, os.ErrNotExist
	}

	return file.info(), nil
}

func (f *mockFileHandle) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	if f.writer == nil {
		f.writer = &bytes.Buffer{}
	}

	return f.writer.Write(p)
}

// mockFileInfo implements os.FileInfo for mock files.
type mockFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
	perm    os.FileMode
}

func (fi *mockFileInfo) IsDir() bool        { return fi.isDir }
func (fi *mockFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *mockFileInfo) Mode() os.FileMode  { return fi.perm }
func (fi *mockFileInfo) Name() string       { return fi.name }
func (fi *mockFileInfo) Size() int64        { return fi.size }
func (fi *mockFileInfo) Sys() any           { return nil }

func pathError(op, path string, err error) error {
	return &os.PathError{Op: op, Path: path, Err: err}
}
