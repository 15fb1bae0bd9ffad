// Package fileops provides the copy and move primitives used to transfer save files.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/joe/savegames/pkg/filesystem"
)

// Exported constants.
const (
	// BufferSize is the size of the buffer used for file copy operations (64KB)
	BufferSize = 64 * 1024
	// DefaultDirPermissions is the default permission mode for created directories
	DefaultDirPermissions = 0o750
)

// FileOps provides file operations with dependency injection for filesystem access.
// This allows for testing without actual filesystem I/O.
type FileOps struct {
	FS filesystem.FileSystem
}

// NewFileOps creates a new FileOps instance with the given filesystem.
func NewFileOps(fs filesystem.FileSystem) *FileOps {
	return &FileOps{FS: fs}
}

// NewRealFileOps creates a new FileOps instance using the real filesystem.
func NewRealFileOps() *FileOps {
	return &FileOps{FS: filesystem.NewRealFileSystem()}
}

// ProgressCallback is called during file operations to report progress
type ProgressCallback func(bytesTransferred int64, totalBytes int64, currentFile string)

// CopyFile copies src to dst, replacing dst if it exists, and preserves the
// modification time. A partially written dst is removed on failure.
func (fo *FileOps) CopyFile(src, dst string, progress ProgressCallback) (int64, error) {
	sourceFile, err := fo.FS.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file %s: %w", src, err)
	}

	defer func() {
		_ = sourceFile.Close()
	}()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat source file %s: %w", src, err)
	}

	dstDir := filepath.Dir(dst)

	err = fo.FS.MkdirAll(dstDir, DefaultDirPermissions)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination directory %s: %w", dstDir, err)
	}

	destFile, err := fo.FS.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file %s: %w", dst, err)
	}

	copyCompleted := false
	closed := false

	defer func() {
		if !closed {
			_ = destFile.Close()
		}

		if !copyCompleted {
			_ = fo.FS.Remove(dst)
		}
	}()

	written, err := copyLoop(sourceFile, destFile, sourceInfo.Size(), src, progress)
	if err != nil {
		return written, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	// Close before setting the modification time; some filesystems update it on close.
	closed = true

	err = destFile.Close()
	if err != nil {
		return written, fmt.Errorf("failed to close destination file %s: %w", dst, err)
	}

	err = fo.FS.Chtimes(dst, sourceInfo.ModTime(), sourceInfo.ModTime())
	if err != nil {
		return written, fmt.Errorf("failed to preserve modification time for %s: %w", dst, err)
	}

	copyCompleted = true

	return written, nil
}

// MoveFile renames src to dst. When the two paths live on different
// devices the file is copied and the source removed afterwards.
func (fo *FileOps) MoveFile(src, dst string) error {
	dstDir := filepath.Dir(dst)

	err := fo.FS.MkdirAll(dstDir, DefaultDirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create destination directory %s: %w", dstDir, err)
	}

	err = fo.FS.Rename(src, dst)
	if err == nil {
		return nil
	}

	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	_, err = fo.CopyFile(src, dst, nil)
	if err != nil {
		return err
	}

	err = fo.FS.Remove(src)
	if err != nil {
		return fmt.Errorf("failed to remove %s after copying: %w", src, err)
	}

	return nil
}

// Remove deletes a single file.
func (fo *FileOps) Remove(path string) error {
	err := fo.FS.Remove(path)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}

// SameFile reports whether the two paths refer to the same file.
// A path that does not exist is never the same as another.
func (fo *FileOps) SameFile(path1, path2 string) (bool, error) {
	if filepath.Clean(path1) == filepath.Clean(path2) {
		return true, nil
	}

	info1, err := fo.FS.Stat(path1)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path1, err)
	}

	info2, err := fo.FS.Stat(path2)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path2, err)
	}

	return os.SameFile(info1, info2), nil
}

// copyLoop performs a basic file copy with progress tracking.
func copyLoop(
	sourceFile filesystem.File,
	destFile filesystem.File,
	sourceSize int64,
	srcPath string,
	progress ProgressCallback,
) (int64, error) {
	var written int64

	buf := make([]byte, BufferSize)

	for {
		nr, err := sourceFile.Read(buf) //nolint:varnamelen // nr is idiomatic for bytes read
		if nr > 0 {
			nw, werr := destFile.Write(buf[0:nr]) //nolint:varnamelen // nw is idiomatic for bytes written
			if werr != nil {
				return written, fmt.Errorf("failed to write to destination: %w", werr)
			}

			if nr != nw {
				return written, fmt.Errorf("short write: %w", io.ErrShortWrite)
			}

			written += int64(nw)

			if progress != nil {
				progress(written, sourceSize, srcPath)
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return written, fmt.Errorf("failed to read from source: %w", err)
		}
	}

	return written, nil
}
