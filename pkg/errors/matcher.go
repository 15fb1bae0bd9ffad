package errors

import (
	"errors"
	"io/fs"
	"strings"
	"syscall"
)

// PatternMatcher matches error messages to categories using string patterns.
type PatternMatcher interface {
	Match(errorMsg string) ErrorCategory
}

// NewPatternMatcher creates a new PatternMatcher with predefined patterns.
func NewPatternMatcher() PatternMatcher {
	return &patternMatcher{
		patterns: []categoryPatterns{
			{CategoryPermission, []string{
				"permission denied",
				"access denied",
				"access is denied",
				"operation not permitted",
				"read-only file system",
			}},
			{CategoryDiskSpace, []string{
				"no space left on device",
				"not enough space on the disk",
				"disk full",
				"quota exceeded",
			}},
			{CategoryBusy, []string{
				"being used by another process",
				"resource busy",
				"text file busy",
				"sharing violation",
			}},
			{CategoryPath, []string{
				"no such file or directory",
				"cannot find the file",
				"cannot find the path",
				"file not found",
				"path does not exist",
			}},
			{CategoryParse, []string{
				"unsupported save format",
				"malformed save",
			}},
			{CategoryCopy, []string{
				"short write",
				"input/output error",
				"i/o error",
			}},
		},
	}
}

// Classify returns the category of err, checking wrapped errno values before
// falling back to message patterns.
func Classify(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	var actionable ActionableError
	if errors.As(err, &actionable) {
		return actionable.Category()
	}

	switch {
	case errors.Is(err, syscall.ENOSPC):
		return CategoryDiskSpace
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EROFS):
		return CategoryPermission
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.ETXTBSY):
		return CategoryBusy
	case errors.Is(err, fs.ErrNotExist):
		return CategoryPath
	}

	return defaultMatcher.Match(err.Error())
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Immutable pattern table shared by Classify
	defaultMatcher = NewPatternMatcher()
)

type categoryPatterns struct {
	category ErrorCategory
	patterns []string
}

// patternMatcher is the concrete implementation of PatternMatcher.
// Categories are checked in table order so the more specific ones win.
type patternMatcher struct {
	patterns []categoryPatterns
}

// Match returns the error category based on pattern matching.
func (m *patternMatcher) Match(errorMsg string) ErrorCategory {
	lowerMsg := strings.ToLower(errorMsg)

	for _, entry := range m.patterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(lowerMsg, pattern) {
				return entry.category
			}
		}
	}

	return CategoryUnknown
}
