package savegame

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileFilter decides which listed save files are kept.
type FileFilter interface {
	// ShouldInclude returns true if the save at the given path relative to the
	// save directory should be kept.
	ShouldInclude(relativePath string) bool
}

// GlobFilter implements FileFilter using glob patterns
type GlobFilter struct {
	normalizedPattern string
	isEmpty           bool
}

// NewGlobFilter creates a new GlobFilter with the given pattern
// Empty pattern matches all files
func NewGlobFilter(pattern string) *GlobFilter {
	return &GlobFilter{
		normalizedPattern: strings.ToLower(pattern),
		isEmpty:           pattern == "",
	}
}

// ShouldInclude returns true if the file should be included based on the glob pattern
// Case-insensitive matching
func (f *GlobFilter) ShouldInclude(relativePath string) bool {
	if f.isEmpty {
		return true
	}

	matched, err := doublestar.Match(f.normalizedPattern, strings.ToLower(relativePath))
	if err != nil {
		// If pattern is invalid, don't match
		return false
	}

	return matched
}

// ValidatePattern reports whether pattern is a well-formed glob.
func ValidatePattern(pattern string) bool {
	return doublestar.ValidatePattern(pattern)
}
