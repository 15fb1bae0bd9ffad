// Package errors classifies savegame I/O failures and attaches actionable suggestions.
//
// Errors raised while reading, copying, moving or deleting save files fall into two groups:
// operator-actionable ones (disk full, permission denied, file missing, file busy) that the
// user can fix without help, and unexpected ones that are worth reporting. IsActionable tells
// them apart so callers can suppress the "please report this" affordance.
//
// Basic Usage:
//
//	enricher := errors.NewEnricher()
//	if err := os.Rename(src, dst); err != nil {
//	    enriched := enricher.Enrich(err, dst)
//	    fmt.Println(enriched.Error())
//	    fmt.Println(errors.FormatSuggestions(enriched))
//	}
//
// The enricher extracts paths from error messages when none is supplied:
//
//	err := errors.New("open /saves/quicksave.ess: permission denied")
//	enriched := enricher.Enrich(err, "") // affected path is /saves/quicksave.ess
package errors

import (
	"errors"
	"strings"
)

// Exported constants.
const (
	CategoryBusy       ErrorCategory = "busy"
	CategoryCopy       ErrorCategory = "copy"
	CategoryDiskSpace  ErrorCategory = "disk_space"
	CategoryParse      ErrorCategory = "parse"
	CategoryPath       ErrorCategory = "path"
	CategoryPermission ErrorCategory = "permission"
	CategoryUnknown    ErrorCategory = "unknown"
)

// ActionableError represents an error with actionable suggestions for the user.
type ActionableError interface {
	error
	OriginalError() string
	Category() ErrorCategory
	Suggestions() []string
	AffectedPath() string
	Unwrap() error
}

// NewActionableError creates a new ActionableError with the given details.
func NewActionableError(
	originalError string,
	category ErrorCategory,
	suggestions []string,
	affectedPath string,
) ActionableError {
	return &actionableError{
		originalError: originalError,
		category:      category,
		suggestions:   suggestions,
		affectedPath:  affectedPath,
	}
}

// ErrorCategory represents the type of error that occurred.
type ErrorCategory string

// Actionable reports whether errors of this category are expected and fixable by the user.
func (c ErrorCategory) Actionable() bool {
	switch c {
	case CategoryPermission, CategoryDiskSpace, CategoryPath, CategoryBusy:
		return true
	case CategoryCopy, CategoryParse, CategoryUnknown:
		return false
	default:
		return false
	}
}

// FormatSuggestions formats the suggestions from an ActionableError as a bulleted list
// for display in the TUI. Returns empty string if the error is nil or has no suggestions.
func FormatSuggestions(err error) string {
	if err == nil {
		return ""
	}

	var actionable ActionableError
	if !errors.As(err, &actionable) {
		return ""
	}

	suggestions := actionable.Suggestions()
	if len(suggestions) == 0 {
		return ""
	}

	var builder strings.Builder

	for i, suggestion := range suggestions {
		if i > 0 {
			builder.WriteString("\n")
		}

		builder.WriteString("  • ")
		builder.WriteString(suggestion)
	}

	return builder.String()
}

// IsActionable reports whether err is an expected, operator-actionable failure
// (out of space, permission denied, missing file, file held by another process).
// Such errors should not offer automated error reporting.
func IsActionable(err error) bool {
	if err == nil {
		return false
	}

	return Classify(err).Actionable()
}

// actionableError is the concrete implementation of ActionableError.
type actionableError struct {
	originalError string
	category      ErrorCategory
	suggestions   []string
	affectedPath  string
	cause         error
}

// AffectedPath returns the file path affected by this error.
func (e *actionableError) AffectedPath() string {
	return e.affectedPath
}

// Category returns the error category.
func (e *actionableError) Category() ErrorCategory {
	return e.category
}

// Error implements the error interface.
func (e *actionableError) Error() string {
	return e.originalError
}

// OriginalError returns the original error message.
func (e *actionableError) OriginalError() string {
	return e.originalError
}

// Suggestions returns the list of actionable suggestions.
func (e *actionableError) Suggestions() []string {
	return e.suggestions
}

// Unwrap returns the enriched error, if any.
func (e *actionableError) Unwrap() error {
	return e.cause
}
