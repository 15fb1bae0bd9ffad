package errors

import "fmt"

// SuggestionGenerator generates actionable suggestions based on error category.
type SuggestionGenerator interface {
	Generate(category ErrorCategory, affectedPath string) []string
}

// NewSuggestionGenerator creates a new SuggestionGenerator.
func NewSuggestionGenerator() SuggestionGenerator {
	return &suggestionGenerator{}
}

// suggestionGenerator is the concrete implementation of SuggestionGenerator.
type suggestionGenerator struct{}

// Generate returns actionable suggestions based on the error category and affected path.
func (g *suggestionGenerator) Generate(category ErrorCategory, affectedPath string) []string {
	switch category {
	case CategoryPermission:
		return g.generatePermissionSuggestions(affectedPath)
	case CategoryDiskSpace:
		return g.generateDiskSpaceSuggestions(affectedPath)
	case CategoryPath:
		return g.generatePathSuggestions(affectedPath)
	case CategoryBusy:
		return g.generateBusySuggestions(affectedPath)
	case CategoryParse:
		return g.generateParseSuggestions(affectedPath)
	case CategoryCopy:
		return g.generateCopySuggestions(affectedPath)
	case CategoryUnknown:
		return g.generateUnknownSuggestions(affectedPath)
	default:
		return g.generateUnknownSuggestions(affectedPath)
	}
}

func (g *suggestionGenerator) generateBusySuggestions(path string) []string {
	suggestions := []string{
		"The game may still be writing this save; wait a moment and refresh",
		"Close the game before moving or deleting saves",
	}

	if path != "" {
		suggestions = append(suggestions, "Check which process holds "+path)
	}

	return suggestions
}

func (g *suggestionGenerator) generateCopySuggestions(_ string) []string {
	return []string{
		"Check if there is sufficient disk space on the destination",
		"Try the operation again - this may be a transient I/O error",
		"Check system logs for hardware issues",
	}
}

func (g *suggestionGenerator) generateDiskSpaceSuggestions(path string) []string {
	suggestions := []string{
		"Free up space on the destination device",
		"Remove old saves you no longer need",
	}

	if path != "" {
		suggestions = append(suggestions, "Verify disk usage for the filesystem containing "+path)
	}

	return suggestions
}

func (g *suggestionGenerator) generateParseSuggestions(path string) []string {
	suggestions := []string{
		"The save may be corrupt or from an unsupported game version",
		"Load the save in the game to confirm it still works",
	}

	if path != "" {
		suggestions = append(suggestions, "Keep a backup of "+path+" before overwriting it")
	}

	return suggestions
}

func (g *suggestionGenerator) generatePathSuggestions(path string) []string {
	suggestions := []string{
		"The save may have been deleted or renamed by the game; refresh the list",
	}

	if path != "" {
		suggestions = append(suggestions, "Check if the path exists: "+path)
	} else {
		suggestions = append(suggestions, "Ensure the profile's save directory exists")
	}

	return suggestions
}

func (g *suggestionGenerator) generatePermissionSuggestions(path string) []string {
	suggestions := []string{
		"Ensure you have read/write permissions for the save directory",
	}

	if path != "" {
		suggestions = append(suggestions, fmt.Sprintf("Check permissions with 'ls -la %s'", path))
	} else {
		suggestions = append(suggestions, "Check permissions with 'ls -la' on the affected path")
	}

	suggestions = append(suggestions, "Clear the read-only attribute if the file is write protected")

	return suggestions
}

func (g *suggestionGenerator) generateUnknownSuggestions(path string) []string {
	suggestions := []string{
		"Check the error message for more details",
		"Verify file and directory permissions",
	}

	if path != "" {
		suggestions = append(suggestions, "Verify the path is accessible: "+path)
	}

	return suggestions
}
