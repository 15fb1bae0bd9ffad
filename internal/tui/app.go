package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/savegames/internal/tui/shared"
)

// Run shows the browser until the user quits or ctx is cancelled.
// The bridge is closed on return.
func Run(ctx context.Context, engine Engine, bridge *shared.EventBridge, opts ...tea.ProgramOption) error {
	defer bridge.Close()

	model := NewModel(ctx, engine, bridge)

	options := append([]tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	}, opts...)

	if _, err := tea.NewProgram(model, options...).Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("save browser: %w", err)
	}

	return nil
}
