package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
	"github.com/isaac-jh/ym-library/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive tracker board.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/ymlib-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)
	r.client = services.NewClientFromConfig(r.config.API, fileLogger)

	w, err := r.openBoard(ctx, true, false)
	if err != nil {
		return err
	}
	defer w.Close()

	if w.session == nil {
		return shared.ErrNotAuthenticated
	}

	model := ui.NewModel(ctx, w.board, w.client, w.session, fileLogger)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
