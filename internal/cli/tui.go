// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/docqa-tui/internal/ui/chat"
	"github.com/jeranaias/docqa-tui/internal/ui/styles"
)

// TUIExportFormat is the format ctrl+e writes.
const TUIExportFormat = "html"

// HandleTUI runs the full-screen chat until the user quits.
func HandleTUI(ctx context.Context, app *App, _ Args) error {
	if err := RequiresTTY("the chat interface"); err != nil {
		return NewValidationErrorWithExample("terminal", "", err.Error(), "docqa chat, or docqa ask QUESTION")
	}

	display := chat.NewDisplay()
	eng := app.NewEngine(display)

	m := chat.New(eng, styles.NewTheme(), chat.Options{
		Subtitle: app.Client.BaseURL(),
		Export: func(context.Context) (string, error) {
			return app.ExportCurrent(TUIExportFormat, false)
		},
		Resize: func(width int) {
			if err := app.Pipeline.SetWidth(width); err != nil {
				app.Logger.Warn("answer renderer not resized", zap.Int("width", width), zap.Error(err))
			}
		},
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	display.Attach(p)

	app.Logger.Info("tui started", zap.String("server", app.Client.BaseURL()))
	if _, err := p.Run(); err != nil {
		return NewCommandError("tui", "run", "terminal interface stopped", err)
	}
	return nil
}
