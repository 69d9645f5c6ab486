// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docqa-tui/internal/util"
)

// Fixed rows around the transcript: header, status line, input box with
// border, and the help line.
const (
	headerHeight = 1
	statusHeight = 1
	inputHeight  = 5
	footerHeight = 1
)

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) transcriptSize() (int, int) {
	w := m.width - m.theme.DocPanelWidth()
	h := m.height - headerHeight - statusHeight - inputHeight - footerHeight
	return max(w, 10), max(h, 3)
}

// bubbleWidth is the width given to the transcript bubbles.
func (m Model) bubbleWidth() int {
	w, _ := m.transcriptSize()
	return max(w-3, 10)
}

// answerTextWidth is the room for answer text inside its bubble, which
// adds a left border and one column of padding.
func (m Model) answerTextWidth() int {
	return m.bubbleWidth() - m.theme.AnswerBubble.GetHorizontalFrameSize()
}

// refreshViewport re-renders the transcript into the viewport. With follow
// set the view stays pinned to the newest content.
func (m *Model) refreshViewport(follow bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.confirm != nil {
		return m.renderOverlay(m.renderConfirm())
	}
	if m.showHelp {
		return m.renderOverlay(m.renderHelp())
	}

	body := m.viewport.View()
	if pw := m.theme.DocPanelWidth(); pw > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.renderDocuments(pw, m.viewport.Height))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatusLine(),
		m.renderInput(),
		m.renderFooter(),
	)
}

func (m Model) renderOverlay(box string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// =============================================================================
// HEADER AND FOOTER
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderBrand.Render("docqa")
	if m.opts.Subtitle != "" {
		title += "  " + m.theme.HeaderSubtitle.Render(m.opts.Subtitle)
	}
	return m.theme.Header.Width(m.width).Render(title)
}

func (m Model) renderFooter() string {
	return m.theme.StatusBar.Width(m.width).Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m Model) renderHelp() string {
	h := m.help
	h.ShowAll = true
	content := m.theme.ConfirmTitle.Render("Keys") + "\n\n" + h.FullHelpView(m.keys.FullHelp()) +
		"\n\n" + m.theme.ActionHint.Render("press any key to close")
	return m.theme.Toast.Render(content)
}

func (m Model) renderConfirm() string {
	content := m.theme.ConfirmTitle.Render(m.confirm.question) + "\n\n" +
		m.theme.ShortcutKey.Render("y") + m.theme.ShortcutDesc.Render(" yes   ") +
		m.theme.ShortcutKey.Render("n") + m.theme.ShortcutDesc.Render(" no")
	return m.theme.ConfirmBox.Render(content)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m Model) renderTranscript() string {
	if len(m.views.views) == 0 {
		return m.theme.EmptyState.Render(
			"Select documents on the right and ask a question.\n" +
				"Answers cite their sources as [file#chunk].")
	}

	contentWidth := m.bubbleWidth()

	var b strings.Builder
	for i, v := range m.views.views {
		if i > 0 {
			b.WriteString("\n")
		}
		turn, committed := m.views.turnOf(v.id)
		selected := committed && turn == m.views.selected

		switch v.kind {
		case viewUser:
			label := m.theme.UserLabel.Render("You")
			if committed {
				label += " " + m.theme.TurnNumber.Render(fmt.Sprintf("#%d", m.views.number(turn)))
			}
			if selected {
				label = m.theme.TurnSelected.Render(label)
			}
			if selected {
				label = m.theme.TurnSelected.Render(label)
			}
			b.WriteString(label + "\n")
			b.WriteString(m.theme.UserBubble.Width(contentWidth).Render(v.content))

		case viewAnswer:
			b.WriteString(m.theme.AnswerLabel.Render("Answer") + "\n")
			content := v.content
			if strings.TrimSpace(content) == "" {
				content = m.theme.ActionHint.Render("...")
			}
			b.WriteString(m.theme.AnswerBubble.Width(contentWidth).Render(strings.TrimRight(content, "\n")))
			if selected {
				b.WriteString("\n" + m.theme.ActionHint.Render("ctrl+r retry   ctrl+d delete"))
			}

		case viewError:
			b.WriteString(m.theme.ErrorBubble.Width(contentWidth).Render(v.content))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// DOCUMENT PANEL
// =============================================================================

func (m Model) renderDocuments(width, height int) string {
	style := m.theme.DocPanel
	if m.focus == focusDocuments {
		style = m.theme.DocPanelFocused
	}
	inner := max(width-4, 4)

	selected := 0
	for _, d := range m.docs {
		if d.Selected {
			selected++
		}
	}

	var b strings.Builder
	b.WriteString(m.theme.DocTitle.Render(fmt.Sprintf("Documents %d/%d", selected, len(m.docs))))
	b.WriteString("\n")
	if len(m.docs) == 0 {
		b.WriteString(m.theme.DocUnchecked.Render("none uploaded"))
	}
	for i, d := range m.docs {
		box := m.theme.DocUnchecked.Render("[ ]")
		if d.Selected {
			box = m.theme.DocChecked.Render("[x]")
		}
		name := util.TruncateWidth(d.Name, inner-4)
		if i == m.docCursor && m.focus == focusDocuments {
			name = m.theme.DocItemCursor.Render(name)
		} else {
			name = m.theme.DocItem.Render(name)
		}
		b.WriteString(box + " " + name + "\n")
	}

	return style.Width(width - 2).Height(max(height-2, 1)).Render(strings.TrimRight(b.String(), "\n"))
}

// =============================================================================
// STATUS LINE AND INPUT
// =============================================================================

func (m Model) renderStatusLine() string {
	left := ""
	if m.statusVisible {
		left = m.spinner.View() + " " + m.theme.StatusLine.Render(m.status)
	}

	right := ""
	if m.toast != nil {
		style := m.theme.ToastInfo
		if m.toast.isError {
			style = m.theme.ToastError
		}
		right = style.Render(util.TruncateWidth(m.toast.message, max(m.width-lipgloss.Width(left)-2, 10)))
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderInput() string {
	style := m.theme.InputContainer
	if m.focus == focusInput {
		style = m.theme.InputContainerFocused
	}
	content := m.input.View()
	if m.busy {
		content = m.theme.InputDisabled.Render("answering... (input is disabled until the answer completes)")
	}
	return style.Width(max(m.width-2, 10)).Render(content)
}
