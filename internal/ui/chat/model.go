// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/model"
	"github.com/jeranaias/docqa-tui/internal/ui/styles"
)

// Controller is the part of *engine.Engine the chat surface drives.
type Controller interface {
	Submit(ctx context.Context, question string) (engine.Answer, error)
	Retry(ctx context.Context, id model.TurnID) (engine.Answer, error)
	Delete(id model.TurnID) error
	ClearChat() error
	NewChat(ctx context.Context) error
	RefreshDocuments(ctx context.Context) ([]string, error)
	RemoveDocument(ctx context.Context, name string) error
	Toggle(name string, included bool)
}

// Options configures optional behaviour of the chat surface.
type Options struct {
	// Subtitle is shown in the header, e.g. the server address.
	Subtitle string

	// Export writes the current transcript and returns the file path.
	// Nil disables ctrl+e.
	Export func(ctx context.Context) (string, error)

	// Resize is told the text width of an answer whenever the window size
	// changes it, so the answer renderer can wrap at that column.
	Resize func(width int)
}

// =============================================================================
// CHAT STATE
// =============================================================================

type focusArea int

const (
	focusInput focusArea = iota
	focusTranscript
	focusDocuments
)

// confirmPrompt is a yes/no question guarding a destructive action.
type confirmPrompt struct {
	question string
	action   tea.Cmd
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat surface.
type Model struct {
	ctrl   Controller
	opts   Options
	theme  *styles.Theme
	keys   KeyMap
	ctx    context.Context
	cancel context.CancelFunc

	// Dimensions
	width       int
	height      int
	ready       bool
	answerWidth int

	// UI Components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model

	// Transcript
	views *viewList

	// Status line
	status        string
	statusVisible bool

	busy bool

	// Document panel
	docs      []engine.DocumentItem
	docCursor int

	focus    focusArea
	confirm  *confirmPrompt
	showHelp bool

	toast    *toast
	toastSeq int
}

// New creates the chat model.
func New(ctrl Controller, theme *styles.Theme, opts Options) Model {
	if theme == nil {
		theme = styles.NewTheme()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask a question about your documents..."
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.FocusedStyle.Prompt = theme.InputPrompt
	ta.CharLimit = 4096
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New(
		spinner.WithSpinner(styles.DotsSpinner.Bubbles()),
		spinner.WithStyle(theme.Spinner),
	)

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		ctrl:    ctrl,
		opts:    opts,
		theme:   theme,
		keys:    DefaultKeyMap(),
		ctx:     ctx,
		cancel:  cancel,
		input:   ta,
		spinner: sp,
		help:    help.New(),
		views:   newViewList(),
	}
}

// Init loads the document list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.refreshDocuments())
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.statusVisible {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case toastExpiredMsg:
		m.expireToast(msg.Seq)
		return m, nil

	case opDoneMsg:
		cmd := m.handleOpDone(msg)
		return m, cmd

	case exportDoneMsg:
		if msg.Err != nil {
			cmd := m.showToast("Export failed: "+msg.Err.Error(), true)
			return m, cmd
		}
		cmd := m.showToast("Exported to "+msg.Path, false)
		return m, cmd
	}

	return m.handleDisplay(msg)
}

// handleDisplay applies engine display messages to the view list.
func (m Model) handleDisplay(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	follow := m.viewport.AtBottom()

	switch msg := msg.(type) {
	case addUserMsg:
		m.views.add(view{id: msg.ID, kind: viewUser, content: msg.Question})
		follow = true
	case addAnswerMsg:
		m.views.add(view{id: msg.ID, kind: viewAnswer})
	case updateAnswerMsg:
		m.views.update(msg.ID, msg.Markup)
	case addErrorMsg:
		m.views.add(view{id: msg.ID, kind: viewError, content: msg.Message})
	case removeViewMsg:
		m.views.remove(msg.ID)
	case addActionsMsg:
		m.views.setActions(msg.Turn, msg.User, msg.Answer)
	case removeActionsMsg:
		m.views.removeActions(msg.Turn)
	case resetMsg:
		m.views.reset()
		m.statusVisible = false
	case statusMsg:
		wasVisible := m.statusVisible
		m.status, m.statusVisible = msg.Message, msg.Visible
		if m.statusVisible && !wasVisible {
			cmd = m.spinner.Tick
		}
	case busyMsg:
		m.busy = msg.Busy
	case documentsMsg:
		m.docs = msg.Items
		if m.docCursor >= len(m.docs) {
			m.docCursor = max(0, len(m.docs)-1)
		}
		return m, nil
	case noticeMsg:
		cmd = m.showToast(msg.Message, true)
		return m, cmd
	default:
		if m.focus == focusInput {
			m.input, cmd = m.input.Update(msg)
		}
		return m, cmd
	}

	m.refreshViewport(follow)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width, m.height = msg.Width, msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	w, h := m.transcriptSize()
	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.viewport.Width, m.viewport.Height = w, h
	}
	if aw := m.answerTextWidth(); aw != m.answerWidth {
		m.answerWidth = aw
		if m.opts.Resize != nil {
			m.opts.Resize(aw)
		}
	}

	m.input.SetWidth(max(10, m.width-4))
	m.help.Width = m.width
	m.refreshViewport(true)
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	if m.confirm != nil {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			action := m.confirm.action
			m.confirm = nil
			return m, action
		case key.Matches(msg, m.keys.Dismiss):
			m.confirm = nil
		}
		return m, nil
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.SwitchFocus):
		m.cycleFocus()
		return m, nil
	case key.Matches(msg, m.keys.Retry):
		cmd := m.retrySelected()
		return m, cmd
	case key.Matches(msg, m.keys.Delete):
		cmd := m.deleteSelected()
		return m, cmd
	case key.Matches(msg, m.keys.Clear):
		m.confirm = &confirmPrompt{question: "Clear the chat?", action: m.clearChat()}
		return m, nil
	case key.Matches(msg, m.keys.NewChat):
		m.confirm = &confirmPrompt{question: "Start a new chat? The current session ends.", action: m.newChat()}
		return m, nil
	case key.Matches(msg, m.keys.Export):
		cmd := m.export()
		return m, cmd
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	switch m.focus {
	case focusDocuments:
		return m.handleDocumentKey(msg)
	case focusTranscript:
		return m.handleTranscriptKey(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		cmd := m.submit()
		return m, cmd
	}
	if m.busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) cycleFocus() {
	next := (m.focus + 1) % 3
	if next == focusDocuments && m.theme.DocPanelWidth() == 0 {
		next = focusInput
	}
	m.focus = next
	if m.focus == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m Model) handleDocumentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.docCursor > 0 {
			m.docCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.docCursor < len(m.docs)-1 {
			m.docCursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if item, ok := m.currentDocument(); ok {
			return m, m.toggle(item.Name, !item.Selected)
		}
	case key.Matches(msg, m.keys.Remove):
		if item, ok := m.currentDocument(); ok {
			m.confirm = &confirmPrompt{
				question: fmt.Sprintf("Remove %s from the server?", item.Name),
				action:   m.removeDocument(item.Name),
			}
		}
	}
	return m, nil
}

func (m Model) handleTranscriptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.views.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.views.move(1)
	default:
		return m, nil
	}
	m.refreshViewport(false)
	return m, nil
}

func (m Model) currentDocument() (engine.DocumentItem, bool) {
	if m.docCursor < 0 || m.docCursor >= len(m.docs) {
		return engine.DocumentItem{}, false
	}
	return m.docs[m.docCursor], true
}

// =============================================================================
// ENGINE COMMANDS
// =============================================================================

func (m *Model) submit() tea.Cmd {
	question := m.input.Value()
	if m.busy {
		return m.showToast("Wait for the current answer to finish", false)
	}
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		_, err := ctrl.Submit(ctx, question)
		return opDoneMsg{Op: "submit", Err: err, Question: question}
	}
}

func (m *Model) retrySelected() tea.Cmd {
	turn, ok := m.views.target()
	if !ok {
		return m.showToast("Nothing to retry", false)
	}
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		_, err := ctrl.Retry(ctx, turn)
		return opDoneMsg{Op: "retry", Err: err}
	}
}

func (m *Model) deleteSelected() tea.Cmd {
	turn, ok := m.views.target()
	if !ok {
		return m.showToast("Nothing to delete", false)
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		return opDoneMsg{Op: "delete", Err: ctrl.Delete(turn)}
	}
}

func (m Model) clearChat() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return opDoneMsg{Op: "clear", Err: ctrl.ClearChat()}
	}
}

func (m Model) newChat() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return opDoneMsg{Op: "new chat", Err: ctrl.NewChat(ctx)}
	}
}

func (m Model) refreshDocuments() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		_, err := ctrl.RefreshDocuments(ctx)
		return opDoneMsg{Op: "documents", Err: err}
	}
}

func (m Model) toggle(name string, included bool) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Toggle(name, included)
		return nil
	}
}

func (m Model) removeDocument(name string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return opDoneMsg{Op: "remove", Err: ctrl.RemoveDocument(ctx, name)}
	}
}

func (m *Model) export() tea.Cmd {
	if m.opts.Export == nil {
		return m.showToast("Export is not available", false)
	}
	fn, ctx := m.opts.Export, m.ctx
	return func() tea.Msg {
		path, err := fn(ctx)
		return exportDoneMsg{Path: path, Err: err}
	}
}

// handleOpDone turns rejected operations into toasts. Failed submissions
// already show an error view, and failed document operations a notice.
func (m *Model) handleOpDone(msg opDoneMsg) tea.Cmd {
	switch {
	case msg.Err == nil:
		// The input keeps a rejected question; clear it only once the
		// engine has taken it, and only if it was not edited meanwhile.
		if msg.Op == "submit" && m.input.Value() == msg.Question {
			m.input.Reset()
		}
		return nil
	case errors.Is(msg.Err, engine.ErrBusy):
		return m.showToast("Wait for the current answer to finish", false)
	case errors.Is(msg.Err, engine.ErrNoDocuments):
		return m.showToast("Upload or select at least one document first", true)
	case errors.Is(msg.Err, engine.ErrUnknownTurn):
		return m.showToast("That turn no longer exists", false)
	}
	return nil
}
