// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/model"
	"github.com/jeranaias/docqa-tui/internal/ui/styles"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeController struct {
	mu        sync.Mutex
	submitted []string
	retried   []model.TurnID
	deleted   []model.TurnID
	toggled   map[string]bool
	removed   []string
	cleared   int
	renewed   int
	submitErr error
}

func newFakeController() *fakeController {
	return &fakeController{toggled: make(map[string]bool)}
}

func (f *fakeController) Submit(_ context.Context, q string) (engine.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, q)
	return engine.Answer{}, f.submitErr
}

func (f *fakeController) Retry(_ context.Context, id model.TurnID) (engine.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, id)
	return engine.Answer{}, nil
}

func (f *fakeController) Delete(id model.TurnID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeController) ClearChat() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

func (f *fakeController) NewChat(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewed++
	return nil
}

func (f *fakeController) RefreshDocuments(context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeController) RemoveDocument(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeController) Toggle(name string, included bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggled[name] = included
}

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) { r.msgs = append(r.msgs, msg) }

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(t *testing.T, ctrl Controller) Model {
	t.Helper()
	m := New(ctrl, styles.NewTheme(), Options{Subtitle: "http://127.0.0.1:8000"})
	return step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func stepCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// committedTurn plays the display messages of one successful submission.
func committedTurn(t *testing.T, m Model, turn model.TurnID, user, answer engine.ViewID, q, a string) Model {
	t.Helper()
	m = step(t, m, addUserMsg{ID: user, Question: q})
	m = step(t, m, addAnswerMsg{ID: answer})
	m = step(t, m, updateAnswerMsg{ID: answer, Markup: a})
	return step(t, m, addActionsMsg{Turn: turn, User: user, Answer: answer})
}

// =============================================================================
// VIEW LIST
// =============================================================================

func TestViewList_TurnOrderFollowsQuestions(t *testing.T) {
	l := newViewList()
	l.add(view{id: 1, kind: viewUser})
	l.add(view{id: 2, kind: viewAnswer})
	l.add(view{id: 3, kind: viewUser})
	l.add(view{id: 4, kind: viewAnswer})

	// A retried first question is committed under a newer turn id.
	l.setActions(7, 1, 2)
	l.setActions(5, 3, 4)

	assert.Equal(t, []model.TurnID{7, 5}, l.turns())
	assert.Equal(t, 1, l.number(7))
	assert.Equal(t, 2, l.number(5))

	turn, ok := l.turnOf(4)
	require.True(t, ok)
	assert.Equal(t, model.TurnID(5), turn)
}

func TestViewList_MoveAndTarget(t *testing.T) {
	l := newViewList()
	_, ok := l.target()
	assert.False(t, ok)

	for i := 1; i <= 3; i++ {
		l.add(view{id: engine.ViewID(i*2 - 1), kind: viewUser})
		l.add(view{id: engine.ViewID(i * 2), kind: viewAnswer})
		l.setActions(model.TurnID(i), engine.ViewID(i*2-1), engine.ViewID(i*2))
	}

	turn, ok := l.target()
	require.True(t, ok)
	assert.Equal(t, model.TurnID(3), turn, "no selection targets the last turn")

	l.move(-1)
	assert.Equal(t, model.TurnID(3), l.selected)
	l.move(-1)
	l.move(-1)
	l.move(-1)
	assert.Equal(t, model.TurnID(1), l.selected, "clamped at the first turn")

	l.removeActions(1)
	assert.Equal(t, model.TurnID(0), l.selected)

	l.remove(99)
	l.update(99, "ignored")
	assert.Len(t, l.views, 6)

	l.reset()
	assert.Empty(t, l.views)
	assert.Empty(t, l.turns())
}

// =============================================================================
// DISPLAY
// =============================================================================

func TestDisplay_SendsMessagesInOrder(t *testing.T) {
	d := NewDisplay()

	// Calls before Attach are dropped but still allocate ids.
	first := d.AddUser("dropped")

	rec := &recordingSender{}
	d.Attach(rec)

	user := d.AddUser("What is entropy?")
	d.ShowStatus("Retrieving...")
	d.HideStatus()
	answer := d.AddAnswer()
	d.UpdateAnswer(answer, "Entropy is")
	d.AddActions(1, user, answer)
	items := []engine.DocumentItem{{Name: "a.pdf", Selected: true}}
	d.SetDocuments(items)
	items[0].Selected = false

	assert.Less(t, first, user)
	assert.Less(t, user, answer)
	require.Len(t, rec.msgs, 7)
	assert.Equal(t, addUserMsg{ID: user, Question: "What is entropy?"}, rec.msgs[0])
	assert.Equal(t, statusMsg{Message: "Retrieving...", Visible: true}, rec.msgs[1])
	assert.Equal(t, statusMsg{}, rec.msgs[2])
	assert.Equal(t, addAnswerMsg{ID: answer}, rec.msgs[3])
	assert.Equal(t, updateAnswerMsg{ID: answer, Markup: "Entropy is"}, rec.msgs[4])
	assert.Equal(t, addActionsMsg{Turn: 1, User: user, Answer: answer}, rec.msgs[5])

	docs := rec.msgs[6].(documentsMsg)
	assert.True(t, docs.Items[0].Selected, "the display copies the slice it was given")
}

// =============================================================================
// MODEL
// =============================================================================

func TestModel_RendersTranscript(t *testing.T) {
	m := newTestModel(t, newFakeController())
	assert.Contains(t, m.View(), "ask a question")

	m = committedTurn(t, m, 1, 1, 2, "Define entropy", "Entropy is S.")
	m = step(t, m, addErrorMsg{ID: 3, Message: "Error: cannot reach answer service"})

	out := m.View()
	assert.Contains(t, out, "You #1")
	assert.Contains(t, out, "Define entropy")
	assert.Contains(t, out, "Entropy is S.")
	assert.Contains(t, out, "Error: cannot reach answer service")

	m = step(t, m, removeViewMsg{ID: 3})
	assert.NotContains(t, m.View(), "cannot reach")

	m = step(t, m, resetMsg{})
	assert.NotContains(t, m.View(), "Define entropy")
}

func TestModel_SubmitRunsEngine(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m.input.SetValue("What is entropy?")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, "What is entropy?", m.input.Value(), "input is kept until the engine accepts")

	msg := cmd()
	assert.Equal(t, opDoneMsg{Op: "submit", Question: "What is entropy?"}, msg)
	assert.Equal(t, []string{"What is entropy?"}, ctrl.submitted)

	m = step(t, m, msg)
	assert.Empty(t, m.input.Value(), "input is cleared once the answer is done")
}

func TestModel_RejectedSubmitKeepsInput(t *testing.T) {
	for _, err := range []error{engine.ErrNoDocuments, engine.ErrEmptyQuestion} {
		t.Run(err.Error(), func(t *testing.T) {
			ctrl := newFakeController()
			ctrl.submitErr = err
			m := newTestModel(t, ctrl)

			m.input.SetValue("What is entropy?")
			m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
			require.NotNil(t, cmd)
			m = step(t, m, cmd())

			assert.Equal(t, "What is entropy?", m.input.Value())
		})
	}
}

func TestModel_SubmitKeepsEditedInput(t *testing.T) {
	m := newTestModel(t, newFakeController())

	m.input.SetValue("first")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m.input.SetValue("follow-up")
	m = step(t, m, cmd())

	assert.Equal(t, "follow-up", m.input.Value())
}

func TestModel_UsesThemeStyles(t *testing.T) {
	theme := styles.NewTheme()
	m := New(newFakeController(), theme, Options{})
	assert.Equal(t, theme.InputPrompt.GetForeground(), m.input.FocusedStyle.Prompt.GetForeground())
	assert.True(t, m.input.FocusedStyle.Prompt.GetBold())

	m = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = committedTurn(t, m, 1, 1, 2, "q", "a")
	assert.Contains(t, m.View(), "You #1")

	m = step(t, m, noticeMsg{Message: "Could not remove a.pdf: boom"})
	assert.Contains(t, m.renderStatusLine(), theme.ToastError.Render("Could not remove a.pdf: boom"))
}

func TestModel_ResizeReportsAnswerWidth(t *testing.T) {
	var widths []int
	m := New(newFakeController(), styles.NewTheme(), Options{
		Resize: func(w int) { widths = append(widths, w) },
	})

	m = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	require.Len(t, widths, 1)
	assert.Equal(t, m.answerTextWidth(), widths[0])
	tw, _ := m.transcriptSize()
	assert.Less(t, widths[0], tw, "answers are narrower than the transcript")

	m = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	assert.Len(t, widths, 1, "a height change keeps the width")

	m = step(t, m, tea.WindowSizeMsg{Width: 90, Height: 30})
	require.Len(t, widths, 2)
	assert.Less(t, widths[1], widths[0])
	assert.Equal(t, m.answerTextWidth(), widths[1])
}

func TestModel_BusyBlocksSubmit(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m = step(t, m, busyMsg{Busy: true})
	m.input.SetValue("second question")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, ctrl.submitted)
	assert.Equal(t, "second question", m.input.Value())
	require.NotNil(t, m.toast)
	assert.Contains(t, m.toast.message, "Wait")
	assert.Contains(t, m.View(), "input is disabled")

	m = step(t, m, busyMsg{Busy: false})
	assert.NotContains(t, m.View(), "input is disabled")
}

func TestModel_RetryAndDeleteTargetTurns(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, m.toast)
	assert.Equal(t, "Nothing to retry", m.toast.message)

	m = committedTurn(t, m, 1, 1, 2, "q1", "a1")
	m = committedTurn(t, m, 2, 3, 4, "q2", "a2")

	_, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []model.TurnID{2}, ctrl.retried)

	// Select the first turn from the transcript pane.
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, model.TurnID(1), m.views.selected)
	assert.Contains(t, m.View(), "ctrl+r retry")

	_, cmd = stepCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []model.TurnID{1}, ctrl.deleted)
}

func TestModel_ConfirmGuardsClearAndNewChat(t *testing.T) {
	tests := []struct {
		name    string
		key     tea.KeyMsg
		answer  tea.KeyMsg
		cleared int
		renewed int
	}{
		{"clear confirmed", tea.KeyMsg{Type: tea.KeyCtrlL}, runes("y"), 1, 0},
		{"clear dismissed", tea.KeyMsg{Type: tea.KeyCtrlL}, runes("n"), 0, 0},
		{"new chat confirmed", tea.KeyMsg{Type: tea.KeyCtrlN}, runes("y"), 0, 1},
		{"new chat escaped", tea.KeyMsg{Type: tea.KeyCtrlN}, tea.KeyMsg{Type: tea.KeyEsc}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			m := newTestModel(t, ctrl)

			m = step(t, m, tt.key)
			require.NotNil(t, m.confirm)
			assert.Contains(t, m.View(), "?")

			m, cmd := stepCmd(t, m, tt.answer)
			assert.Nil(t, m.confirm)
			if cmd != nil {
				cmd()
			}
			assert.Equal(t, tt.cleared, ctrl.cleared)
			assert.Equal(t, tt.renewed, ctrl.renewed)
		})
	}
}

func TestModel_DocumentPanel(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m = step(t, m, documentsMsg{Items: []engine.DocumentItem{
		{Name: "thermo.pdf", Selected: true},
		{Name: "optics.pdf", Selected: false},
	}})
	assert.Contains(t, m.View(), "Documents 1/2")

	// input -> transcript -> documents
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusDocuments, m.focus)

	_, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeySpace})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, map[string]bool{"thermo.pdf": false}, ctrl.toggled)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = step(t, m, runes("x"))
	require.NotNil(t, m.confirm)
	assert.Contains(t, m.confirm.question, "optics.pdf")

	_, cmd = stepCmd(t, m, runes("y"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"optics.pdf"}, ctrl.removed)

	// The cursor is clamped when the list shrinks.
	m = step(t, m, documentsMsg{Items: []engine.DocumentItem{{Name: "thermo.pdf"}}})
	assert.Equal(t, 0, m.docCursor)
}

func TestModel_OperationErrorsBecomeToasts(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{engine.ErrNoDocuments, "Upload or select at least one document first"},
		{engine.ErrBusy, "Wait for the current answer to finish"},
		{engine.ErrUnknownTurn, "That turn no longer exists"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			m := newTestModel(t, newFakeController())
			m = step(t, m, opDoneMsg{Op: "submit", Err: tt.err})
			require.NotNil(t, m.toast)
			assert.Equal(t, tt.want, m.toast.message)
		})
	}

	m := newTestModel(t, newFakeController())
	m = step(t, m, opDoneMsg{Op: "submit", Err: context.Canceled})
	assert.Nil(t, m.toast)
}

func TestModel_ToastExpiry(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m = step(t, m, noticeMsg{Message: "Could not remove a.pdf: boom"})
	require.NotNil(t, m.toast)
	assert.True(t, m.toast.isError)
	seq := m.toast.seq

	m = step(t, m, noticeMsg{Message: "newer"})
	m = step(t, m, toastExpiredMsg{Seq: seq})
	require.NotNil(t, m.toast, "a stale expiry leaves the newer toast")

	m = step(t, m, toastExpiredMsg{Seq: m.toast.seq})
	assert.Nil(t, m.toast)
}

func TestModel_Export(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	require.NotNil(t, m.toast)
	assert.Equal(t, "Export is not available", m.toast.message)

	m = New(newFakeController(), styles.NewTheme(), Options{
		Export: func(context.Context) (string, error) { return "/tmp/docqa_x.md", nil },
	})
	m = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	require.NotNil(t, cmd)
	m = step(t, m, cmd())
	require.NotNil(t, m.toast)
	assert.Equal(t, "Exported to /tmp/docqa_x.md", m.toast.message)
}

func TestModel_QuitCancelsContext(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Error(t, m.ctx.Err())
}

func TestModel_NarrowLayoutSkipsDocuments(t *testing.T) {
	m := New(newFakeController(), styles.NewTheme(), Options{})
	m = step(t, m, tea.WindowSizeMsg{Width: 50, Height: 30})
	assert.NotContains(t, m.View(), "Documents")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusInput, m.focus)
}
