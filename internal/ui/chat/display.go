// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/model"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Display implements engine.Display by sending messages to the program.
// View ids are allocated here, so every call returns without waiting for
// the model. Calls made before Attach are dropped.
//
// Display must not be called from inside Model.Update: Send blocks until
// the event loop receives the message.
type Display struct {
	mu     sync.RWMutex
	sender Sender
	nextID atomic.Uint64
}

var _ engine.Display = (*Display)(nil)

// NewDisplay creates an unattached display.
func NewDisplay() *Display {
	return &Display{}
}

// Attach sets the program that receives display messages.
func (d *Display) Attach(s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sender = s
}

func (d *Display) send(msg tea.Msg) {
	d.mu.RLock()
	s := d.sender
	d.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

func (d *Display) id() engine.ViewID {
	return engine.ViewID(d.nextID.Add(1))
}

func (d *Display) AddUser(question string) engine.ViewID {
	id := d.id()
	d.send(addUserMsg{ID: id, Question: question})
	return id
}

func (d *Display) AddAnswer() engine.ViewID {
	id := d.id()
	d.send(addAnswerMsg{ID: id})
	return id
}

func (d *Display) UpdateAnswer(id engine.ViewID, markup string) {
	d.send(updateAnswerMsg{ID: id, Markup: markup})
}

func (d *Display) ShowStatus(message string) {
	d.send(statusMsg{Message: message, Visible: true})
}

func (d *Display) HideStatus() {
	d.send(statusMsg{})
}

func (d *Display) AddError(message string) engine.ViewID {
	id := d.id()
	d.send(addErrorMsg{ID: id, Message: message})
	return id
}

func (d *Display) AddActions(turn model.TurnID, user, answer engine.ViewID) {
	d.send(addActionsMsg{Turn: turn, User: user, Answer: answer})
}

func (d *Display) RemoveActions(turn model.TurnID) {
	d.send(removeActionsMsg{Turn: turn})
}

func (d *Display) Remove(id engine.ViewID) {
	d.send(removeViewMsg{ID: id})
}

func (d *Display) SetBusy(busy bool) {
	d.send(busyMsg{Busy: busy})
}

func (d *Display) SetDocuments(items []engine.DocumentItem) {
	cp := make([]engine.DocumentItem, len(items))
	copy(cp, items)
	d.send(documentsMsg{Items: cp})
}

func (d *Display) Notice(message string) {
	d.send(noticeMsg{Message: message})
}

func (d *Display) Reset() {
	d.send(resetMsg{})
}
