// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import "github.com/jeranaias/docqa-tui/internal/model"

// ViewID identifies a rendered transcript element. Zero is never a valid
// view.
type ViewID uint64

// DocumentItem is one row of the document panel.
type DocumentItem struct {
	Name     string
	Selected bool
}

// Display is the rendered side of the chat. Implementations must ignore
// calls that name views they no longer hold.
type Display interface {
	// AddUser appends a question view.
	AddUser(question string) ViewID

	// AddAnswer appends an empty answer view.
	AddAnswer() ViewID

	// UpdateAnswer replaces an answer view's content with rendered markup.
	UpdateAnswer(id ViewID, markup string)

	// ShowStatus shows or re-shows the working indicator.
	ShowStatus(message string)

	// HideStatus removes the working indicator.
	HideStatus()

	// AddError appends a plain-text error view.
	AddError(message string) ViewID

	// AddActions attaches retry/delete affordances to a committed turn.
	AddActions(turn model.TurnID, user, answer ViewID)

	// RemoveActions drops a turn's affordances.
	RemoveActions(turn model.TurnID)

	// Remove deletes a view.
	Remove(id ViewID)

	// SetBusy enables or disables input.
	SetBusy(busy bool)

	// SetDocuments redraws the document panel.
	SetDocuments(items []DocumentItem)

	// Notice shows a blocking message such as a failed document mutation.
	Notice(message string)

	// Reset clears every view.
	Reset()
}

// =============================================================================
// NOP DISPLAY
// =============================================================================

// NopDisplay discards everything. It hands out increasing view ids so the
// engine's bookkeeping still works. It is not safe for concurrent use.
type NopDisplay struct {
	next ViewID
}

func (d *NopDisplay) id() ViewID {
	d.next++
	return d.next
}

func (d *NopDisplay) AddUser(string) ViewID                   { return d.id() }
func (d *NopDisplay) AddAnswer() ViewID                       { return d.id() }
func (d *NopDisplay) UpdateAnswer(ViewID, string)             {}
func (d *NopDisplay) ShowStatus(string)                       {}
func (d *NopDisplay) HideStatus()                             {}
func (d *NopDisplay) AddError(string) ViewID                  { return d.id() }
func (d *NopDisplay) AddActions(model.TurnID, ViewID, ViewID) {}
func (d *NopDisplay) RemoveActions(model.TurnID)              {}
func (d *NopDisplay) Remove(ViewID)                           {}
func (d *NopDisplay) SetBusy(bool)                            {}
func (d *NopDisplay) SetDocuments([]DocumentItem)             {}
func (d *NopDisplay) Notice(string)                           {}
func (d *NopDisplay) Reset()                                  {}
