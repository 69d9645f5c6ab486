// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/model"
)

// =============================================================================
// DISPLAY MESSAGES
// =============================================================================

// These mirror the engine.Display calls one to one.

type addUserMsg struct {
	ID       engine.ViewID
	Question string
}

type addAnswerMsg struct {
	ID engine.ViewID
}

type updateAnswerMsg struct {
	ID     engine.ViewID
	Markup string
}

type statusMsg struct {
	Message string
	Visible bool
}

type addErrorMsg struct {
	ID      engine.ViewID
	Message string
}

type addActionsMsg struct {
	Turn   model.TurnID
	User   engine.ViewID
	Answer engine.ViewID
}

type removeActionsMsg struct {
	Turn model.TurnID
}

type removeViewMsg struct {
	ID engine.ViewID
}

type busyMsg struct {
	Busy bool
}

type documentsMsg struct {
	Items []engine.DocumentItem
}

type noticeMsg struct {
	Message string
}

type resetMsg struct{}

// =============================================================================
// COMMAND RESULTS
// =============================================================================

// opDoneMsg reports the outcome of an engine operation run as a command.
type opDoneMsg struct {
	Op  string
	Err error

	// Question is the submitted text, set for submit only.
	Question string
}

// exportDoneMsg reports where a transcript export was written.
type exportDoneMsg struct {
	Path string
	Err  error
}

// toastExpiredMsg dismisses the toast with the given sequence number.
type toastExpiredMsg struct {
	Seq int
}
