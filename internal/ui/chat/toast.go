// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// TOASTS
// =============================================================================

const (
	// DefaultToastDuration is the auto-dismiss duration for status toasts.
	DefaultToastDuration = 4 * time.Second

	// ErrorToastDuration is longer so errors can be read.
	ErrorToastDuration = 8 * time.Second
)

// toast is a non-blocking notification. Only the newest is shown.
type toast struct {
	seq     int
	message string
	isError bool
}

// showToast replaces the current toast and schedules its dismissal.
func (m *Model) showToast(message string, isError bool) tea.Cmd {
	m.toastSeq++
	m.toast = &toast{seq: m.toastSeq, message: message, isError: isError}

	d := DefaultToastDuration
	if isError {
		d = ErrorToastDuration
	}
	seq := m.toastSeq
	return tea.Tick(d, func(time.Time) tea.Msg {
		return toastExpiredMsg{Seq: seq}
	})
}

func (m *Model) expireToast(seq int) {
	if m.toast != nil && m.toast.seq == seq {
		m.toast = nil
	}
}
