// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen chat surface of docqa.
//
// The Model is a Bubble Tea model holding the rendered transcript, the
// question input, the document panel and the status line. The engine drives
// it through a Display, which turns each engine.Display call into a message
// sent to the running program:
//
//	display := chat.NewDisplay()
//	eng := engine.New(client, sessions, display, engine.WithFormatter(f))
//	p := tea.NewProgram(chat.New(eng, theme, chat.Options{}), tea.WithAltScreen())
//	display.Attach(p)
//	_, err := p.Run()
//
// Engine operations never run inside Update; they are issued as commands so
// the display's Send calls cannot block the event loop.
package chat
