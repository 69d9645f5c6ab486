// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns per-chat state: the transcript, the document
// selection and the single in-flight flag.
//
// # Key Types
//
//   - Session: one chat, from creation until End
//   - Manager: holds the current Session and replaces it on "new chat"
//   - EndNotifier: receives the at-most-once end-of-session signal
//   - Archiver: optionally persists a finished transcript
//
// # Usage
//
//	mgr := session.NewManager(client, session.WithArchiver(store))
//	s := mgr.Current()
//	if !s.TryBegin() {
//	    return engine.ErrBusy
//	}
//	defer s.Finish()
//
// End is delivered at most once and never acknowledged; the backend may
// never observe it.
package session
