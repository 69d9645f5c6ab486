// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine drives a chat: it submits questions, streams answers into
// a Display, commits finished turns to the session transcript, and keeps
// the rendered view consistent with the transcript across retry and delete.
//
// # Submission Flow
//
//  1. Reject blank questions, a busy session, or an empty document store
//  2. Add (or reuse) the user view and show "Starting..."
//  3. POST /ask with the recent history and the selected sources
//  4. Hide the status, add an answer view, ingest the stream
//  5. Re-render the whole answer on every token
//  6. Commit the turn and attach retry/delete actions
//
// On failure the partial answer view is replaced by an error view and the
// transcript is left unchanged.
//
// Engine methods may be called from any goroutine. Display calls are made
// from the goroutine running the operation.
package engine
