// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the transcript data structures for document Q&A chat.
//
// # Key Types
//
//   - Transcript: ordered, mutex-guarded list of committed turns
//   - Turn: one immutable question/answer pair addressed by a TurnID
//   - Exchange: a single role/content entry, also the chat_history wire shape
//   - UploadResult: the per-file outcome of an upload
//
// # Usage
//
//	tr := model.NewTranscript()
//	turn := tr.Commit("What is X?", "X is ...")
//	history := tr.Recent(6)
//	tr.Remove(turn.ID)
package model
