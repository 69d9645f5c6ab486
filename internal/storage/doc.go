// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage archives finished chat sessions in a local SQLite
// database.
//
// # Key Types
//
//   - Archive: the database handle; implements session.Archiver
//   - ArchivedSession: one saved chat with its turns
//   - SessionMeta: lightweight row for listing
//
// # Usage
//
//	archive, err := storage.Open(path)
//	defer archive.Close()
//	metas, err := archive.List(ctx, 20)
//	s, err := archive.Get(ctx, metas[0].ID)
//
// # Storage Location
//
// The database lives at ~/.docqa/archive.db unless configured otherwise.
// Archiving is off by default.
package storage
