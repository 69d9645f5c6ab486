// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package library prepares local PDFs for upload.
//
// FilterPDFs and LoadFiles turn user-supplied paths into upload payloads.
// Watcher uploads PDFs dropped into a folder, rate limited and debounced
// per file.
package library
