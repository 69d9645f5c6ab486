// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes archived chat sessions to Markdown, JSON or a
// standalone HTML page.
//
// # Key Types
//
//   - Exporter: converts a session to bytes in one format
//   - Options: output directory, theme, citation base URL
//
// # Usage
//
//	exp, err := export.ForFormat("html", opts)
//	path, err := export.ToFile(session, exp, opts)
//
// The HTML page renders answers through the same markdown, math and
// citation pipeline as the live client. Math is typeset in the browser by
// KaTeX loaded from a CDN; without network access the page still shows
// the LaTeX source.
package export
