// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"time"

	"go.uber.org/zap"
)

// Options configures the convenience constructors NewHTML and NewTerminal.
type Options struct {
	// Width is the terminal word-wrap column. Ignored for HTML.
	Width int

	// Style is the glamour style name ("auto", "dark", "light", "notty", ...).
	Style string

	// CodeStyle is the chroma style for HTML code blocks.
	CodeStyle string

	// Math enables the typesetting pass.
	Math bool

	// CacheTTL enables RenderFinal memoisation when positive.
	CacheTTL time.Duration

	Logger *zap.Logger
}

// DefaultOptions returns sensible defaults for an 80 column terminal.
func DefaultOptions() Options {
	return Options{
		Width:     80,
		Style:     "auto",
		CodeStyle: DefaultCodeStyle,
		Math:      true,
		CacheTTL:  10 * time.Minute,
	}
}
