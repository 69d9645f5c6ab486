// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"github.com/jeranaias/docqa-tui/internal/citation"
	"github.com/jeranaias/docqa-tui/internal/render"
)

// Formatter turns accumulated answer text into display markup. final is
// true once for the committed answer.
type Formatter interface {
	Format(raw string, final bool) string
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(raw string, final bool) string

// Format calls f.
func (f FormatterFunc) Format(raw string, final bool) string { return f(raw, final) }

// PlainFormatter shows the raw text.
var PlainFormatter = FormatterFunc(func(raw string, _ bool) string { return raw })

// PipelineFormatter renders through a pipeline and then links citations.
// Intermediate renders bypass the cache.
type PipelineFormatter struct {
	Pipeline *render.Pipeline
	Link     func(markup string) string
}

// Format implements Formatter.
func (f PipelineFormatter) Format(raw string, final bool) string {
	var out string
	if final {
		out = f.Pipeline.RenderFinal(raw)
	} else {
		out = f.Pipeline.Render(raw)
	}
	if f.Link != nil {
		out = f.Link(out)
	}
	return out
}

// NewTerminalFormatter renders for a terminal with citation badges.
func NewTerminalFormatter(p *render.Pipeline, base string, hyperlinks bool) PipelineFormatter {
	return PipelineFormatter{
		Pipeline: p,
		Link: func(s string) string {
			return citation.LinkTerminal(s, base, hyperlinks)
		},
	}
}

// NewHTMLFormatter renders HTML with citation anchors.
func NewHTMLFormatter(p *render.Pipeline, base string) PipelineFormatter {
	return PipelineFormatter{
		Pipeline: p,
		Link: func(s string) string {
			return citation.LinkHTML(s, base)
		},
	}
}
