// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// =============================================================================
// TERMINAL MARKDOWN BACKEND
// =============================================================================

type terminalMarkdown struct {
	mu    sync.Mutex
	r     *glamour.TermRenderer
	style string
	width int
}

// NewTerminalMarkdown creates a glamour backend wrapping at width columns.
// style "auto" or "" picks a style from the terminal background.
func NewTerminalMarkdown(width int, style string) (Markdown, error) {
	t := &terminalMarkdown{style: style}
	if err := t.SetWidth(width); err != nil {
		return nil, err
	}
	return t, nil
}

func newTermRenderer(width int, style string) (*glamour.TermRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	switch style {
	case "", "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	return glamour.NewTermRenderer(opts...)
}

// SetWidth rebuilds the renderer for a new wrap column. On error the old
// renderer stays in use.
func (t *terminalMarkdown) SetWidth(width int) error {
	if width <= 0 {
		width = 80
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.r != nil && width == t.width {
		return nil
	}
	r, err := newTermRenderer(width, t.style)
	if err != nil {
		return err
	}
	t.r, t.width = r, width
	return nil
}

// Render implements Markdown.
func (t *terminalMarkdown) Render(src string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out, err := t.r.Render(src)
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\n"), nil
}

// PlainMarkdown passes text through untouched. Used when no terminal
// renderer can be created.
var PlainMarkdown = MarkdownFunc(func(src string) (string, error) { return src, nil })

// =============================================================================
// UNICODE TYPESETTER
// =============================================================================

// UnicodeTypesetter approximates LaTeX with Unicode symbols and styles the
// result with lipgloss.
type UnicodeTypesetter struct {
	Inline  lipgloss.Style
	Display lipgloss.Style
}

// NewUnicodeTypesetter returns a typesetter with the default math styles.
func NewUnicodeTypesetter() *UnicodeTypesetter {
	mathColor := lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	return &UnicodeTypesetter{
		Inline:  lipgloss.NewStyle().Foreground(mathColor).Italic(true),
		Display: lipgloss.NewStyle().Foreground(mathColor).Italic(true).PaddingLeft(4),
	}
}

// Typeset implements Typesetter.
func (u *UnicodeTypesetter) Typeset(span MathSpan, _ string) (string, error) {
	text, err := ToUnicode(span.Body)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if span.Display() {
		return "\n" + u.Display.Render(text) + "\n", nil
	}
	return u.Inline.Render(text), nil
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewTerminal builds the terminal pipeline: glamour markdown, citation
// protection and Unicode math. If glamour cannot start, markdown is shown
// as plain text.
func NewTerminal(o Options) *Pipeline {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	md, err := NewTerminalMarkdown(o.Width, o.Style)
	if err != nil {
		logger.Warn("glamour unavailable, rendering plain text", zap.Error(err))
		md = PlainMarkdown
	}

	opts := []Option{
		WithCitationProtection(),
		WithCache(o.CacheTTL),
		WithLogger(logger),
	}
	if o.Math {
		opts = append(opts, WithTypesetter(NewUnicodeTypesetter()))
	}
	return New(md, opts...)
}
