// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns raw answer text into display markup without letting
// markdown, math and citation syntax corrupt each other.
//
// Rendering runs in fixed stages:
//
//  1. code spans and fenced blocks are masked
//  2. math spans ($$, $, \[, \() are swapped for inert placeholders
//  3. citation tokens are optionally masked as well
//  4. code is unmasked and the markdown backend runs
//  5. placeholders are restored to their verbatim source
//  6. a typesetter formats the restored math, best effort
//
// Render never fails: any error or panic yields the fallback rendering of
// the raw text.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// =============================================================================
// INTERFACES
// =============================================================================

// Markdown converts markdown source to display markup.
type Markdown interface {
	Render(src string) (string, error)
}

// MarkdownFunc adapts a function to the Markdown interface.
type MarkdownFunc func(src string) (string, error)

// Render implements Markdown.
func (f MarkdownFunc) Render(src string) (string, error) { return f(src) }

// Typesetter formats one restored math span. Returning an error leaves the
// verbatim source in place.
type Typesetter interface {
	Typeset(span MathSpan, restored string) (string, error)
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline is a configured safe-render pipeline. It is safe for concurrent
// use if its Markdown backend is.
type Pipeline struct {
	markdown         Markdown
	typesetter       Typesetter
	escape           func(string) string
	fallback         func(string) string
	protectCitations bool
	memo             *cache.Cache
	logger           *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTypesetter sets the final math pass. Without one, math is left as
// verbatim source.
func WithTypesetter(t Typesetter) Option {
	return func(p *Pipeline) { p.typesetter = t }
}

// WithEscape sets how restored math source is escaped for the target
// markup (HTML needs entity escaping, terminals need none).
func WithEscape(fn func(string) string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.escape = fn
		}
	}
}

// WithFallback sets the rendering used when the pipeline fails.
func WithFallback(fn func(string) string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.fallback = fn
		}
	}
}

// WithCitationProtection masks [label#n] tokens during the markdown pass.
func WithCitationProtection() Option {
	return func(p *Pipeline) { p.protectCitations = true }
}

// WithCache memoises RenderFinal results for ttl.
func WithCache(ttl time.Duration) Option {
	return func(p *Pipeline) {
		if ttl > 0 {
			p.memo = cache.New(ttl, 2*ttl)
		}
	}
}

// WithLogger sets the logger for swallowed failures.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a pipeline around a markdown backend.
func New(md Markdown, opts ...Option) *Pipeline {
	p := &Pipeline{
		markdown: md,
		escape:   func(s string) string { return s },
		fallback: func(s string) string { return s },
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// widthSetter is implemented by markdown backends that wrap text.
type widthSetter interface {
	SetWidth(width int) error
}

// SetWidth changes the wrap column of the markdown backend and drops
// memoised renders made at the old width. Backends that do not wrap are
// left alone.
func (p *Pipeline) SetWidth(width int) error {
	ws, ok := p.markdown.(widthSetter)
	if !ok {
		return nil
	}
	if err := ws.SetWidth(width); err != nil {
		return fmt.Errorf("set width: %w", err)
	}
	if p.memo != nil {
		p.memo.Flush()
	}
	return nil
}

// Render converts raw answer text into markup. It is called on every
// token with the full accumulated text.
func (p *Pipeline) Render(raw string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("render panicked, using fallback", zap.Any("panic", r))
			out = p.fallback(raw)
		}
	}()

	out, err := p.render(raw)
	if err != nil {
		p.logger.Debug("render failed, using fallback", zap.Error(err))
		return p.fallback(raw)
	}
	return out
}

// RenderFinal renders committed text, consulting the cache when enabled.
// Streaming prefixes should go through Render so they are not cached.
func (p *Pipeline) RenderFinal(raw string) string {
	if p.memo == nil {
		return p.Render(raw)
	}
	if v, ok := p.memo.Get(raw); ok {
		return v.(string)
	}
	out := p.Render(raw)
	p.memo.SetDefault(raw, out)
	return out
}

// Fallback returns the failure rendering of raw.
func (p *Pipeline) Fallback(raw string) string {
	return p.fallback(raw)
}

// restoredSpan is the location of a restored math span in the output.
type restoredSpan struct {
	start, end int
	span       MathSpan
}

func (p *Pipeline) render(raw string) (string, error) {
	if p.markdown == nil {
		return "", fmt.Errorf("no markdown backend configured")
	}

	nonce := newNonce()
	code := newPlaceholders("CODE", nonce)
	math := newPlaceholders("MATH", nonce)
	cites := newPlaceholders("CITE", nonce)

	var spans []MathSpan
	text := maskCode(raw, code)
	text = extractMath(text, math, &spans, code.restore)
	if p.protectCitations {
		text = maskCitations(text, cites, code.restore)
	}
	text = code.restore(text)

	rendered, err := p.markdown.Render(text)
	if err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}

	if p.protectCitations {
		rendered = cites.restore(rendered)
	}

	out, positions := p.restoreMath(rendered, math, spans)
	if p.typesetter != nil && len(positions) > 0 {
		out = p.typeset(out, positions)
	}
	return out, nil
}

// restoreMath swaps math placeholders for the escaped verbatim source and
// records where each one landed.
func (p *Pipeline) restoreMath(rendered string, math *placeholders, spans []MathSpan) (string, []restoredSpan) {
	if len(spans) == 0 {
		return rendered, nil
	}

	var b strings.Builder
	b.Grow(len(rendered))
	var positions []restoredSpan

	last := 0
	for _, loc := range math.re.FindAllStringSubmatchIndex(rendered, -1) {
		i, ok := math.lookup([]string{"", rendered[loc[2]:loc[3]]})
		if !ok {
			continue
		}
		b.WriteString(rendered[last:loc[0]])
		start := b.Len()
		b.WriteString(p.escape(spans[i].Source))
		positions = append(positions, restoredSpan{start: start, end: b.Len(), span: spans[i]})
		last = loc[1]
	}
	b.WriteString(rendered[last:])
	return b.String(), positions
}

// typeset runs the typesetter over each restored span. Failures leave the
// source as it is.
func (p *Pipeline) typeset(out string, positions []restoredSpan) string {
	// Replace back to front so earlier offsets stay valid.
	sort.Slice(positions, func(a, b int) bool { return positions[a].start > positions[b].start })

	for _, pos := range positions {
		restored := out[pos.start:pos.end]
		formatted, err := p.safeTypeset(pos.span, restored)
		if err != nil {
			p.logger.Debug("math typesetting failed", zap.String("source", pos.span.Source), zap.Error(err))
			continue
		}
		out = out[:pos.start] + formatted + out[pos.end:]
	}
	return out
}

func (p *Pipeline) safeTypeset(span MathSpan, restored string) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("typesetter panic: %v", r)
		}
	}()
	return p.typesetter.Typeset(span, restored)
}
