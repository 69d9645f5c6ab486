// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// =============================================================================
// HTML MARKDOWN BACKEND
// =============================================================================

// DefaultCodeStyle is the chroma style used for fenced code in HTML.
const DefaultCodeStyle = "monokai"

// htmlMarkdown renders GitHub-flavoured markdown to HTML. Raw HTML in the
// source is dropped, never passed through.
type htmlMarkdown struct {
	md goldmark.Markdown
}

// NewHTMLMarkdown creates the goldmark backend. codeStyle names a chroma
// style; unknown names fall back to chroma's default.
func NewHTMLMarkdown(codeStyle string) Markdown {
	if codeStyle == "" {
		codeStyle = DefaultCodeStyle
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(
				util.Prioritized(&codeBlockRenderer{style: codeStyle}, 200),
			),
		),
	)
	return &htmlMarkdown{md: md}
}

// Render implements Markdown.
func (h *htmlMarkdown) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// codeBlockRenderer replaces goldmark's fenced code output with chroma
// highlighted HTML using inline styles.
type codeBlockRenderer struct {
	style string
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}
	language := string(n.Language(source))

	if err := highlightHTML(w, code.String(), language, r.style); err != nil {
		// Plain block, same shape goldmark would emit.
		_, _ = w.WriteString(`<pre><code>`)
		_, _ = w.WriteString(html.EscapeString(code.String()))
		_, _ = w.WriteString("</code></pre>\n")
	}
	return ast.WalkSkipChildren, nil
}

// highlightHTML writes code highlighted as HTML.
func highlightHTML(w util.BufWriter, code, language, styleName string) error {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return err
	}
	formatter := chromahtml.New(chromahtml.WithClasses(false))
	return formatter.Format(w, style, iterator)
}

// =============================================================================
// KATEX TYPESETTER
// =============================================================================

// KaTeXTypesetter marks restored math for client-side KaTeX auto-render.
// The verbatim source stays inside the wrapper, so a page without KaTeX
// still shows readable math.
type KaTeXTypesetter struct{}

// Typeset implements Typesetter.
func (KaTeXTypesetter) Typeset(span MathSpan, restored string) (string, error) {
	class := "math math-inline"
	if span.Display() {
		class = "math math-display"
	}
	return `<span class="` + class + `">` + restored + `</span>`, nil
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// HTMLFallback renders raw text as an escaped preformatted block.
func HTMLFallback(raw string) string {
	return `<pre class="answer-raw">` + html.EscapeString(raw) + `</pre>`
}

// NewHTML builds the HTML pipeline: goldmark + chroma, escaped math
// restoration and KaTeX span wrapping.
func NewHTML(o Options) *Pipeline {
	opts := []Option{
		WithEscape(html.EscapeString),
		WithFallback(HTMLFallback),
		WithCache(o.CacheTTL),
		WithLogger(o.Logger),
	}
	if o.Math {
		opts = append(opts, WithTypesetter(KaTeXTypesetter{}))
	}
	return New(NewHTMLMarkdown(o.CodeStyle), opts...)
}
