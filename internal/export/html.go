// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jeranaias/docqa-tui/internal/citation"
	"github.com/jeranaias/docqa-tui/internal/render"
	"github.com/jeranaias/docqa-tui/internal/storage"
)

// KaTeXVersion is the CDN release the exported page loads.
const KaTeXVersion = "0.16.9"

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter writes a standalone page with embedded CSS.
type HTMLExporter struct {
	options  *Options
	pipeline *render.Pipeline
}

// NewHTMLExporter creates an HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	ro := render.DefaultOptions()
	ro.CacheTTL = 0
	if opts.CodeStyle != "" {
		ro.CodeStyle = opts.CodeStyle
	}
	return &HTMLExporter{options: opts, pipeline: render.NewHTML(ro)}
}

// Export implements Exporter.
func (e *HTMLExporter) Export(s *storage.ArchivedSession) ([]byte, error) {
	if err := validate(s); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(s.Summary)))
	sb.WriteString("<meta name=\"generator\" content=\"docqa\">\n")
	sb.WriteString(katexHead())
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n<div class=\"container\">\n", theme))

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(s))
	}

	sb.WriteString("<main class=\"transcript\">\n")
	for _, t := range s.Turns {
		sb.WriteString("<section class=\"turn\">\n")
		sb.WriteString("<div class=\"question\">")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(t.Question.Content), "\n", "<br>"))
		sb.WriteString("</div>\n")
		sb.WriteString("<div class=\"answer\">")
		sb.WriteString(e.renderAnswer(t.Answer.Content))
		sb.WriteString("</div>\n")
		sb.WriteString("</section>\n")
	}
	sb.WriteString("</main>\n")

	sb.WriteString(fmt.Sprintf("<footer class=\"footer\">Exported from <strong>docqa</strong> on %s</footer>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("</div>\n")
	sb.WriteString(katexScript)
	sb.WriteString("</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension implements Exporter.
func (e *HTMLExporter) FileExtension() string { return ".html" }

// MimeType implements Exporter.
func (e *HTMLExporter) MimeType() string { return "text/html" }

// =============================================================================
// RENDERING
// =============================================================================

func (e *HTMLExporter) renderHeader(s *storage.ArchivedSession) string {
	var sb strings.Builder
	sb.WriteString("<header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(s.Summary)))
	sb.WriteString("<div class=\"metadata\">")
	sb.WriteString(fmt.Sprintf("<span><strong>Started:</strong> %s</span>", formatTimestamp(s.StartedAt)))
	sb.WriteString(fmt.Sprintf("<span><strong>Turns:</strong> %d</span>", len(s.Turns)))
	sb.WriteString("</div>\n")
	if len(s.Documents) > 0 {
		sb.WriteString("<ul class=\"documents\">")
		for _, d := range s.Documents {
			sb.WriteString("<li>" + html.EscapeString(d) + "</li>")
		}
		sb.WriteString("</ul>\n")
	}
	sb.WriteString("</header>\n")
	return sb.String()
}

// renderAnswer runs the answer through markdown, math and citation
// linking, the same path the live client uses.
func (e *HTMLExporter) renderAnswer(raw string) string {
	return citation.LinkHTML(e.pipeline.RenderFinal(raw), e.options.BaseURL)
}

// =============================================================================
// EMBEDDED ASSETS
// =============================================================================

func katexHead() string {
	return `<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/katex@` + KaTeXVersion + `/dist/katex.min.css">
<script defer src="https://cdn.jsdelivr.net/npm/katex@` + KaTeXVersion + `/dist/katex.min.js"></script>
<script defer src="https://cdn.jsdelivr.net/npm/katex@` + KaTeXVersion + `/dist/contrib/auto-render.min.js"></script>
`
}

// katexScript typesets every math span once the page has loaded.
const katexScript = `<script>
document.addEventListener('DOMContentLoaded', function () {
  if (typeof renderMathInElement !== 'function') { return; }
  document.querySelectorAll('.math').forEach(function (el) {
    renderMathInElement(el, {
      delimiters: [
        {left: '$$', right: '$$', display: true},
        {left: '\\[', right: '\\]', display: true},
        {left: '$', right: '$', display: false},
        {left: '\\(', right: '\\)', display: false}
      ],
      throwOnError: false
    });
  });
});
</script>
`

const pageCSS = `<style>
* { box-sizing: border-box; }
.dark-theme {
  --bg: #16181d; --panel: #1f232b; --text: #d7dae0; --muted: #7f8794;
  --border: #2e3440; --question: #263042; --accent: #a78bfa;
}
.light-theme {
  --bg: #f5f6f8; --panel: #ffffff; --text: #1f2328; --muted: #656d76;
  --border: #d0d7de; --question: #eef2ff; --accent: #7c3aed;
}
body {
  margin: 0; padding: 24px; background: var(--bg); color: var(--text);
  font: 16px/1.6 -apple-system, "Segoe UI", Roboto, Arial, sans-serif;
}
.container { max-width: 860px; margin: 0 auto; background: var(--panel);
  border: 1px solid var(--border); border-radius: 10px; }
.header { padding: 24px 28px; border-bottom: 1px solid var(--border); }
.header h1 { margin: 0 0 8px; font-size: 24px; }
.metadata { display: flex; gap: 16px; color: var(--muted); font-size: 14px; }
.documents { margin: 12px 0 0; padding-left: 20px; color: var(--muted); font-size: 14px; }
.transcript { padding: 12px 28px; }
.turn { padding: 16px 0; border-bottom: 1px solid var(--border); }
.turn:last-child { border-bottom: none; }
.question { background: var(--question); padding: 10px 14px; border-radius: 8px;
  margin-bottom: 12px; font-weight: 600; }
.answer pre { padding: 12px; border-radius: 6px; overflow-x: auto; }
.answer code { font-family: "SF Mono", Menlo, Consolas, monospace; font-size: 14px; }
.answer-raw { white-space: pre-wrap; }
.math-display { display: block; text-align: center; margin: 12px 0; overflow-x: auto; }
.citation-badge { color: var(--accent); text-decoration: none; font-size: 0.85em;
  border: 1px solid var(--accent); border-radius: 4px; padding: 0 4px; }
.footer { padding: 16px 28px; text-align: center; color: var(--muted); font-size: 13px;
  border-top: 1px solid var(--border); }
@media print { body { padding: 0; } .container { border: none; } }
</style>
`
