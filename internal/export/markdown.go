// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/docqa-tui/internal/citation"
	"github.com/jeranaias/docqa-tui/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes sessions as Markdown. Answers are copied
// verbatim, so math and code survive; a sources list at the end of each
// answer links its citations.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export implements Exporter.
func (e *MarkdownExporter) Export(s *storage.ArchivedSession) ([]byte, error) {
	if err := validate(s); err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(s.Summary)))
		sb.WriteString(fmt.Sprintf("session: %s\n", s.ID))
		sb.WriteString(fmt.Sprintf("started: %s\n", s.StartedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("ended: %s\n", s.EndedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("turns: %d\n", len(s.Turns)))
		sb.WriteString("generator: docqa\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(s.Summary)))

	if e.options.IncludeMetadata && len(s.Documents) > 0 {
		sb.WriteString("## Documents\n\n")
		for _, d := range s.Documents {
			sb.WriteString("- " + escapeMarkdown(d) + "\n")
		}
		sb.WriteString("\n---\n\n")
	}

	for i, t := range s.Turns {
		sb.WriteString(fmt.Sprintf("## Q%d. %s\n\n", i+1, escapeMarkdown(firstLine(t.Question.Content))))
		if rest := remainingLines(t.Question.Content); rest != "" {
			sb.WriteString("> " + strings.ReplaceAll(rest, "\n", "\n> ") + "\n\n")
		}

		sb.WriteString(strings.TrimSpace(t.Answer.Content))
		sb.WriteString("\n\n")

		if cites := citation.Find(t.Answer.Content); len(cites) > 0 && e.options.BaseURL != "" {
			sb.WriteString("**Sources:**\n\n")
			for _, c := range cites {
				sb.WriteString(fmt.Sprintf("- [%s](%s)\n", escapeMarkdown(c.String()), c.URL(e.options.BaseURL)))
			}
			sb.WriteString("\n")
		}

		if i < len(s.Turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from docqa on %s*\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension implements Exporter.
func (e *MarkdownExporter) FileExtension() string { return ".md" }

// MimeType implements Exporter.
func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func remainingLines(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return ""
}

// escapeMarkdown escapes characters that would break headings and list
// items.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(`#`, `\#`, `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

// escapeYAML quotes a value when it contains YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
		return `"` + r.Replace(s) + `"`
	}
	return s
}
