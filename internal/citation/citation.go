// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package citation turns [label#n] tokens in rendered answers into links to
// the document viewer.
package citation

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// CITATION TYPE
// =============================================================================

// Citation is a reference to chunk Chunk of document Label.
type Citation struct {
	Label string
	Chunk int
}

// String returns the visible form, label#n.
func (c Citation) String() string {
	return c.Label + "#" + strconv.Itoa(c.Chunk)
}

// URL returns the viewer link for c relative to base. An empty base gives
// a root-relative URL.
func (c Citation) URL(base string) string {
	return strings.TrimRight(base, "/") +
		"/view?file=" + escapeComponent(c.Label) +
		"&chunk=" + strconv.Itoa(c.Chunk)
}

// escapeComponent percent-encodes s, spaces as %20 rather than +.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// =============================================================================
// MATCHING
// =============================================================================

var (
	// htmlPattern matches citations in HTML text; the label cannot contain
	// ] or tag brackets.
	htmlPattern = regexp.MustCompile(`\[([^\]<>]+?)#(\d+)\]`)

	// terminalPattern additionally rejects [ and ESC so ANSI CSI sequences
	// can never be read as a citation.
	terminalPattern = regexp.MustCompile(`\[([^\[\]<>\x1b]+?)#(\d+)\]`)
)

// parse builds a Citation from a submatch, or false if the chunk number
// does not fit an int. Surrounding blanks are not part of the label.
func parse(label, chunk string) (Citation, bool) {
	label = strings.TrimSpace(label)
	n, err := strconv.Atoi(chunk)
	if err != nil || label == "" {
		return Citation{}, false
	}
	return Citation{Label: label, Chunk: n}, true
}

// Find returns the distinct citations in text in order of first
// appearance.
func Find(text string) []Citation {
	var out []Citation
	seen := make(map[Citation]bool)
	for _, m := range htmlPattern.FindAllStringSubmatch(text, -1) {
		c, ok := parse(html.UnescapeString(m[1]), m[2])
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// =============================================================================
// LINKING
// =============================================================================

// LinkHTML rewrites each citation in rendered HTML into an anchor. Applying
// it to its own output changes nothing.
func LinkHTML(markup, base string) string {
	return htmlPattern.ReplaceAllStringFunc(markup, func(tok string) string {
		m := htmlPattern.FindStringSubmatch(tok)
		// The label is already HTML text; unescape it before URL encoding.
		c, ok := parse(html.UnescapeString(m[1]), m[2])
		if !ok {
			return tok
		}
		return `<a href="` + html.EscapeString(c.URL(base)) +
			`" class="citation-badge" target="_blank" rel="noopener">` +
			strings.TrimSpace(m[1]) + "#" + m[2] + `</a>`
	})
}

// BadgeStyle is applied to terminal citations.
var BadgeStyle = lipgloss.NewStyle().
	Foreground(lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}).
	Underline(true)

// LinkTerminal rewrites each citation in terminal text into a styled badge.
// With hyperlinks enabled the badge is an OSC 8 link to the viewer.
// Applying it to its own output changes nothing.
func LinkTerminal(text, base string, hyperlinks bool) string {
	matches := terminalPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range matches {
		// "\x1b[" opens a CSI sequence, not a citation.
		if loc[0] > 0 && text[loc[0]-1] == '\x1b' {
			continue
		}
		c, ok := parse(text[loc[2]:loc[3]], text[loc[4]:loc[5]])
		if !ok {
			continue
		}

		badge := BadgeStyle.Render(c.String())
		if hyperlinks {
			badge = termenv.Hyperlink(c.URL(base), badge)
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(badge)
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
