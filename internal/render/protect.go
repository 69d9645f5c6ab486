// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// MATH SPANS
// =============================================================================

// Delimiter identifies which syntax a math span was written in.
type Delimiter int

const (
	DollarDisplay  Delimiter = iota // $$...$$
	DollarInline                    // $...$
	BracketDisplay                  // \[...\]
	ParenInline                     // \(...\)
)

// MathSpan is one extracted piece of math, kept verbatim.
type MathSpan struct {
	// Source is the full original text including delimiters.
	Source string
	// Body is the text between the delimiters.
	Body  string
	Delim Delimiter
}

// Display reports whether the span is block-level math.
func (s MathSpan) Display() bool {
	return s.Delim == DollarDisplay || s.Delim == BracketDisplay
}

// Extraction order matters: $$ must be consumed before $ so a display
// span is never read as two empty inline spans.
var mathPatterns = []struct {
	re    *regexp.Regexp
	delim Delimiter
}{
	{regexp.MustCompile(`(?s)\$\$(.+?)\$\$`), DollarDisplay},
	{regexp.MustCompile(`\$([^$\n]+?)\$`), DollarInline},
	{regexp.MustCompile(`(?s)\\\[(.+?)\\\]`), BracketDisplay},
	{regexp.MustCompile(`\\\((.+?)\\\)`), ParenInline},
}

// =============================================================================
// PLACEHOLDERS
// =============================================================================

// placeholders hands out markdown-inert tokens of the form
// <PREFIX><nonce><index>Z. Only letters and digits are used so no
// markdown or HTML pass will touch them.
type placeholders struct {
	prefix string
	nonce  string
	values []string
	re     *regexp.Regexp
}

func newPlaceholders(prefix, nonce string) *placeholders {
	return &placeholders{
		prefix: prefix,
		nonce:  nonce,
		re:     regexp.MustCompile(prefix + nonce + `(\d+)Z`),
	}
}

// newNonce returns a fresh alphanumeric nonce so that text which already
// looks like a placeholder can never collide with one.
func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (p *placeholders) add(value string) string {
	token := p.prefix + p.nonce + strconv.Itoa(len(p.values)) + "Z"
	p.values = append(p.values, value)
	return token
}

// lookup resolves a matched token back to its index.
func (p *placeholders) lookup(match []string) (int, bool) {
	i, err := strconv.Atoi(match[1])
	if err != nil || i < 0 || i >= len(p.values) {
		return 0, false
	}
	return i, true
}

// restore replaces every token in s with its stored value.
func (p *placeholders) restore(s string) string {
	if len(p.values) == 0 {
		return s
	}
	return p.re.ReplaceAllStringFunc(s, func(tok string) string {
		i, ok := p.lookup(p.re.FindStringSubmatch(tok))
		if !ok {
			return tok
		}
		return p.values[i]
	})
}

// =============================================================================
// CODE MASKING
// =============================================================================

// maskCode hides fenced code blocks and inline code spans behind
// placeholders so math patterns cannot match inside them.
func maskCode(text string, ph *placeholders) string {
	return maskInlineCode(maskFences(text, ph), ph)
}

// maskFences scans line by line for ``` or ~~~ fences. An unclosed fence
// runs to the end of the text, as markdown renders it that way too.
func maskFences(text string, ph *placeholders) string {
	lines := strings.SplitAfter(text, "\n")
	var out strings.Builder
	out.Grow(len(text))

	var block strings.Builder
	var fenceChar byte
	fenceLen := 0

	for _, line := range lines {
		if fenceLen == 0 {
			if ch, n, ok := fenceOpen(line); ok {
				fenceChar, fenceLen = ch, n
				block.WriteString(line)
				continue
			}
			out.WriteString(line)
			continue
		}

		block.WriteString(line)
		if fenceClose(line, fenceChar, fenceLen) {
			out.WriteString(maskKeepNewline(block.String(), ph))
			block.Reset()
			fenceLen = 0
		}
	}
	if block.Len() > 0 {
		out.WriteString(maskKeepNewline(block.String(), ph))
	}
	return out.String()
}

// maskKeepNewline masks a block but leaves its final newline in place so
// the following line still starts a new markdown line.
func maskKeepNewline(block string, ph *placeholders) string {
	if strings.HasSuffix(block, "\n") {
		return ph.add(block[:len(block)-1]) + "\n"
	}
	return ph.add(block)
}

func fenceOpen(line string) (byte, int, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return 0, 0, false
	}
	ch := trimmed[0]
	if ch != '`' && ch != '~' {
		return 0, 0, false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == ch {
		n++
	}
	if n < 3 {
		return 0, 0, false
	}
	// A backtick fence's info string may not contain backticks.
	if ch == '`' && strings.ContainsRune(trimmed[n:], '`') {
		return 0, 0, false
	}
	return ch, n, true
}

func fenceClose(line string, ch byte, minLen int) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < minLen {
		return false
	}
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != ch {
			return false
		}
	}
	return true
}

// maskInlineCode masks backtick code spans: a run of N backticks closed by
// the next run of exactly N backticks. Unmatched runs stay literal.
func maskInlineCode(text string, ph *placeholders) string {
	if !strings.Contains(text, "`") {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	i := 0
	for i < len(text) {
		if text[i] != '`' {
			out.WriteByte(text[i])
			i++
			continue
		}

		n := runLength(text, i)
		end := findClosingRun(text, i+n, n)
		if end < 0 {
			out.WriteString(text[i : i+n])
			i += n
			continue
		}
		out.WriteString(ph.add(text[i:end]))
		i = end
	}
	return out.String()
}

func runLength(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] == '`' {
		n++
	}
	return n
}

// findClosingRun returns the index just past the closing run, or -1.
func findClosingRun(s string, from, n int) int {
	for j := from; j < len(s); {
		if s[j] != '`' {
			j++
			continue
		}
		m := runLength(s, j)
		if m == n {
			return j + m
		}
		j += m
	}
	return -1
}

// =============================================================================
// MATH EXTRACTION
// =============================================================================

// extractMath replaces every math span with a placeholder, in priority
// order, recording the spans in table. unmask puts back any code tokens a
// span swallowed, so the table always holds the original text.
func extractMath(text string, ph *placeholders, table *[]MathSpan, unmask func(string) string) string {
	for _, pat := range mathPatterns {
		text = pat.re.ReplaceAllStringFunc(text, func(src string) string {
			body := pat.re.FindStringSubmatch(src)[1]
			span := MathSpan{Source: unmask(src), Body: unmask(body), Delim: pat.delim}
			*table = append(*table, span)
			return ph.add(span.Source)
		})
	}
	return text
}

// =============================================================================
// CITATION MASKING
// =============================================================================

var citationToken = regexp.MustCompile(`\[[^\[\]<>\n]+?#\d+\]`)

// maskCitations protects [label#n] tokens from markdown styling. Like
// extractMath it stores the token with code placeholders put back by
// unmask, since the code table is restored before this one.
func maskCitations(text string, ph *placeholders, unmask func(string) string) string {
	return citationToken.ReplaceAllStringFunc(text, func(tok string) string {
		return ph.add(unmask(tok))
	})
}
