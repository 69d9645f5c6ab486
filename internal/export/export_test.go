// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docqa-tui/internal/model"
	"github.com/jeranaias/docqa-tui/internal/storage"
)

func testSession() *storage.ArchivedSession {
	now := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)
	return &storage.ArchivedSession{
		ID:        "0f8e2a4c-1111-4000-8000-000000000001",
		Summary:   "Define entropy",
		StartedAt: now.Add(-5 * time.Minute),
		EndedAt:   now,
		Documents: []string{"thermo notes.pdf"},
		Turns: []model.Turn{{
			ID:        1,
			Question:  model.NewUserExchange("Define entropy"),
			Answer:    model.NewAssistantExchange("Entropy is $S = k_B \\ln W$ [thermo notes.pdf#3].\n\n```go\nx := \"$y$\"\n```"),
			CreatedAt: now,
		}},
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"markdown", ".md"},
		{"MD", ".md"},
		{"json", ".json"},
		{"html", ".html"},
		{"htm", ".html"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := ForFormat(tt.format, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, exp.FileExtension())
		})
	}

	_, err := ForFormat("pdf", nil)
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestEmptySessionRejected(t *testing.T) {
	empty := &storage.ArchivedSession{ID: "x"}
	for _, name := range Formats {
		exp, err := ForFormat(name, nil)
		require.NoError(t, err)
		_, err = exp.Export(empty)
		assert.ErrorIs(t, err, ErrEmptySession, name)
	}
}

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(testSession())
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "title: Define entropy\n")
	assert.Contains(t, md, "## Q1. Define entropy")
	assert.Contains(t, md, "$S = k_B \\ln W$", "math copied verbatim")
	assert.Contains(t, md, "- thermo notes.pdf")
	assert.Contains(t, md, "(http://127.0.0.1:8000/view?file=thermo%20notes.pdf&chunk=3)")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter().Export(testSession())
	require.NoError(t, err)

	var back storage.ArchivedSession
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "Define entropy", back.Summary)
	require.Len(t, back.Turns, 1)
	assert.Equal(t, model.RoleAssistant, back.Turns[0].Answer.Role)
}

func TestHTMLExporter(t *testing.T) {
	opts := DefaultOptions()
	opts.Theme = "light"
	out, err := NewHTMLExporter(opts).Export(testSession())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, `<body class="light-theme">`)
	assert.Contains(t, page, `<span class="math math-inline">$S = k_B \ln W$</span>`)
	assert.Contains(t, page, `href="http://127.0.0.1:8000/view?file=thermo%20notes.pdf&amp;chunk=3"`)
	assert.Contains(t, page, `>thermo notes.pdf#3</a>`)
	assert.Contains(t, page, "auto-render.min.js")
	assert.NotContains(t, page, `class="math math-inline">$y$`, "math inside code is not typeset")
}

func TestToFile(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "exports")
	s := testSession()
	s.Summary = `What: is "this"?/x`

	path, err := ToFile(s, NewJSONExporter(), opts)
	require.NoError(t, err)

	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "docqa_What-_is_-this---x_"), base)
	assert.True(t, strings.HasSuffix(base, ".json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"turns"`)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "session"},
		{"   ", "session"},
		{"a/b\\c", "a-b-c"},
		{"line\none", "line_one"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
		{"日本語 ノート", "日本語_ノート"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}
