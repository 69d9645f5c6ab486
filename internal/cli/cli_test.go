// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docqa-tui/internal/backend"
	"github.com/jeranaias/docqa-tui/internal/config"
	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/export"
	"github.com/jeranaias/docqa-tui/internal/model"
	"github.com/jeranaias/docqa-tui/internal/session"
	"github.com/jeranaias/docqa-tui/internal/storage"
	"github.com/jeranaias/docqa-tui/internal/stream"
)

// Output assertions compare plain text.
func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// =============================================================================
// ARG PARSER TESTS
// =============================================================================

func TestArgParser(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name: "flag with value",
			args: []string{"list", "--limit", "5"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "list", p.Subcommand())
				assert.Equal(t, "5", p.Flag("limit"))
			},
		},
		{
			name: "flag with equals",
			args: []string{"--server=http://h:1", "ask"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "http://h:1", p.Flag("server"))
				assert.Equal(t, []string{"ask"}, p.Positional())
			},
		},
		{
			name:  "boolean flag does not consume the next argument",
			args:  []string{"ask", "--json", "what", "is", "this"},
			bools: []string{"json"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("json"))
				assert.Equal(t, []string{"ask", "what", "is", "this"}, p.Positional())
			},
		},
		{
			name:  "explicit boolean value",
			args:  []string{"--json=false"},
			bools: []string{"json"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.False(t, p.BoolFlag("json"))
			},
		},
		{
			name: "repeated flag keeps every value",
			args: []string{"--source", "a.pdf", "-s", "b.pdf", "--source=c.pdf"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, []string{"a.pdf", "c.pdf", "b.pdf"}, p.Flags("source", "s"))
				assert.Equal(t, "c.pdf", p.Flag("source"))
			},
		},
		{
			name: "trailing flag is boolean",
			args: []string{"history", "--open"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("open"))
				assert.True(t, p.HasFlag("open"))
			},
		},
		{
			name: "double dash ends flags",
			args: []string{"ask", "--", "--not-a-flag", "-x"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, []string{"ask", "--not-a-flag", "-x"}, p.Positional())
				assert.False(t, p.HasFlag("not-a-flag"))
			},
		},
		{
			name: "empty",
			args: nil,
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "", p.Subcommand())
				assert.Equal(t, "", p.Arg(3))
				assert.Equal(t, "d", p.FlagOrDefault("x", "d"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, NewArgParser(tt.args, tt.bools...))
		})
	}
}

func TestArgParser_IntFlag(t *testing.T) {
	p := NewArgParser([]string{"--limit", "7", "--bad", "x"})

	n, err := p.IntFlag("limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = p.IntFlag("missing", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, err = p.IntFlag("bad", 20)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "--bad", verr.Field)
}

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		wantCmd  Command
		wantRest []string
		validate func(*testing.T, Args)
	}{
		{name: "no arguments opens the tui", argv: nil, wantCmd: CmdTUI},
		{name: "global flags only", argv: []string{"--server", "http://h:1"}, wantCmd: CmdTUI,
			validate: func(t *testing.T, a Args) { assert.Equal(t, "http://h:1", a.ServerURL) }},
		{name: "ask keeps the question", argv: []string{"ask", "--json", "What", "is", "it?"}, wantCmd: CmdAsk,
			wantRest: []string{"What", "is", "it?"},
			validate: func(t *testing.T, a Args) { assert.True(t, a.JSON) }},
		{name: "ask with sources", argv: []string{"ask", "--source", "a.pdf", "--source", "b.pdf", "why"}, wantCmd: CmdAsk,
			wantRest: []string{"why"},
			validate: func(t *testing.T, a Args) { assert.Equal(t, []string{"a.pdf", "b.pdf"}, a.Flags("source")) }},
		{name: "version flag", argv: []string{"--version"}, wantCmd: CmdVersion},
		{name: "version command", argv: []string{"version"}, wantCmd: CmdVersion},
		{name: "help topic", argv: []string{"help", "docs"}, wantCmd: CmdHelp, wantRest: []string{"docs"}},
		{name: "command help flag", argv: []string{"history", "--help"}, wantCmd: CmdHelp, wantRest: []string{"history"}},
		{name: "docs subcommand", argv: []string{"-y", "docs", "clear"}, wantCmd: CmdDocs, wantRest: []string{"clear"},
			validate: func(t *testing.T, a Args) {
				assert.True(t, a.Yes)
				assert.Equal(t, "clear", a.Sub())
			}},
		{name: "history flags", argv: []string{"history", "list", "--limit", "3", "--config", "/tmp/c.toml"}, wantCmd: CmdHistory,
			wantRest: []string{"list"},
			validate: func(t *testing.T, a Args) {
				n, err := a.IntFlag("limit", 20)
				require.NoError(t, err)
				assert.Equal(t, 3, n)
				assert.Equal(t, "/tmp/c.toml", a.ConfigPath)
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := Parse(tt.argv)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, args.Command)
			if tt.wantRest != nil {
				assert.Equal(t, tt.wantRest, args.Rest)
			}
			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

func TestParse_UnknownCommand(t *testing.T) {
	_, err := Parse([]string{"frobnicate"})
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Contains(t, err.Error(), "frobnicate")
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf, "")
	assert.Contains(t, buf.String(), "docqa ask")

	buf.Reset()
	PrintUsage(&buf, "chat")
	assert.Contains(t, buf.String(), "/retry N")

	buf.Reset()
	PrintUsage(&buf, "nonsense")
	assert.Contains(t, buf.String(), "Global flags")
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("x", "y", "bad"), ExitUsageError},
		{"empty question", fmt.Errorf("ask: %w", engine.ErrEmptyQuestion), ExitUsageError},
		{"ambiguous prefix", storage.ErrAmbiguous, ExitUsageError},
		{"config validation", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "server.base_url", Message: "required"}}), ExitConfigError},
		{"config load", &ConfigLoadError{Path: "x.toml", Err: errors.New("bad toml")}, ExitConfigError},
		{"not found", NewNotFoundError("document", "a.pdf"), ExitNotFoundError},
		{"backend not found", fmt.Errorf("remove: %w", backend.ErrNotFound), ExitNotFoundError},
		{"archive not found", storage.ErrNotFound, ExitNotFoundError},
		{"connection", NewCommandError("docs", "list", "failed", &backend.ClientError{Type: backend.ErrTypeConnection, Message: "dial"}), ExitNetworkError},
		{"timeout", fmt.Errorf("ask: %w", context.DeadlineExceeded), ExitTimeoutError},
		{"interrupted", fmt.Errorf("ask: %w", context.Canceled), ExitInterrupted},
		{"other", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "docs upload failed: timeout: boom",
		NewCommandError("docs", "upload", "timeout", errors.New("boom")).Error())
	assert.Equal(t, "invalid id: required (got: x)\nExample: docqa history show 1a2b",
		NewValidationErrorWithExample("id", "x", "required", "docqa history show 1a2b").Error())
	assert.Equal(t, "session not found: abc", NewNotFoundError("session", "abc").Error())
	assert.Equal(t, "config: nope", (&ConfigLoadError{Err: errors.New("nope")}).Error())
}

// =============================================================================
// CONFIRMATION TESTS
// =============================================================================

func TestPromptYesNo(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got, err := promptYesNo(strings.NewReader(tt.input), &out, "delete it")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "delete it? [y/N]")
		})
	}
}

func TestRequireConfirmation(t *testing.T) {
	ok, err := RequireConfirmation(true, "x", true)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = RequireConfirmation(false, "x", true)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// JSON OUTPUT TESTS
// =============================================================================

func TestJSONResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONResponse("docs list", []string{"a.pdf"}).WriteTo(&buf))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "docs list", got["command"])
	assert.Nil(t, got["error"])
	assert.Equal(t, []any{"a.pdf"}, got["data"])

	buf.Reset()
	require.NoError(t, NewJSONErrorResponse("ask", errors.New("boom")).WriteTo(&buf))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "boom", got["error"])
}

// =============================================================================
// CONFIG LOADING TESTS
// =============================================================================

func clearDocqaEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DOCQA_SERVER_URL", "DOCQA_LOG_LEVEL", "DOCQA_LOG_FILE", "DOCQA_ARCHIVE", "DOCQA_HISTORY_WINDOW"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearDocqaEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat]\nhistory_window = 2\n"), 0o600))

	cfg, err := loadConfig(Args{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Chat.HistoryWindow)
	assert.Equal(t, config.Default().Server.BaseURL, cfg.Server.BaseURL)

	cfg, err = loadConfig(Args{ConfigPath: path, ServerURL: "http://10.0.0.2:9000"})
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:9000", cfg.Server.BaseURL)

	_, err = loadConfig(Args{ConfigPath: path, ServerURL: "not a url"})
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
}

func TestLoadConfig_BadFile(t *testing.T) {
	clearDocqaEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat\n"), 0o600))

	_, err := loadConfig(Args{ConfigPath: path})
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
}

func TestExportOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Dir = "/tmp/out"
	cfg.Export.Theme = "light"

	opts := exportOptions(cfg, "http://h:1", false)
	assert.Equal(t, "/tmp/out", opts.OutputDir)
	assert.Equal(t, "light", opts.Theme)
	assert.Equal(t, "http://h:1", opts.BaseURL)
	assert.Equal(t, cfg.Render.CodeStyle, opts.CodeStyle)
	assert.False(t, opts.Open)

	assert.True(t, exportOptions(cfg, "", true).Open)
}

func TestExportSession(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()
	s := &storage.ArchivedSession{
		ID:        "s1",
		Summary:   "Where?",
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
		Turns: []model.Turn{{
			ID:       1,
			Question: model.NewUserExchange("Where?"),
			Answer:   model.NewAssistantExchange("Here [a.pdf#1]."),
		}},
	}

	path, err := exportSession(cfg, "", s, "json", false)
	require.NoError(t, err)
	assert.Equal(t, cfg.Export.Dir, filepath.Dir(path))
	assert.FileExists(t, path)

	_, err = exportSession(cfg, "", s, "docx", false)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, err = exportSession(cfg, "", &storage.ArchivedSession{ID: "empty"}, "json", false)
	assert.ErrorIs(t, err, export.ErrEmptySession)
}

// =============================================================================
// LINE DISPLAY TESTS
// =============================================================================

func TestLineDisplay_PrintsCommittedAnswersOnly(t *testing.T) {
	var out, errOut bytes.Buffer
	d := newLineDisplay(&out, &errOut, false)
	d.labels = true

	d.AddUser("q")
	a := d.AddAnswer()
	d.UpdateAnswer(a, "partial")
	assert.Empty(t, out.String())

	d.UpdateAnswer(a, "final answer")
	d.AddActions(1, 1, a)
	assert.Contains(t, out.String(), "Answer #1")
	assert.Contains(t, out.String(), "final answer")
	assert.NotContains(t, out.String(), "partial")
	assert.Equal(t, 1, d.printed())

	removed := d.AddAnswer()
	d.UpdateAnswer(removed, "gone")
	d.Remove(removed)
	d.AddActions(2, 3, removed)
	assert.NotContains(t, out.String(), "gone")
}

func TestLineDisplay_StatusAndErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	d := newLineDisplay(&out, &errOut, false)

	d.ShowStatus("Searching...")
	d.AddError("Error: quiet")
	assert.Empty(t, errOut.String())

	d.live = true
	d.printErrors = true
	d.ShowStatus("Searching...")
	assert.Contains(t, errOut.String(), "Searching...")
	d.AddError("Error: loud")
	assert.Contains(t, errOut.String(), clearLine)
	assert.Contains(t, errOut.String(), "Error: loud")

	d.Notice("Could not load documents")
	assert.Contains(t, errOut.String(), "Could not load documents")
}

func TestLineDisplay_AppendStreamsPartialAnswers(t *testing.T) {
	var out, errOut bytes.Buffer
	d := newLineDisplay(&out, &errOut, false).streaming(streamAppend)
	d.labels = true

	a := d.AddAnswer()
	d.UpdateAnswer(a, "Entropy")
	assert.Equal(t, "Answer\nEntropy", out.String())

	d.UpdateAnswer(a, "Entropy measures")
	assert.Equal(t, "Answer\nEntropy measures", out.String())
	assert.Equal(t, 0, d.printed())

	d.UpdateAnswer(a, "Entropy measures disorder.")
	d.AddActions(1, 1, a)
	assert.Equal(t, "Answer\nEntropy measures disorder.\n#1\n\n", out.String())
	assert.Equal(t, 1, d.printed())
}

func TestLineDisplay_AppendEdgeCases(t *testing.T) {
	t.Run("failed answer ends its line", func(t *testing.T) {
		var out, errOut bytes.Buffer
		d := newLineDisplay(&out, &errOut, false).streaming(streamAppend)
		d.printErrors = true

		a := d.AddAnswer()
		d.UpdateAnswer(a, "partial")
		d.Remove(a)
		d.AddError("Error: boom")
		assert.Equal(t, "partial\n", out.String())
		assert.Contains(t, errOut.String(), "Error: boom")
	})

	t.Run("final text that rewrites the partial is printed whole", func(t *testing.T) {
		var out, errOut bytes.Buffer
		d := newLineDisplay(&out, &errOut, false).streaming(streamAppend)

		a := d.AddAnswer()
		d.UpdateAnswer(a, "draft")
		d.UpdateAnswer(a, "Final")
		d.AddActions(1, 1, a)
		assert.Equal(t, "draft\nFinal\n", out.String())
	})

	t.Run("stale views are ignored", func(t *testing.T) {
		var out, errOut bytes.Buffer
		d := newLineDisplay(&out, &errOut, false).streaming(streamAppend)

		old := d.AddAnswer()
		d.Remove(old)
		d.UpdateAnswer(old, "ghost")
		assert.Empty(t, out.String())
	})
}

func TestLineDisplay_RedrawInPlace(t *testing.T) {
	var out, errOut bytes.Buffer
	d := newLineDisplay(&out, &errOut, false).streaming(streamRedraw)
	d.size = func() (int, int) { return 80, 24 }

	a := d.AddAnswer()
	d.UpdateAnswer(a, "One")
	assert.Equal(t, "One\n", out.String())

	out.Reset()
	d.UpdateAnswer(a, "One two\nthree")
	assert.Equal(t, "\x1b[1A\r\x1b[JOne two\nthree\n", out.String())

	out.Reset()
	d.AddActions(1, 1, a)
	assert.Equal(t, "\x1b[2A\r\x1b[JOne two\nthree\n", out.String())

	out.Reset()
	b := d.AddAnswer()
	d.UpdateAnswer(b, "gone")
	d.Remove(b)
	assert.Equal(t, "gone\n\x1b[1A\r\x1b[J", out.String())
}

func TestLineDisplay_RedrawFreezesScrolledLines(t *testing.T) {
	var out, errOut bytes.Buffer
	d := newLineDisplay(&out, &errOut, false).streaming(streamRedraw)
	d.size = func() (int, int) { return 80, 5 }

	a := d.AddAnswer()
	d.UpdateAnswer(a, "l1\nl2\nl3\nl4")
	assert.Equal(t, 3, d.frozen)
	assert.Equal(t, 1, d.liveRows)

	out.Reset()
	d.UpdateAnswer(a, "l1\nl2\nl3\nl4 more\nl5")
	assert.Equal(t, "\x1b[1A\r\x1b[Jl4 more\nl5\n", out.String())
	assert.Equal(t, 2, d.liveRows)
}

func TestScreenRows(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		width int
		want  int
	}{
		{"empty line", []string{""}, 80, 1},
		{"fits", []string{"abc", "de"}, 80, 2},
		{"wraps", []string{"abcdefgh"}, 3, 3},
		{"exact width", []string{"abc"}, 3, 1},
		{"unknown width", []string{"abcdefgh"}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, screenRows(tt.lines, tt.width))
		})
	}
}

func TestChat_StreamsThroughEngine(t *testing.T) {
	b := &scriptedBackend{docs: []string{"a.pdf"}, answers: []string{"Streamed answer."}}
	var out, errOut bytes.Buffer
	d, opts := newStreamingDisplay(&out, &errOut, false, false)
	d.labels = true

	eng := engine.New(b, session.NewManager(nil), d, opts...)
	_, err := eng.RefreshDocuments(context.Background())
	require.NoError(t, err)

	_, err = eng.Submit(context.Background(), "Q?")
	require.NoError(t, err)
	assert.Equal(t, "Answer\nStreamed answer.\n#1\n\n", out.String())
}

// =============================================================================
// CHAT REPL TESTS
// =============================================================================

// scriptedBackend answers each question with the next scripted text.
type scriptedBackend struct {
	mu      sync.Mutex
	docs    []string
	answers []string
	asked   []backend.AskRequest
	deleted []string
}

func (b *scriptedBackend) Ask(_ context.Context, req backend.AskRequest) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.asked = append(b.asked, req)
	text := "ok"
	if len(b.answers) > 0 {
		text, b.answers = b.answers[0], b.answers[1:]
	}
	frame, err := json.Marshal(map[string]string{"type": "token", "content": text})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(append(frame, '\n'))), nil
}

func (b *scriptedBackend) ListDocuments(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.docs...), nil
}

func (b *scriptedBackend) DeleteDocument(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, name)
	for i, d := range b.docs {
		if d == name {
			b.docs = append(b.docs[:i], b.docs[i+1:]...)
			return nil
		}
	}
	return backend.ErrNotFound
}

func (b *scriptedBackend) ClearAll(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = nil
	return nil
}

func (b *scriptedBackend) Upload(_ context.Context, files []backend.File) ([]model.UploadResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []model.UploadResult
	for _, f := range files {
		b.docs = append(b.docs, f.Name)
		out = append(out, model.UploadResult{Filename: f.Name, Status: model.UploadOK})
	}
	return out, nil
}

func newTestREPL(t *testing.T, b *scriptedBackend) (*chatREPL, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	d := newLineDisplay(&out, &errOut, false)
	d.labels = true
	d.printErrors = true

	eng := engine.New(b, session.NewManager(nil), d)
	_, err := eng.RefreshDocuments(context.Background())
	require.NoError(t, err)

	return &chatREPL{
		eng:    eng,
		out:    &out,
		errOut: &errOut,
		status: func() string { return "1 turns" },
	}, &out, &errOut
}

func TestChatREPL_SubmitAndHistory(t *testing.T) {
	b := &scriptedBackend{docs: []string{"a.pdf"}, answers: []string{"It is [a.pdf#1]."}}
	r, out, _ := newTestREPL(t, b)
	ctx := context.Background()

	assert.False(t, r.handleLine(ctx, "What is it?"))
	assert.Contains(t, out.String(), "Answer #1")
	assert.Contains(t, out.String(), "It is [a.pdf#1].")
	require.Len(t, b.asked, 1)
	assert.Equal(t, "What is it?", b.asked[0].Question)
	assert.Equal(t, []string{"a.pdf"}, b.asked[0].SelectedSources)

	out.Reset()
	r.handleLine(ctx, "/history")
	assert.Contains(t, out.String(), "#1")
	assert.Contains(t, out.String(), "What is it?")

	out.Reset()
	r.handleLine(ctx, "/status")
	assert.Contains(t, out.String(), "1 turns")
}

func TestChatREPL_RetryAndDelete(t *testing.T) {
	b := &scriptedBackend{docs: []string{"a.pdf"}, answers: []string{"first", "second"}}
	r, out, errOut := newTestREPL(t, b)
	ctx := context.Background()

	r.handleLine(ctx, "/retry")
	assert.Contains(t, errOut.String(), "there are no turns yet")

	r.handleLine(ctx, "Q?")
	out.Reset()
	r.handleLine(ctx, "/retry")
	assert.Contains(t, out.String(), "second")
	turns := r.eng.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "second", turns[0].Answer.Content)
	assert.Equal(t, "Q?", turns[0].Question.Content)

	errOut.Reset()
	r.handleLine(ctx, "/delete 99")
	assert.Contains(t, errOut.String(), "No such turn")

	r.handleLine(ctx, "/delete x")
	assert.Contains(t, errOut.String(), `"x" is not a turn number`)

	out.Reset()
	r.handleLine(ctx, fmt.Sprintf("/delete #%d", turns[0].ID))
	assert.Contains(t, out.String(), "Deleted turn")
	assert.Empty(t, r.eng.Turns())
}

func TestChatREPL_Documents(t *testing.T) {
	b := &scriptedBackend{docs: []string{"a.pdf", "b.pdf"}}
	r, out, errOut := newTestREPL(t, b)
	ctx := context.Background()

	r.handleLine(ctx, "/docs")
	assert.Contains(t, out.String(), "[x] a.pdf")
	assert.Contains(t, out.String(), "[x] b.pdf")

	out.Reset()
	r.handleLine(ctx, "/toggle a.pdf")
	assert.Contains(t, out.String(), "a.pdf excluded")
	r.handleLine(ctx, "/toggle a.pdf")
	assert.Contains(t, out.String(), "a.pdf included")

	r.handleLine(ctx, "/toggle c.pdf")
	assert.Contains(t, errOut.String(), "No document named c.pdf")

	out.Reset()
	r.handleLine(ctx, "/remove b.pdf")
	assert.Contains(t, out.String(), "Removed b.pdf.")
	assert.Equal(t, []string{"b.pdf"}, b.deleted)

	out.Reset()
	r.handleLine(ctx, "/docs")
	assert.Contains(t, out.String(), "[x] a.pdf")
	assert.NotContains(t, out.String(), "b.pdf")

	r.handleLine(ctx, "/remove a.pdf")
	errOut.Reset()
	r.handleLine(ctx, "Anything?")
	assert.Contains(t, errOut.String(), "Upload or select at least one document first")
	assert.Empty(t, b.asked)
}

func TestChatREPL_ClearNewAndQuit(t *testing.T) {
	b := &scriptedBackend{docs: []string{"a.pdf"}}
	r, out, errOut := newTestREPL(t, b)
	ctx := context.Background()

	r.handleLine(ctx, "Q?")
	r.handleLine(ctx, "/clear")
	assert.Contains(t, out.String(), "Conversation cleared.")
	assert.Empty(t, r.eng.Turns())

	r.handleLine(ctx, "/new")
	assert.Contains(t, out.String(), "Started a new session.")

	r.handleLine(ctx, "/bogus")
	assert.Contains(t, errOut.String(), "Unknown command /bogus")

	assert.True(t, r.handleLine(ctx, "/quit"))
	assert.True(t, r.handleLine(ctx, "/q"))
}

func TestChatREPL_Export(t *testing.T) {
	b := &scriptedBackend{docs: []string{"a.pdf"}}
	r, out, errOut := newTestREPL(t, b)
	ctx := context.Background()

	var gotFormat string
	r.export = func(format string) (string, error) {
		gotFormat = format
		return "/tmp/x.md", nil
	}
	r.handleLine(ctx, "/export")
	assert.Equal(t, "markdown", gotFormat)
	assert.Contains(t, out.String(), "Exported to /tmp/x.md")

	r.handleLine(ctx, "/export html")
	assert.Equal(t, "html", gotFormat)

	r.export = func(string) (string, error) {
		return "", fmt.Errorf("export failed: %w", export.ErrEmptySession)
	}
	r.handleLine(ctx, "/export")
	assert.Contains(t, errOut.String(), "Nothing to export yet.")
}

func TestCompleteSlashCommand(t *testing.T) {
	assert.Equal(t, []string{"/delete", "/docs"}, completeSlashCommand("/d"))
	assert.Nil(t, completeSlashCommand("hello"))
	assert.Nil(t, completeSlashCommand("/retry 1"))
}

// =============================================================================
// ASK TESTS
// =============================================================================

func TestRestrictSources(t *testing.T) {
	b := &scriptedBackend{docs: []string{"a.pdf", "b.pdf", "c.pdf"}}
	eng := engine.New(b, session.NewManager(nil), nil)
	_, err := eng.RefreshDocuments(context.Background())
	require.NoError(t, err)

	require.NoError(t, restrictSources(eng, nil))
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, selectedDocuments(eng))

	require.NoError(t, restrictSources(eng, []string{"b.pdf"}))
	assert.Equal(t, []string{"b.pdf"}, selectedDocuments(eng))

	err = restrictSources(eng, []string{"missing.pdf"})
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestNewAskResult(t *testing.T) {
	ans := engine.Answer{
		Turn: model.Turn{
			ID:       1,
			Question: model.NewUserExchange("Where?"),
			Answer:   model.NewAssistantExchange("See [paper.pdf#3] and [notes.pdf#1]."),
		},
		Stats: stream.Stats{
			StartTime: time.Unix(0, 0),
			EndTime:   time.Unix(2, 0),
			TTFT:      150 * time.Millisecond,
			Tokens:    12,
		},
		Metadata: &stream.MetadataEvent{Hits: []stream.Hit{{Source: "paper.pdf", ChunkIndex: 3}}},
	}

	res := newAskResult("Where?", ans, []string{"paper.pdf", "notes.pdf"})
	assert.Equal(t, "See [paper.pdf#3] and [notes.pdf#1].", res.Answer)
	assert.Equal(t, []string{"paper.pdf#3", "notes.pdf#1"}, res.Citations)
	assert.Equal(t, int64(2000), res.Stats.DurationMs)
	assert.Equal(t, int64(150), res.Stats.TTFTMs)
	assert.Equal(t, 12, res.Stats.Tokens)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 3, res.Hits[0].ChunkIndex)
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestPrintArchivedSession(t *testing.T) {
	s := &storage.ArchivedSession{
		ID:        "0123456789abcdef",
		Summary:   "Where is it?",
		StartedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC),
		Documents: []string{"a.pdf"},
		Turns: []model.Turn{{
			ID:       4,
			Question: model.NewUserExchange("Where is it?"),
			Answer:   model.NewAssistantExchange("Here."),
		}},
	}

	var buf bytes.Buffer
	printArchivedSession(&buf, s, engine.PlainFormatter)
	out := buf.String()
	assert.Contains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "2025-03-01 09:05")
	assert.Contains(t, out, "a.pdf")
	assert.Contains(t, out, "You #4")
	assert.Contains(t, out, "Here.")
	assert.Equal(t, "01234567", shortID(s.ID))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestCountFailed(t *testing.T) {
	results := []model.UploadResult{
		{Filename: "a.pdf", Status: model.UploadOK},
		{Filename: "b.txt", Status: model.UploadError, Message: "not a PDF"},
	}
	assert.Equal(t, 1, countFailed(results))

	var buf bytes.Buffer
	printUploadResults(&buf, results)
	assert.Contains(t, buf.String(), "a.pdf")
	assert.Contains(t, buf.String(), "b.txt: not a PDF")
}
