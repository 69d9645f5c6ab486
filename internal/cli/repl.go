// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/docqa-tui/internal/config"
	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/export"
	"github.com/jeranaias/docqa-tui/internal/model"
	"github.com/jeranaias/docqa-tui/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides line editing and persistent input history for the
// chat command.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates the line editor and loads saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeSlashCommand)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory reads saved input history.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// SaveHistory writes input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() error {
	var buf bytes.Buffer
	if _, err := c.line.WriteHistory(&buf); err != nil {
		return err
	}
	return util.AtomicWriteFile(c.historyFile, buf.Bytes(), 0o600, 0o700)
}

// Prompt reads one line.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	return c.line.Prompt(prompt)
}

// AppendHistory records a line.
func (c *ChatCLI) AppendHistory(item string) {
	c.line.AppendHistory(item)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() error {
	saveErr := c.SaveHistory()
	if err := c.line.Close(); err != nil {
		return err
	}
	return saveErr
}

var slashCommands = []string{
	"/clear", "/delete", "/docs", "/export", "/help", "/history", "/new",
	"/quit", "/refresh", "/remove", "/retry", "/status", "/toggle", "/upload",
}

func completeSlashCommand(line string) []string {
	if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
		return nil
	}
	var out []string
	for _, c := range slashCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

// HandleChat runs the line-mode chat until /quit or Ctrl+D.
func HandleChat(ctx context.Context, app *App, args Args) error {
	display, opts := newStreamingDisplay(os.Stdout, os.Stderr, IsStdoutTTY(), IsStderrTTY())
	display.labels = true
	display.printErrors = true

	eng := app.NewEngine(display, opts...)
	repl := &chatREPL{
		eng:    eng,
		out:    os.Stdout,
		errOut: os.Stderr,
		export: func(format string) (string, error) {
			return app.ExportCurrent(format, false)
		},
		status: func() string {
			return app.Sessions.GetStatus().Format()
		},
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}

	_, _ = eng.RefreshDocuments(ctx)
	repl.banner(app.Client.BaseURL())

	cli := NewChatCLI()
	defer func() {
		if err := cli.Close(); err != nil {
			app.Logger.Debug("chat history not saved")
		}
	}()

	for {
		input, err := cli.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(repl.out)
			return nil
		}
		if err != nil {
			return NewCommandError("chat", "read input", "prompt failed", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		cli.AppendHistory(input)

		if repl.handleLine(ctx, input) {
			return nil
		}
	}
}

// chatREPL interprets chat input. It is separate from the line editor so
// it can be driven from tests.
type chatREPL struct {
	eng    *engine.Engine
	out    io.Writer
	errOut io.Writer

	export func(format string) (string, error)
	status func() string

	// interrupt scopes a context to one answer so Ctrl+C cancels the
	// answer rather than the chat.
	interrupt func(ctx context.Context) (context.Context, context.CancelFunc)
}

func (r *chatREPL) banner(server string) {
	docs := r.eng.Documents()
	fmt.Fprintln(r.out, TitleStyle.Render("docqa chat"))
	fmt.Fprintln(r.out, FormatKeyValue("Server", server))
	fmt.Fprintln(r.out, FormatKeyValue("Documents", strconv.Itoa(len(docs))))
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands. Ctrl+C cancels an answer, Ctrl+D exits."))
	fmt.Fprintln(r.out)
}

// handleLine processes one non-empty input line and reports whether the
// chat should end.
func (r *chatREPL) handleLine(ctx context.Context, input string) bool {
	if strings.HasPrefix(input, "/") {
		return r.handleSlashCommand(ctx, input)
	}

	actx, cancel := r.answerContext(ctx)
	defer cancel()
	_, err := r.eng.Submit(actx, input)
	r.reportError(err)
	return false
}

func (r *chatREPL) answerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.interrupt == nil {
		return context.WithCancel(ctx)
	}
	return r.interrupt(ctx)
}

// reportError prints errors the engine does not already show as an
// error view.
func (r *chatREPL) reportError(err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(r.errOut, WarningStyle.Render("Cancelled."))
	case errors.Is(err, engine.ErrBusy):
		fmt.Fprintln(r.errOut, WarningStyle.Render("Wait for the current answer to finish."))
	case errors.Is(err, engine.ErrNoDocuments):
		fmt.Fprintln(r.errOut, ErrorStyle.Render("Upload or select at least one document first (/docs, /upload)."))
	case errors.Is(err, engine.ErrUnknownTurn):
		fmt.Fprintln(r.errOut, ErrorStyle.Render("No such turn. Use /history to list turns."))
	case errors.Is(err, engine.ErrEmptyQuestion):
	default:
		// The engine has shown it as an error view or a notice.
	}
}

func (r *chatREPL) handleSlashCommand(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	arg := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h", "/?":
		PrintUsage(r.out, "chat")

	case "/retry":
		id, err := r.turnArg(arg)
		if err != nil {
			fmt.Fprintln(r.errOut, ErrorStyle.Render(err.Error()))
			return false
		}
		actx, cancel := r.answerContext(ctx)
		defer cancel()
		_, err = r.eng.Retry(actx, id)
		r.reportError(err)

	case "/delete":
		id, err := r.turnArg(arg)
		if err != nil {
			fmt.Fprintln(r.errOut, ErrorStyle.Render(err.Error()))
			return false
		}
		if err := r.eng.Delete(id); err != nil {
			r.reportError(err)
			return false
		}
		fmt.Fprintln(r.out, SuccessStyle.Render(fmt.Sprintf("Deleted turn #%d.", id)))

	case "/history":
		r.printTurns()

	case "/docs":
		r.printDocuments()

	case "/refresh":
		if _, err := r.eng.RefreshDocuments(ctx); err == nil {
			r.printDocuments()
		}

	case "/toggle":
		r.toggle(arg)

	case "/upload":
		paths := strings.Fields(arg)
		if len(paths) == 0 {
			fmt.Fprintln(r.errOut, ErrorStyle.Render("Usage: /upload FILE.pdf..."))
			return false
		}
		results, _ := r.eng.Upload(ctx, paths)
		printUploadResults(r.out, results)

	case "/remove":
		if arg == "" {
			fmt.Fprintln(r.errOut, ErrorStyle.Render("Usage: /remove NAME"))
			return false
		}
		if err := r.eng.RemoveDocument(ctx, arg); err == nil {
			fmt.Fprintln(r.out, SuccessStyle.Render("Removed "+arg+"."))
		}

	case "/clear":
		if err := r.eng.ClearChat(); err != nil {
			r.reportError(err)
			return false
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Conversation cleared."))

	case "/new":
		if err := r.eng.NewChat(ctx); err != nil {
			r.reportError(err)
			return false
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Started a new session."))

	case "/export":
		r.exportTranscript(arg)

	case "/status":
		if r.status != nil {
			fmt.Fprintln(r.out, r.status())
		}

	default:
		fmt.Fprintln(r.errOut, ErrorStyle.Render("Unknown command "+cmd+". Type /help."))
	}
	return false
}

// turnArg parses a turn number. No argument means the most recent turn.
func (r *chatREPL) turnArg(arg string) (model.TurnID, error) {
	if arg == "" {
		turns := r.eng.Turns()
		if len(turns) == 0 {
			return 0, errors.New("there are no turns yet")
		}
		return turns[len(turns)-1].ID, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%q is not a turn number", arg)
	}
	return model.TurnID(n), nil
}

func (r *chatREPL) printTurns() {
	turns := r.eng.Turns()
	if len(turns) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No turns yet."))
		return
	}
	for _, t := range turns {
		fmt.Fprintf(r.out, "%s %s\n",
			PromptStyle.Render(fmt.Sprintf("#%d", t.ID)),
			util.TruncateWidth(util.FirstLine(t.Question.Content), 70))
	}
}

func (r *chatREPL) printDocuments() {
	items := r.eng.Documents()
	if len(items) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No documents uploaded."))
		return
	}
	for _, item := range items {
		mark := DimStyle.Render("[ ]")
		if item.Selected {
			mark = SuccessStyle.Render("[x]")
		}
		fmt.Fprintf(r.out, "%s %s\n", mark, item.Name)
	}
}

func (r *chatREPL) toggle(name string) {
	if name == "" {
		fmt.Fprintln(r.errOut, ErrorStyle.Render("Usage: /toggle NAME"))
		return
	}
	for _, item := range r.eng.Documents() {
		if item.Name == name {
			r.eng.Toggle(name, !item.Selected)
			state := "excluded"
			if !item.Selected {
				state = "included"
			}
			fmt.Fprintf(r.out, "%s %s\n", name, state)
			return
		}
	}
	fmt.Fprintln(r.errOut, ErrorStyle.Render("No document named "+name+". Use /docs to list them."))
}

func (r *chatREPL) exportTranscript(format string) {
	if r.export == nil {
		return
	}
	if format == "" {
		format = "markdown"
	}
	path, err := r.export(format)
	switch {
	case errors.Is(err, export.ErrEmptySession):
		fmt.Fprintln(r.errOut, WarningStyle.Render("Nothing to export yet."))
	case err != nil && path == "":
		fmt.Fprintln(r.errOut, ErrorStyle.Render("Export failed: "+err.Error()))
	default:
		fmt.Fprintln(r.out, SuccessStyle.Render("Exported to "+path))
	}
}

// printUploadResults writes one line per uploaded file.
func printUploadResults(w io.Writer, results []model.UploadResult) {
	for _, res := range results {
		if res.OK() {
			fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("[OK]"), res.Filename)
			continue
		}
		msg := res.Message
		if msg == "" {
			msg = string(res.Status)
		}
		fmt.Fprintf(w, "%s %s: %s\n", ErrorStyle.Render("[X]"), res.Filename, msg)
	}
}
