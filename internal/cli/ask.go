// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jeranaias/docqa-tui/internal/citation"
	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/stream"
)

// AskResult is the --json payload of the ask command.
type AskResult struct {
	Question  string        `json:"question"`
	Answer    string        `json:"answer"`
	Citations []string      `json:"citations"`
	Documents []string      `json:"documents"`
	Hits      []stream.Hit  `json:"hits,omitempty"`
	Stats     AskStatistics `json:"stats"`
}

// AskStatistics summarises the answer stream.
type AskStatistics struct {
	DurationMs int64 `json:"duration_ms"`
	TTFTMs     int64 `json:"ttft_ms"`
	Tokens     int   `json:"tokens"`
	Malformed  int   `json:"malformed,omitempty"`
}

// HandleAsk answers one question and prints the result.
//
//	docqa ask [--source NAME]... [--json] QUESTION
func HandleAsk(ctx context.Context, app *App, args Args) error {
	question := strings.TrimSpace(strings.Join(args.Rest, " "))
	if question == "" {
		return NewValidationErrorWithExample("question", "", "a question is required", `docqa ask "What does the paper conclude?"`)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		display *lineDisplay
		opts    []engine.Option
	)
	if args.JSON {
		display = newLineDisplay(io.Discard, os.Stderr, false)
	} else {
		display, opts = newStreamingDisplay(os.Stdout, os.Stderr, IsStdoutTTY(), IsStderrTTY())
	}
	eng := app.NewEngine(display, opts...)

	if _, err := eng.RefreshDocuments(ctx); err != nil {
		return NewCommandError("ask", "list documents", "could not load documents", err)
	}
	if err := restrictSources(eng, args.Flags("source", "s")); err != nil {
		return err
	}

	ans, err := eng.Submit(ctx, question)
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("ask", newAskResult(question, ans, selectedDocuments(eng))).Print()
	}
	if args.Verbose {
		fmt.Fprintln(os.Stderr, DimStyle.Render(ans.Stats.Format()))
	}
	return nil
}

// restrictSources narrows the selection to sources. Every name must be an
// uploaded document.
func restrictSources(eng *engine.Engine, sources []string) error {
	if len(sources) == 0 {
		return nil
	}

	known := make(map[string]bool)
	for _, item := range eng.Documents() {
		known[item.Name] = true
	}
	want := make(map[string]bool, len(sources))
	for _, s := range sources {
		if !known[s] {
			return NewNotFoundError("document", s)
		}
		want[s] = true
	}

	for name := range known {
		eng.Toggle(name, want[name])
	}
	return nil
}

func selectedDocuments(eng *engine.Engine) []string {
	docs := []string{}
	for _, item := range eng.Documents() {
		if item.Selected {
			docs = append(docs, item.Name)
		}
	}
	return docs
}

func newAskResult(question string, ans engine.Answer, docs []string) AskResult {
	res := AskResult{
		Question:  question,
		Answer:    ans.Turn.Answer.Content,
		Citations: []string{},
		Documents: docs,
		Stats: AskStatistics{
			DurationMs: ans.Stats.Duration().Milliseconds(),
			TTFTMs:     ans.Stats.TTFT.Milliseconds(),
			Tokens:     ans.Stats.Tokens,
			Malformed:  ans.Stats.Malformed,
		},
	}
	for _, c := range citation.Find(ans.Turn.Answer.Content) {
		res.Citations = append(res.Citations, c.String())
	}
	if ans.Metadata != nil {
		res.Hits = ans.Metadata.Hits
	}
	return res
}
