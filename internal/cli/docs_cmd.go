// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/library"
	"github.com/jeranaias/docqa-tui/internal/model"
)

// HandleDocs manages the documents held by the answer service.
//
//	docqa docs [list|upload FILES...|remove NAME|clear|watch DIR]
func HandleDocs(ctx context.Context, app *App, args Args) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Document errors are returned and reported once by the caller.
	eng := app.NewEngine(nil)

	switch sub := args.Sub(); sub {
	case "", "list", "ls":
		return docsList(ctx, eng, args)
	case "upload", "add":
		return docsUpload(ctx, eng, args)
	case "remove", "rm", "delete":
		return docsRemove(ctx, eng, args)
	case "clear":
		return docsClear(ctx, eng, args)
	case "watch":
		return docsWatch(ctx, app, args)
	default:
		return NewValidationErrorWithExample("docs subcommand", sub, "unknown subcommand", "docqa docs list")
	}
}

func docsList(ctx context.Context, eng *engine.Engine, args Args) error {
	docs, err := eng.RefreshDocuments(ctx)
	if err != nil {
		return NewCommandError("docs", "list", "could not load documents", err)
	}
	if args.JSON {
		if docs == nil {
			docs = []string{}
		}
		return NewJSONResponse("docs list", docs).Print()
	}
	if len(docs) == 0 {
		fmt.Println(DimStyle.Render("No documents uploaded. Use 'docqa docs upload FILE.pdf'."))
		return nil
	}
	for _, d := range docs {
		fmt.Println(d)
	}
	return nil
}

func docsUpload(ctx context.Context, eng *engine.Engine, args Args) error {
	paths := args.Rest[1:]
	if len(paths) == 0 {
		return NewValidationErrorWithExample("files", "", "at least one PDF is required", "docqa docs upload paper.pdf")
	}

	results, err := eng.Upload(ctx, paths)
	if args.JSON && err == nil {
		return NewJSONResponse("docs upload", results).Print()
	}
	printUploadResults(os.Stdout, results)
	if err != nil {
		return NewCommandError("docs", "upload", "upload failed", err)
	}
	if failed := countFailed(results); failed > 0 {
		return NewCommandError("docs", "upload", fmt.Sprintf("%d of %d files were not accepted", failed, len(results)), nil)
	}
	return nil
}

func docsRemove(ctx context.Context, eng *engine.Engine, args Args) error {
	name := args.Arg(1)
	if name == "" {
		return NewValidationErrorWithExample("name", "", "a document name is required", "docqa docs remove paper.pdf")
	}
	if err := eng.RemoveDocument(ctx, name); err != nil {
		return NewCommandError("docs", "remove", "could not remove "+name, err)
	}
	if args.JSON {
		return NewJSONResponse("docs remove", map[string]string{"removed": name}).Print()
	}
	fmt.Println(SuccessStyle.Render("Removed " + name))
	return nil
}

func docsClear(ctx context.Context, eng *engine.Engine, args Args) error {
	ok, err := RequireConfirmation(args.Yes, "delete every uploaded document", args.JSON)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Cancelled.")
		return nil
	}
	if err := eng.ClearDocuments(ctx); err != nil {
		return NewCommandError("docs", "clear", "could not clear documents", err)
	}
	if args.JSON {
		return NewJSONResponse("docs clear", map[string]bool{"cleared": true}).Print()
	}
	fmt.Println(SuccessStyle.Render("All documents removed."))
	return nil
}

// docsWatch uploads PDFs that appear in a folder until interrupted.
func docsWatch(ctx context.Context, app *App, args Args) error {
	dir := args.Arg(1)
	if dir == "" {
		return NewValidationErrorWithExample("dir", "", "a folder is required", "docqa docs watch ~/papers")
	}

	cfg := library.DefaultWatcherConfig(dir)
	cfg.Debounce = app.Config.WatchDebounce()
	cfg.RatePerSec = app.Config.Upload.WatchRatePerSec
	cfg.Burst = app.Config.Upload.WatchBurst
	cfg.MaxBytes = app.Config.MaxUploadBytes()

	report := func(path string, results []model.UploadResult, err error) {
		stamp := DimStyle.Render(time.Now().Format("15:04:05"))
		if err != nil {
			fmt.Printf("%s %s %s: %v\n", stamp, ErrorStyle.Render("[X]"), path, err)
			return
		}
		for _, res := range results {
			status := SuccessStyle.Render("[OK]")
			if !res.OK() {
				status = ErrorStyle.Render("[X]")
			}
			fmt.Printf("%s %s %s %s\n", stamp, status, res.Filename, res.Message)
		}
	}

	w, err := library.NewWatcher(cfg, app.Client, report, app.Logger)
	if err != nil {
		return NewValidationError("dir", dir, err.Error())
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return NewCommandError("docs", "watch", "could not watch "+dir, err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			app.Logger.Warn("watcher close failed", zap.Error(err))
		}
	}()

	fmt.Println(DimStyle.Render("Watching " + dir + " for PDFs. Press Ctrl+C to stop."))
	<-ctx.Done()
	return nil
}

func countFailed(results []model.UploadResult) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}
