// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/docqa-tui/internal/config"
	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/render"
	"github.com/jeranaias/docqa-tui/internal/storage"
)

// DefaultHistoryLimit is how many sessions "history list" shows.
const DefaultHistoryLimit = 20

// HandleHistory browses the local session archive. It does not contact
// the answer service.
//
//	docqa history [list|show ID|export ID FORMAT|delete ID]
func HandleHistory(ctx context.Context, args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, args.Verbose)
	defer func() { _ = logger.Sync() }()

	archive, err := openArchive(cfg, logger)
	if err != nil {
		return NewCommandError("history", "open", "could not open the archive", err)
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Warn("failed to close archive", zap.Error(err))
		}
	}()

	switch sub := args.Sub(); sub {
	case "", "list", "ls":
		return historyList(ctx, archive, args)
	case "show":
		return historyShow(ctx, archive, cfg, args)
	case "export":
		return historyExport(ctx, archive, cfg, args)
	case "delete", "rm":
		return historyDelete(ctx, archive, args)
	default:
		return NewValidationErrorWithExample("history subcommand", sub, "unknown subcommand", "docqa history list")
	}
}

func historyList(ctx context.Context, archive *storage.Archive, args Args) error {
	limit, err := args.IntFlag("limit", DefaultHistoryLimit)
	if err != nil {
		return err
	}

	var metas []storage.SessionMeta
	if q := args.Flag("search"); q != "" {
		metas, err = archive.Search(ctx, q)
		if err == nil && limit > 0 && len(metas) > limit {
			metas = metas[:limit]
		}
	} else {
		metas, err = archive.List(ctx, limit)
	}
	if err != nil {
		return NewCommandError("history", "list", "could not read the archive", err)
	}

	if args.JSON {
		if metas == nil {
			metas = []storage.SessionMeta{}
		}
		return NewJSONResponse("history list", metas).Print()
	}
	fmt.Print(storage.FormatSessionList(metas))
	if len(metas) == 0 {
		fmt.Println()
	}
	return nil
}

func historyShow(ctx context.Context, archive *storage.Archive, cfg *config.Config, args Args) error {
	s, err := getArchived(ctx, archive, args)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("history show", s).Print()
	}

	p := render.NewTerminal(render.Options{
		Width:     renderWidth(cfg.Render.WordWrap),
		Style:     cfg.Render.Style,
		CodeStyle: cfg.Render.CodeStyle,
		Math:      cfg.Render.Math,
	})
	format := engine.NewTerminalFormatter(p, cfg.Server.BaseURL, cfg.Render.Hyperlinks)
	printArchivedSession(os.Stdout, s, format)
	return nil
}

// printArchivedSession writes a header and every turn, rendering answers
// with format.
func printArchivedSession(w io.Writer, s *storage.ArchivedSession, format engine.Formatter) {
	fmt.Fprintln(w, TitleStyle.Render(s.Summary))
	fmt.Fprintln(w, FormatKeyValue("Session", s.ID))
	fmt.Fprintln(w, FormatKeyValue("Started", s.StartedAt.Format("2006-01-02 15:04")))
	fmt.Fprintln(w, FormatKeyValue("Ended", s.EndedAt.Format("2006-01-02 15:04")))
	if len(s.Documents) > 0 {
		fmt.Fprintln(w, FormatKeyValue("Documents", strings.Join(s.Documents, ", ")))
	}
	fmt.Fprintln(w)

	for _, t := range s.Turns {
		fmt.Fprintln(w, PromptStyle.Render(fmt.Sprintf("You #%d", t.ID)))
		fmt.Fprintln(w, t.Question.Content)
		fmt.Fprintln(w)
		fmt.Fprintln(w, SectionStyle.Render("Answer"))
		fmt.Fprintln(w, format.Format(t.Answer.Content, true))
		fmt.Fprintln(w, Separator(40))
	}
}

func historyExport(ctx context.Context, archive *storage.Archive, cfg *config.Config, args Args) error {
	s, err := getArchived(ctx, archive, args)
	if err != nil {
		return err
	}
	format := args.Arg(2)
	if format == "" {
		format = args.FlagOrDefault("format", "markdown")
	}

	path, err := exportSession(cfg, cfg.Server.BaseURL, s, format, args.BoolFlag("open"))
	if err != nil && path == "" {
		return err
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render(err.Error()))
	}

	if args.JSON {
		return NewJSONResponse("history export", map[string]string{"path": path, "format": format}).Print()
	}
	fmt.Println(SuccessStyle.Render("Exported to " + path))
	return nil
}

func historyDelete(ctx context.Context, archive *storage.Archive, args Args) error {
	s, err := getArchived(ctx, archive, args)
	if err != nil {
		return err
	}

	ok, err := RequireConfirmation(args.Yes, fmt.Sprintf("delete session %s (%q)", shortID(s.ID), s.Summary), args.JSON)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Cancelled.")
		return nil
	}
	if err := archive.Delete(ctx, s.ID); err != nil {
		return NewCommandError("history", "delete", "could not delete "+shortID(s.ID), err)
	}

	if args.JSON {
		return NewJSONResponse("history delete", map[string]string{"deleted": s.ID}).Print()
	}
	fmt.Println(SuccessStyle.Render("Deleted session " + shortID(s.ID)))
	return nil
}

// getArchived resolves the session id in the second positional argument.
func getArchived(ctx context.Context, archive *storage.Archive, args Args) (*storage.ArchivedSession, error) {
	id := args.Arg(1)
	if id == "" {
		return nil, NewValidationErrorWithExample("id", "", "a session id is required", "docqa history show 1a2b3c4d")
	}
	return archive.Get(ctx, id)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
