// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/docqa-tui/internal/backend"
	"github.com/jeranaias/docqa-tui/internal/config"
	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/export"
	"github.com/jeranaias/docqa-tui/internal/logging"
	"github.com/jeranaias/docqa-tui/internal/render"
	"github.com/jeranaias/docqa-tui/internal/session"
	"github.com/jeranaias/docqa-tui/internal/storage"
)

// =============================================================================
// APP
// =============================================================================

// App holds the services shared by the commands that talk to the answer
// service.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Client   *backend.Client
	Archive  *storage.Archive // nil when archiving is off
	Sessions *session.Manager
	Pipeline *render.Pipeline
}

// NewApp loads configuration and wires the client, archive and session
// manager. The first session is already started.
func NewApp(args Args) (*App, error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, args.Verbose)
	client := backend.NewClient(cfg.ClientConfig(), logger)

	app := &App{
		Config: cfg,
		Logger: logger,
		Client: client,
	}

	if cfg.Archive.Enabled && !args.NoArchive {
		app.Archive, err = openArchive(cfg, logger)
		if err != nil {
			logger.Warn("archive disabled", zap.Error(err))
			fmt.Fprintf(os.Stderr, "%s archive unavailable: %v\n", WarningStyle.Render("[!]"), err)
		}
	}

	opts := []session.ManagerOption{
		session.WithLogger(logger),
		session.WithStartHook(func(s *session.Session) {
			client.SetSessionID(s.ID)
		}),
	}
	if app.Archive != nil {
		opts = append(opts, session.WithArchiver(app.Archive))
	}
	app.Sessions = session.NewManager(client, opts...)

	app.Pipeline = render.NewTerminal(render.Options{
		Width:     renderWidth(cfg.Render.WordWrap),
		Style:     cfg.Render.Style,
		CodeStyle: cfg.Render.CodeStyle,
		Math:      cfg.Render.Math,
		CacheTTL:  cfg.CacheTTL(),
		Logger:    logger,
	})

	return app, nil
}

// NewEngine creates an engine that renders into d. opts are applied after
// the configured ones.
func (a *App) NewEngine(d engine.Display, opts ...engine.Option) *engine.Engine {
	base := []engine.Option{
		engine.WithFormatter(engine.NewTerminalFormatter(a.Pipeline, a.Client.BaseURL(), a.Config.Render.Hyperlinks)),
		engine.WithHistoryWindow(a.Config.Chat.HistoryWindow),
		engine.WithRequireDocuments(a.Config.Chat.RequireDocuments),
		engine.WithMaxUploadBytes(a.Config.MaxUploadBytes()),
		engine.WithLogger(a.Logger),
	}
	return engine.New(a.Client, a.Sessions, d, append(base, opts...)...)
}

// newStreamingDisplay returns a line display that shows answers while they
// stream. A terminal gets rendered markup redrawn in place; anything else
// gets the raw text appended as it arrives.
func newStreamingDisplay(out, errOut io.Writer, tty, live bool) (*lineDisplay, []engine.Option) {
	d := newLineDisplay(out, errOut, live)
	if tty {
		return d.streaming(streamRedraw), nil
	}
	return d.streaming(streamAppend), []engine.Option{engine.WithFormatter(engine.PlainFormatter)}
}

// ExportCurrent writes the current session's transcript in format and
// returns the file path.
func (a *App) ExportCurrent(format string, open bool) (string, error) {
	snap := a.Sessions.Current().Snapshot()
	return exportSession(a.Config, a.Client.BaseURL(), storage.FromSnapshot(snap), format, open)
}

// Close ends the current session, which sends the teardown signal and
// archives a non-empty transcript, then releases resources.
func (a *App) Close() {
	teardown := time.Duration(a.Config.Server.TeardownTimeoutMs)*time.Millisecond + time.Second
	ctx, cancel := context.WithTimeout(context.Background(), teardown)
	defer cancel()

	a.Sessions.Close(ctx)
	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil {
			a.Logger.Warn("failed to close archive", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}

// =============================================================================
// HELPERS
// =============================================================================

// loadConfig reads the configuration named by --config, or the default
// file, and applies --server.
func loadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &ConfigLoadError{Path: args.ConfigPath, Err: err}
	}

	if args.ServerURL != "" {
		cfg.Server.BaseURL = args.ServerURL
		if err := cfg.Validate(); err != nil {
			return nil, &ConfigLoadError{Path: args.ConfigPath, Err: err}
		}
	}
	return cfg, nil
}

// newLogger builds the file logger and, with --verbose, a stderr console.
// A logger that cannot be built is replaced with a no-op.
func newLogger(cfg *config.Config, verbose bool) *zap.Logger {
	var console io.Writer
	if verbose {
		console = os.Stderr
	}

	file, err := cfg.LogFile()
	if err != nil {
		file = ""
	}
	logger, err := logging.New(logging.Options{
		File:    file,
		Level:   cfg.Logging.Level,
		Console: console,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s logging disabled: %v\n", WarningStyle.Render("[!]"), err)
		return zap.NewNop()
	}
	return logger.With(zap.String("version", Version))
}

func openArchive(cfg *config.Config, logger *zap.Logger) (*storage.Archive, error) {
	path, err := cfg.ArchivePath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path,
		storage.WithMaxSessions(cfg.Archive.MaxSessions),
		storage.WithLogger(logger),
	)
}

// exportOptions maps the export section onto export.Options.
func exportOptions(cfg *config.Config, baseURL string, open bool) *export.Options {
	opts := export.DefaultOptions()
	if cfg.Export.Dir != "" {
		opts.OutputDir = cfg.Export.Dir
	}
	opts.Theme = cfg.Export.Theme
	opts.Open = open || cfg.Export.Open
	opts.BaseURL = baseURL
	opts.CodeStyle = cfg.Render.CodeStyle
	return opts
}

func exportSession(cfg *config.Config, baseURL string, s *storage.ArchivedSession, format string, open bool) (string, error) {
	opts := exportOptions(cfg, baseURL, open)
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return "", NewValidationErrorWithExample("format", format, "unsupported export format", "markdown, json or html")
	}
	return export.ToFile(s, exp, opts)
}

// renderWidth caps the configured wrap column at the terminal width.
func renderWidth(wrap int) int {
	width := GetTerminalWidth()
	if wrap > 0 && wrap < width {
		return wrap
	}
	return width
}
