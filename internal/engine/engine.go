// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/docqa-tui/internal/backend"
	"github.com/jeranaias/docqa-tui/internal/library"
	"github.com/jeranaias/docqa-tui/internal/model"
	"github.com/jeranaias/docqa-tui/internal/session"
	"github.com/jeranaias/docqa-tui/internal/stream"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned while a submission is in flight.
	ErrBusy = errors.New("a question is already being answered")

	// ErrEmptyQuestion is returned for blank input.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrNoDocuments is returned when no documents are known.
	ErrNoDocuments = errors.New("upload a document before asking")

	// ErrUnknownTurn is returned for a turn id that is not in the transcript.
	ErrUnknownTurn = errors.New("no such turn")
)

// StartingStatus is shown between sending a question and the response.
const StartingStatus = "Starting..."

// DefaultHistoryWindow is how many transcript entries are sent as context.
const DefaultHistoryWindow = 6

// Backend is the part of the answer service the engine uses.
type Backend interface {
	Ask(ctx context.Context, req backend.AskRequest) (io.ReadCloser, error)
	ListDocuments(ctx context.Context) ([]string, error)
	DeleteDocument(ctx context.Context, name string) error
	ClearAll(ctx context.Context) error
	Upload(ctx context.Context, files []backend.File) ([]model.UploadResult, error)
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures an Engine.
type Option func(*Engine)

// WithFormatter sets how answers are rendered. The default shows raw text.
func WithFormatter(f Formatter) Option {
	return func(e *Engine) {
		if f != nil {
			e.format = f
		}
	}
}

// WithHistoryWindow sets how many recent entries are sent as context.
func WithHistoryWindow(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.window = n
		}
	}
}

// WithRequireDocuments refuses submissions while no documents are known.
// It is on by default.
func WithRequireDocuments(require bool) Option {
	return func(e *Engine) { e.requireDocuments = require }
}

// WithMaxUploadBytes limits the size of each uploaded file.
func WithMaxUploadBytes(n int64) Option {
	return func(e *Engine) { e.maxUploadBytes = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// =============================================================================
// ENGINE
// =============================================================================

type turnViews struct {
	user   ViewID
	answer ViewID
}

// Answer is the outcome of a successful submission.
type Answer struct {
	Turn     model.Turn
	Stats    stream.Stats
	Metadata *stream.MetadataEvent
}

// Engine coordinates the session, the backend and the display.
type Engine struct {
	backend          Backend
	sessions         *session.Manager
	display          Display
	format           Formatter
	window           int
	requireDocuments bool
	maxUploadBytes   int64
	logger           *zap.Logger

	mu    sync.Mutex
	views map[model.TurnID]turnViews
}

// New creates an engine. A nil display discards output.
func New(b Backend, sessions *session.Manager, d Display, opts ...Option) *Engine {
	if d == nil {
		d = &NopDisplay{}
	}
	e := &Engine{
		backend:          b,
		sessions:         sessions,
		display:          d,
		format:           PlainFormatter,
		window:           DefaultHistoryWindow,
		requireDocuments: true,
		logger:           zap.NewNop(),
		views:            make(map[model.TurnID]turnViews),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("engine")
	return e
}

// Session returns the current session.
func (e *Engine) Session() *session.Session {
	return e.sessions.Current()
}

// Submit asks a question and streams the answer into the display.
func (e *Engine) Submit(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	s := e.sessions.Current()
	if !s.TryBegin() {
		return Answer{}, ErrBusy
	}
	defer s.Finish()

	if err := e.checkDocuments(s); err != nil {
		return Answer{}, err
	}
	return e.run(ctx, s, question, 0)
}

// Retry removes a committed turn and asks its question again, reusing the
// question's view. If the new attempt fails the transcript holds no turn
// for that question.
func (e *Engine) Retry(ctx context.Context, id model.TurnID) (Answer, error) {
	s := e.sessions.Current()
	if !s.TryBegin() {
		return Answer{}, ErrBusy
	}
	defer s.Finish()

	if _, ok := s.Transcript.Get(id); !ok {
		return Answer{}, ErrUnknownTurn
	}
	if err := e.checkDocuments(s); err != nil {
		return Answer{}, err
	}

	turn, _ := s.Transcript.Remove(id)
	views := e.takeViews(id)
	e.display.RemoveActions(id)
	if views.answer != 0 {
		e.display.Remove(views.answer)
	}

	e.logger.Debug("retry", zap.Uint64("turn", uint64(id)))
	return e.run(ctx, s, turn.Question.Content, views.user)
}

// Delete removes a committed turn and both of its views.
func (e *Engine) Delete(id model.TurnID) error {
	s := e.sessions.Current()
	if !s.TryBegin() {
		return ErrBusy
	}
	defer s.Finish()

	if _, ok := s.Transcript.Remove(id); !ok {
		return ErrUnknownTurn
	}
	views := e.takeViews(id)
	e.display.RemoveActions(id)
	for _, v := range []ViewID{views.user, views.answer} {
		if v != 0 {
			e.display.Remove(v)
		}
	}
	return nil
}

// ClearChat empties the transcript and the display. The session and the
// selection are kept.
func (e *Engine) ClearChat() error {
	s := e.sessions.Current()
	if !s.TryBegin() {
		return ErrBusy
	}
	defer s.Finish()

	s.Transcript.Clear()
	e.resetViews()
	e.display.Reset()
	return nil
}

// NewChat ends the current session and starts a fresh one, then reloads
// the document list.
func (e *Engine) NewChat(ctx context.Context) error {
	if e.sessions.Current().InFlight() {
		return ErrBusy
	}
	e.sessions.Renew(ctx)
	e.resetViews()
	e.display.Reset()

	_, err := e.RefreshDocuments(ctx)
	return err
}

// Turns returns the committed turns of the current session.
func (e *Engine) Turns() []model.Turn {
	return e.sessions.Current().Transcript.Turns()
}

func (e *Engine) checkDocuments(s *session.Session) error {
	if e.requireDocuments && !s.Selection.HasDocuments() {
		return ErrNoDocuments
	}
	return nil
}

// run performs one submission. The caller holds the in-flight flag.
func (e *Engine) run(ctx context.Context, s *session.Session, question string, userView ViewID) (Answer, error) {
	e.display.SetBusy(true)
	defer e.display.SetBusy(false)

	if userView == 0 {
		userView = e.display.AddUser(question)
	}
	e.display.ShowStatus(StartingStatus)

	req := backend.AskRequest{
		Question:        question,
		ChatHistory:     s.Transcript.Recent(e.window),
		SelectedSources: s.Selection.Items(),
	}
	if e.window == 0 {
		req.ChatHistory = nil
	}

	body, err := e.backend.Ask(ctx, req)
	e.display.HideStatus()
	if err != nil {
		return Answer{}, e.fail(0, err)
	}
	defer body.Close()

	answerView := e.display.AddAnswer()

	var meta *stream.MetadataEvent
	m := stream.NewMachine(stream.Handler{
		OnToken: func(text string) {
			e.display.UpdateAnswer(answerView, e.format.Format(text, false))
		},
	},
		stream.WithIndicator(indicator{e.display}),
		stream.WithMetadataHandler(func(ev stream.MetadataEvent) { meta = &ev }),
		stream.WithLogger(e.logger),
	)

	text, err := m.Run(ctx, body)
	if err != nil {
		e.display.HideStatus()
		return Answer{}, e.fail(answerView, err)
	}

	turn := s.Transcript.Commit(question, text)
	e.display.UpdateAnswer(answerView, e.format.Format(text, true))
	e.display.AddActions(turn.ID, userView, answerView)

	e.mu.Lock()
	e.views[turn.ID] = turnViews{user: userView, answer: answerView}
	e.mu.Unlock()

	stats := m.Stats()
	e.logger.Info("answer committed",
		zap.Uint64("turn", uint64(turn.ID)),
		zap.Int("tokens", stats.Tokens),
		zap.Int("malformed", stats.Malformed),
		zap.Duration("duration", stats.Duration()))

	return Answer{Turn: turn, Stats: stats, Metadata: meta}, nil
}

// fail replaces the partial answer view with an error view.
func (e *Engine) fail(answerView ViewID, err error) error {
	if answerView != 0 {
		e.display.Remove(answerView)
	}
	e.display.AddError("Error: " + err.Error())
	e.logger.Warn("submission failed", zap.Error(err))
	return fmt.Errorf("ask: %w", err)
}

func (e *Engine) takeViews(id model.TurnID) turnViews {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.views[id]
	delete(e.views, id)
	return v
}

func (e *Engine) resetViews() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.views = make(map[model.TurnID]turnViews)
}

// indicator adapts a Display to stream.Indicator.
type indicator struct{ d Display }

func (i indicator) Show(message string) { i.d.ShowStatus(message) }
func (i indicator) Hide()               { i.d.HideStatus() }

// =============================================================================
// DOCUMENTS
// =============================================================================

// RefreshDocuments reloads the document list and reconciles the selection.
func (e *Engine) RefreshDocuments(ctx context.Context) ([]string, error) {
	docs, err := e.backend.ListDocuments(ctx)
	if err != nil {
		e.display.Notice("Could not load documents: " + err.Error())
		return nil, err
	}
	s := e.sessions.Current()
	s.Selection.Sync(docs)
	e.display.SetDocuments(e.documentItems(s))
	return docs, nil
}

// RemoveDocument deletes a document on the server and then evicts it from
// the selection. It is allowed during a submission. On failure the
// selection is unchanged.
func (e *Engine) RemoveDocument(ctx context.Context, name string) error {
	err := e.backend.DeleteDocument(ctx, name)
	if err != nil && !backend.IsNotFound(err) {
		e.display.Notice("Could not remove " + name + ": " + err.Error())
		return err
	}
	s := e.sessions.Current()
	s.ForgetDocument(name)
	e.display.SetDocuments(e.documentItems(s))
	return nil
}

// ClearDocuments removes every document from the server.
func (e *Engine) ClearDocuments(ctx context.Context) error {
	if err := e.backend.ClearAll(ctx); err != nil {
		e.display.Notice("Could not clear documents: " + err.Error())
		return err
	}
	s := e.sessions.Current()
	s.Selection.Sync(nil)
	e.display.SetDocuments(nil)
	return nil
}

// Upload sends the PDFs among paths and refreshes the document list. Paths
// that are not PDFs or cannot be read are reported as failed results
// without being sent.
func (e *Engine) Upload(ctx context.Context, paths []string) ([]model.UploadResult, error) {
	pdfs, rejected := library.FilterPDFs(paths)
	results := library.Rejected(rejected)

	files, skipped := library.LoadFiles(pdfs, e.maxUploadBytes)
	results = append(results, skipped...)
	if len(files) == 0 {
		return results, nil
	}

	uploaded, err := e.backend.Upload(ctx, files)
	if err != nil {
		e.display.Notice("Upload failed: " + err.Error())
		return results, err
	}
	results = append(results, uploaded...)

	if _, err := e.RefreshDocuments(ctx); err != nil {
		return results, err
	}
	return results, nil
}

// Toggle includes or excludes a document from the next submission.
func (e *Engine) Toggle(name string, included bool) {
	s := e.sessions.Current()
	s.Selection.Toggle(name, included)
	e.display.SetDocuments(e.documentItems(s))
}

// Documents returns the panel rows for the current session.
func (e *Engine) Documents() []DocumentItem {
	return e.documentItems(e.sessions.Current())
}

func (e *Engine) documentItems(s *session.Session) []DocumentItem {
	docs := s.Selection.Documents()
	items := make([]DocumentItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, DocumentItem{Name: d, Selected: s.Selection.Contains(d)})
	}
	return items
}
