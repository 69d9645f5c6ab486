// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/docqa-tui/internal/util"
)

// Archiver persists a finished session.
type Archiver interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager holds the current session and replaces it on "new chat".
type Manager struct {
	mu       sync.Mutex
	current  *Session
	notifier EndNotifier
	archiver Archiver
	onStart  func(*Session)
	logger   *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithArchiver saves each non-empty session when it ends.
func WithArchiver(a Archiver) ManagerOption {
	return func(m *Manager) { m.archiver = a }
}

// WithStartHook runs fn for every new session, including the first. It is
// used to hand the session id to the backend client.
func WithStartHook(fn func(*Session)) ManagerOption {
	return func(m *Manager) { m.onStart = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager with a first session already started.
func NewManager(notifier EndNotifier, opts ...ManagerOption) *Manager {
	m := &Manager{notifier: notifier, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("session")
	m.current = m.start()
	return m
}

func (m *Manager) start() *Session {
	s := New(m.notifier, m.logger)
	if m.onStart != nil {
		m.onStart(s)
	}
	m.logger.Info("session started", zap.String("session", s.ID))
	return s
}

// Current returns the active session.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Renew ends the current session and starts a new one. The end signal and
// archiving are best effort; their errors are logged, not returned.
func (m *Manager) Renew(ctx context.Context) *Session {
	m.mu.Lock()
	old := m.current
	m.current = m.start()
	next := m.current
	m.mu.Unlock()

	m.finish(ctx, old)
	return next
}

// Close ends the current session without starting another.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	m.finish(ctx, s)
}

func (m *Manager) finish(ctx context.Context, s *Session) {
	if s == nil || s.Ended() {
		return
	}
	if m.archiver != nil && !s.Transcript.IsEmpty() {
		if err := m.archiver.SaveSnapshot(ctx, s.Snapshot()); err != nil {
			m.logger.Warn("failed to archive session", zap.String("session", s.ID), zap.Error(err))
		}
	}
	_ = s.End(ctx)
	m.logger.Info("session ended",
		zap.String("session", s.ID),
		zap.Int("turns", s.Transcript.TurnCount()),
		zap.Duration("duration", s.Duration()))
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status summarises the current session for status bars.
type Status struct {
	SessionID string
	StartTime time.Time
	Duration  time.Duration
	IdleTime  time.Duration
	Turns     int
	Selected  int
	Documents int
	InFlight  bool
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	s := m.Current()
	return Status{
		SessionID: s.ID,
		StartTime: s.StartTime(),
		Duration:  s.Duration(),
		IdleTime:  s.IdleTime(),
		Turns:     s.Transcript.TurnCount(),
		Selected:  s.Selection.Len(),
		Documents: len(s.Selection.Documents()),
		InFlight:  s.InFlight(),
	}
}

// Format returns a short one-line summary.
func (st Status) Format() string {
	return util.IntToString(st.Turns) + " turns | " +
		util.IntToString(st.Selected) + "/" + util.IntToString(st.Documents) + " docs | " +
		util.FormatDuration(st.Duration)
}
