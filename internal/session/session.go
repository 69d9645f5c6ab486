// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/docqa-tui/internal/model"
	"github.com/jeranaias/docqa-tui/internal/selection"
)

// EndNotifier receives the end-of-session signal for the session with the
// given id.
type EndNotifier interface {
	EndSession(ctx context.Context, sessionID string) error
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the state of one chat. All exchange mutation is serialised
// through the in-flight flag: at most one submission runs at a time and
// retry/delete are refused while it does.
type Session struct {
	ID         string
	Transcript *model.Transcript
	Selection  *selection.Set

	mu           sync.Mutex
	startTime    time.Time
	lastActivity time.Time
	inFlight     bool
	ended        bool

	endOnce  sync.Once
	endErr   error
	notifier EndNotifier
	logger   *zap.Logger
}

// New creates a session with a fresh uuid. notifier may be nil.
func New(notifier EndNotifier, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	id := uuid.NewString()
	return &Session{
		ID:           id,
		Transcript:   model.NewTranscript(),
		Selection:    selection.New(),
		startTime:    now,
		lastActivity: now,
		notifier:     notifier,
		logger:       logger.With(zap.String("session", id)),
	}
}

// TryBegin claims the in-flight flag. It returns false if a submission is
// already running or the session has ended.
func (s *Session) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight || s.ended {
		return false
	}
	s.inFlight = true
	s.lastActivity = time.Now()
	return true
}

// Finish releases the in-flight flag.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	s.lastActivity = time.Now()
}

// InFlight reports whether a submission is running.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// ForgetDocument drops a deleted document from the known list and the
// selection in one step. It does not wait for an in-flight submission.
func (s *Session) ForgetDocument(id string) {
	s.Selection.Remove(id)
	s.RecordActivity()
}

// RecordActivity updates the last activity time.
func (s *Session) RecordActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// StartTime returns when the session was created.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// Duration returns how long the session has existed.
func (s *Session) Duration() time.Duration {
	return time.Since(s.startTime)
}

// IdleTime returns the time since the last activity.
func (s *Session) IdleTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// End sends the end-of-session signal. Only the first call does anything;
// later calls return the first call's result. After End, TryBegin always
// fails.
func (s *Session) End(ctx context.Context) error {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.ended = true
		s.mu.Unlock()

		if s.notifier == nil {
			return
		}
		s.endErr = s.notifier.EndSession(ctx, s.ID)
		if s.endErr != nil {
			s.logger.Warn("session end signal not delivered", zap.Error(s.endErr))
		} else {
			s.logger.Debug("session end signal sent")
		}
	})
	return s.endErr
}

// Ended reports whether End was called.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a point-in-time copy of a session for archiving.
type Snapshot struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Documents []string
	Turns     []model.Turn
}

// Snapshot copies the session's transcript and selection.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:        s.ID,
		StartedAt: s.startTime,
		EndedAt:   time.Now(),
		Documents: s.Selection.Items(),
		Turns:     s.Transcript.Turns(),
	}
}
