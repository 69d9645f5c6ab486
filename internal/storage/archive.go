// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/docqa-tui/internal/model"
	"github.com/jeranaias/docqa-tui/internal/session"
	"github.com/jeranaias/docqa-tui/internal/util"
)

// =============================================================================
// TYPES
// =============================================================================

// ArchivedSession is one saved chat.
type ArchivedSession struct {
	ID        string       `json:"id"`
	Summary   string       `json:"summary"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
	Documents []string     `json:"documents"`
	Turns     []model.Turn `json:"turns"`
}

// SessionMeta is the listing view of an archived session.
type SessionMeta struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	TurnCount int       `json:"turn_count"`
}

// ErrNotFound is returned when no session matches an id.
var ErrNotFound = errors.New("archived session not found")

// ErrAmbiguous is returned when an id prefix matches several sessions.
var ErrAmbiguous = errors.New("session id prefix is ambiguous")

// DefaultMaxSessions bounds the archive; the oldest sessions are pruned.
const DefaultMaxSessions = 200

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive is a SQLite-backed session archive.
type Archive struct {
	db          *sql.DB
	path        string
	maxSessions int
	logger      *zap.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithMaxSessions sets the prune limit. Zero disables pruning.
func WithMaxSessions(n int) Option {
	return func(a *Archive) { a.maxSessions = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Archive) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Open opens or creates the archive database at path.
func Open(path string, opts ...Option) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO metadata(key, value) VALUES ('schema_version', ?)`, schemaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record schema version: %w", err)
	}

	a := &Archive{db: db, path: path, maxSessions: DefaultMaxSessions, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("archive")
	return a, nil
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// =============================================================================
// SAVE
// =============================================================================

// Save inserts or replaces a session and its turns.
func (a *Archive) Save(ctx context.Context, s ArchivedSession) error {
	if s.ID == "" {
		return errors.New("archived session has no id")
	}
	if s.Summary == "" {
		s.Summary = summarize(s.Turns)
	}
	if s.EndedAt.IsZero() {
		s.EndedAt = time.Now()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = s.EndedAt
	}
	docs := s.Documents
	if docs == nil {
		docs = []string{}
	}
	docsJSON, err := json.Marshal(docs)
	if err != nil {
		return err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions(id, summary, started_at, ended_at, documents)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary = excluded.summary,
			ended_at = excluded.ended_at,
			documents = excluded.documents
	`, s.ID, s.Summary, s.StartedAt.UnixNano(), s.EndedAt.UnixNano(), string(docsJSON))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, s.ID); err != nil {
		return err
	}
	for _, t := range s.Turns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO turns(session_id, turn_id, question, answer, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, s.ID, int64(t.ID), t.Question.Content, t.Answer.Content, t.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to save turn %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	a.logger.Debug("session archived", zap.String("session", s.ID), zap.Int("turns", len(s.Turns)))
	if a.maxSessions > 0 {
		a.prune(ctx)
	}
	return nil
}

// SaveSnapshot archives a session snapshot.
func (a *Archive) SaveSnapshot(ctx context.Context, snap session.Snapshot) error {
	return a.Save(ctx, *FromSnapshot(snap))
}

// FromSnapshot converts a live session snapshot to the archived form, so it
// can be exported without going through the database.
func FromSnapshot(snap session.Snapshot) *ArchivedSession {
	return &ArchivedSession{
		ID:        snap.ID,
		Summary:   summarize(snap.Turns),
		StartedAt: snap.StartedAt,
		EndedAt:   snap.EndedAt,
		Documents: snap.Documents,
		Turns:     snap.Turns,
	}
}

// prune removes the oldest sessions beyond the limit.
func (a *Archive) prune(ctx context.Context) {
	res, err := a.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions ORDER BY ended_at DESC LIMIT -1 OFFSET ?
		)
	`, a.maxSessions)
	if err != nil {
		a.logger.Warn("failed to prune archive", zap.Error(err))
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		a.dropOrphanTurns(ctx)
		a.logger.Info("pruned archive", zap.Int64("sessions", n))
	}
}

// summarize uses the first question, flattened to one line.
func summarize(turns []model.Turn) string {
	for _, t := range turns {
		q := strings.Join(strings.Fields(t.Question.Content), " ")
		if q != "" {
			return util.TruncateWidth(q, 50)
		}
	}
	return "Empty session"
}

// =============================================================================
// LOAD
// =============================================================================

// List returns the most recently ended sessions first. A non-positive
// limit returns all of them.
func (a *Archive) List(ctx context.Context, limit int) ([]SessionMeta, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT s.id, s.summary, s.started_at, s.ended_at,
		       (SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		FROM sessions s
		ORDER BY s.ended_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMetas(rows)
}

// Search returns sessions whose summary or any turn contains query,
// case-insensitively for ASCII.
func (a *Archive) Search(ctx context.Context, query string) ([]SessionMeta, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := a.db.QueryContext(ctx, `
		SELECT s.id, s.summary, s.started_at, s.ended_at,
		       (SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		FROM sessions s
		WHERE s.summary LIKE ?1 ESCAPE '\'
		   OR EXISTS (
		       SELECT 1 FROM turns t
		       WHERE t.session_id = s.id
		         AND (t.question LIKE ?1 ESCAPE '\' OR t.answer LIKE ?1 ESCAPE '\')
		   )
		ORDER BY s.ended_at DESC
	`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMetas(rows)
}

func scanMetas(rows *sql.Rows) ([]SessionMeta, error) {
	var out []SessionMeta
	for rows.Next() {
		var (
			m              SessionMeta
			started, ended int64
		)
		if err := rows.Scan(&m.ID, &m.Summary, &started, &ended, &m.TurnCount); err != nil {
			return nil, err
		}
		m.StartedAt = time.Unix(0, started)
		m.EndedAt = time.Unix(0, ended)
		out = append(out, m)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Get loads a session by id or unique id prefix.
func (a *Archive) Get(ctx context.Context, id string) (*ArchivedSession, error) {
	full, err := a.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		s              ArchivedSession
		started, ended int64
		docsJSON       string
	)
	err = a.db.QueryRowContext(ctx, `
		SELECT id, summary, started_at, ended_at, documents FROM sessions WHERE id = ?
	`, full).Scan(&s.ID, &s.Summary, &started, &ended, &docsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(0, started)
	s.EndedAt = time.Unix(0, ended)
	if err := json.Unmarshal([]byte(docsJSON), &s.Documents); err != nil {
		return nil, fmt.Errorf("corrupt document list for %s: %w", s.ID, err)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT turn_id, question, answer, created_at FROM turns
		WHERE session_id = ? ORDER BY turn_id
	`, s.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id               int64
			question, answer string
			created          int64
		)
		if err := rows.Scan(&id, &question, &answer, &created); err != nil {
			return nil, err
		}
		s.Turns = append(s.Turns, model.Turn{
			ID:        model.TurnID(id),
			Question:  model.NewUserExchange(question),
			Answer:    model.NewAssistantExchange(answer),
			CreatedAt: time.Unix(0, created),
		})
	}
	return &s, rows.Err()
}

// resolve expands an id prefix to a full id.
func (a *Archive) resolve(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrNotFound
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id FROM sessions WHERE substr(id, 1, ?) = ? LIMIT 2
	`, len(prefix), prefix)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", ErrNotFound
	case 1:
		return ids[0], nil
	default:
		for _, id := range ids {
			if id == prefix {
				return id, nil
			}
		}
		return "", ErrAmbiguous
	}
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a session and its turns.
func (a *Archive) Delete(ctx context.Context, id string) error {
	full, err := a.resolve(ctx, id)
	if err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, full); err != nil {
		return err
	}
	a.dropOrphanTurns(ctx)
	return nil
}

// dropOrphanTurns backs up the cascade, which only runs on connections
// that have foreign keys enabled.
func (a *Archive) dropOrphanTurns(ctx context.Context) {
	_, err := a.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id NOT IN (SELECT id FROM sessions)`)
	if err != nil {
		a.logger.Warn("failed to drop orphaned turns", zap.Error(err))
	}
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatSessionList renders metas as a plain table.
func FormatSessionList(metas []SessionMeta) string {
	if len(metas) == 0 {
		return "No archived sessions."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("ID", 10) + " " + util.PadRight("Ended", 16) + " " +
		util.PadRight("Turns", 5) + " Summary\n")
	sb.WriteString(strings.Repeat("-", 60) + "\n")

	for _, m := range metas {
		id := m.ID
		if len(id) > 8 {
			id = id[:8]
		}
		sb.WriteString(util.PadRight(id, 10) + " " +
			util.PadRight(m.EndedAt.Format("2006-01-02 15:04"), 16) + " " +
			util.PadRight(util.IntToString(m.TurnCount), 5) + " " +
			util.TruncateWidth(m.Summary, 40) + "\n")
	}
	return sb.String()
}
