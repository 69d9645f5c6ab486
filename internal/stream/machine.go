// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// STATE
// =============================================================================

// State is the ingestion phase of one answer stream.
type State int

const (
	// AwaitingFirstToken: no token has arrived yet; status frames may.
	AwaitingFirstToken State = iota
	// Streaming: at least one token has been accumulated.
	Streaming
	// Done: end-of-input or a server error was reached.
	Done
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case AwaitingFirstToken:
		return "awaiting-first-token"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// =============================================================================
// CALLBACKS
// =============================================================================

// Handler receives decoded stream activity. Nil fields are skipped.
type Handler struct {
	// OnStatus is called with each status message.
	OnStatus func(message string)

	// OnToken is called with the full accumulated answer after each token,
	// never the delta alone.
	OnToken func(text string)
}

// Indicator is the "working..." affordance shown while the backend reports
// progress. It is assumed hidden when ingestion starts; status frames show
// it and the next token hides it again.
type Indicator interface {
	Show(message string)
	Hide()
}

// MetadataHandler receives the retrieval context frame.
type MetadataHandler func(MetadataEvent)

// Option configures a Machine.
type Option func(*Machine)

// WithIndicator attaches a status indicator.
func WithIndicator(ind Indicator) Option {
	return func(m *Machine) {
		m.indicator = ind
	}
}

// WithMetadataHandler attaches a handler for metadata frames.
func WithMetadataHandler(fn MetadataHandler) Option {
	return func(m *Machine) {
		m.onMetadata = fn
	}
}

// WithLogger sets the logger used for skipped frames.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithReadSize sets the read buffer size used by Ingest.
func WithReadSize(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.readSize = n
		}
	}
}

// =============================================================================
// MACHINE
// =============================================================================

// DefaultReadSize is the chunk size Ingest reads from the body.
const DefaultReadSize = 4096

// Machine turns arbitrarily split bytes into dispatched events.
//
// Complete lines are decoded as soon as their newline arrives. A trailing
// partial line is held until more bytes arrive or Close is called. Blank
// lines are ignored and malformed lines are skipped.
//
// A Machine is not safe for concurrent use.
type Machine struct {
	handler    Handler
	indicator  Indicator
	onMetadata MetadataHandler
	logger     *zap.Logger
	readSize   int

	state            State
	indicatorVisible bool
	buf              []byte
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	text  strings.Builder
	stats Stats
}

// NewMachine creates a machine in the AwaitingFirstToken state.
func NewMachine(h Handler, opts ...Option) *Machine {
	m := &Machine{
		handler:  h,
		logger:   zap.NewNop(),
		readSize: DefaultReadSize,
		state:    AwaitingFirstToken,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.stats.StartTime = time.Now()
	return m
}

// Feed appends raw bytes and dispatches every complete line.
// It returns a *ServerError if the backend sent an error frame.
func (m *Machine) Feed(p []byte) error {
	if m.state == Done {
		return ErrClosed
	}
	m.buf = append(m.buf, p...)

	for {
		i := bytes.IndexByte(m.buf, '\n')
		if i < 0 {
			break
		}
		line := m.buf[:i]
		err := m.dispatchLine(line)
		m.buf = m.buf[i+1:]
		if err != nil {
			m.finish()
			return err
		}
	}

	// Release the backing array once everything was consumed.
	if len(m.buf) == 0 {
		m.buf = nil
	}
	return nil
}

// Close signals end-of-input. A final frame without a trailing newline is
// still dispatched. Returns the accumulated answer text.
func (m *Machine) Close() (string, error) {
	if m.state == Done {
		return m.text.String(), nil
	}

	var err error
	if len(m.buf) > 0 {
		err = m.dispatchLine(m.buf)
		m.buf = nil
	}
	m.finish()
	return m.text.String(), err
}

// State returns the current phase.
func (m *Machine) State() State {
	return m.state
}

// Text returns the answer accumulated so far.
func (m *Machine) Text() string {
	return m.text.String()
}

// Stats returns a snapshot of the ingestion counters.
func (m *Machine) Stats() Stats {
	return m.stats
}

func (m *Machine) finish() {
	m.state = Done
	m.stats.EndTime = time.Now()
}

func (m *Machine) dispatchLine(line []byte) error {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}
	m.stats.Frames++

	ev, err := Decode(line)
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			m.stats.Unknown++
		} else {
			m.stats.Malformed++
		}
		m.logger.Debug("skipping stream frame", zap.Error(err), zap.Int("bytes", len(line)))
		return nil
	}

	switch e := ev.(type) {
	case StatusEvent:
		m.stats.Statuses++
		if m.indicator != nil {
			m.indicator.Show(e.Message)
			m.indicatorVisible = true
		}
		if m.handler.OnStatus != nil {
			m.handler.OnStatus(e.Message)
		}

	case TokenEvent:
		m.stats.Tokens++
		if m.state == AwaitingFirstToken {
			m.state = Streaming
			m.stats.recordFirstToken()
		}
		m.text.WriteString(e.Content)
		if m.indicatorVisible {
			m.indicator.Hide()
			m.indicatorVisible = false
		}
		if m.handler.OnToken != nil {
			m.handler.OnToken(m.text.String())
		}

	case MetadataEvent:
		m.stats.Hits = len(e.Hits)
		if m.onMetadata != nil {
			m.onMetadata(e)
		}

	case ErrorEvent:
		if m.indicatorVisible {
			m.indicator.Hide()
			m.indicatorVisible = false
		}
		return &ServerError{Message: e.Message}

	case DoneEvent:
		m.stats.SawDone = true
	}
	return nil
}
