// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the newline-delimited JSON answer stream and drives
// incremental display updates from it.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType is the "type" tag of a stream frame.
type EventType string

const (
	TypeStatus   EventType = "status"
	TypeToken    EventType = "token"
	TypeMetadata EventType = "metadata"
	TypeError    EventType = "error"
	TypeDone     EventType = "done"
)

// Event is one decoded frame of the answer stream.
type Event interface {
	Type() EventType
}

// StatusEvent reports a backend phase such as "Searching documents...".
type StatusEvent struct {
	Message string
}

// TokenEvent carries the next fragment of the answer text.
type TokenEvent struct {
	Content string
}

// Plan is the query plan the backend used for retrieval.
type Plan struct {
	Queries []string `json:"queries"`
	TopK    int      `json:"top_k"`
}

// Hit is a retrieved chunk that was used as answer context.
type Hit struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// MetadataEvent describes the retrieval context behind the answer.
type MetadataEvent struct {
	Plan    Plan
	Hits    []Hit
	Context string
}

// ErrorEvent is sent by the backend when it cannot produce an answer.
type ErrorEvent struct {
	Message string
}

// DoneEvent marks the end of the answer. End-of-input remains the real
// terminator; this frame is informational.
type DoneEvent struct{}

func (StatusEvent) Type() EventType   { return TypeStatus }
func (TokenEvent) Type() EventType    { return TypeToken }
func (MetadataEvent) Type() EventType { return TypeMetadata }
func (ErrorEvent) Type() EventType    { return TypeError }
func (DoneEvent) Type() EventType     { return TypeDone }

// =============================================================================
// DECODING
// =============================================================================

var (
	// ErrMalformed is returned for lines that are not a JSON object.
	ErrMalformed = errors.New("malformed stream frame")

	// ErrUnknownType is returned for well-formed frames with an unknown tag.
	ErrUnknownType = errors.New("unknown stream frame type")
)

// frame is the union of every field any frame type carries.
type frame struct {
	Type    EventType         `json:"type"`
	Message string            `json:"message"`
	Content string            `json:"content"`
	Error   string            `json:"error"`
	Plan    Plan              `json:"plan"`
	Hits    []json.RawMessage `json:"hits"`
	Context string            `json:"context"`
}

// Decode parses a single line of the stream into an Event.
func Decode(line []byte) (Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch f.Type {
	case TypeStatus:
		return StatusEvent{Message: f.Message}, nil
	case TypeToken:
		return TokenEvent{Content: f.Content}, nil
	case TypeMetadata:
		return MetadataEvent{Plan: f.Plan, Hits: decodeHits(f.Hits), Context: f.Context}, nil
	case TypeError:
		msg := f.Error
		if msg == "" {
			msg = f.Message
		}
		return ErrorEvent{Message: msg}, nil
	case TypeDone:
		return DoneEvent{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
}

// decodeHits drops hits that do not match the expected shape rather than
// rejecting the whole metadata frame.
func decodeHits(raw []json.RawMessage) []Hit {
	hits := make([]Hit, 0, len(raw))
	for _, r := range raw {
		var h Hit
		if err := json.Unmarshal(r, &h); err != nil {
			continue
		}
		hits = append(hits, h)
	}
	return hits
}
