// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"time"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the ordered record of committed question/answer turns for
// a session. Only completed turns are ever stored, so the entry sequence
// always alternates user, assistant, user, assistant.
//
// Transcript is safe for concurrent use.
type Transcript struct {
	mu     sync.RWMutex
	turns  []Turn
	nextID TurnID
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{nextID: 1}
}

// Commit appends a completed turn and returns it.
func (t *Transcript) Commit(question, answer string) Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.nextID == 0 {
		t.nextID = 1
	}
	id := t.nextID
	t.nextID++

	turn := Turn{
		ID:        id,
		Question:  NewUserExchange(question),
		Answer:    NewAssistantExchange(answer),
		CreatedAt: time.Now(),
	}
	t.turns = append(t.turns, turn)
	return turn
}

// Remove deletes the turn with the given ID.
// The boolean is false if no such turn exists.
func (t *Transcript) Remove(id TurnID) (Turn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, turn := range t.turns {
		if turn.ID == id {
			t.turns = append(t.turns[:i], t.turns[i+1:]...)
			return turn, true
		}
	}
	return Turn{}, false
}

// Get returns the turn with the given ID.
func (t *Transcript) Get(id TurnID) (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, turn := range t.turns {
		if turn.ID == id {
			return turn, true
		}
	}
	return Turn{}, false
}

// Turns returns a copy of all committed turns in order.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Entries flattens the transcript into alternating user/assistant entries.
func (t *Transcript) Entries() []Exchange {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Exchange, 0, len(t.turns)*2)
	for _, turn := range t.turns {
		out = append(out, turn.Question, turn.Answer)
	}
	return out
}

// Recent returns the last n entries (not turns). A non-positive n returns
// the whole transcript. If n is odd the window starts on an assistant entry.
func (t *Transcript) Recent(n int) []Exchange {
	entries := t.Entries()
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}

// Len returns the number of transcript entries. It is always even.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns) * 2
}

// TurnCount returns the number of committed turns.
func (t *Transcript) TurnCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// IsEmpty reports whether no turns are committed.
func (t *Transcript) IsEmpty() bool {
	return t.TurnCount() == 0
}

// Last returns the most recently committed turn.
func (t *Transcript) Last() (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// FindLastByQuestion returns the most recent turn whose question text
// matches exactly. Kept for callers that only have the text at hand;
// prefer addressing turns by ID.
func (t *Transcript) FindLastByQuestion(question string) (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Question.Content == question {
			return t.turns[i], true
		}
	}
	return Turn{}, false
}

// Clear removes all turns. IDs are not reset, so handles from before the
// clear never alias new turns.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = nil
}

// Restore replaces the transcript contents with previously archived turns.
// The ID counter continues after the highest restored ID.
func (t *Transcript) Restore(turns []Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.turns = make([]Turn, len(turns))
	copy(t.turns, turns)

	next := TurnID(1)
	for _, turn := range turns {
		if turn.ID >= next {
			next = turn.ID + 1
		}
	}
	if next > t.nextID {
		t.nextID = next
	}
}
