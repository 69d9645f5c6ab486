// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{Role("system"), "system"},
	}

	for _, tc := range tests {
		t.Run(tc.role.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.role.DisplayName())
		})
	}
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("tool").Valid())
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_CommitAlternatesRoles(t *testing.T) {
	tr := NewTranscript()
	tr.Commit("q1", "a1")
	tr.Commit("q2", "a2")

	entries := tr.Entries()
	require.Len(t, entries, 4)
	for i, e := range entries {
		if i%2 == 0 {
			assert.Equal(t, RoleUser, e.Role, "entry %d", i)
		} else {
			assert.Equal(t, RoleAssistant, e.Role, "entry %d", i)
		}
	}
	assert.Equal(t, "q2", entries[2].Content)
	assert.Equal(t, "a2", entries[3].Content)
}

func TestTranscript_IDsAreMonotonic(t *testing.T) {
	tr := NewTranscript()
	a := tr.Commit("q", "a")
	b := tr.Commit("q", "a")
	assert.Less(t, a.ID, b.ID)

	tr.Remove(b.ID)
	c := tr.Commit("q", "a")
	assert.Greater(t, c.ID, b.ID, "removed IDs must not be reused")

	tr.Clear()
	d := tr.Commit("q", "a")
	assert.Greater(t, d.ID, c.ID, "clear must not reset IDs")
}

func TestTranscript_RemoveByIDWithDuplicateQuestions(t *testing.T) {
	tr := NewTranscript()
	first := tr.Commit("What is X?", "first answer")
	tr.Commit("What is X?", "second answer")

	removed, ok := tr.Remove(first.ID)
	require.True(t, ok)
	assert.Equal(t, "first answer", removed.Answer.Content)

	remaining := tr.Turns()
	require.Len(t, remaining, 1)
	assert.Equal(t, "second answer", remaining[0].Answer.Content)
}

func TestTranscript_RemoveShrinksByTwoEntries(t *testing.T) {
	tr := NewTranscript()
	tr.Commit("q1", "a1")
	turn := tr.Commit("q2", "a2")
	before := tr.Len()

	_, ok := tr.Remove(turn.ID)
	require.True(t, ok)
	assert.Equal(t, before-2, tr.Len())

	_, ok = tr.Remove(turn.ID)
	assert.False(t, ok)
}

func TestTranscript_Recent(t *testing.T) {
	tr := NewTranscript()
	for _, q := range []string{"q1", "q2", "q3", "q4"} {
		tr.Commit(q, "a")
	}

	tests := []struct {
		name      string
		n         int
		wantLen   int
		wantFirst string
	}{
		{"window of six", 6, 6, "q2"},
		{"larger than transcript", 20, 8, "q1"},
		{"zero returns all", 0, 8, "q1"},
		{"two entries", 2, 2, "q4"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tr.Recent(tc.n)
			require.Len(t, got, tc.wantLen)
			assert.Equal(t, tc.wantFirst, got[0].Content)
		})
	}
}

func TestTranscript_FindLastByQuestion(t *testing.T) {
	tr := NewTranscript()
	tr.Commit("dup", "one")
	tr.Commit("other", "x")
	last := tr.Commit("dup", "two")

	got, ok := tr.FindLastByQuestion("dup")
	require.True(t, ok)
	assert.Equal(t, last.ID, got.ID)

	_, ok = tr.FindLastByQuestion("missing")
	assert.False(t, ok)
}

func TestTranscript_Restore(t *testing.T) {
	tr := NewTranscript()
	tr.Restore([]Turn{
		{ID: 4, Question: NewUserExchange("q"), Answer: NewAssistantExchange("a")},
		{ID: 9, Question: NewUserExchange("q"), Answer: NewAssistantExchange("a")},
	})

	assert.Equal(t, 2, tr.TurnCount())
	next := tr.Commit("new", "turn")
	assert.Equal(t, TurnID(10), next.ID)
}

func TestTranscript_ConcurrentCommit(t *testing.T) {
	tr := NewTranscript()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Commit("q", "a")
		}()
	}
	wg.Wait()

	turns := tr.Turns()
	require.Len(t, turns, 50)
	seen := make(map[TurnID]bool)
	for _, turn := range turns {
		assert.False(t, seen[turn.ID], "duplicate id %d", turn.ID)
		seen[turn.ID] = true
	}
}
