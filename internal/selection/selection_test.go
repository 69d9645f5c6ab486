// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_SyncSelectsNewDocuments(t *testing.T) {
	s := New()
	s.Sync([]string{"b.pdf", "a.pdf"})

	assert.Equal(t, []string{"b.pdf", "a.pdf"}, s.Items())
	assert.True(t, s.HasDocuments())
}

func TestSet_DeselectionSurvivesSync(t *testing.T) {
	s := New()
	s.Sync([]string{"a.pdf", "b.pdf"})
	s.Toggle("a.pdf", false)

	s.Sync([]string{"a.pdf", "b.pdf", "c.pdf"})

	assert.False(t, s.Contains("a.pdf"))
	assert.Equal(t, []string{"b.pdf", "c.pdf"}, s.Items())
}

func TestSet_SyncEvictsVanishedDocuments(t *testing.T) {
	s := New()
	s.Sync([]string{"a.pdf", "b.pdf"})
	s.Sync([]string{"b.pdf"})

	assert.False(t, s.Contains("a.pdf"))
	assert.Equal(t, []string{"b.pdf"}, s.Documents())

	// A document that comes back is new again.
	s.Toggle("b.pdf", false)
	s.Sync([]string{"a.pdf", "b.pdf"})
	assert.Equal(t, []string{"a.pdf"}, s.Items())
}

func TestSet_ToggleUnknownIgnored(t *testing.T) {
	s := New()
	s.Sync([]string{"a.pdf"})

	s.Toggle("ghost.pdf", true)
	assert.False(t, s.Contains("ghost.pdf"))
	assert.Equal(t, 1, s.Len())
}

func TestSet_Remove(t *testing.T) {
	s := New()
	s.Sync([]string{"a.pdf", "b.pdf"})

	s.Remove("a.pdf")

	assert.Equal(t, []string{"b.pdf"}, s.Documents())
	assert.Equal(t, []string{"b.pdf"}, s.Items())

	s.Remove("missing.pdf")
	assert.Equal(t, 1, s.Len())
}

func TestSet_ItemsFollowKnownOrder(t *testing.T) {
	s := New()
	s.Sync([]string{"c.pdf", "a.pdf", "b.pdf"})
	s.Toggle("a.pdf", false)
	s.Toggle("a.pdf", true)

	assert.Equal(t, []string{"c.pdf", "a.pdf", "b.pdf"}, s.Items())
}

func TestSet_Clear(t *testing.T) {
	s := New()
	s.Sync([]string{"a.pdf"})
	s.Clear()

	assert.False(t, s.HasDocuments())
	assert.Empty(t, s.Items())
}
