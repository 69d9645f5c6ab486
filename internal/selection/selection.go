// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package selection tracks which server-side documents are in scope for the
// next question.
package selection

import "sync"

// Set is the selection of documents a question is scoped to, together with
// the list of documents currently known to exist on the server.
//
// Every selected id is also a known document. Items are reported in the
// order of the known document list, so rendering is stable.
type Set struct {
	mu       sync.RWMutex
	known    []string
	selected map[string]struct{}
	// seen records every document ever synced, so a user de-selection
	// survives later refreshes.
	seen map[string]struct{}
}

// New creates an empty selection.
func New() *Set {
	return &Set{
		selected: make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
}

// Toggle adds or removes id from the selection. Unknown ids are ignored so
// the set never references a document the server does not have.
func (s *Set) Toggle(id string, included bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !included {
		delete(s.selected, id)
		return
	}
	if s.indexOf(id) < 0 {
		return
	}
	s.selected[id] = struct{}{}
}

// Remove evicts id from both the known documents and the selection. It is
// unconditional and may be called while a question is in flight.
func (s *Set) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.selected, id)
	delete(s.seen, id)
	if i := s.indexOf(id); i >= 0 {
		s.known = append(s.known[:i], s.known[i+1:]...)
	}
}

// Contains reports whether id is selected.
func (s *Set) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[id]
	return ok
}

// Items returns the selected ids in known-document order.
func (s *Set) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.selected))
	for _, id := range s.known {
		if _, ok := s.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of selected documents.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.selected)
}

// Clear forgets every document and selection.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.known = nil
	s.selected = make(map[string]struct{})
	s.seen = make(map[string]struct{})
}

// Sync replaces the known document list with documents as reported by the
// server. Documents seen for the first time are selected. Documents that
// no longer exist are evicted. Earlier de-selections are kept.
func (s *Set) Sync(documents []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[string]struct{}, len(documents))
	known := make([]string, 0, len(documents))
	for _, id := range documents {
		if _, dup := present[id]; dup {
			continue
		}
		present[id] = struct{}{}
		known = append(known, id)

		if _, ok := s.seen[id]; !ok {
			s.seen[id] = struct{}{}
			s.selected[id] = struct{}{}
		}
	}

	for id := range s.selected {
		if _, ok := present[id]; !ok {
			delete(s.selected, id)
		}
	}
	for id := range s.seen {
		if _, ok := present[id]; !ok {
			delete(s.seen, id)
		}
	}
	s.known = known
}

// Documents returns the known document list.
func (s *Set) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.known))
	copy(out, s.known)
	return out
}

// HasDocuments reports whether the server has any documents.
func (s *Set) HasDocuments() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.known) > 0
}

// indexOf must be called with the lock held.
func (s *Set) indexOf(id string) int {
	for i, k := range s.known {
		if k == id {
			return i
		}
	}
	return -1
}
