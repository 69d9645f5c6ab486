// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/model"
)

// =============================================================================
// VIEW LIST
// =============================================================================

type viewKind int

const (
	viewUser viewKind = iota
	viewAnswer
	viewError
)

// view is one rendered block of the transcript.
type view struct {
	id      engine.ViewID
	kind    viewKind
	content string
}

type actions struct {
	user   engine.ViewID
	answer engine.ViewID
}

// viewList is the on-screen transcript. It knows nothing about the
// engine's transcript; committed turns are only known through their
// actions.
type viewList struct {
	views    []view
	actions  map[model.TurnID]actions
	selected model.TurnID // 0 when no turn is selected
}

func newViewList() *viewList {
	return &viewList{actions: make(map[model.TurnID]actions)}
}

func (l *viewList) add(v view) {
	l.views = append(l.views, v)
}

func (l *viewList) index(id engine.ViewID) int {
	for i, v := range l.views {
		if v.id == id {
			return i
		}
	}
	return -1
}

// update replaces a view's content. Unknown ids are ignored.
func (l *viewList) update(id engine.ViewID, content string) {
	if i := l.index(id); i >= 0 {
		l.views[i].content = content
	}
}

func (l *viewList) remove(id engine.ViewID) {
	if i := l.index(id); i >= 0 {
		l.views = append(l.views[:i], l.views[i+1:]...)
	}
}

func (l *viewList) setActions(turn model.TurnID, user, answer engine.ViewID) {
	l.actions[turn] = actions{user: user, answer: answer}
}

func (l *viewList) removeActions(turn model.TurnID) {
	delete(l.actions, turn)
	if l.selected == turn {
		l.selected = 0
	}
}

func (l *viewList) reset() {
	l.views = nil
	l.actions = make(map[model.TurnID]actions)
	l.selected = 0
}

// turns returns committed turn ids in on-screen order of their questions.
func (l *viewList) turns() []model.TurnID {
	byUser := make(map[engine.ViewID]model.TurnID, len(l.actions))
	for turn, a := range l.actions {
		byUser[a.user] = turn
	}
	out := make([]model.TurnID, 0, len(l.actions))
	for _, v := range l.views {
		if turn, ok := byUser[v.id]; ok && v.kind == viewUser {
			out = append(out, turn)
		}
	}
	return out
}

// turnOf returns the committed turn a view belongs to.
func (l *viewList) turnOf(id engine.ViewID) (model.TurnID, bool) {
	for turn, a := range l.actions {
		if a.user == id || a.answer == id {
			return turn, true
		}
	}
	return 0, false
}

// number returns the 1-based on-screen position of a turn, or 0.
func (l *viewList) number(turn model.TurnID) int {
	for i, t := range l.turns() {
		if t == turn {
			return i + 1
		}
	}
	return 0
}

// move shifts the selection by delta turns. With no selection, moving up
// selects the last turn and moving down selects the first.
func (l *viewList) move(delta int) {
	turns := l.turns()
	if len(turns) == 0 {
		l.selected = 0
		return
	}
	pos := -1
	for i, t := range turns {
		if t == l.selected {
			pos = i
			break
		}
	}
	switch {
	case pos < 0 && delta < 0:
		pos = len(turns) - 1
	case pos < 0:
		pos = 0
	default:
		pos += delta
	}
	if pos < 0 {
		pos = 0
	}
	if pos >= len(turns) {
		pos = len(turns) - 1
	}
	l.selected = turns[pos]
}

// target is the turn retry and delete act on: the selection, otherwise the
// last turn.
func (l *viewList) target() (model.TurnID, bool) {
	if _, ok := l.actions[l.selected]; ok && l.selected != 0 {
		return l.selected, true
	}
	turns := l.turns()
	if len(turns) == 0 {
		return 0, false
	}
	return turns[len(turns)-1], true
}
