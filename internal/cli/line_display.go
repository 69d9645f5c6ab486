// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docqa-tui/internal/engine"
	"github.com/jeranaias/docqa-tui/internal/model"
)

// clearLine returns the cursor to column 0 and erases the line.
const clearLine = "\r\x1b[K"

// streamMode selects how a partial answer reaches out.
type streamMode int

const (
	// streamOff prints each answer once, when it is committed.
	streamOff streamMode = iota

	// streamAppend writes the new suffix of the answer on every update.
	// It needs append-only markup, so pair it with the plain formatter.
	streamAppend

	// streamRedraw erases the answer drawn so far and draws it again.
	// Only for terminals.
	streamRedraw
)

// lineDisplay renders the chat as scrolling terminal output. The working
// indicator is drawn on a single rewritten line of errOut when live is set.
type lineDisplay struct {
	out    io.Writer
	errOut io.Writer

	// live enables the rewritten status line. Off when errOut is not a
	// terminal.
	live bool

	// labels adds a header before each answer and its turn number after.
	labels bool

	// printErrors writes error views to errOut. Commands that report the
	// returned error themselves leave it off.
	printErrors bool

	mode streamMode

	// size reports the terminal columns and rows for streamRedraw.
	size func() (width, height int)

	mu        sync.Mutex
	next      engine.ViewID
	answers   map[engine.ViewID]string
	statusOn  bool
	turnCount int

	// State of the answer being streamed.
	current  engine.ViewID
	written  string // streamAppend: text already on out
	diverged bool   // streamAppend: markup stopped extending written
	frozen   int    // streamRedraw: leading lines that scrolled for good
	liveRows int    // streamRedraw: rows below frozen that can be erased
}

var _ engine.Display = (*lineDisplay)(nil)

func newLineDisplay(out, errOut io.Writer, live bool) *lineDisplay {
	return &lineDisplay{
		out:     out,
		errOut:  errOut,
		live:    live,
		answers: make(map[engine.ViewID]string),
		size: func() (int, int) {
			return GetTerminalWidth(), GetTerminalHeight()
		},
	}
}

// streaming sets how partial answers are shown.
func (d *lineDisplay) streaming(mode streamMode) *lineDisplay {
	d.mode = mode
	return d
}

func (d *lineDisplay) id() engine.ViewID {
	d.next++
	return d.next
}

func (d *lineDisplay) AddUser(string) engine.ViewID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.id()
}

func (d *lineDisplay) AddAnswer() engine.ViewID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.id()
	d.answers[id] = ""
	if d.mode != streamOff {
		d.hideStatusLocked()
		d.beginLocked(id)
		if d.labels {
			fmt.Fprintln(d.out, PromptStyle.Render("Answer"))
		}
	}
	return id
}

func (d *lineDisplay) UpdateAnswer(id engine.ViewID, markup string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.answers[id]; !ok {
		return
	}
	d.answers[id] = markup
	if id != d.current {
		return
	}

	switch d.mode {
	case streamAppend:
		d.appendLocked(markup)
	case streamRedraw:
		d.hideStatusLocked()
		d.redrawLocked(markup)
	}
}

func (d *lineDisplay) ShowStatus(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.live {
		return
	}
	fmt.Fprint(d.errOut, clearLine+DimStyle.Render(message))
	d.statusOn = true
}

func (d *lineDisplay) HideStatus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hideStatusLocked()
}

func (d *lineDisplay) hideStatusLocked() {
	if d.statusOn {
		fmt.Fprint(d.errOut, clearLine)
		d.statusOn = false
	}
}

func (d *lineDisplay) AddError(message string) engine.ViewID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hideStatusLocked()
	if d.printErrors {
		fmt.Fprintln(d.errOut, ErrorStyle.Render(message))
	}
	return d.id()
}

func (d *lineDisplay) AddActions(turn model.TurnID, _, answer engine.ViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	markup, ok := d.answers[answer]
	if !ok {
		return
	}
	d.hideStatusLocked()
	d.turnCount++

	if d.mode != streamOff && answer == d.current {
		d.finishLocked(markup)
		if d.labels {
			fmt.Fprintln(d.out, DimStyle.Render(fmt.Sprintf("#%d", turn)))
			fmt.Fprintln(d.out)
		}
		return
	}

	if d.labels {
		fmt.Fprintln(d.out, PromptStyle.Render(fmt.Sprintf("Answer #%d", turn)))
	}
	fmt.Fprintln(d.out, markup)
	if d.labels {
		fmt.Fprintln(d.out)
	}
}

func (d *lineDisplay) RemoveActions(model.TurnID) {}

func (d *lineDisplay) Remove(id engine.ViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.answers, id)
	if id != d.current || d.mode == streamOff {
		return
	}

	// A failed answer: take back what can be erased, end the rest.
	d.hideStatusLocked()
	switch d.mode {
	case streamRedraw:
		d.eraseLocked()
	case streamAppend:
		if d.written != "" && !strings.HasSuffix(d.written, "\n") {
			fmt.Fprintln(d.out)
		}
	}
	d.beginLocked(0)
}

func (d *lineDisplay) SetBusy(bool) {}

func (d *lineDisplay) SetDocuments([]engine.DocumentItem) {}

func (d *lineDisplay) Notice(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hideStatusLocked()
	fmt.Fprintln(d.errOut, WarningStyle.Render("[!] "+message))
}

func (d *lineDisplay) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hideStatusLocked()
	d.answers = make(map[engine.ViewID]string)
	d.turnCount = 0
	d.beginLocked(0)
}

// printed returns how many answers were committed since the last reset.
func (d *lineDisplay) printed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.turnCount
}

// =============================================================================
// STREAMING
// =============================================================================

// beginLocked makes id the streamed answer. Zero means none.
func (d *lineDisplay) beginLocked(id engine.ViewID) {
	d.current = id
	d.written = ""
	d.diverged = false
	d.frozen = 0
	d.liveRows = 0
}

// finishLocked draws the committed markup and ends the stream.
func (d *lineDisplay) finishLocked(markup string) {
	switch d.mode {
	case streamAppend:
		d.appendLocked(markup)
		switch {
		case d.diverged:
			// The final text does not extend what was written; print it whole.
			fmt.Fprintln(d.out)
			fmt.Fprintln(d.out, markup)
		case !strings.HasSuffix(d.written, "\n"):
			fmt.Fprintln(d.out)
		}
	case streamRedraw:
		d.redrawLocked(markup)
	}
	d.beginLocked(0)
}

func (d *lineDisplay) appendLocked(markup string) {
	if d.diverged {
		return
	}
	if !strings.HasPrefix(markup, d.written) {
		d.diverged = true
		return
	}
	fmt.Fprint(d.out, markup[len(d.written):])
	d.written = markup
}

// redrawLocked replaces the erasable part of the answer with markup. Lines
// that no longer fit on the screen are frozen, since the cursor cannot
// reach them, and only the lines below them are redrawn from then on.
func (d *lineDisplay) redrawLocked(markup string) {
	width, height := d.size()
	lines := strings.Split(markup, "\n")
	if d.frozen > len(lines) {
		d.frozen = len(lines)
	}

	d.eraseLocked()
	tail := lines[d.frozen:]
	if len(tail) > 0 {
		fmt.Fprintln(d.out, strings.Join(tail, "\n"))
	}
	d.liveRows = screenRows(tail, width)

	if limit := height - 2; limit > 0 && d.liveRows > limit && len(lines) > 1 {
		d.frozen = len(lines) - 1
		d.liveRows = screenRows(lines[d.frozen:], width)
	}
}

func (d *lineDisplay) eraseLocked() {
	if d.liveRows > 0 {
		fmt.Fprintf(d.out, "\x1b[%dA\r\x1b[J", d.liveRows)
		d.liveRows = 0
	}
}

// screenRows counts the terminal rows lines occupy once wrapped at width.
func screenRows(lines []string, width int) int {
	rows := 0
	for _, line := range lines {
		w := lipgloss.Width(line)
		if width <= 0 || w <= width {
			rows++
			continue
		}
		rows += (w + width - 1) / width
	}
	return rows
}
