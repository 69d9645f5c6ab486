// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"
	"time"
)

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// Stats holds counters collected while ingesting one answer.
type Stats struct {
	// Timing
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time
	TTFT           time.Duration // Time to first token

	// Frame counts
	Frames    int
	Tokens    int
	Statuses  int
	Malformed int
	Unknown   int

	// Hits is the number of context chunks reported by the metadata frame.
	Hits    int
	SawDone bool
}

func (s *Stats) recordFirstToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
}

// Duration returns the wall time of the stream.
func (s Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Format returns a one-line summary for status bars.
func (s Stats) Format() string {
	out := fmt.Sprintf("%s | %d tokens | TTFT %dms",
		formatDuration(s.Duration()), s.Tokens, s.TTFT.Milliseconds())
	if s.Hits > 0 {
		out += fmt.Sprintf(" | %d sources", s.Hits)
	}
	if s.Malformed > 0 {
		out += fmt.Sprintf(" | %d skipped", s.Malformed)
	}
	return out
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
