// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strconv"
	"time"
)

// IntToString converts an int to its decimal string.
func IntToString(i int) string {
	return strconv.Itoa(i)
}

// FormatBytes renders a byte count as B, KB or MB.
func FormatBytes(n int64) string {
	switch {
	case n < 1024:
		return strconv.FormatInt(n, 10) + " B"
	case n < 1024*1024:
		return strconv.FormatFloat(float64(n)/1024, 'f', 1, 64) + " KB"
	default:
		return strconv.FormatFloat(float64(n)/(1024*1024), 'f', 1, 64) + " MB"
	}
}

// FormatDuration returns a compact human-readable duration: 42s, 3m, 3m 5s.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return IntToString(int(d.Seconds())) + "s"
	}
	if d >= time.Hour {
		return IntToString(int(d.Hours())) + "h " + IntToString(int(d.Minutes())%60) + "m"
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return IntToString(mins) + "m"
	}
	return IntToString(mins) + "m " + IntToString(secs) + "s"
}
