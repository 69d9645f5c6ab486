// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
)

// ErrClosed is returned when bytes are fed to a machine that already
// finished.
var ErrClosed = errors.New("stream already closed")

// ServerError is returned when the backend sends an error frame.
type ServerError struct {
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Message == "" {
		return "server reported an error"
	}
	return "server error: " + e.Message
}

// IsServerError reports whether err is or wraps a *ServerError.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
