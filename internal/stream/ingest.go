// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Ingest reads r until end-of-input, feeding every chunk to a new Machine.
// It returns the final accumulated answer.
//
// The context is checked between reads; a read that is already blocked is
// not interrupted. Callers that need cancellation should close the body.
// On error the partial text is returned alongside it.
func Ingest(ctx context.Context, r io.Reader, h Handler, opts ...Option) (string, error) {
	m := NewMachine(h, opts...)
	return m.Run(ctx, r)
}

// Run drives the machine from r. See Ingest.
func (m *Machine) Run(ctx context.Context, r io.Reader) (string, error) {
	chunk := make([]byte, m.readSize)
	for {
		if err := ctx.Err(); err != nil {
			m.finish()
			return m.Text(), err
		}

		n, err := r.Read(chunk)
		if n > 0 {
			if ferr := m.Feed(chunk[:n]); ferr != nil {
				return m.Text(), ferr
			}
		}

		if errors.Is(err, io.EOF) {
			return m.Close()
		}
		if err != nil {
			m.finish()
			return m.Text(), fmt.Errorf("read answer stream: %w", err)
		}
	}
}
