// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/docqa-tui/internal/storage"
)

// JSONExporter writes the archived session as indented JSON. The output
// always carries the complete session, whatever the options say.
type JSONExporter struct{}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export implements Exporter.
func (e *JSONExporter) Export(s *storage.ArchivedSession) ([]byte, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

// FileExtension implements Exporter.
func (e *JSONExporter) FileExtension() string { return ".json" }

// MimeType implements Exporter.
func (e *JSONExporter) MimeType() string { return "application/json" }
