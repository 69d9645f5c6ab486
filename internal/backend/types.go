// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "github.com/jeranaias/docqa-tui/internal/model"

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question        string           `json:"question"`
	ChatHistory     []model.Exchange `json:"chat_history"`
	SelectedSources []string         `json:"selected_sources"`
}

// documentsResponse is the body of GET /documents.
type documentsResponse struct {
	Documents []string `json:"documents"`
}

// uploadResponse is the body of POST /upload.
type uploadResponse struct {
	Results []model.UploadResult `json:"results"`
}

// errorResponse covers the error bodies the service may return.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (e errorResponse) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Detail
}

// File is one document to upload.
type File struct {
	Name string
	Data []byte
}
