// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// UploadStatus is the per-file outcome reported by the upload endpoint.
type UploadStatus string

const (
	UploadOK    UploadStatus = "ok"
	UploadError UploadStatus = "error"
)

// UploadResult describes what happened to one uploaded file.
type UploadResult struct {
	Filename string       `json:"filename"`
	Status   UploadStatus `json:"status"`
	Message  string       `json:"message,omitempty"`
}

// OK reports whether the file was accepted.
func (r UploadResult) OK() bool {
	return r.Status == UploadOK
}
