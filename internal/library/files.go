// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/docqa-tui/internal/backend"
	"github.com/jeranaias/docqa-tui/internal/model"
	"github.com/jeranaias/docqa-tui/internal/util"
)

// PDFExt is the only accepted upload extension, compared case-insensitively.
const PDFExt = ".pdf"

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), PDFExt)
}

// FilterPDFs splits paths into PDFs and everything else, keeping order.
func FilterPDFs(paths []string) (pdfs, rejected []string) {
	for _, p := range paths {
		if IsPDF(p) {
			pdfs = append(pdfs, p)
		} else {
			rejected = append(rejected, p)
		}
	}
	return pdfs, rejected
}

// LoadFiles reads each path into an upload payload. Files larger than
// maxBytes (when positive), directories and unreadable files are not
// loaded; each gets an error result instead so the caller can report it
// alongside the server's results.
func LoadFiles(paths []string, maxBytes int64) ([]backend.File, []model.UploadResult) {
	var (
		files   []backend.File
		skipped []model.UploadResult
	)
	for _, p := range paths {
		name := filepath.Base(p)
		info, err := os.Stat(p)
		if err != nil {
			skipped = append(skipped, failed(name, err.Error()))
			continue
		}
		if info.IsDir() {
			skipped = append(skipped, failed(name, "is a directory"))
			continue
		}
		if maxBytes > 0 && info.Size() > maxBytes {
			skipped = append(skipped, failed(name, fmt.Sprintf("file is %s, limit is %s",
				util.FormatBytes(info.Size()), util.FormatBytes(maxBytes))))
			continue
		}

		data, err := os.ReadFile(p)
		if err != nil {
			skipped = append(skipped, failed(name, err.Error()))
			continue
		}
		files = append(files, backend.File{Name: name, Data: data})
	}
	return files, skipped
}

// Rejected builds error results for non-PDF paths.
func Rejected(paths []string) []model.UploadResult {
	out := make([]model.UploadResult, 0, len(paths))
	for _, p := range paths {
		out = append(out, failed(filepath.Base(p), "only PDF files are accepted"))
	}
	return out
}

func failed(name, msg string) model.UploadResult {
	return model.UploadResult{Filename: name, Status: model.UploadError, Message: msg}
}
