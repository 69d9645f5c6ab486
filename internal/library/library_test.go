// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docqa-tui/internal/backend"
	"github.com/jeranaias/docqa-tui/internal/model"
)

func TestFilterPDFs(t *testing.T) {
	pdfs, rejected := FilterPDFs([]string{"a.pdf", "b.PDF", "notes.txt", "dir/c.Pdf", "pdf"})
	assert.Equal(t, []string{"a.pdf", "b.PDF", "dir/c.Pdf"}, pdfs)
	assert.Equal(t, []string{"notes.txt", "pdf"}, rejected)
}

func TestRejected(t *testing.T) {
	out := Rejected([]string{"dir/notes.txt"})
	require.Len(t, out, 1)
	assert.Equal(t, "notes.txt", out[0].Filename)
	assert.False(t, out[0].OK())
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.pdf")
	big := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(small, []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(big, make([]byte, 2048), 0o644))

	files, skipped := LoadFiles([]string{small, big, filepath.Join(dir, "missing.pdf"), dir}, 1024)

	require.Len(t, files, 1)
	assert.Equal(t, "small.pdf", files[0].Name)
	assert.Equal(t, []byte("%PDF-1.4"), files[0].Data)

	require.Len(t, skipped, 3)
	assert.Equal(t, "big.pdf", skipped[0].Filename)
	assert.Contains(t, skipped[0].Message, "limit is 1.0 KB")
	assert.Equal(t, "missing.pdf", skipped[1].Filename)
	assert.Equal(t, "is a directory", skipped[2].Message)
}

// =============================================================================
// WATCHER
// =============================================================================

type recordingUploader struct {
	mu    sync.Mutex
	names []string
}

func (u *recordingUploader) Upload(_ context.Context, files []backend.File) ([]model.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []model.UploadResult
	for _, f := range files {
		u.names = append(u.names, f.Name)
		out = append(out, model.UploadResult{Filename: f.Name, Status: model.UploadOK})
	}
	return out, nil
}

func (u *recordingUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.names...)
}

func TestWatcher_UploadsNewPDFs(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}

	var mu sync.Mutex
	var reported []string
	onResult := func(path string, results []model.UploadResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, filepath.Base(path))
	}

	cfg := WatcherConfig{Dir: dir, Debounce: 30 * time.Millisecond, RatePerSec: 100, Burst: 10}
	w, err := NewWatcher(cfg, up, onResult, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper.pdf"), []byte("%PDF"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 1
	}, 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{"paper.pdf"}, up.uploaded())
	mu.Lock()
	assert.Equal(t, []string{"paper.pdf"}, reported)
	mu.Unlock()
	assert.Zero(t, w.Pending())
}

func TestWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{}, &recordingUploader{}, nil, nil)
	assert.Error(t, err)

	_, err = NewWatcher(WatcherConfig{Dir: t.TempDir()}, nil, nil, nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.pdf")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	w, err := NewWatcher(WatcherConfig{Dir: file}, &recordingUploader{}, nil, nil)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Close())
}
