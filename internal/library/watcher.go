// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/docqa-tui/internal/backend"
	"github.com/jeranaias/docqa-tui/internal/model"
)

// Uploader sends files to the answer service.
type Uploader interface {
	Upload(ctx context.Context, files []backend.File) ([]model.UploadResult, error)
}

// ResultFunc receives the outcome of each watched upload.
type ResultFunc func(path string, results []model.UploadResult, err error)

// =============================================================================
// WATCHER CONFIG
// =============================================================================

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Dir is the folder to watch. Subdirectories are not watched.
	Dir string

	// Debounce is how long a file must be quiet before it is uploaded.
	Debounce time.Duration

	// RatePerSec and Burst bound the upload rate.
	RatePerSec float64
	Burst      int

	// MaxBytes skips larger files when positive.
	MaxBytes int64
}

// DefaultWatcherConfig returns defaults for dir.
func DefaultWatcherConfig(dir string) WatcherConfig {
	return WatcherConfig{
		Dir:        dir,
		Debounce:   500 * time.Millisecond,
		RatePerSec: 1,
		Burst:      3,
	}
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// Watcher uploads PDFs created or written in a folder.
type Watcher struct {
	cfg      WatcherConfig
	uploader Uploader
	onResult ResultFunc
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]time.Time // path -> last change time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher. Start begins watching.
func NewWatcher(cfg WatcherConfig, uploader Uploader, onResult ResultFunc, logger *zap.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		cfg:      cfg,
		uploader: uploader,
		onResult: onResult,
		logger:   logger.Named("watch"),
		watcher:  fw,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		pending:  make(map[string]time.Time),
	}, nil
}

// Start watches the folder until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.cfg.Dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New(w.cfg.Dir + " is not a directory")
	}
	if err := w.watcher.Add(w.cfg.Dir); err != nil {
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.processPending(ctx)

	w.logger.Info("watching folder", zap.String("dir", w.cfg.Dir))
	return nil
}

// processEvents records create and write events for PDFs.
func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("watch event loop panicked", zap.Any("panic", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsPDF(event.Name) {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// processPending uploads files that have been quiet for the debounce period.
func (w *Watcher) processPending(ctx context.Context) {
	defer w.wg.Done()

	tick := w.cfg.Debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			for _, path := range w.due(time.Now()) {
				if err := w.limiter.Wait(ctx); err != nil {
					return
				}
				w.upload(ctx, path)
			}
		}
	}
}

func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, changed := range w.pending {
		if now.Sub(changed) >= w.cfg.Debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

func (w *Watcher) upload(ctx context.Context, path string) {
	// Removed again before the debounce expired.
	if _, err := os.Stat(path); err != nil {
		return
	}

	files, skipped := LoadFiles([]string{path}, w.cfg.MaxBytes)
	if len(files) == 0 {
		w.report(path, skipped, nil)
		return
	}

	results, err := w.uploader.Upload(ctx, files)
	if err != nil {
		w.logger.Warn("watched upload failed", zap.String("file", filepath.Base(path)), zap.Error(err))
	} else {
		w.logger.Info("watched upload", zap.String("file", filepath.Base(path)))
	}
	w.report(path, results, err)
}

func (w *Watcher) report(path string, results []model.UploadResult, err error) {
	if w.onResult != nil {
		w.onResult(path, results, err)
	}
}

// Pending returns the number of files waiting for their debounce period.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Close stops watching and waits for in-progress uploads.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
