package policy

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watch reloads the engine whenever path changes until ctx is done.
// The parent directory is watched so editors that replace the file are picked up.
func (e *Engine) Watch(ctx context.Context, path string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return err
	}

	logger := slog.Default().With("component", "policy", "path", abs)
	logger.Info("watching policy file", "debounce", debounce)

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				e.reloadFile(ctx, abs, logger)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("policy watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (e *Engine) reloadFile(ctx context.Context, path string, logger *slog.Logger) {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("policy reload skipped", "error", err)
		return
	}
	if err := e.Reload(ctx, string(content)); err != nil {
		logger.Error("policy reload failed; keeping previous policy", "error", err)
		return
	}
	logger.Info("policy reloaded")
}
