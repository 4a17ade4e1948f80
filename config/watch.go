package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zylisp/calc/logger"
)

// debounce collapses the burst of events an editor save produces.
const debounce = 100 * time.Millisecond

// Watch reloads path whenever it changes and passes the result to fn.
// It watches the containing directory so renames and recreations are
// seen. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, fn func(*Config, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	log := logger.Global().WithPrefix("config")
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("%s: %s", ev.Op, ev.Name)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			cfg, err := Load(abs)
			if err != nil {
				log.Warn("reload failed: %v", err)
			}
			fn(cfg, err)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error: %v", err)
		}
	}
}
