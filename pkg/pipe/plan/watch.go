package plan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch calls fn each time the file at path changes, once writes have been
// quiet for the debounce period. fn is never called concurrently with itself.
// Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file, so editors that save
// by renaming a temporary file are noticed as well.
func Watch(ctx context.Context, path string, fn func(), opts ...Option) error {
	o, err := newOptions(opts)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err = os.Stat(abs); err != nil {
		return fmt.Errorf("watching plan: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching plan: %w", err)
	}
	defer w.Close()

	if err = w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching plan: %w", err)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !changed(ev.Op) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(o.Debounce)
			} else {
				timer.Reset(o.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			o.Logger.Debug("plan changed", "path", abs)
			fn()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			o.Logger.Warn("plan watcher error", "path", abs, "error", err)
		}
	}
}

func changed(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}
