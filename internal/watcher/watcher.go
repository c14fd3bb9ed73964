// Package watcher observes the GRUB config file for out-of-band edits.
package watcher

import (
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/zot/bootconfd/internal/config"
)

// Watcher watches the config file's containing directory and calls
// notify at most once per batch of filesystem events that reference
// the watched file name. Events for other names are ignored.
type Watcher struct {
	cfg      *config.Config
	dir      string
	filename string
	notify   func()
	watcher  *fsnotify.Watcher
}

// New creates a watcher for the configured GRUB file. notify is
// invoked from the watch loop's goroutine.
func New(cfg *config.Config, notify func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:      cfg,
		dir:      filepath.Dir(cfg.Grub.ConfigPath),
		filename: filepath.Base(cfg.Grub.ConfigPath),
		notify:   notify,
		watcher:  fsw,
	}

	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Run blocks reading filesystem events until an I/O failure, which it
// returns. The caller is expected to exit when the loop dies, since
// the protocol's freshness guarantee depends on it.
func (w *Watcher) Run() error {
	w.cfg.Log(0, "watching %s for changes to %s", w.dir, w.filename)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watch event channel closed")
			}
			// Coalesce everything already delivered into one batch;
			// signaled suppresses duplicate notifications within it.
			signaled := false
			w.handleEvent(event, &signaled)
		drain:
			for {
				select {
				case event, ok := <-w.watcher.Events:
					if !ok {
						return errors.New("watch event channel closed")
					}
					w.handleEvent(event, &signaled)
				default:
					break drain
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watch error channel closed")
			}
			return err
		}
	}
}

// handleEvent raises the notification for a modify event on the
// watched file, unless this batch already signaled.
func (w *Watcher) handleEvent(event fsnotify.Event, signaled *bool) {
	if event.Op&fsnotify.Write == 0 || *signaled {
		return
	}
	if filepath.Base(event.Name) != w.filename {
		return
	}

	w.cfg.Log(2, "config file modified: %s", event.Name)
	*signaled = true
	w.notify()
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
