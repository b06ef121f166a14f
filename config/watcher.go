package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes of the config file. The directory is watched
// instead of the file itself because editors and the web handler may
// replace the file rather than write it in place. Bursts of events are
// collapsed into one notification after the debounce delay.
type Watcher struct {
	fsw      *fsnotify.Watcher
	file     string
	debounce time.Duration
	changes  chan struct{}
	wg       sync.WaitGroup
}

func NewWatcher(cfile string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(cfile)
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		fsw:      fsw,
		file:     abs,
		debounce: debounce,
		changes:  make(chan struct{}, 1),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Changes delivers one value per settled modification of the config file.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops watching and waits for the watcher go-routine to end.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				slog.Debug("Ending config watcher go-routine")
				return
			}
			if filepath.Clean(ev.Name) != w.file {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				slog.Debug("Config file event", "op", ev.Op.String())
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}
