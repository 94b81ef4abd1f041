package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "chorenote/internal/log"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher holds the live configuration and swaps it when the file on disk
// changes. A reload that fails to parse or validate is logged and dropped;
// the previous config stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration

	// reloadMu serializes reloads and OnChange callbacks.
	reloadMu sync.Mutex

	mu  sync.RWMutex
	cfg *Config

	subsMu sync.Mutex
	subs   []func(*Config)
}

// NewWatcher wraps an already loaded and validated config.
func NewWatcher(path string, initial *Config) *Watcher {
	return &Watcher{path: path, cfg: initial, debounce: defaultDebounce}
}

// Current returns the live config. Callers must not mutate it.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// OnChange registers fn to run after each committed reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.subsMu.Lock()
	w.subs = append(w.subs, fn)
	w.subsMu.Unlock()
}

// Reload reads the file again and commits it if it is valid. Concurrent
// calls run one at a time.
func (w *Watcher) Reload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	cfg, err := Parse(data)
	if err != nil {
		return err
	}
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()

	w.subsMu.Lock()
	subs := append([]func(*Config){}, w.subs...)
	w.subsMu.Unlock()
	for _, fn := range subs {
		fn(cfg)
	}
	return nil
}

// Watch blocks until ctx is done, reloading on writes to the config file.
// The parent directory is watched so editors that replace the file via
// rename are still picked up.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}
	appLog.Info("config watch started", "path", w.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			if err := w.Reload(); err != nil {
				appLog.Error("config reload rejected; keeping previous config", err, "path", w.path)
				return
			}
			appLog.Info("config reloaded", "path", w.path, "events", len(w.Current().Events))
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("config watch: event channel closed")
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				appLog.Debug("config change detected; scheduling reload", "path", w.path, "op", ev.Op.String())
				schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("config watch: error channel closed")
			}
			appLog.Error("config watch error", err, "path", w.path)
		}
	}
}
