package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig 文件监听配置
type WatchConfig struct {
	Cooldown time.Duration // 冷却时间，避免编辑器连续写入触发多次
}

// DefaultWatchConfig 默认监听配置
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{Cooldown: 500 * time.Millisecond}
}

// Watcher reports writes to a set of files (the config and the image it
// points at). Parent directories are watched so that editors replacing the
// file by rename are still seen.
type Watcher struct {
	cfg     WatchConfig
	watcher *fsnotify.Watcher
	targets map[string]struct{}
	dirs    map[string]struct{}
	lastRun time.Time
	onError func(error)
}

// NewWatcher creates a watcher for the given files.
func NewWatcher(cfg WatchConfig, paths ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		cfg:     cfg,
		watcher: fw,
		targets: make(map[string]struct{}),
		dirs:    make(map[string]struct{}),
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Add starts watching path. Adding the same file twice is a no-op.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	w.targets[abs] = struct{}{}

	dir := filepath.Dir(abs)
	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.dirs[dir] = struct{}{}
	return nil
}

// OnError sets the callback for watcher errors. Errors do not stop Run.
func (w *Watcher) OnError(fn func(error)) {
	w.onError = fn
}

// Run blocks until ctx is done, calling onChange with the changed file's
// path for every write, create or rename of a target outside the cooldown.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := w.targets[name]; !ok {
				continue
			}
			if w.cfg.Cooldown > 0 && time.Since(w.lastRun) < w.cfg.Cooldown {
				continue
			}
			w.lastRun = time.Now()
			if onChange != nil {
				onChange(name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
