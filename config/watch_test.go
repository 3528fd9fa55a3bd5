package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherStopsOnCancel(t *testing.T) {
	path := writeTempConfig(t, "numpy_basics: {}\n")
	w, err := NewWatcher(DefaultWatchConfig(), path)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately
	assert.ErrorIs(t, w.Run(ctx, nil), context.Canceled)
}

func TestWatcherTriggersOnChange(t *testing.T) {
	path := writeTempConfig(t, "numpy_basics: {}\n")
	w, err := NewWatcher(WatchConfig{}, path)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan string, 8)
	go func() {
		_ = w.Run(ctx, func(p string) { ch <- p })
	}()

	// fsnotify 注册是同步的，写入后应收到事件
	require.NoError(t, os.WriteFile(path, []byte("numpy_basics:\n  step: 2\n"), 0o644))

	abs, _ := filepath.Abs(path)
	select {
	case got := <-ch:
		assert.Equal(t, abs, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected update callback")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	path := writeTempConfig(t, "numpy_basics: {}\n")
	w, err := NewWatcher(WatchConfig{}, path)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	ch := make(chan string, 8)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(p string) { ch <- p }) }()

	other := filepath.Join(filepath.Dir(path), "other.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	assert.ErrorIs(t, <-done, context.DeadlineExceeded)
	assert.Empty(t, ch)
}

func TestWatcherCooldown(t *testing.T) {
	path := writeTempConfig(t, "numpy_basics: {}\n")
	w, err := NewWatcher(WatchConfig{Cooldown: time.Hour}, path)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	ch := make(chan string, 8)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(p string) { ch <- p }) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("numpy_basics: {}\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}
	<-done
	assert.Len(t, ch, 1)
}

func TestWatcherAddTwiceSameDir(t *testing.T) {
	path := writeTempConfig(t, "numpy_basics: {}\n")
	img := filepath.Join(filepath.Dir(path), "img.png")
	w, err := NewWatcher(WatchConfig{}, path, img)
	require.NoError(t, err)
	defer w.Close()
	assert.Len(t, w.dirs, 1)
	assert.Len(t, w.targets, 2)
}

func TestNewWatcherMissingDir(t *testing.T) {
	_, err := NewWatcher(WatchConfig{}, filepath.Join(t.TempDir(), "nope", "cfg.yaml"))
	assert.Error(t, err)
}
