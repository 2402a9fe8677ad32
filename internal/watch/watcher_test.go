package watch

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWatcherReloadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hal.toml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	w := New(path, func(p string) (string, error) {
		b, err := os.ReadFile(p)

		return string(b), err
	}, discard, WithDebounce[string](20*time.Millisecond))

	got := make(chan string, 4)
	w.OnReload(func(s string) { got <- s })

	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("b"), 0o600))

	select {
	case s := <-got:
		assert.Equal(t, "b", s)
	case <-time.After(2 * time.Second):
		t.Fatal("no reload")
	}
}

func TestWatcherDirectoryOpsAndUnsubscribe(t *testing.T) {
	dir := t.TempDir()

	loads := make(chan struct{}, 8)
	w := New(dir, func(string) (struct{}, error) {
		return struct{}{}, nil
	}, discard,
		WithDebounce[struct{}](20*time.Millisecond),
		WithOps[struct{}](fsnotify.Create|fsnotify.Remove))

	unsub := w.OnReload(func(struct{}) { loads <- struct{}{} })

	require.NoError(t, w.Start())
	defer w.Stop()

	node := filepath.Join(dir, "pcmC0D0p")
	require.NoError(t, os.WriteFile(node, nil, 0o600))

	select {
	case <-loads:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload on create")
	}

	unsub()
	require.NoError(t, os.Remove(node))

	select {
	case <-loads:
		t.Fatal("handler called after unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherLoaderError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hal.toml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	errs := make(chan error, 1)
	w := New(path, func(string) (int, error) {
		return 0, errors.New("bad config")
	}, discard,
		WithDebounce[int](10*time.Millisecond),
		WithErrorHandler[int](func(err error) { errs <- err }))

	w.OnReload(func(int) { t.Error("handler called despite loader error") })

	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	select {
	case err := <-errs:
		assert.EqualError(t, err, "bad config")
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}
}

func TestWatcherStartMissingPath(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), func(string) (int, error) { return 0, nil }, discard)

	assert.Error(t, w.Start())
	assert.NoError(t, w.Stop())
}
