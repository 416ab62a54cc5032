package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, w *Watcher, name string) Change {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-w.Changes():
			require.True(t, ok, "change channel closed")
			if filepath.Base(c.Path) == name {
				return c
			}
		case <-deadline:
			t.Fatalf("no change for %s", name)
		}
	}
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	w, err := New(16, true)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Add(dir))
	assert.Equal(t, 2, w.Watched())
	w.Start()

	before := time.Now()
	require.NoError(t, os.WriteFile(filepath.Join(sub, "Foo.go"), []byte("package main\n"), 0o644))
	c := receive(t, w, "Foo.go")
	assert.Equal(t, filepath.Join(sub, "Foo.go"), c.Path)
	assert.False(t, c.At.Before(before))
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := New(16, false)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Add(dir))
	w.Start()

	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))
	require.Eventually(t, func() bool { return w.Watched() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(nested, "Bar.h"), []byte("int bar;\n"), 0o644))
	receive(t, w, "Bar.h")
}

func TestWatcherClose(t *testing.T) {
	w, err := New(1, false)
	require.NoError(t, err)
	w.Start()
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	select {
	case _, ok := <-w.Changes():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("change channel not closed")
	}
}
