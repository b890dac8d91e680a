package fswatch_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/delaneyj/cellparty/cells"
	"github.com/delaneyj/cellparty/fswatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// should load the initial contents and track writes through the cell graph
func TestWatcherFeedsCellGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	rt := cells.NewRuntime(func(from *cells.Cell, err error) {
		assert.FailNow(t, err.Error())
	})

	w, err := fswatch.Watch(rt, path)
	require.NoError(t, err)
	defer w.Stop()

	asText := w.Cell().Transform(func(v any) any { return string(v.([]byte)) })
	assert.Equal(t, "v1", asText.Value())

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case data := <-w.Events():
			require.NoError(t, w.Apply(data))
			if asText.Value() == "v2" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for file change")
		}
	}
}

// should tolerate repeated stops
func TestWatcherStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	rt := cells.NewRuntime(func(from *cells.Cell, err error) {
		assert.FailNow(t, err.Error())
	})

	w, err := fswatch.Watch(rt, path)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		w.Stop()
		w.Stop()
	})
}
