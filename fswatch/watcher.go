// Package fswatch feeds file contents into a reactive cell.
//
// The fsnotify goroutine never touches the runtime: new contents arrive on
// Events and the caller applies them from whatever goroutine owns the
// runtime, keeping cell mutation single-threaded.
package fswatch

import (
	"fmt"
	"os"
	"sync"

	"github.com/delaneyj/cellparty/cells"
	"github.com/fsnotify/fsnotify"
)

type Watcher struct {
	cell     *cells.Cell
	events   chan []byte
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// Watch reads path immediately into a fresh Dynamic cell and starts
// watching for writes. Stop releases the underlying fsnotify watcher.
func Watch(rt *cells.Runtime, path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	initial, err := os.ReadFile(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	w := &Watcher{
		cell:    cells.NewCell(rt, initial),
		events:  make(chan []byte, 1),
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.loop(path)
	return w, nil
}

func (w *Watcher) loop(path string) {
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			select {
			case w.events <- data:
			case <-w.done:
				return
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// keep watching despite transient errors
		}
	}
}

// Cell returns the file-backed cell.
func (w *Watcher) Cell() *cells.Cell { return w.cell }

// Events emits the file contents after each write. Drain it from the
// goroutine that owns the runtime and pass each payload to Apply.
func (w *Watcher) Events() <-chan []byte { return w.events }

// Apply assigns data to the cell, cascading to dependents.
func (w *Watcher) Apply(data []byte) error { return w.cell.SetValue(data) }

// Stop releases the fsnotify watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}
