// Package watch turns file system notifications of source trees into change notifications.
package watch

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change of one file.
type Change struct {
	Path string
	At   time.Time
}

// Watcher watches directory trees and reports written or created files.
type Watcher struct {
	watcher *fsnotify.Watcher
	changes chan Change
	dirs    map[string]int // dir path -> reference count
	mu      sync.Mutex
	once    sync.Once
	done    chan struct{}
	debug   bool
}

// New create a Watcher, buffer is the capacity of the change channel.
func New(buffer int, debug bool) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher: w,
		changes: make(chan Change, buffer),
		dirs:    make(map[string]int),
		done:    make(chan struct{}),
		debug:   debug,
	}, nil
}

// Changes returns the change channel, closed by [Watcher.Close].
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Add watches dir and all its sub directories, hidden directories are skipped.
func (w *Watcher) Add(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

// Remove stops watching dir, sub directories stay watched.
func (w *Watcher) Remove(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeWatchLocked(dir)
}

// Watched returns the number of watched directories.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

func (w *Watcher) addWatch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirs[dir]++
	if w.dirs[dir] == 1 {
		if err := w.watcher.Add(dir); err != nil {
			w.dirs[dir]--
			delete(w.dirs, dir)
			return err
		}
		if w.debug {
			log.Printf("watching %s", dir)
		}
	}
	return nil
}

func (w *Watcher) removeWatchLocked(dir string) {
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		if err := w.watcher.Remove(dir); err != nil && w.debug {
			log.Printf("remove watch %s: %v", dir, err)
		}
		delete(w.dirs, dir)
	}
}

// Start the event loop.
func (w *Watcher) Start() {
	go w.eventLoop()
}

func (w *Watcher) eventLoop() {
	defer close(w.changes)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.debug {
		log.Printf("event %s on %s", event.Op, event.Name)
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err = w.Add(event.Name); err != nil {
				log.Printf("watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.dirs, event.Name)
		w.mu.Unlock()
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	c := Change{Path: event.Name, At: time.Now()}
	select {
	case w.changes <- c:
	case <-w.done:
	default:
		if w.debug {
			log.Printf("change channel full, %s dropped", event.Name)
		}
	}
}

// Close stops watching, idempotent.
func (w *Watcher) Close() (err error) {
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return
}
