package hotswap

import (
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultWindow is the minimum time between two accepted rebuild triggers.
const DefaultWindow = 2 * time.Second

// DefaultExtensions of build relevant files.
var DefaultExtensions = []string{".go", ".c", ".cc", ".cpp", ".cxx", ".h", ".hh", ".hpp"}

type (
	// Trigger is an accepted file change.
	Trigger struct {
		Path string
		At   time.Time
	}
	// Debouncer turns change notification storms into one Trigger per logical edit.
	//
	// It keeps one last accepted timestamp for all paths: a change is accepted only when more than the window
	// elapsed since the last accepted one.
	Debouncer struct {
		mu     sync.Mutex
		window time.Duration
		ext    map[string]struct{}
		last   time.Time
		debug  bool
	}
)

// NewDebouncer create a Debouncer, zero window means [DefaultWindow] and no extensions mean [DefaultExtensions].
func NewDebouncer(window time.Duration, debug bool, ext ...string) *Debouncer {
	if window == 0 {
		window = DefaultWindow
	}
	if len(ext) == 0 {
		ext = DefaultExtensions
	}
	d := &Debouncer{window: window, ext: make(map[string]struct{}, len(ext)), debug: debug}
	for _, x := range ext {
		if !strings.HasPrefix(x, ".") {
			x = "." + x
		}
		d.ext[strings.ToLower(x)] = struct{}{}
	}
	return d
}

// Window returns the debounce window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Relevant reports whether path is a build relevant file.
func (d *Debouncer) Relevant(path string) bool {
	_, ok := d.ext[strings.ToLower(filepath.Ext(path))]
	return ok
}

// OnFileChanged returns a Trigger when the change at time at is accepted.
func (d *Debouncer) OnFileChanged(path string, at time.Time) (t Trigger, ok bool) {
	if !d.Relevant(path) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.last.IsZero() {
		if elapsed := at.Sub(d.last); elapsed <= d.window {
			if d.debug {
				log.Printf("file %s changed too fast (< %s), elapsed %s", path, d.window, elapsed)
			}
			return
		}
	}
	d.last = at
	return Trigger{Path: path, At: at}, true
}
