package hotswap

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a lifecycle event.
type EventKind string

const (
	// EventBuildStarted is emitted when a build is dispatched.
	EventBuildStarted EventKind = "build-started"
	// EventBuildFinished carries the build success and its full log.
	EventBuildFinished EventKind = "build-finished"
	// EventLibraryUnloading is emitted before the loaded library is unloaded.
	EventLibraryUnloading EventKind = "library-about-to-unload"
	// EventLibraryUnloaded is emitted after the library was unloaded.
	EventLibraryUnloaded EventKind = "library-unloaded"
	// EventLibraryLoaded is emitted after a successful load, before the root instance starts.
	EventLibraryLoaded EventKind = "library-loaded"
	// EventLoadFailed carries the load error.
	EventLoadFailed EventKind = "load-failed"
	// EventInstanceStopping is emitted before the root instance is stopped and destroyed.
	EventInstanceStopping EventKind = "instance-about-to-stop"
	// EventInstanceStopped is emitted after the root instance was destroyed.
	EventInstanceStopped EventKind = "instance-stopped"
	// EventInstanceStarted is emitted after the root instance was created and started.
	EventInstanceStarted EventKind = "instance-started"
	// EventRebuildSuppressed is emitted when a change is dropped by the debounce window or an in-flight build.
	EventRebuildSuppressed EventKind = "rebuild-suppressed"
	// EventExitRequested is emitted once when the host session should terminate.
	EventExitRequested EventKind = "exit-requested"
)

type (
	// Event is one lifecycle notification.
	Event struct {
		Kind    EventKind `json:"kind"`
		Time    time.Time `json:"time"`
		State   State     `json:"state"`
		Module  string    `json:"module,omitempty"`  //source path of the module concerned
		Library string    `json:"library,omitempty"` //library path concerned
		Build   uuid.UUID `json:"build"`             //build id for build events, zero otherwise
		Success bool      `json:"success,omitempty"` //build outcome
		Log     string    `json:"log,omitempty"`     //captured build output
		Error   string    `json:"error,omitempty"`
	}
	// Listener receives events on the engine main context, it must not call back into the engine.
	Listener func(e Event)
)

// Subscribe adds a listener, listeners are called in subscription order.
func (e *Engine) Subscribe(l Listener) {
	if l != nil {
		e.listeners = append(e.listeners, l)
	}
}

func (e *Engine) emit(ev Event) {
	ev.Time = time.Now()
	ev.State = e.state
	for _, l := range e.listeners {
		e.notify(l, ev)
	}
}

func (e *Engine) notify(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("listener panic on %s: %v", ev.Kind, r)
		}
	}()
	l(ev)
}
