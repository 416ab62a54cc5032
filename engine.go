package hotswap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ZenLiuCN/hotswap/build"
	"github.com/ZenLiuCN/hotswap/library"
	"github.com/ZenLiuCN/hotswap/watch"
)

// Builder builds a module into a library.
type Builder interface {
	// Build m into lib, failures are reported by the result.
	Build(ctx context.Context, m *build.Module, lib string) build.Result
	// Extension of produced libraries.
	Extension() string
}

// Engine is one live recompilation session.
//
// Every method except [Engine.Done], [Engine.Err] and [Engine.Close] must be called from the host main context,
// the one driving [Engine.Tick]. Builds after the first run on a worker goroutine which only hands its result over.
type Engine struct {
	cfg       Config
	builder   Builder
	loader    library.Loader
	instance  *Instance
	debounce  *Debouncer
	modules   *Modules
	listeners []Listener
	host      any
	state     State
	library   string
	loaded    bool //the session loaded a library once
	building  bool
	results   chan build.Result
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex //guards err and closed
	err       error
	closed    bool
	done      chan struct{}
	exit      sync.Once
	debug     bool
}

// Option configures an [Engine].
type Option func(e *Engine)

// WithBuilder replace the builder derived from the config.
func WithBuilder(b Builder) Option {
	return func(e *Engine) { e.builder = b }
}

// WithLoader replace the loader derived from the config.
func WithLoader(l library.Loader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithHostContext sets the value passed to the create entry point.
func WithHostContext(host any) Option {
	return func(e *Engine) { e.host = host }
}

// WithListener subscribes l before anything happens.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.Subscribe(l) }
}

// New create an Engine from cfg.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		debounce: NewDebouncer(cfg.Window.Duration(), cfg.Debug, cfg.Extensions...),
		modules:  NewModules(),
		results:  make(chan build.Result, 1),
		done:     make(chan struct{}),
		debug:    cfg.Debug,
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	for _, o := range opts {
		o(e)
	}
	if e.builder == nil {
		e.builder = NewBuilder(cfg)
	}
	if e.loader == nil {
		e.loader = NewLoader(cfg)
	}
	e.instance = NewInstance(e.loader, e.host, e.debug)
	return e, nil
}

// NewBuilder create the build adapter configured by cfg.
func NewBuilder(cfg Config) *build.Adapter {
	var tool build.Tool = build.GoObject{Package: cfg.Package}
	if cfg.Tool == ToolMake {
		tool = build.Make{}
	}
	a := build.NewAdapter(tool, cfg.Debug)
	a.Jobs = cfg.Jobs
	a.StrictExit = cfg.StrictExit
	return a
}

// NewLoader create the library loader configured by cfg.
func NewLoader(cfg Config) library.Loader {
	if cfg.LoaderKind() == LoaderShared {
		return library.NewShared(library.Naming{Fixed: cfg.Fixed}, cfg.Debug)
	}
	return library.NewLinker(cfg.Package, library.Naming{Fixed: cfg.Fixed}, cfg.Debug)
}

// State of the reload cycle.
func (e *Engine) State() State {
	return e.state
}

// Library path of the root module.
func (e *Engine) Library() string {
	return e.library
}

// Modules referenced by the session.
func (e *Engine) Modules() *Modules {
	return e.modules
}

// Done is closed when the host session should terminate.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Err returns why the session terminated, nil while running or after [Engine.Close].
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Execute registers root as root module, builds it synchronously, loads it and starts the root instance.
// Any failure here is fatal for the session.
func (e *Engine) Execute(ctx context.Context, root string) error {
	if e.isClosed() {
		return ErrClosed
	}
	m, err := e.modules.RegisterRoot(root)
	if err != nil {
		return err
	}
	if e.state != Idle || e.building {
		return fmt.Errorf("%w: %s", ErrRootExists, m.Path)
	}
	e.library = libraryPath(m.Path, e.builder.Extension())
	e.building = true
	e.state = Building
	e.emit(Event{Kind: EventBuildStarted, Module: m.Path, Library: e.library})
	r := e.builder.Build(ctx, m, e.library)
	e.building = false
	return e.complete(r)
}

// RequestRebuild dispatches a build of the module at path on a worker goroutine, path of root or empty rebuilds the
// root module. It returns false when the request is rejected: before [Engine.Execute], after termination, or while
// another build is in flight.
func (e *Engine) RequestRebuild(path string) bool {
	root := e.modules.Root()
	if root == nil || e.isClosed() || e.exited() {
		return false
	}
	if e.building {
		if e.debug {
			log.Printf("build in progress, rebuild of %s suppressed", path)
		}
		e.emit(Event{Kind: EventRebuildSuppressed, Module: path, Error: "build in progress"})
		return false
	}
	m := root
	if path != "" {
		m = e.modules.Require(path)
	}
	if err := e.loader.PrepareRebuild(e.library); err != nil {
		log.Printf("prepare rebuild of %s: %v", e.library, err)
	}
	e.building = true
	e.state = Building
	e.emit(Event{Kind: EventBuildStarted, Module: m.Path, Library: e.library})
	go e.work(m, e.library)
	return true
}

func (e *Engine) work(m *build.Module, lib string) {
	e.results <- e.builder.Build(e.ctx, m, lib)
}

// OnFileChanged feeds a change notification through the debouncer, an accepted change requests a rebuild.
func (e *Engine) OnFileChanged(path string, at time.Time) bool {
	if e.modules.Root() == nil {
		return false
	}
	t, ok := e.debounce.OnFileChanged(path, at)
	if !ok {
		if e.debounce.Relevant(path) {
			e.emit(Event{Kind: EventRebuildSuppressed, Module: path, Error: "changed too fast"})
		}
		return false
	}
	if e.debug {
		log.Printf("reloading %s", t.Path)
	}
	return e.RequestRebuild(t.Path)
}

// Tick observes the result of an in-flight build and performs the swap.
// It returns the fatal error when the session must terminate.
func (e *Engine) Tick() error {
	select {
	case r := <-e.results:
		e.building = false
		if e.isClosed() {
			return nil
		}
		return e.complete(r)
	default:
		return nil
	}
}

// Run drives the engine until ctx is done or the session terminates: changes are debounced and a tick runs every
// configured interval.
func (e *Engine) Run(ctx context.Context, changes <-chan watch.Change) error {
	d := e.cfg.Tick.Duration()
	if d <= 0 {
		d = DefaultTick
	}
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return e.Err()
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			e.OnFileChanged(c.Path, c.At)
		case <-t.C:
			if err := e.Tick(); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) complete(r build.Result) error {
	e.state = BuildFinished
	e.emit(Event{Kind: EventBuildFinished, Module: r.Module.Path, Library: r.Library, Build: r.ID, Success: r.Success, Log: r.Log})
	if !r.Success {
		log.Printf("error compiling %s:\n%s", r.Module.Path, r.Log)
		e.state = Failed
		if !e.loaded {
			return e.terminate(fmt.Errorf("%w: %s", ErrFirstBuild, r.Module.Path))
		}
		if e.loader.Loaded() {
			e.state = Running
		}
		return nil
	}
	e.modules.Record(r.Module, r.Library)
	return e.swap(r.Library)
}

func (e *Engine) swap(lib string) error {
	e.state = Swapping
	root := e.modules.Root()
	if e.instance.Running() {
		e.emit(Event{Kind: EventInstanceStopping, Module: root.Path, Library: e.loader.Path()})
		if err := e.instance.StopRoot(); err != nil {
			log.Printf("stop root object %s: %v", root.Name(), err)
		}
		e.emit(Event{Kind: EventInstanceStopped, Module: root.Path, Library: e.loader.Path()})
	}
	if e.loader.Loaded() {
		prev := e.loader.Path()
		e.emit(Event{Kind: EventLibraryUnloading, Module: root.Path, Library: prev})
		if err := e.loader.Unload(); err != nil {
			log.Printf("unload library %s: %v", prev, err)
		}
		e.emit(Event{Kind: EventLibraryUnloaded, Module: root.Path, Library: prev})
	}
	if err := e.loader.Load(lib); err != nil {
		log.Printf("load library %s: %v", lib, err)
		e.state = Failed
		e.emit(Event{Kind: EventLoadFailed, Module: root.Path, Library: lib, Error: err.Error()})
		if !e.loaded {
			return e.terminate(fmt.Errorf("%w: %w", ErrFirstLoad, err))
		}
		return nil
	}
	e.loaded = true
	e.emit(Event{Kind: EventLibraryLoaded, Module: root.Path, Library: lib})
	if err := e.instance.StartRoot(root.Name()); err != nil {
		if errors.Is(err, ErrNoInstance) {
			log.Printf("%v", err)
			e.state = Failed
			return e.terminate(err)
		}
		log.Printf("start root object %s: %v", root.Name(), err)
	}
	e.state = Running
	e.emit(Event{Kind: EventInstanceStarted, Module: root.Path, Library: lib})
	return nil
}

// terminate requests the host session exit, only the first cause is kept.
func (e *Engine) terminate(err error) error {
	e.exit.Do(func() {
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		e.emit(Event{Kind: EventExitRequested, Error: err.Error()})
		close(e.done)
	})
	return err
}

func (e *Engine) exited() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close stops the root instance and unloads the library, an in-flight build is cancelled and its result discarded.
// Close is idempotent and must be called from the main context.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.cancel()
	var err error
	var module string
	if root := e.modules.Root(); root != nil {
		module = root.Path
	}
	if e.instance.Running() {
		e.emit(Event{Kind: EventInstanceStopping, Module: module, Library: e.loader.Path()})
		err = e.instance.StopRoot()
		e.emit(Event{Kind: EventInstanceStopped, Module: module, Library: e.loader.Path()})
	}
	if e.loader.Loaded() {
		prev := e.loader.Path()
		e.emit(Event{Kind: EventLibraryUnloading, Module: module, Library: prev})
		err = errors.Join(err, e.loader.Unload())
		e.emit(Event{Kind: EventLibraryUnloaded, Module: module, Library: prev})
	}
	e.state = Idle
	e.exit.Do(func() { close(e.done) })
	return err
}
