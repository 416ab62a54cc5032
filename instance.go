package hotswap

import (
	"errors"
	"fmt"
	"log"

	"github.com/ZenLiuCN/hotswap/library"
)

// Instance owns the single live root object of an engine.
type Instance struct {
	loader library.Loader
	host   any
	object library.Object
	name   string
	debug  bool
}

// NewInstance create an Instance creating root objects through loader, host is passed to the create entry point.
func NewInstance(loader library.Loader, host any, debug bool) *Instance {
	return &Instance{loader: loader, host: host, debug: debug}
}

// Running reports whether a root object is live.
func (i *Instance) Running() bool {
	return i.object != nil
}

// Name of the running root module.
func (i *Instance) Name() string {
	return i.name
}

// StartRoot create the root object when none exists, then start it.
// A failed creation is wrapped with [ErrNoInstance], a panic inside Start is returned as a plain error.
func (i *Instance) StartRoot(name string) error {
	if i.object != nil {
		return nil
	}
	o, err := i.loader.CreateObject(i.host)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNoInstance, name, err)
	}
	if o == nil {
		log.Printf("couldn't create root object %s", name)
		return fmt.Errorf("%w: %s", ErrNoInstance, name)
	}
	i.object, i.name = o, name
	if i.debug {
		log.Printf("starting root object %s", name)
	}
	return recovered(name+" start", o.Start)
}

// StopRoot stop and destroy the root object, no-op when none exists.
func (i *Instance) StopRoot() error {
	if i.object == nil {
		return nil
	}
	o, name := i.object, i.name
	i.object, i.name = nil, ""
	if i.debug {
		log.Printf("stopping root object %s", name)
	}
	err := recovered(name+" stop", o.Stop)
	if e := i.loader.DestroyObject(o); e != nil {
		err = errors.Join(err, fmt.Errorf("destroy %s: %w", name, e))
	}
	return err
}

// recovered run module code, a panic inside is returned as error.
func recovered(what string, f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panic: %v", what, r)
		}
	}()
	f()
	return
}
