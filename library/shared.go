package library

import (
	"fmt"
	"log"
	"sync/atomic"
	"unsafe"
)

// Shared loads native shared libraries exporting C entry points:
//
//	void* create<Name>(void* ctx);
//	void  destroy<Name>(void* object);
//
// The created object must begin with its start and stop functions:
//
//	typedef struct object {
//	    void (*start)(struct object*);
//	    void (*stop)(struct object*);
//	} object;
//
// Platform quirks are handled per platform: on unix every load opens a fresh alias copy, since dlopen caches handles by
// path; on windows PrepareRebuild renames the mapped file away and Unload deletes it.
type Shared struct {
	Naming
	debug   bool
	path    string
	handle  uintptr
	create  uintptr
	destroy uintptr
	stale   []string
}

// seq makes every alias and renamed-away path unique inside the process.
var seq atomic.Uint64

// NewShared create a Shared loader.
func NewShared(naming Naming, debug bool) *Shared {
	return &Shared{Naming: naming, debug: debug}
}

func (s *Shared) Loaded() bool {
	return s.handle != 0
}
func (s *Shared) Path() string {
	return s.path
}

func (s *Shared) Load(path string) (err error) {
	if err = s.Unload(); err != nil {
		return
	}
	var h uintptr
	if h, err = s.open(path); err != nil {
		return fmt.Errorf("open library %s: %w", path, err)
	}
	cn, dn := s.Names(path)
	var c, d uintptr
	if c, err = dlSym(h, cn); err == nil && c != 0 {
		d, err = dlSym(h, dn)
	}
	if err != nil || c == 0 || d == 0 {
		if e := dlClose(h); e != nil {
			log.Printf("close library %s: %v", path, e)
		}
		return fmt.Errorf("%w: %s/%s in %s", ErrMissingSymbol, cn, dn, path)
	}
	if s.debug {
		log.Printf("loaded library %s: create=%x destroy=%x", path, c, d)
	}
	s.handle, s.create, s.destroy, s.path = h, c, d, path
	return nil
}

func (s *Shared) Unload() (err error) {
	if s.handle != 0 {
		if s.debug {
			log.Printf("unload library %s", s.path)
		}
		if err = dlClose(s.handle); err != nil {
			err = fmt.Errorf("close library %s: %w", s.path, err)
		}
		s.handle, s.create, s.destroy, s.path = 0, 0, 0, ""
	}
	s.cleanup()
	return
}

func (s *Shared) CreateObject(ctx any) (o Object, err error) {
	if s.create == 0 {
		return nil, ErrNotLoaded
	}
	var c uintptr
	if c, err = nativeContext(ctx); err != nil {
		return
	}
	p := call(s.create, c)
	if p == 0 {
		return nil, nil
	}
	return &native{ptr: p}, nil
}

func (s *Shared) DestroyObject(o Object) error {
	if s.destroy == 0 {
		return ErrNotLoaded
	}
	n, ok := o.(*native)
	if !ok {
		return ErrForeignObject
	}
	call(s.destroy, n.ptr)
	n.ptr = 0
	return nil
}

// native is an object created inside a shared library.
type native struct {
	ptr uintptr
}

func (n *native) Start() {
	if n.ptr != 0 {
		call(slot(n.ptr, 0), n.ptr)
	}
}
func (n *native) Stop() {
	if n.ptr != 0 {
		call(slot(n.ptr, 1), n.ptr)
	}
}

// slot read the i-th function pointer at the head of a native object.
func slot(ptr uintptr, i int) uintptr {
	return *(*uintptr)(unsafe.Pointer(ptr + uintptr(i)*unsafe.Sizeof(ptr)))
}

func nativeContext(ctx any) (uintptr, error) {
	switch v := ctx.(type) {
	case nil:
		return 0, nil
	case uintptr:
		return v, nil
	case unsafe.Pointer:
		return uintptr(v), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrContext, ctx)
	}
}
