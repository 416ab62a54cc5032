package library

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"
)

type (
	// Object is the root object a module library hands out through its create entry point.
	Object interface {
		Start()
		Stop()
	}
	// Loader keeps at most one loaded library and resolves its create/destroy entry points.
	//
	// Note:
	//
	//	1. Loader is not thread-safe, all calls must come from the same execution context.
	//	2. Load on a loaded Loader unloads the previous library first.
	Loader interface {
		Load(path string) error               //open library at path and resolve entry points
		Unload() error                        //close the loaded library, no-op when nothing loaded
		Loaded() bool                         //a library is loaded
		Path() string                         //logical path of the loaded library
		CreateObject(ctx any) (Object, error) //call the create entry point, nil Object when the module returns none
		DestroyObject(o Object) error         //call the destroy entry point
		PrepareRebuild(path string) error     //make path writable for a build that targets it
	}
	// Naming derives entry point names from a library path.
	Naming struct {
		Fixed    bool //use fixed names instead of names derived from the library base name
		Exported bool //capitalize prefixes, required for Go objects
	}
)

var (
	// ErrMissingSymbol occurs when an entry point can't be resolved.
	ErrMissingSymbol = errors.New("missing symbol")
	// ErrNotLoaded occurs when calling entry points without a loaded library.
	ErrNotLoaded = errors.New("library not loaded")
	// ErrForeignObject occurs when destroying an Object created by another loader.
	ErrForeignObject = errors.New("object not created by this loader")
	// ErrContext occurs when the host context can't be passed to a native library.
	ErrContext = errors.New("unsupported host context")
	// ErrUnsupported occurs when shared libraries are not supported on the platform.
	ErrUnsupported = errors.New("shared libraries unsupported on this platform")
)

// Name returns the library base name without extension, e.g. Foo for /lib/Foo.so.
func Name(path string) string {
	b := filepath.Base(path)
	if i := strings.IndexByte(b, '.'); i > 0 {
		return b[:i]
	}
	return b
}

// Names returns the create and destroy entry point names for the library at path.
func (n Naming) Names(path string) (create, destroy string) {
	create, destroy = "create", "destroy"
	if n.Exported {
		create, destroy = "Create", "Destroy"
	}
	if n.Fixed {
		return
	}
	name := Name(path)
	if n.Exported && name != "" {
		r := []rune(name)
		r[0] = unicode.ToUpper(r[0])
		name = string(r)
	}
	return create + name, destroy + name
}
