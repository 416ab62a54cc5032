package library

import (
	"fmt"
	"log"
	"os"
	"strings"
	"unsafe"

	"github.com/pkujhd/goloader"
)

type (
	//Sym is a simple alias of uintptr.
	Sym uintptr
	// Creator is the Go signature of the create entry point.
	Creator = func(ctx any) Object
	// Destroyer is the Go signature of the destroy entry point.
	Destroyer = func(o Object)
	// Linker loads relocatable Go object files (or archives) with the [goloader] runtime linker.
	//
	// Objects are read from disk on every Load, so a rebuilt file at the same path is always linked with its new content.
	//
	// Note:
	//
	//	1. The object must export Create<Name>/Destroy<Name> (or Create/Destroy in fixed mode).
	//	2. Sym must be fetched and used directly, the cast result is never cached.
	//
	// [goloader]: https://github.com/pkujhd/goloader
	Linker struct {
		Naming
		pkg     string
		types   []any
		debug   bool
		path    string
		symbols symbols
		linker  *goloader.Linker
		module  *goloader.CodeModule
		create  string
		destroy string
	}
)

// NewLinker create a Linker for objects compiled with package path pkg ("main" when empty).
// Extra types are registered into each object's symbol table, [Object] is always registered.
func NewLinker(pkg string, naming Naming, debug bool, types ...any) *Linker {
	if pkg == "" {
		pkg = "main"
	}
	naming.Exported = true
	var o Object
	return &Linker{
		Naming: naming,
		pkg:    pkg,
		types:  append([]any{&o}, types...),
		debug:  debug,
	}
}

func (s *Linker) Loaded() bool {
	return s.module != nil
}
func (s *Linker) Path() string {
	return s.path
}

// PrepareRebuild does nothing: object files are read into memory and never stay mapped.
func (s *Linker) PrepareRebuild(string) error {
	return nil
}

func (s *Linker) Load(path string) (err error) {
	if err = s.Unload(); err != nil {
		return
	}
	if s.symbols, err = NewSymbols(); err != nil {
		return
	}
	if s.debug {
		log.Println("register types", s.types)
	}
	goloader.RegTypes(s.symbols, s.types...)
	if s.linker, err = goloader.ReadObj(path, s.pkg); err != nil {
		s.reset()
		return fmt.Errorf("read object %s: %w", path, err)
	}
	if s.module, err = goloader.Load(s.linker, s.symbols); err != nil {
		if s.debug {
			log.Printf("missing symbols of %s: %v", path, goloader.UnresolvedSymbols(s.linker, s.symbols))
		}
		s.reset()
		return fmt.Errorf("link object %s: %w", path, err)
	}
	if s.debug {
		log.Printf("create module: %+v", s.module)
	}
	s.create, s.destroy = s.Names(path)
	for _, name := range []string{s.create, s.destroy} {
		if _, ok := s.Fetch(name); !ok {
			_ = s.Unload()
			return fmt.Errorf("%w: %s in %s", ErrMissingSymbol, name, path)
		}
	}
	s.path = path
	return
}

func (s *Linker) Unload() error {
	if s.module != nil {
		if s.debug {
			log.Printf("unload module: %s", s.path)
		}
		_ = os.Stdout.Sync()
		s.module.Unload()
	}
	s.reset()
	return nil
}

func (s *Linker) reset() {
	s.module = nil
	s.linker = nil
	s.symbols = nil
	s.path = ""
	s.create = ""
	s.destroy = ""
}

// Fetch a symbol of the linked module, names without package are looked up in the object package.
func (s *Linker) Fetch(sym string) (u Sym, ok bool) {
	if s.module == nil {
		return
	}
	sym = s.qualify(sym)
	var p uintptr
	p, ok = s.module.Syms[sym]
	if !ok {
		return
	}
	if s.debug {
		log.Printf("found symbol %s: %x", sym, p)
	}
	return (Sym)(unsafe.Pointer(&p)), ok
}

func (s *Linker) qualify(sym string) string {
	if strings.IndexByte(sym, '.') < 0 {
		return s.pkg + "." + sym
	}
	return sym
}

// Exports dump symbols exported by the linked module.
func (s *Linker) Exports() []string {
	if s.module == nil {
		return nil
	}
	v := make([]string, 0, len(s.module.Syms))
	for k := range s.module.Syms {
		v = append(v, k)
	}
	return v
}

func (s *Linker) CreateObject(ctx any) (o Object, err error) {
	p, ok := s.Fetch(s.create)
	if !ok {
		return nil, ErrNotLoaded
	}
	err = guard(s.create, func() {
		o = As[Creator](p)(ctx)
	})
	return
}

func (s *Linker) DestroyObject(o Object) error {
	p, ok := s.Fetch(s.destroy)
	if !ok {
		return ErrNotLoaded
	}
	return guard(s.destroy, func() {
		As[Destroyer](p)(o)
	})
}

// As convert fetched Sym to contract type
func As[T any](ptr Sym) (x T) {
	px := (*T)(unsafe.Pointer(&ptr))
	x = *px
	return
}

// guard run module code, a panic inside is returned as error.
func guard(name string, f func()) (err error) {
	defer func() {
		switch y := recover().(type) {
		case nil:
		case error:
			err = fmt.Errorf("%s panic: %w", name, y)
		default:
			err = fmt.Errorf("%s panic: %v", name, y)
		}
	}()
	f()
	return
}
