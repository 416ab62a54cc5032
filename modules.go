package hotswap

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/ZenLiuCN/fn"
	"github.com/ZenLiuCN/hotswap/build"
)

// Modules is the registry of source modules referenced by an engine, keyed by absolute path.
type Modules struct {
	sync.RWMutex
	modules map[string]*build.Module
	root    *build.Module
}

// NewModules create an empty registry.
func NewModules() *Modules {
	return &Modules{modules: make(map[string]*build.Module)}
}

func key(path string) string {
	if p, err := filepath.Abs(path); err == nil {
		return p
	}
	return filepath.Clean(path)
}

// RegisterRoot register the root module, only one root may exist.
func (p *Modules) RegisterRoot(path string) (*build.Module, error) {
	p.Lock()
	defer p.Unlock()
	k := key(path)
	if p.root != nil {
		if p.root.Path == k {
			return p.root, nil
		}
		return nil, ErrRootExists
	}
	m, ok := p.modules[k]
	if !ok {
		m = &build.Module{Path: k}
		p.modules[k] = m
	}
	m.Root = true
	p.root = m
	return m, nil
}

// Require returns the module at path, created as auxiliary module on first reference.
func (p *Modules) Require(path string) *build.Module {
	k := key(path)
	p.RLock()
	m, ok := p.modules[k]
	p.RUnlock()
	if ok {
		return m
	}
	p.Lock()
	defer p.Unlock()
	if m, ok = p.modules[k]; !ok {
		m = &build.Module{Path: k}
		p.modules[k] = m
	}
	return m
}

// Root module, nil before registration.
func (p *Modules) Root() *build.Module {
	p.RLock()
	defer p.RUnlock()
	return p.root
}

// Record the library of the last successful build of m.
func (p *Modules) Record(m *build.Module, lib string) {
	p.Lock()
	defer p.Unlock()
	m.Library = lib
}

// List modules ordered by path.
func (p *Modules) List() []*build.Module {
	p.RLock()
	defer p.RUnlock()
	k := fn.MapKeys(p.modules)
	slices.Sort(k)
	v := make([]*build.Module, 0, len(k))
	for _, s := range k {
		v = append(v, p.modules[s])
	}
	return v
}

// libraryPath returns the library produced for root: next to the source, named after it with ext.
func libraryPath(root, ext string) string {
	dir, name := filepath.Split(root)
	return filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+ext)
}
