//go:build linux || darwin

package library

import (
	"fmt"
	"os"

	"github.com/ebitengine/purego"
)

// open the library through an alias never used before: dlopen returns the cached handle for a known path,
// even after the file was rebuilt.
func (s *Shared) open(path string) (uintptr, error) {
	alias := fmt.Sprintf("%s.%d", path, seq.Add(1))
	if err := CopyFile(path, alias, nil); err != nil {
		return 0, err
	}
	defer os.Remove(alias)
	return purego.Dlopen(alias, purego.RTLD_NOW|purego.RTLD_LOCAL)
}

// PrepareRebuild does nothing, a mapped file can be replaced on unix.
func (s *Shared) PrepareRebuild(string) error {
	return nil
}

func (s *Shared) cleanup() {}

func dlSym(h uintptr, name string) (uintptr, error) {
	return purego.Dlsym(h, name)
}

func dlClose(h uintptr) error {
	return purego.Dlclose(h)
}

func call(fn uintptr, args ...uintptr) uintptr {
	r, _, _ := purego.SyscallN(fn, args...)
	return r
}
