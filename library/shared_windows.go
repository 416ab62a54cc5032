//go:build windows

package library

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/windows"
)

func (s *Shared) open(path string) (uintptr, error) {
	h, err := windows.LoadLibrary(path)
	return uintptr(h), err
}

// PrepareRebuild rename the loaded file out of the way, a mapped dll can't be overwritten by the next build.
// The renamed file is deleted once the library is unloaded.
func (s *Shared) PrepareRebuild(path string) error {
	if s.handle == 0 || filepath.Clean(path) != filepath.Clean(s.path) {
		return nil
	}
	stale := fmt.Sprintf("%s.%d.old", path, seq.Add(1))
	if err := os.Rename(path, stale); err != nil {
		return fmt.Errorf("rename loaded library %s: %w", path, err)
	}
	if s.debug {
		log.Printf("renamed loaded library %s to %s", path, stale)
	}
	s.stale = append(s.stale, stale)
	return nil
}

func (s *Shared) cleanup() {
	for _, f := range s.stale {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			log.Printf("remove stale library %s: %v", f, err)
		}
	}
	s.stale = s.stale[:0]
}

func dlSym(h uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(h), name)
}

func dlClose(h uintptr) error {
	return windows.FreeLibrary(windows.Handle(h))
}

func call(fn uintptr, args ...uintptr) uintptr {
	r, _, _ := syscall.SyscallN(fn, args...)
	return r
}
