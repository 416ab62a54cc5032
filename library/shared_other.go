//go:build !(linux || darwin || windows)

package library

func (s *Shared) open(string) (uintptr, error) {
	return 0, ErrUnsupported
}

func (s *Shared) PrepareRebuild(string) error {
	return nil
}

func (s *Shared) cleanup() {}

func dlSym(uintptr, string) (uintptr, error) {
	return 0, ErrUnsupported
}

func dlClose(uintptr) error {
	return ErrUnsupported
}

func call(uintptr, ...uintptr) uintptr {
	return 0
}
