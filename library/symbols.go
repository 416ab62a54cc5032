package library

import (
	"maps"
	"sync"

	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
)

// symbols is a goloader symbol table, name to address.
type symbols map[string]uintptr

var (
	hostOnce sync.Once
	hostMu   sync.Mutex
	host     symbols
	hostErr  error
)

func hostSymbols() (symbols, error) {
	hostOnce.Do(func() {
		host = make(symbols)
		hostErr = goloader.RegSymbol(host)
	})
	return host, hostErr
}

// NewSymbols clone the host executable symbols, each loaded object links against its own copy.
func NewSymbols() (symbols, error) {
	h, err := hostSymbols()
	if err != nil {
		return nil, err
	}
	hostMu.Lock()
	defer hostMu.Unlock()
	return maps.Clone(h), nil
}

// RegisterTypes register host types into the global symbols, so every later loaded object can use them.
func RegisterTypes(t ...any) error {
	h, err := hostSymbols()
	if err != nil {
		return err
	}
	hostMu.Lock()
	defer hostMu.Unlock()
	goloader.RegTypes(h, t...)
	return nil
}

// Symbols dump symbol names.
func (s symbols) Symbols() []string {
	return fn.MapKeys(s)
}
