// Package build compiles source modules into loadable libraries through an external build tool.
package build

import (
	"time"

	"github.com/google/uuid"
)

type (
	// Module is one compilable source unit tracked by an engine.
	Module struct {
		Path    string //source file
		Root    bool   //the module whose object is started and stopped
		Library string //library of the last successful build, empty before
	}
	// Result is the outcome of one build attempt, immutable once produced.
	Result struct {
		ID       uuid.UUID
		Module   *Module
		Library  string
		Success  bool
		Log      string //combined output of the build tool
		Started  time.Time
		Finished time.Time
	}
)

// Name of the module, the source file base name.
func (m *Module) Name() string {
	if m == nil {
		return ""
	}
	return baseName(m.Path)
}

// Elapsed build duration.
func (r Result) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}
