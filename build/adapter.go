package build

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LogFile is written next to the library after every build, overwriting the previous one.
const LogFile = "Build.log"

var (
	// ErrNoSources occurs when the library directory holds no source to build.
	ErrNoSources = errors.New("no sources")
)

// Tool is one external build system.
type Tool interface {
	// Describe generate or refresh the build description inside the library directory, pinned to the library name.
	Describe(ctx context.Context, r Runner, m *Module, lib string) error
	// Command returns the build command line producing lib with jobs concurrency.
	Command(m *Module, lib string, jobs int) (name string, args []string, err error)
	// Extension of produced libraries.
	Extension() string
}

// ExitReporter is implemented by tools whose diagnostics don't always say "error" but whose exit status is reliable.
type ExitReporter interface {
	ReportsExit() bool
}

// Adapter runs a [Tool] and classifies its outcome.
//
// A build fails if and only if the captured output contains "error" (case-insensitive): some tools exit 0 while
// reporting errors. Output mentioning the word outside a diagnostic is misclassified as a failure. A non-zero exit
// status appends an error line when StrictExit is set or the tool is an [ExitReporter], so the go compiler's
// "undefined: x" still fails the build.
type Adapter struct {
	Tool       Tool
	Runner     Runner
	Jobs       int  //build concurrency, processor count when zero
	StrictExit bool //a non-zero exit status is reported as an error too
	Debug      bool
}

// NewAdapter create an Adapter running tool with [Exec].
func NewAdapter(tool Tool, debug bool) *Adapter {
	return &Adapter{Tool: tool, Runner: Exec{Debug: debug}, Debug: debug}
}

// Extension of libraries produced by the tool.
func (a *Adapter) Extension() string {
	return a.Tool.Extension()
}

func (a *Adapter) jobs() int {
	if a.Jobs > 0 {
		return a.Jobs
	}
	return runtime.NumCPU()
}

// Build module m into lib. Failures never escape: they are reported by [Result.Success] and [Result.Log].
func (a *Adapter) Build(ctx context.Context, m *Module, lib string) (r Result) {
	r = Result{ID: uuid.New(), Module: m, Library: lib, Started: time.Now()}
	dir := filepath.Dir(lib)
	defer func() {
		r.Finished = time.Now()
		r.Success = !Failed(r.Log)
		if err := os.WriteFile(filepath.Join(dir, LogFile), []byte(r.Log), 0o644); err != nil {
			log.Printf("write build log: %v", err)
		}
		if a.Debug {
			log.Printf("build %s of %s finished in %s, success %t:\n%s", r.ID, m.Name(), r.Elapsed(), r.Success, r.Log)
		}
	}()
	if m.Root {
		if err := a.Tool.Describe(ctx, a.Runner, m, lib); err != nil {
			r.Log = fmt.Sprintf("error: generate build description: %v\n", err)
			return
		}
	}
	name, args, err := a.Tool.Command(m, lib, a.jobs())
	if err != nil {
		r.Log = fmt.Sprintf("error: %v\n", err)
		return
	}
	if a.Debug {
		log.Printf("compiling using command line: %s %s", name, strings.Join(args, " "))
	}
	r.Log, err = a.Runner.Combined(ctx, dir, name, args...)
	if err != nil {
		var exit *exec.ExitError
		if !errors.As(err, &exit) || a.strict() {
			r.Log += fmt.Sprintf("\nerror: %s: %v\n", name, err)
		}
	}
	return
}

func (a *Adapter) strict() bool {
	if a.StrictExit {
		return true
	}
	x, ok := a.Tool.(ExitReporter)
	return ok && x.ReportsExit()
}

// Failed reports whether build output contains an error.
func Failed(output string) bool {
	return strings.Contains(strings.ToLower(output), "error")
}
