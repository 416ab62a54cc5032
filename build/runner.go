package build

import (
	"bytes"
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner spawns build tool processes.
type Runner interface {
	// Combined run name inside dir and capture stdout and stderr together.
	Combined(ctx context.Context, dir, name string, args ...string) (string, error)
	// Output run name inside dir and capture stdout only.
	Output(ctx context.Context, dir, name string, args ...string) (string, error)
}

// Exec is the [Runner] on [os/exec]. The process working directory is never changed, commands are pinned with [exec.Cmd.Dir].
type Exec struct {
	Env   []string //extra environment
	Debug bool
}

func (e Exec) command(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	if e.Debug {
		log.Printf("execute in %s: %v", dir, cmd.Args)
	}
	return cmd
}

func (e Exec) Combined(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := e.command(ctx, dir, name, args...)
	var b bytes.Buffer
	cmd.Stdout = &b
	cmd.Stderr = &b
	err := cmd.Run()
	return b.String(), err
}

func (e Exec) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := e.command(ctx, dir, name, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return out.String(), &CommandError{Args: cmd.Args, Stderr: stderr.String(), Err: err}
	}
	return out.String(), nil
}

// CommandError carries stderr of a failed [Runner.Output].
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (c *CommandError) Error() string {
	return strings.Join(c.Args, " ") + ": " + c.Err.Error() + "\n" + c.Stderr
}
func (c *CommandError) Unwrap() error {
	return c.Err
}

// Sources list files with ext inside dir, test files excluded.
func Sources(dir string, ext ...string) (v []string, err error) {
	var e []os.DirEntry
	if e, err = os.ReadDir(dir); err != nil {
		return
	}
	for _, entry := range e {
		if entry.IsDir() {
			continue
		}
		n := entry.Name()
		if strings.HasSuffix(n, "_test.go") {
			continue
		}
		for _, x := range ext {
			if filepath.Ext(n) == x {
				v = append(v, n)
				break
			}
		}
	}
	return
}

func baseName(p string) string {
	b := filepath.Base(p)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
