package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ImportConfig is the build description of a Go object.
const ImportConfig = "importcfg"

// GoObject compiles all Go sources of the library directory into one relocatable object file, loadable by
// [github.com/ZenLiuCN/hotswap/library.Linker].
type GoObject struct {
	Package string //package path of the object, default main
	Go      string //go executable, default go
}

func (g GoObject) gobin() string {
	if g.Go == "" {
		return "go"
	}
	return g.Go
}
func (g GoObject) pkg() string {
	if g.Package == "" {
		return "main"
	}
	return g.Package
}

func (g GoObject) Extension() string {
	return ".o"
}

// ReportsExit is true: go tool compile prints "file:line:col: msg" and exits 1.
func (g GoObject) ReportsExit() bool {
	return true
}

// Describe generate importcfg of the sources in the library directory.
func (g GoObject) Describe(ctx context.Context, r Runner, m *Module, lib string) (err error) {
	dir := filepath.Dir(lib)
	var src []string
	if src, err = Sources(dir, ".go"); err != nil {
		return
	}
	if len(src) == 0 {
		return fmt.Errorf("%w in %s", ErrNoSources, dir)
	}
	var out string
	if out, err = r.Output(ctx, dir, g.gobin(), append([]string{"list", "-export", "-f", "{{.Imports}}"}, src...)...); err != nil {
		return fmt.Errorf("inspect imports: %w", err)
	}
	out = strings.TrimSpace(out)
	out = strings.TrimSuffix(strings.TrimPrefix(out, "["), "]")
	var cfg string
	if in := strings.Fields(out); len(in) > 0 {
		args := append([]string{"list", "-export", "-deps", "-f", "{{if .Export}}packagefile {{.ImportPath}}={{.Export}}{{end}}"}, in...)
		if cfg, err = r.Output(ctx, dir, g.gobin(), args...); err != nil {
			return fmt.Errorf("inspect dependencies: %w", err)
		}
	}
	return os.WriteFile(filepath.Join(dir, ImportConfig), []byte(cfg), 0o644)
}

func (g GoObject) Command(m *Module, lib string, jobs int) (name string, args []string, err error) {
	dir := filepath.Dir(lib)
	var src []string
	if src, err = Sources(dir, ".go"); err != nil {
		return
	}
	if len(src) == 0 {
		err = fmt.Errorf("%w in %s", ErrNoSources, dir)
		return
	}
	args = append([]string{
		"tool", "compile",
		"-importcfg", ImportConfig,
		"-p", g.pkg(),
		"-c=" + strconv.Itoa(jobs),
		"-o", filepath.Base(lib),
	}, src...)
	return g.gobin(), args, nil
}
