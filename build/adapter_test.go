package build

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/ZenLiuCN/fn"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	calls    []call
	combined string
	err      error
	outputs  []string
}

func (f *fakeRunner) Combined(_ context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, call{dir, name, args})
	return f.combined, f.err
}

func (f *fakeRunner) Output(_ context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, call{dir, name, args})
	if len(f.outputs) == 0 {
		return "", nil
	}
	o := f.outputs[0]
	f.outputs = f.outputs[1:]
	return o, nil
}

func TestFailed(t *testing.T) {
	tests := []struct {
		output string
		failed bool
	}{
		{"Compilation complete", false},
		{"", false},
		{"Foo.cpp:3:1: error: expected ';'", true},
		{"fatal ERROR in linker", true},
		{"Compiling file obj/Errors.o", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.failed, Failed(tt.output), tt.output)
	}
}

func TestAdapterRootBuild(t *testing.T) {
	wd := fn.Panic1(os.Getwd())
	dir := t.TempDir()
	lib := filepath.Join(dir, "Foo.so")
	r := &fakeRunner{combined: "Linking objects\nCompilation complete\n"}
	a := &Adapter{Tool: Make{}, Runner: r, Jobs: 4}
	m := &Module{Path: filepath.Join(dir, "Foo.cpp"), Root: true}

	res := a.Build(context.Background(), m, lib)
	require.True(t, res.Success, res.Log)
	assert.Same(t, m, res.Module)
	assert.Equal(t, lib, res.Library)
	assert.False(t, res.Finished.Before(res.Started))

	require.Len(t, r.calls, 1)
	assert.Equal(t, dir, r.calls[0].dir)
	assert.Equal(t, []string{"-j4"}, r.calls[0].args)

	mk := fn.Panic1(os.ReadFile(filepath.Join(dir, Makefile)))
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "makefile", mk)

	out := fn.Panic1(os.ReadFile(filepath.Join(dir, LogFile)))
	assert.Equal(t, r.combined, string(out))
	assert.Equal(t, wd, fn.Panic1(os.Getwd()), "working directory preserved")
}

func TestAdapterFailure(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{combined: "Foo.cpp:3:1: Error: expected ';'\n"}
	a := &Adapter{Tool: Make{}, Runner: r}
	res := a.Build(context.Background(), &Module{Path: "Foo.cpp", Root: true}, filepath.Join(dir, "Foo.so"))
	assert.False(t, res.Success)
	assert.Equal(t, r.combined, res.Log)
	assert.Equal(t, []string{"-j" + strconv.Itoa(runtime.NumCPU())}, r.calls[0].args)
}

func TestAdapterAuxiliaryKeepsDescription(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{}
	a := &Adapter{Tool: Make{}, Runner: r}
	res := a.Build(context.Background(), &Module{Path: filepath.Join(dir, "util.h")}, filepath.Join(dir, "Foo.so"))
	assert.True(t, res.Success)
	_, err := os.Stat(filepath.Join(dir, Makefile))
	assert.True(t, os.IsNotExist(err))
}

func TestAdapterSpawnFailure(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{err: errors.New(`exec: "make": executable file not found in $PATH`)}
	a := &Adapter{Tool: Make{}, Runner: r}
	res := a.Build(context.Background(), &Module{Path: "Foo.cpp"}, filepath.Join(dir, "Foo.so"))
	assert.False(t, res.Success)
	assert.Contains(t, res.Log, "executable file not found")
}

func TestAdapterExitStatus(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{combined: "warning: unused variable\n", err: &exec.ExitError{}}
	a := &Adapter{Tool: Make{}, Runner: r}
	m := &Module{Path: "Foo.cpp"}
	assert.True(t, a.Build(context.Background(), m, filepath.Join(dir, "Foo.so")).Success, "exit status is not trusted")
	a.StrictExit = true
	assert.False(t, a.Build(context.Background(), m, filepath.Join(dir, "Foo.so")).Success)
}

func TestGoObject(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"foo.go", "helper.go", "foo_test.go", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("package main\n"), 0o644))
	}
	lib := filepath.Join(dir, "foo.o")
	r := &fakeRunner{outputs: []string{"[fmt github.com/ZenLiuCN/hotswap/library]\n", "packagefile fmt=/cache/fmt.a\n"}}
	a := &Adapter{Tool: GoObject{}, Runner: r, Jobs: 2}

	res := a.Build(context.Background(), &Module{Path: filepath.Join(dir, "foo.go"), Root: true}, lib)
	require.True(t, res.Success, res.Log)
	require.Len(t, r.calls, 3)
	assert.Equal(t, []string{"list", "-export", "-f", "{{.Imports}}", "foo.go", "helper.go"}, r.calls[0].args)
	assert.Equal(t, []string{"fmt", "github.com/ZenLiuCN/hotswap/library"}, r.calls[1].args[len(r.calls[1].args)-2:])
	assert.Equal(t, "go", r.calls[2].name)
	assert.Equal(t, "tool compile -importcfg importcfg -p main -c=2 -o foo.o foo.go helper.go", strings.Join(r.calls[2].args, " "))
	cfg := fn.Panic1(os.ReadFile(filepath.Join(dir, ImportConfig)))
	assert.Equal(t, "packagefile fmt=/cache/fmt.a\n", string(cfg))
}

func TestGoObjectNoSources(t *testing.T) {
	dir := t.TempDir()
	a := &Adapter{Tool: GoObject{}, Runner: &fakeRunner{}}
	res := a.Build(context.Background(), &Module{Path: filepath.Join(dir, "foo.go"), Root: true}, filepath.Join(dir, "foo.o"))
	assert.False(t, res.Success)
	assert.Contains(t, res.Log, ErrNoSources.Error())
}

func TestGoObjectAuxiliaryExitStatus(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"foo.go", "helper.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("package main\n"), 0o644))
	}
	r := &fakeRunner{combined: "helper.go:3:28: undefined: undefinedThing\n", err: &exec.ExitError{}}
	a := &Adapter{Tool: GoObject{}, Runner: r}
	res := a.Build(context.Background(), &Module{Path: filepath.Join(dir, "helper.go")}, filepath.Join(dir, "foo.o"))
	assert.False(t, res.Success, res.Log)
	assert.Contains(t, res.Log, "undefined: undefinedThing")
	require.Len(t, r.calls, 1, "auxiliary builds reuse importcfg")
}

func TestGoObjectBrokenAuxiliary(t *testing.T) {
	gobin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("missing go tool")
	}
	dir := t.TempDir()
	write := func(name, src string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	write("Foo.go", "package main\n\nimport \"strings\"\n\nfunc Foo() string { return strings.ToUpper(helper()) }\n")
	write("helper.go", "package main\n\nfunc helper() string { return \"foo\" }\n")
	a := &Adapter{Tool: GoObject{Go: gobin}, Runner: Exec{}}
	lib := filepath.Join(dir, "Foo.o")

	res := a.Build(context.Background(), &Module{Path: filepath.Join(dir, "Foo.go"), Root: true}, lib)
	if !res.Success {
		t.Skipf("go toolchain unusable here:\n%s", res.Log)
	}

	write("helper.go", "package main\n\nfunc helper() string { return undefinedThing }\n")
	res = a.Build(context.Background(), &Module{Path: filepath.Join(dir, "helper.go")}, lib)
	assert.False(t, res.Success, res.Log)
	assert.Contains(t, res.Log, "undefined: undefinedThing")
	out := fn.Panic1(os.ReadFile(filepath.Join(dir, LogFile)))
	assert.Equal(t, res.Log, string(out))
}

func TestExecCombined(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	out, err := Exec{}.Combined(context.Background(), dir, "sh", "-c", "pwd; echo oops 1>&2")
	require.NoError(t, err)
	resolved := fn.Panic1(filepath.EvalSymlinks(dir))
	assert.Contains(t, out, "oops")
	assert.Contains(t, out, filepath.Base(resolved))
	_, err = Exec{}.Output(context.Background(), dir, "sh", "-c", "echo bad 1>&2; exit 3")
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Stderr, "bad")
}
