package main

import (
	"flag"
	"testing"
	"time"

	"github.com/ZenLiuCN/hotswap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func cliContext(t *testing.T, cmd string, args ...string) *cli.Context {
	t.Helper()
	a := app()
	c := a.Command(cmd)
	require.NotNil(t, c)
	set := flag.NewFlagSet(cmd, flag.ContinueOnError)
	for _, f := range c.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	ctx := cli.NewContext(a, set, nil)
	ctx.Command = c
	return ctx
}

func TestConfigFromFlags(t *testing.T) {
	cfg, err := config(cliContext(t, "run", "-tool", "make", "-window", "300ms", "-monitor", ":7777", "-fixed", "-jobs", "2", "src/Foo.cpp"))
	require.NoError(t, err)
	assert.Equal(t, "src/Foo.cpp", cfg.Root)
	assert.Equal(t, hotswap.ToolMake, cfg.Tool)
	assert.Equal(t, hotswap.LoaderShared, cfg.LoaderKind())
	assert.Equal(t, 300*time.Millisecond, cfg.Window.Duration())
	assert.Equal(t, ":7777", cfg.Monitor)
	assert.True(t, cfg.Fixed)
	assert.Equal(t, 2, cfg.Jobs)
}

func TestConfigFileOverridden(t *testing.T) {
	cfg, err := config(cliContext(t, "run", "-config", "../../testdata/hotswap.toml", "-tool", "go", "src/Foo.go"))
	require.NoError(t, err)
	assert.Equal(t, "src/Foo.go", cfg.Root)
	assert.Equal(t, hotswap.ToolGo, cfg.Tool)
	assert.Equal(t, hotswap.LoaderLinker, cfg.LoaderKind())
	assert.Equal(t, 4, cfg.Jobs, "file value kept")
}

func TestConfigMissingRoot(t *testing.T) {
	_, err := config(cliContext(t, "build"))
	require.ErrorIs(t, err, hotswap.ErrInvalidConfig)
}
