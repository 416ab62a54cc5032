package hotswap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("testdata/hotswap.toml")
	require.NoError(t, err)
	assert.Equal(t, "game/Foo.cpp", cfg.Root)
	assert.Equal(t, ToolMake, cfg.Tool)
	assert.Equal(t, LoaderShared, cfg.LoaderKind())
	assert.Equal(t, "main", cfg.Package, "defaults kept")
	assert.Equal(t, 500*time.Millisecond, cfg.Window.Duration())
	assert.Equal(t, 16*time.Millisecond, cfg.Tick.Duration())
	assert.Equal(t, []string{".cpp", ".h"}, cfg.Extensions)
	assert.Equal(t, 4, cfg.Jobs)
	assert.True(t, cfg.StrictExit)
	assert.True(t, cfg.Fixed)
	assert.Equal(t, "127.0.0.1:7777", cfg.Monitor)
	assert.False(t, cfg.Debug)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte(`window = "soon"`), 0o644))
	_, err = LoadConfig(bad)
	require.Error(t, err)

	mismatch := filepath.Join(dir, "mismatch.toml")
	require.NoError(t, os.WriteFile(mismatch, []byte("tool = \"make\"\nloader = \"linker\"\n"), 0o644))
	_, err = LoadConfig(mismatch)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, LoaderLinker, DefaultConfig().LoaderKind())
	for name, mutate := range map[string]func(c *Config){
		"tool":   func(c *Config) { c.Tool = "bazel" },
		"loader": func(c *Config) { c.Loader = "plugin" },
		"pair":   func(c *Config) { c.Loader = LoaderShared },
		"window": func(c *Config) { c.Window = -1 },
		"tick":   func(c *Config) { c.Tick = -1 },
		"jobs":   func(c *Config) { c.Jobs = -2 },
	} {
		c := DefaultConfig()
		mutate(&c)
		assert.ErrorIs(t, c.Validate(), ErrInvalidConfig, name)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(b))
	assert.Error(t, d.UnmarshalText([]byte("later")))
}
