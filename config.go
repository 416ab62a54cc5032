package hotswap

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	ToolGo       = "go"     //compile Go sources to objects
	ToolMake     = "make"   //build native libraries with a generated Makefile
	LoaderLinker = "linker" //link Go objects with goloader
	LoaderShared = "shared" //open native shared libraries
)

// DefaultTick is the interval of the bundled main loop.
const DefaultTick = 50 * time.Millisecond

type (
	// Config of an engine, decoded from TOML.
	Config struct {
		Root       string   `toml:"root"`        //root module source
		Tool       string   `toml:"tool"`        //go or make
		Loader     string   `toml:"loader"`      //linker or shared, derived from Tool when empty
		Package    string   `toml:"package"`     //package path of Go objects
		Window     Duration `toml:"window"`      //debounce window
		Tick       Duration `toml:"tick"`        //main loop interval of [Engine.Run]
		Extensions []string `toml:"extensions"`  //build relevant extensions
		Jobs       int      `toml:"jobs"`        //build concurrency, processor count when zero
		StrictExit bool     `toml:"strict_exit"` //fail builds on non-zero exit status, always on for the go tool
		Fixed      bool     `toml:"fixed"`       //fixed entry point names create/destroy
		Monitor    string   `toml:"monitor"`     //event websocket listen address, disabled when empty
		Debug      bool     `toml:"debug"`
	}
	// Duration is a time.Duration that can be unmarshaled from TOML strings.
	Duration time.Duration
)

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Tool:       ToolGo,
		Package:    "main",
		Window:     Duration(DefaultWindow),
		Tick:       Duration(DefaultTick),
		Extensions: append([]string(nil), DefaultExtensions...),
	}
}

// LoadConfig decode the TOML file at path over [DefaultConfig].
func LoadConfig(path string) (cfg Config, err error) {
	cfg = DefaultConfig()
	if _, err = toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// LoaderKind returns the loader in use, derived from the tool when not set.
func (c Config) LoaderKind() string {
	if c.Loader != "" {
		return c.Loader
	}
	if c.Tool == ToolMake {
		return LoaderShared
	}
	return LoaderLinker
}

// Validate the configuration.
func (c Config) Validate() error {
	switch c.Tool {
	case ToolGo, ToolMake:
	default:
		return fmt.Errorf("%w: unknown tool %q", ErrInvalidConfig, c.Tool)
	}
	switch l := c.LoaderKind(); {
	case l != LoaderLinker && l != LoaderShared:
		return fmt.Errorf("%w: unknown loader %q", ErrInvalidConfig, l)
	case (l == LoaderLinker) != (c.Tool == ToolGo):
		return fmt.Errorf("%w: loader %s can't load libraries of tool %s", ErrInvalidConfig, l, c.Tool)
	}
	if c.Window < 0 {
		return fmt.Errorf("%w: negative window", ErrInvalidConfig)
	}
	if c.Tick < 0 {
		return fmt.Errorf("%w: negative tick", ErrInvalidConfig)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("%w: negative jobs", ErrInvalidConfig)
	}
	return nil
}
