package hotswap

import "errors"

var (
	// ErrFirstBuild occurs when the first build of a session fails, there is no code to run.
	ErrFirstBuild = errors.New("first build failed")
	// ErrFirstLoad occurs when the library of the first build can't be loaded.
	ErrFirstLoad = errors.New("first load failed")
	// ErrNoInstance occurs when the create entry point yields no root object.
	ErrNoInstance = errors.New("no root instance created")
	// ErrRootExists occurs when registering a second root module.
	ErrRootExists = errors.New("root module already registered")
	// ErrClosed occurs when executing a closed engine.
	ErrClosed = errors.New("engine closed")
	// ErrInvalidConfig occurs when a [Config] can't drive an engine.
	ErrInvalidConfig = errors.New("invalid config")
)
