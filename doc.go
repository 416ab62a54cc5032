/*
Package hotswap is a live recompilation engine: a long-running host replaces a piece of its own code without restarting.

A root module source is built into a library, the library is loaded and its root object started. Whenever a source
changes, the module is rebuilt on a worker goroutine, the running object is stopped and destroyed, the library is
unloaded, the new one loaded and a fresh root object started, all while the host keeps running.

# Underwater

 1. Go sources are compiled by the go tool into relocatable object files and linked at runtime by [goloader].
 2. C or C++ sources are built by make with a generated Makefile into native shared libraries opened without cgo.
 3. Every library mutation happens inside [Engine.Tick] on the host main context, the build worker only hands over
    its result.

# Notes

 1. The first build of a session is fatal on failure, later failures keep the last good library running.
 2. A build fails when its output contains "error", whatever the exit status. A non-zero exit fails it too
    with StrictExit set or with the go tool, whose diagnostics never say "error".
 3. Change storms are folded by a debounce window shared by all paths, changes during a build are dropped.
 4. Linking Go objects needs a prepared go sdk, see the prepare and clean commands of cmd/hotswap.

# Module entry points

Go objects export, with Name the base name of the root source:

	func CreateName(ctx any) library.Object
	func DestroyName(o library.Object)

Native libraries export create<Name> and destroy<Name>, see [library.Shared].
With fixed naming both use Create/Destroy or create/destroy.

# Samples

See testdata and tests.

[goloader]: https://github.com/pkujhd/goloader
*/
package hotswap
