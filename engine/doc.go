// Package engine runs an opaque binary processing engine compiled to a core
// WebAssembly module.
//
// Open performs the whole bootstrap: it loads the image from a Source,
// compiles it with wazero, checks its imports, registers the host modules it
// needs and instantiates it. The result is a Handle holding:
//
//	capability table  - every exported function except toolchain plumbing
//	bridge namespace  - a private vfs.FS, reachable from the engine
//	allocator         - the engine's malloc/free (or cabi_realloc)
//
// # Host Modules
//
// The engine may import from three modules and nothing else:
//
//	bridge                  fs_size, fs_read, fs_write, fs_unlink (see vfs)
//	env                     report_error(msg), abort(), and the emscripten
//	                        runtime: emscripten_notify_memory_growth,
//	                        _emscripten_throw_longjmp, invoke_*
//	wasi_snapshot_preview1  any WASI preview1 function
//
// Any other import fails bootstrap with a MissingImportsError cause.
//
// WASI engines also see the bridge namespace as a writable preopen at "/"
// (a file the engine creates and closes there is readable by the host), and
// Config.AssetsDir read-only at Config.AssetsMount. Engine stdout and
// stderr are forwarded to the package logger at debug level.
//
// # Faults
//
// env.report_error records a diagnostic for the running call; TakeFault
// returns and clears what was recorded. env.abort ends the call with an
// error wrapping ErrAborted.
//
// # Lifecycle
//
// A Handle has no engine-side shutdown. Close releases the wazero runtime and
// the compilation cache; the loader package drives it when a loader is
// disposed.
package engine
