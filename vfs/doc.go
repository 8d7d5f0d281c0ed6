// Package vfs implements the virtual filesystem bridge: an in-process, flat,
// string-keyed namespace used to pass byte buffers into and out of an engine.
//
// Nothing touches a real disk. Every write stores a private copy and every
// read returns a fresh copy, because host and engine work on independent
// memory arenas. The last write to a path wins. Reading a path that was never
// written (or was removed) fails with a namespace error.
//
// The same namespace is visible to the engine in two ways:
//
//   - the "bridge" host module (see HostModuleName), whose fs_* functions
//     take NUL-terminated paths in engine memory;
//   - SysFS, a writable view that WASI engines see as a preopen, so plain
//     fopen/fwrite output lands in the namespace when the file is closed.
//
// One FS belongs to exactly one engine handle. Callers serialize operations
// on a handle; the internal lock only keeps the map memory-safe.
package vfs
