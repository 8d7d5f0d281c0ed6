// Package loader brings an engine up at most once and hands the same Handle
// to every caller.
//
// A Loader moves through these states:
//
//	Uninitialized -> Initializing -> Ready
//	                              -> Failed -> Initializing (on the next call)
//	any state except Initializing -> Disposed (Close)
//
// Callers that arrive while a bootstrap is in flight wait for that attempt and
// observe its outcome; they never start a second one. A failed attempt leaves
// the loader in Failed so that a later call may retry, since the cause (a
// network fetch of the engine image, for example) may be transient. Ready is
// reused until Close.
//
// The bootstrap runs on the context of the caller that started it. A waiter
// whose own context ends stops waiting without affecting the attempt.
//
// Lifecycle events are delivered to observers and logged. They are diagnostic
// only.
//
// Most programs use the process-wide loader:
//
//	loader.Configure(loader.FromConfig(engine.Config{Source: engine.FileSource("engine.wasm")}))
//	h, err := loader.Initialize(ctx)
package loader
