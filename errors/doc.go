// Package errors provides structured error types for the engine bridge.
//
// Errors are categorized by Phase (where the failure happened: bootstrap,
// namespace, invocation, host I/O) and Kind (error category). Callers can tell
// a caller bug from an engine failure from an environment failure by looking
// at the phase alone.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseInvocation, errors.KindTypeMismatch).
//		Op("merge").
//		Detail("argument %d: want i32, got f64", 2).
//		Build()
//
// Or use the taxonomy constructors:
//
//	err := errors.NamespaceFailure("/input.pdf")
//	err := errors.UnsupportedOperation("merge")
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind, so the exported sentinels work as targets:
//
//	if errors.Is(err, errors.ErrNamespace) { ... }
package errors
