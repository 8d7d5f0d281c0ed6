package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBootstrap  Phase = "bootstrap"  // engine image load, compile, instantiate
	PhaseNamespace  Phase = "namespace"  // virtual filesystem access
	PhaseInvocation Phase = "invocation" // marshaling and calling engine exports
	PhaseHostIO     Phase = "hostio"     // host-side sources and sinks
	PhaseConfig     Phase = "config"     // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindBootstrapFailure Kind = "bootstrap_failure"
	KindNotFound         Kind = "not_found"
	KindUnsupported      Kind = "unsupported_operation"
	KindEngineFault      Kind = "engine_fault"
	KindSourceUnreadable Kind = "source_unreadable"
	KindSinkFailed       Kind = "sink_failed"
	KindTypeMismatch     Kind = "type_mismatch"
	KindInvalidInput     Kind = "invalid_input"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindAllocation       Kind = "allocation"
	KindMissingImport    Kind = "missing_import"
	KindNotInitialized   Kind = "not_initialized"
	KindDisposed         Kind = "disposed"
	KindCanceled         Kind = "canceled"
	KindInvalidData      Kind = "invalid_data"
)

// Sentinels for errors.Is. Only Phase and Kind take part in matching.
var (
	ErrBootstrap        = &Error{Phase: PhaseBootstrap, Kind: KindBootstrapFailure}
	ErrNamespace        = &Error{Phase: PhaseNamespace, Kind: KindNotFound}
	ErrUnsupported      = &Error{Phase: PhaseInvocation, Kind: KindUnsupported}
	ErrEngineFault      = &Error{Phase: PhaseInvocation, Kind: KindEngineFault}
	ErrSourceUnreadable = &Error{Phase: PhaseHostIO, Kind: KindSourceUnreadable}
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string // engine export name, if any
	Path   string // virtual path, if any
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" op=")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		b.WriteString(" path=")
		b.WriteString(e.Path)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsPhase reports whether any *Error in err's chain belongs to phase.
func IsPhase(err error, phase Phase) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Phase == phase {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the engine operation name
func (b *Builder) Op(name string) *Builder {
	b.err.Op = name
	return b
}

// Path sets the virtual path
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Taxonomy constructors

// BootstrapFailure reports that the engine could not be brought up.
// The loader permits a fresh attempt after it.
func BootstrapFailure(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseBootstrap,
		Kind:   KindBootstrapFailure,
		Detail: detail,
		Cause:  cause,
	}
}

// NamespaceFailure reports a read of a path that was never written or was removed.
func NamespaceFailure(path string) *Error {
	return &Error{
		Phase:  PhaseNamespace,
		Kind:   KindNotFound,
		Path:   path,
		Detail: "no buffer at virtual path",
	}
}

// UnsupportedOperation reports a name missing from the capability table.
func UnsupportedOperation(name string) *Error {
	return &Error{
		Phase:  PhaseInvocation,
		Kind:   KindUnsupported,
		Op:     name,
		Detail: fmt.Sprintf("engine does not export %q", name),
	}
}

// EngineFault reports a failure raised by the engine while running op.
func EngineFault(op, detail string, cause error) *Error {
	if detail == "" {
		detail = "engine reported failure"
	}
	return &Error{
		Phase:  PhaseInvocation,
		Kind:   KindEngineFault,
		Op:     op,
		Detail: detail,
		Cause:  cause,
	}
}

// HostSourceUnreadable reports a failure acquiring bytes from a host source.
func HostSourceUnreadable(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseHostIO,
		Kind:   KindSourceUnreadable,
		Detail: detail,
		Cause:  cause,
	}
}

// Convenience constructors for common error patterns

// TypeMismatch creates an argument or result type mismatch error
func TypeMismatch(op string, index int, want, got string) *Error {
	return &Error{
		Phase:  PhaseInvocation,
		Kind:   KindTypeMismatch,
		Op:     op,
		Detail: fmt.Sprintf("argument %d: engine expects %s, got %s", index, want, got),
		Value:  index,
	}
}

// AllocationFailed creates a guest allocation failure error
func AllocationFailed(op string, size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseInvocation,
		Kind:   KindAllocation,
		Op:     op,
		Detail: fmt.Sprintf("failed to allocate %d bytes in engine memory", size),
		Cause:  cause,
	}
}

// OutOfBounds creates a guest memory bounds error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("memory access out of bounds: offset=%d, length=%d", offset, length),
		Value:  offset,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingImport represents a single unresolved engine import
type MissingImport struct {
	Module   string // e.g., "env"
	Function string // e.g., "emscripten_memcpy_js"
}

// MissingImportsError is returned when the engine image imports functions the host does not provide
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from a list of "module#function" strings
func NewMissingImportsError(imports []string) *MissingImportsError {
	result := &MissingImportsError{
		Imports: make([]MissingImport, 0, len(imports)),
	}
	for _, imp := range imports {
		mod, fn := parseImportKey(imp)
		result.Imports = append(result.Imports, MissingImport{
			Module:   mod,
			Function: fn,
		})
	}
	return result
}

func parseImportKey(key string) (module, function string) {
	mod, fn, found := strings.Cut(key, "#")
	if found {
		return mod, fn
	}
	return key, ""
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[bootstrap] missing_import: no imports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d host function(s):\n", len(e.Imports)))

	// Group by module for cleaner output
	byMod := make(map[string][]string)
	var modOrder []string
	for _, imp := range e.Imports {
		if _, exists := byMod[imp.Module]; !exists {
			modOrder = append(modOrder, imp.Module)
		}
		byMod[imp.Module] = append(byMod[imp.Module], imp.Function)
	}

	for _, mod := range modOrder {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteString(":\n")
		for _, fn := range byMod[mod] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}
