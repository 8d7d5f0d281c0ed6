package invoke

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	enginebridge "github.com/wippyai/engine-bridge"
	"github.com/wippyai/engine-bridge/engine"
	"github.com/wippyai/engine-bridge/errors"
	"github.com/wippyai/engine-bridge/vfs"
)

// Engine is the view of an engine handle that Invoke needs.
// *engine.Handle implements it.
type Engine interface {
	Export(name string) (*engine.Export, bool)
	FS() *vfs.FS
	Memory() enginebridge.Memory
	Allocator(ctx context.Context) (enginebridge.Allocator, error)
	TakeFault() string
	Closed() bool
}

var _ Engine = (*engine.Handle)(nil)

// maxResultString bounds the scan for a String result.
const maxResultString = 1 << 20

// Invoke runs req against h.
func Invoke(ctx context.Context, h Engine, req Request) (Outcome, error) {
	log := Logger().With(zap.String("op", req.Name))

	if h.Closed() {
		return Outcome{}, errors.New(errors.PhaseInvocation, errors.KindDisposed).
			Op(req.Name).
			Detail("engine handle is closed").
			Build()
	}

	exp, ok := h.Export(req.Name)
	if !ok {
		return Outcome{}, errors.UnsupportedOperation(req.Name)
	}

	if err := checkSignature(exp, req); err != nil {
		return Outcome{}, err
	}
	if err := stageBuffers(h.FS(), req); err != nil {
		return Outcome{}, err
	}

	m := &marshaler{ctx: ctx, h: h, op: req.Name}
	defer m.release()

	params := make([]uint64, len(req.Args))
	for i, a := range req.Args {
		p, err := m.param(a)
		if err != nil {
			return Outcome{}, err
		}
		params[i] = p
	}

	// Drop diagnostics left over from an earlier call.
	if stale := h.TakeFault(); stale != "" {
		log.Debug("discarding stale engine diagnostics", zap.String("fault", stale))
	}

	log.Debug("invoking engine operation", zap.Stringers("args", req.Args))
	results, err := exp.Call(ctx, params...)
	if err != nil {
		return Outcome{}, callFault(req.Name, h.TakeFault(), err)
	}

	out, err := decodeResult(h, req, results)
	if err != nil {
		return Outcome{}, err
	}
	for _, a := range req.Args {
		if a.kind == KindOutput && h.FS().Exists(a.text) {
			out.Outputs = append(out.Outputs, vfs.Clean(a.text))
		}
	}
	log.Debug("engine operation finished", zap.Stringer("result", out.Kind))
	return out, nil
}

// checkSignature verifies argument and result kinds against the export.
func checkSignature(exp *engine.Export, req Request) error {
	if len(req.Args) != len(exp.Params) {
		return errors.New(errors.PhaseInvocation, errors.KindTypeMismatch).
			Op(req.Name).
			Value(len(req.Args)).
			Detail("engine expects %d arguments, got %d", len(exp.Params), len(req.Args)).
			Build()
	}
	for i, a := range req.Args {
		if want := exp.Params[i]; a.kind.valueType() != want {
			return errors.TypeMismatch(req.Name, i, valueTypeName(want), a.kind.String())
		}
	}

	if req.Result == Void {
		return nil
	}
	if len(exp.Results) != 1 || exp.Results[0] != req.Result.valueType() {
		got := "nothing"
		if len(exp.Results) > 0 {
			names := make([]string, len(exp.Results))
			for i, r := range exp.Results {
				names[i] = valueTypeName(r)
			}
			got = strings.Join(names, ", ")
		}
		return errors.New(errors.PhaseInvocation, errors.KindTypeMismatch).
			Op(req.Name).
			Detail("result %s needs one %s, engine returns %s",
				req.Result, valueTypeName(req.Result.valueType()), got).
			Build()
	}
	return nil
}

// stageBuffers checks Input paths and writes Bytes payloads. All checks run
// before any write so a failed request leaves the namespace untouched.
func stageBuffers(fsys *vfs.FS, req Request) error {
	for _, a := range req.Args {
		if !a.kind.byReference() || a.kind == KindText {
			continue
		}
		if vfs.Clean(a.text) == "" {
			return errors.New(errors.PhaseInvocation, errors.KindInvalidInput).
				Op(req.Name).
				Detail("%s argument has an empty virtual path", a.kind).
				Build()
		}
		if a.kind == KindInput && !fsys.Exists(a.text) {
			err := errors.NamespaceFailure(vfs.Clean(a.text))
			err.Op = req.Name
			return err
		}
	}
	for _, a := range req.Args {
		if a.kind != KindBytes {
			continue
		}
		if err := fsys.Write(a.text, a.data); err != nil {
			return err
		}
	}
	return nil
}

// marshaler places by-reference arguments in engine memory and frees them.
type marshaler struct {
	ctx    context.Context
	h      Engine
	alloc  enginebridge.Allocator
	op     string
	blocks []block
}

type block struct {
	ptr, size uint32
}

func (m *marshaler) param(a Arg) (uint64, error) {
	if !a.kind.byReference() {
		return a.bits, nil
	}
	s := a.text
	if a.kind != KindText {
		s = vfs.Clean(s)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return 0, errors.New(errors.PhaseInvocation, errors.KindInvalidInput).
			Op(m.op).
			Detail("%s argument contains NUL", a.kind).
			Build()
	}
	ptr, err := m.cstring(s)
	if err != nil {
		return 0, err
	}
	return api.EncodeU32(ptr), nil
}

func (m *marshaler) cstring(s string) (uint32, error) {
	if m.alloc == nil {
		alloc, err := m.h.Allocator(m.ctx)
		if err != nil {
			if e, ok := errors.As(err); ok && e.Op == "" {
				e.Op = m.op
			}
			return 0, err
		}
		m.alloc = alloc
	}
	mem := m.h.Memory()
	if mem == nil {
		return 0, errors.New(errors.PhaseInvocation, errors.KindAllocation).
			Op(m.op).
			Detail("engine exports no memory").
			Build()
	}

	size := uint32(len(s) + 1)
	ptr, err := m.alloc.Alloc(size, 1)
	if err != nil {
		return 0, errors.AllocationFailed(m.op, size, err)
	}
	m.blocks = append(m.blocks, block{ptr: ptr, size: size})

	buf := make([]byte, size)
	copy(buf, s)
	if err := mem.Write(ptr, buf); err != nil {
		oob := errors.OutOfBounds(errors.PhaseInvocation, ptr, size)
		oob.Op = m.op
		oob.Cause = err
		return 0, oob
	}
	return ptr, nil
}

func (m *marshaler) release() {
	for i := len(m.blocks) - 1; i >= 0; i-- {
		b := m.blocks[i]
		m.alloc.Free(b.ptr, b.size, 1)
	}
	m.blocks = nil
}

// callFault turns a failed call into an EngineFault.
func callFault(op, reported string, err error) error {
	detail := reported
	var exit *sys.ExitError
	switch {
	case stderrors.As(err, &exit):
		if detail == "" {
			detail = fmt.Sprintf("engine exited with code %d", exit.ExitCode())
		}
	case stderrors.Is(err, engine.ErrAborted):
		if detail == "" {
			detail = "engine aborted"
		}
	case detail == "":
		detail = "engine trapped"
	}
	return errors.EngineFault(op, detail, err)
}

func decodeResult(h Engine, req Request, results []uint64) (Outcome, error) {
	out := Outcome{Op: req.Name, Kind: req.Result}
	if req.Result == Void {
		return out, nil
	}
	out.bits = results[0]

	switch req.Result {
	case Status:
		if code := api.DecodeI32(out.bits); code < 0 {
			fault := errors.EngineFault(req.Name, h.TakeFault(), nil)
			if fault.Detail == "engine reported failure" {
				fault.Detail = fmt.Sprintf("engine returned status %d", code)
			}
			fault.Value = code
			return Outcome{}, fault
		}
	case String:
		ptr := api.DecodeU32(out.bits)
		if ptr == 0 {
			return Outcome{}, errors.EngineFault(req.Name, h.TakeFault(), stderrors.New("engine returned a null string"))
		}
		mem := h.Memory()
		if mem == nil {
			return Outcome{}, errors.New(errors.PhaseInvocation, errors.KindOutOfBounds).
				Op(req.Name).
				Detail("engine returned a string but exports no memory").
				Build()
		}
		s, err := mem.ReadCString(ptr, maxResultString)
		if err != nil {
			oob := errors.OutOfBounds(errors.PhaseInvocation, ptr, 0)
			oob.Op = req.Name
			oob.Cause = err
			return Outcome{}, oob
		}
		out.text = s
	}
	return out, nil
}
