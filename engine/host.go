package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/emscripten"
	"go.uber.org/zap"

	"github.com/wippyai/engine-bridge/internal/guest"
)

// EnvModuleName is the import module for engine diagnostics and the
// emscripten runtime.
const EnvModuleName = "env"

// maxFaultLen bounds a single message read from engine memory.
const maxFaultLen = 4096

// EnvFunctions lists the functions exported by the env host module.
var EnvFunctions = []string{"report_error", "abort"}

// ErrAborted is the cause of calls that end in env.abort.
var ErrAborted = errors.New("engine aborted")

// faultRecorder collects diagnostics the engine reports during one call.
type faultRecorder struct {
	messages []string
	mu       sync.Mutex
}

func (f *faultRecorder) record(msg string) {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
}

// take returns the recorded messages joined by "; " and clears them.
func (f *faultRecorder) take() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := strings.Join(f.messages, "; ")
	f.messages = nil
	return msg
}

// instantiateEnv registers the env host module:
//
//	report_error(msg)   record a NUL-terminated diagnostic for the running call
//	abort()             stop the running call with ErrAborted
//
// Emscripten runtime functions imported by compiled (see IsEmscriptenImport)
// are exported alongside them.
func instantiateEnv(ctx context.Context, r wazero.Runtime, compiled wazero.CompiledModule, faults *faultRecorder, log *zap.Logger) (api.Module, error) {
	builder := r.NewHostModuleBuilder(EnvModuleName)
	exporter, err := emscripten.NewFunctionExporterForModule(compiled)
	if err != nil {
		return nil, err
	}
	exporter.ExportFunctions(builder)

	reportError := func(_ context.Context, mod api.Module, stack []uint64) {
		ptr := api.DecodeU32(stack[0])
		mem := guest.WrapMemory(mod.Memory())
		if mem == nil {
			faults.record("engine reported an error without memory")
			return
		}
		msg, err := mem.ReadCString(ptr, maxFaultLen)
		if err != nil {
			log.Debug("unreadable engine error message", zap.Uint32("ptr", ptr), zap.Error(err))
			msg = "engine reported an unreadable error message"
		}
		log.Debug("engine reported error", zap.String("message", msg))
		faults.record(msg)
	}

	abort := func(_ context.Context, _ api.Module, _ []uint64) {
		panic(ErrAborted)
	}

	return builder.
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(reportError), []api.ValueType{api.ValueTypeI32}, nil).
		WithParameterNames("msg").
		Export("report_error").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(abort), nil, nil).
		Export("abort").
		Instantiate(ctx)
}
