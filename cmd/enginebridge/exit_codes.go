package main

import (
	stderrors "errors"
	"os"

	"github.com/wippyai/engine-bridge/errors"
)

// Exit codes. 0=success, 1=general, 2=usage, then bridge-specific codes.
const (
	ExitSuccess = 0 // Operation completed
	ExitGeneral = 1 // Unexpected error
	ExitUsage   = 2 // Invalid flags, config, arguments or operation name
	ExitIO      = 3 // Host file or namespace failure
	ExitEngine  = 4 // Engine failed to load or reported a fault
)

// ErrUsage marks command line mistakes.
var ErrUsage = stderrors.New("usage error")

func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if stderrors.Is(err, ErrUsage) {
		return ExitUsage
	}

	if e, ok := errors.As(err); ok {
		switch e.Kind {
		case errors.KindInvalidInput, errors.KindTypeMismatch, errors.KindUnsupported:
			return ExitUsage
		case errors.KindEngineFault, errors.KindBootstrapFailure:
			return ExitEngine
		}
		switch e.Phase {
		case errors.PhaseConfig:
			return ExitUsage
		case errors.PhaseHostIO, errors.PhaseNamespace:
			return ExitIO
		case errors.PhaseBootstrap:
			return ExitEngine
		}
	}

	if stderrors.Is(err, os.ErrNotExist) || stderrors.Is(err, os.ErrPermission) {
		return ExitIO
	}
	return ExitGeneral
}
