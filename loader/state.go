package loader

import (
	"context"
	"time"

	"github.com/wippyai/engine-bridge/engine"
)

// State is the lifecycle state of a Loader.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Bootstrapper performs the one-time engine bring-up.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) (*engine.Handle, error)
}

// BootstrapFunc adapts a function to Bootstrapper.
type BootstrapFunc func(ctx context.Context) (*engine.Handle, error)

func (f BootstrapFunc) Bootstrap(ctx context.Context) (*engine.Handle, error) {
	return f(ctx)
}

// FromConfig returns a Bootstrapper that opens an engine with cfg.
func FromConfig(cfg engine.Config) Bootstrapper {
	return BootstrapFunc(func(ctx context.Context) (*engine.Handle, error) {
		return engine.Open(ctx, cfg)
	})
}

// EventType identifies a lifecycle event.
type EventType int

const (
	EventStart EventType = iota
	EventReady
	EventFailed
	EventDisposed
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventReady:
		return "ready"
	case EventFailed:
		return "failed"
	case EventDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Event describes a lifecycle transition.
type Event struct {
	Err      error // set for EventFailed
	Type     EventType
	Attempt  int           // bootstrap attempt number, starting at 1
	Duration time.Duration // bootstrap time, for EventReady and EventFailed
}

// Observer receives lifecycle events. It runs synchronously on the goroutine
// making the transition and must not call back into the Loader.
type Observer func(Event)
