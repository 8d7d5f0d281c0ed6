package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/engine-bridge/engine"
	"github.com/wippyai/engine-bridge/errors"
)

// Option configures a Loader.
type Option func(*Loader)

// WithObserver registers an observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(l *Loader) {
		if o != nil {
			l.observers = append(l.observers, o)
		}
	}
}

// WithLogger sets the loader's logger. Defaults to the package Logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// Loader guards the one-time bootstrap of an engine.
type Loader struct {
	boot      Bootstrapper
	log       *zap.Logger
	handle    *engine.Handle
	lastErr   error
	inflight  *attempt
	observers []Observer
	attempts  int
	state     State
	mu        sync.Mutex
}

// attempt is one bootstrap run. done is closed once handle or err is set.
type attempt struct {
	done   chan struct{}
	handle *engine.Handle
	err    error
}

// New creates a Loader in the Uninitialized state. Nothing runs until the
// first Initialize.
func New(boot Bootstrapper, opts ...Option) *Loader {
	l := &Loader{boot: boot, log: Logger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initialize returns the engine handle, bootstrapping it if no attempt has
// succeeded yet. Concurrent callers share a single attempt.
func (l *Loader) Initialize(ctx context.Context) (*engine.Handle, error) {
	l.mu.Lock()
	switch l.state {
	case Ready:
		h := l.handle
		l.mu.Unlock()
		return h, nil
	case Disposed:
		l.mu.Unlock()
		return nil, disposedError()
	case Initializing:
		a := l.inflight
		l.mu.Unlock()
		l.log.Debug("waiting for engine bootstrap in flight")
		return wait(ctx, a)
	}

	a := &attempt{done: make(chan struct{})}
	l.inflight = a
	l.state = Initializing
	l.attempts++
	n := l.attempts
	l.mu.Unlock()

	l.log.Info("engine bootstrap started", zap.Int("attempt", n))
	l.emit(Event{Type: EventStart, Attempt: n})

	start := time.Now()
	h, err := l.bootstrap(ctx)
	elapsed := time.Since(start)

	l.mu.Lock()
	a.handle, a.err = h, err
	l.inflight = nil
	if err != nil {
		l.state = Failed
		l.lastErr = err
	} else {
		l.state = Ready
		l.handle = h
		l.lastErr = nil
	}
	close(a.done)
	l.mu.Unlock()

	if err != nil {
		l.log.Warn("engine bootstrap failed",
			zap.Int("attempt", n),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		l.emit(Event{Type: EventFailed, Attempt: n, Duration: elapsed, Err: err})
		return nil, err
	}

	l.log.Info("engine ready",
		zap.Int("attempt", n),
		zap.Duration("elapsed", elapsed),
		zap.Int("operations", len(h.Capabilities())))
	l.emit(Event{Type: EventReady, Attempt: n, Duration: elapsed})
	return h, nil
}

// bootstrap runs the Bootstrapper, normalizing its failures (and panics) to
// bootstrap failures so every waiter sees a typed error.
func (l *Loader) bootstrap(ctx context.Context) (h *engine.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h = nil
			err = errors.BootstrapFailure("engine bootstrap panicked", fmt.Errorf("%v", r))
		}
	}()

	if l.boot == nil {
		return nil, errors.BootstrapFailure("no bootstrapper configured", nil)
	}
	h, err = l.boot.Bootstrap(ctx)
	if err != nil {
		if !errors.IsPhase(err, errors.PhaseBootstrap) {
			err = errors.BootstrapFailure("bootstrap engine", err)
		}
		return nil, err
	}
	if h == nil {
		return nil, errors.BootstrapFailure("bootstrapper returned no handle", nil)
	}
	return h, nil
}

func wait(ctx context.Context, a *attempt) (*engine.Handle, error) {
	select {
	case <-a.done:
		return a.handle, a.err
	case <-ctx.Done():
		return nil, errors.Wrap(errors.PhaseBootstrap, errors.KindCanceled, ctx.Err(),
			"stopped waiting for engine bootstrap")
	}
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Attempts returns how many bootstraps have been started.
func (l *Loader) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

// Handle returns the engine handle if the loader is Ready.
func (l *Loader) Handle() (*engine.Handle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Ready {
		return nil, false
	}
	return l.handle, true
}

// Err returns the failure of the last attempt while the loader is Failed.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Failed {
		return nil
	}
	return l.lastErr
}

// Close disposes the loader and releases the engine. An attempt in flight is
// allowed to finish first; Close gives up waiting when ctx ends. After Close,
// Initialize fails with a disposed error. Closing twice is a no-op.
func (l *Loader) Close(ctx context.Context) error {
	for {
		l.mu.Lock()
		switch l.state {
		case Disposed:
			l.mu.Unlock()
			return nil
		case Initializing:
			a := l.inflight
			l.mu.Unlock()
			select {
			case <-a.done:
				continue
			case <-ctx.Done():
				return errors.Wrap(errors.PhaseBootstrap, errors.KindCanceled, ctx.Err(),
					"stopped waiting for engine bootstrap before dispose")
			}
		}

		h := l.handle
		l.handle = nil
		l.lastErr = nil
		l.state = Disposed
		n := l.attempts
		l.mu.Unlock()

		var err error
		if h != nil {
			err = h.Close(ctx)
		}
		l.log.Info("engine loader disposed", zap.Int("attempts", n), zap.Error(err))
		l.emit(Event{Type: EventDisposed, Attempt: n})
		return err
	}
}

func (l *Loader) emit(ev Event) {
	for _, o := range l.observers {
		l.notify(o, ev)
	}
}

func (l *Loader) notify(o Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("loader observer panicked",
				zap.Stringer("event", ev.Type),
				zap.Any("panic", r))
		}
	}()
	o(ev)
}

func disposedError() error {
	return errors.New(errors.PhaseBootstrap, errors.KindDisposed).
		Detail("engine loader has been disposed").
		Build()
}
