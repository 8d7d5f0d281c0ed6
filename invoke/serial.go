package invoke

import (
	"context"

	"github.com/wippyai/engine-bridge/errors"
)

// Serial is a queue in front of one engine handle. It admits one caller at a
// time, so a sequence of bridge writes, an invocation and bridge reads runs
// without interleaving with other callers.
type Serial struct {
	h   Engine
	sem chan struct{}
}

// NewSerial creates a queue for h.
func NewSerial(h Engine) *Serial {
	return &Serial{h: h, sem: make(chan struct{}, 1)}
}

// Do runs fn with exclusive access to the handle. Waiting for a turn gives up
// when ctx ends; once fn runs it is not interrupted.
func (s *Serial) Do(ctx context.Context, fn func(h Engine) error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return errors.Wrap(errors.PhaseInvocation, errors.KindCanceled, ctx.Err(),
			"gave up waiting for the engine")
	}
	defer func() { <-s.sem }()
	return fn(s.h)
}

// Invoke runs a single request in turn.
func (s *Serial) Invoke(ctx context.Context, req Request) (Outcome, error) {
	var out Outcome
	err := s.Do(ctx, func(h Engine) error {
		var err error
		out, err = Invoke(ctx, h, req)
		return err
	})
	return out, err
}

// Engine returns the handle behind the queue. Callers must not use it
// outside Do.
func (s *Serial) Engine() Engine {
	return s.h
}
