package loader

import (
	"context"
	"sync"

	"github.com/wippyai/engine-bridge/engine"
	"github.com/wippyai/engine-bridge/errors"
)

var (
	defaultLoader *Loader
	defaultMu     sync.Mutex
)

// Configure installs the process-wide loader. It may be called again only
// before the current loader has started a bootstrap, after it failed, or
// after it was disposed.
func Configure(boot Bootstrapper, opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLoader != nil {
		switch defaultLoader.State() {
		case Initializing, Ready:
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Detail("process-wide engine is already %s", defaultLoader.State()).
				Build()
		}
	}
	defaultLoader = New(boot, opts...)
	return nil
}

// Default returns the process-wide loader, or nil if Configure was never called.
func Default() *Loader {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLoader
}

// Initialize brings up the process-wide engine. See Loader.Initialize.
func Initialize(ctx context.Context) (*engine.Handle, error) {
	l := Default()
	if l == nil {
		return nil, errors.NotInitialized(errors.PhaseBootstrap, "process-wide engine loader")
	}
	return l.Initialize(ctx)
}

// Close disposes the process-wide engine. It is a no-op without Configure.
func Close(ctx context.Context) error {
	l := Default()
	if l == nil {
		return nil
	}
	return l.Close(ctx)
}
