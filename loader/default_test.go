package loader

import (
	"context"
	"errors"
	"testing"

	bridgeerrors "github.com/wippyai/engine-bridge/errors"
)

func resetDefault(t *testing.T) {
	t.Helper()
	defaultMu.Lock()
	defaultLoader = nil
	defaultMu.Unlock()
	t.Cleanup(func() {
		_ = Close(context.Background())
		defaultMu.Lock()
		defaultLoader = nil
		defaultMu.Unlock()
	})
}

func TestDefault_NotConfigured(t *testing.T) {
	resetDefault(t)

	_, err := Initialize(context.Background())
	e, ok := bridgeerrors.As(err)
	if !ok || e.Kind != bridgeerrors.KindNotInitialized {
		t.Errorf("Initialize = %v, want not initialized", err)
	}
	if err := Close(context.Background()); err != nil {
		t.Errorf("Close without Configure = %v", err)
	}
}

func TestDefault_Lifecycle(t *testing.T) {
	resetDefault(t)
	ctx := context.Background()
	boot := newCountingBoot()

	if err := Configure(boot); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	first, err := Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	second, err := Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if first != second || boot.calls.Load() != 1 {
		t.Errorf("process-wide engine bootstrapped %d times", boot.calls.Load())
	}

	err = Configure(newCountingBoot())
	e, ok := bridgeerrors.As(err)
	if !ok || e.Phase != bridgeerrors.PhaseConfig {
		t.Errorf("Configure while ready = %v, want config error", err)
	}

	if err := Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if Default().State() != Disposed {
		t.Errorf("State = %v, want disposed", Default().State())
	}

	if err := Configure(newCountingBoot()); err != nil {
		t.Fatalf("Configure after dispose: %v", err)
	}
	if _, err := Initialize(ctx); err != nil {
		t.Fatalf("Initialize after reconfigure: %v", err)
	}
}

func TestDefault_ReconfigureAfterFailure(t *testing.T) {
	resetDefault(t)
	ctx := context.Background()

	bad := newCountingBoot()
	bad.fail = func(int32) error { return errors.New("no image") }
	if err := Configure(bad); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := Initialize(ctx); !errors.Is(err, bridgeerrors.ErrBootstrap) {
		t.Fatalf("Initialize = %v, want bootstrap failure", err)
	}

	if err := Configure(newCountingBoot()); err != nil {
		t.Fatalf("Configure after failure: %v", err)
	}
	if _, err := Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}
