package invoke

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	bridgeerrors "github.com/wippyai/engine-bridge/errors"
	"github.com/wippyai/engine-bridge/internal/enginetest"
)

func TestSerial_ConcurrentSequences(t *testing.T) {
	q := NewSerial(openEngine(t, enginetest.Options{}))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := fmt.Sprintf("document %d", i)
			err := q.Do(context.Background(), func(h Engine) error {
				// Shared paths: only safe because the queue admits one caller.
				if err := h.FS().Write("/in", []byte(want)); err != nil {
					return err
				}
				if _, err := Invoke(context.Background(), h, NewRequest("passthrough", Status, Input("/in"), Output("/out"))); err != nil {
					return err
				}
				got, err := h.FS().Read("/out")
				if err != nil {
					return err
				}
				if string(got) != want {
					return fmt.Errorf("worker %d read %q", i, got)
				}
				return nil
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSerial_Invoke(t *testing.T) {
	q := NewSerial(openEngine(t, enginetest.Options{}))
	out, err := q.Invoke(context.Background(), NewRequest("add", Int32, I32(2), I32(2)))
	if err != nil || out.I32() != 4 {
		t.Errorf("Invoke = %d, %v", out.I32(), err)
	}
	if q.Engine() == nil {
		t.Error("Engine should not be nil")
	}
}

func TestSerial_WaitCanceled(t *testing.T) {
	q := NewSerial(openEngine(t, enginetest.Options{}))

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), func(Engine) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Invoke(ctx, NewRequest("noop", Void))
	e, ok := bridgeerrors.As(err)
	if !ok || e.Kind != bridgeerrors.KindCanceled {
		t.Errorf("Invoke = %v, want canceled", err)
	}

	close(release)
	if _, err := q.Invoke(context.Background(), NewRequest("noop", Void)); err != nil {
		t.Errorf("Invoke after release: %v", err)
	}
}
