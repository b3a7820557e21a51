package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	t.Parallel()
	var ticks int32
	var shutdownCalled int32

	d := &Driver{
		Interval: 5 * time.Millisecond,
		Logger:   testLogger(),
		Tick: func(ctx context.Context) error {
			atomic.AddInt32(&ticks, 1)
			return nil
		},
		OnShutdown: func(ctx context.Context) error {
			atomic.AddInt32(&shutdownCalled, 1)
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: unexpected error %v", err)
	}

	if atomic.LoadInt32(&ticks) == 0 {
		t.Error("expected at least one tick before context cancellation")
	}
	if atomic.LoadInt32(&shutdownCalled) != 1 {
		t.Errorf("expected OnShutdown to run exactly once, ran %d times", shutdownCalled)
	}
}

func TestRunReturnsStartupErrorWithoutTicking(t *testing.T) {
	t.Parallel()
	var ticks int32
	startupErr := errors.New("startup failed")

	d := &Driver{
		Interval: time.Millisecond,
		Logger:   testLogger(),
		OnStartup: func(ctx context.Context) error {
			return startupErr
		},
		Tick: func(ctx context.Context) error {
			atomic.AddInt32(&ticks, 1)
			return nil
		},
	}

	err := d.Run(context.Background())
	if !errors.Is(err, startupErr) {
		t.Errorf("Run() error = %v, want %v", err, startupErr)
	}
	if atomic.LoadInt32(&ticks) != 0 {
		t.Error("tick loop should never start when OnStartup fails")
	}
}

func TestTickLoopSurvivesTickErrors(t *testing.T) {
	t.Parallel()
	var ticks int32

	d := &Driver{
		Interval: 5 * time.Millisecond,
		Logger:   testLogger(),
		Tick: func(ctx context.Context) error {
			atomic.AddInt32(&ticks, 1)
			return errors.New("transient failure")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go d.tickLoop(ctx, done)

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&ticks) < 2 {
		t.Errorf("expected multiple ticks despite errors, got %d", ticks)
	}
}
