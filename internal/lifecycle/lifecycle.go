// Package lifecycle drives the keeper's run loop: an optional startup hook,
// a fixed-interval tick repeated until a termination signal arrives, and an
// optional shutdown hook. It is scheduler-agnostic in the sense the spec
// requires — a goroutine plus a time.Ticker stand in for the coroutine
// runtime the Rust source uses.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Hook is a unit of work run once, with the ability to fail.
type Hook func(ctx context.Context) error

// Tick is the repeated unit of work; errors are logged and suppressed by
// the driver (per §7, a tick error is not fatal).
type Tick func(ctx context.Context) error

// Driver orchestrates on_startup / every(interval, tick) / on_shutdown.
type Driver struct {
	OnStartup Hook
	OnShutdown Hook
	Interval  time.Duration
	Tick      Tick
	Logger    *slog.Logger
}

// Run executes the full lifecycle: startup, then repeated ticks until a
// termination signal (or the tick loop itself ending), then shutdown.
func (d *Driver) Run(ctx context.Context) error {
	if d.OnStartup != nil {
		if err := d.OnStartup(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}

	tickCtx, cancelTick := context.WithCancel(ctx)
	defer cancelTick()

	tickDone := make(chan struct{})
	go d.tickLoop(tickCtx, tickDone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		d.Logger.Info("termination signal received, shutting down")
	case <-tickDone:
		d.Logger.Info("tick loop ended on its own")
	case <-ctx.Done():
	}

	cancelTick()
	<-tickDone

	if d.OnShutdown != nil {
		return d.OnShutdown(ctx)
	}
	return nil
}

func (d *Driver) tickLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		if err := d.Tick(ctx); err != nil {
			d.Logger.Error("tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
