package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner drives a World from a single goroutine, either as fast as possible
// or paced by a wall-clock ticker.
type Runner struct {
	world    *World
	interval time.Duration
	realtime bool
	runFor   time.Duration // 0 runs until the world is done

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRunner creates a runner for w.
func NewRunner(w *World, realtime bool, runFor time.Duration) *Runner {
	return &Runner{
		world:    w,
		interval: w.opts.TickInterval,
		realtime: realtime,
		runFor:   runFor,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the tick loop until the world finishes, Stop is called or ctx
// is canceled.
func (r *Runner) Start(ctx context.Context) error {
	var tickC <-chan time.Time
	if r.realtime {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	slog.Info("simulation started",
		"scenario", r.world.opts.Scenario.Name,
		"interval", r.interval,
		"realtime", r.realtime,
		"latency_ticks", r.world.link.Latency())

	for {
		if r.finished() {
			slog.Info("simulation finished", "ticks", r.world.Ticks(), "sim_time", r.world.Now())
			return nil
		}

		if tickC == nil {
			select {
			case <-ctx.Done():
				slog.Info("simulation stopping", "ticks", r.world.Ticks())
				return ctx.Err()
			case <-r.stopCh:
				slog.Info("simulation stopped", "ticks", r.world.Ticks())
				return nil
			default:
			}
		} else {
			select {
			case <-ctx.Done():
				slog.Info("simulation stopping", "ticks", r.world.Ticks())
				return ctx.Err()
			case <-r.stopCh:
				slog.Info("simulation stopped", "ticks", r.world.Ticks())
				return nil
			case <-tickC:
			}
		}

		r.world.Tick()
	}
}

// Stop ends the tick loop. Safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Runner) finished() bool {
	if r.runFor > 0 {
		return r.world.Now() >= r.runFor
	}
	return r.world.Done()
}
