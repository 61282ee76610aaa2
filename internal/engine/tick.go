// Package engine runs the production simulation: the session state, the
// tick scheduler, per-entity production, commands and queries, and the
// frame loop that drives them.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine drives a Simulation in frames. Every frame drains a share of the
// current tick's queue so that a tick completes in FramesPerTick frames.
// Commands submitted with Exec run between ticks, never mid-drain.
type Engine struct {
	Sim      *Simulation
	Interval time.Duration // base frame interval

	// Callbacks run on the loop goroutine after a tick finishes, outside
	// the engine lock.
	OnTick func(TickSummary)
	OnDay  func(tick uint64)

	mu      sync.Mutex
	speed   float64 // 1 = real time, 0 = paused
	pending []command
}

type command struct {
	fn   func(*Simulation)
	done chan struct{}
}

// NewEngine wraps sim with a 100ms frame interval at real-time speed.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Sim:      sim,
		Interval: 100 * time.Millisecond,
		speed:    1,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier; 0 pauses.
func (e *Engine) SetSpeed(f float64) {
	if f < 0 {
		f = 0
	}
	e.mu.Lock()
	e.speed = f
	e.mu.Unlock()
	slog.Info("engine speed changed", "speed", f)
}

// View runs fn with exclusive access to the simulation. fn must not keep
// references to session state after it returns.
func (e *Engine) View(fn func(*Simulation)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.Sim)
}

// Exec runs fn at the next tick boundary and waits for it. Between ticks it
// runs immediately.
func (e *Engine) Exec(ctx context.Context, fn func(*Simulation)) error {
	e.mu.Lock()
	if !e.Sim.Draining() {
		fn(e.Sim)
		e.mu.Unlock()
		return nil
	}
	c := command{fn: fn, done: make(chan struct{})}
	e.pending = append(e.pending, c)
	e.mu.Unlock()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runPending applies queued commands. The lock must be held and no tick may
// be draining.
func (e *Engine) runPending() {
	for _, c := range e.pending {
		c.fn(e.Sim)
		close(c.done)
	}
	e.pending = nil
}

// Frame advances the simulation by one frame and reports whether a tick
// finished.
func (e *Engine) Frame() bool {
	e.mu.Lock()
	if !e.Sim.Draining() {
		e.runPending()
		e.Sim.PrepareTick()
	}
	e.Sim.DrainTick(e.Sim.FrameBudget())
	finished := !e.Sim.Draining()
	var sum TickSummary
	if finished {
		e.runPending()
		sum = e.Sim.LastSummary()
	}
	e.mu.Unlock()

	if finished {
		e.notify(sum)
	}
	return finished
}

// Step runs one whole tick synchronously, finishing any tick in progress
// first.
func (e *Engine) Step() TickSummary {
	for !e.Frame() {
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Sim.LastSummary()
}

// settle finishes a tick left mid-drain so that queued commands can run
// while the engine is paused.
func (e *Engine) settle() {
	e.mu.Lock()
	draining := e.Sim.Draining()
	if !draining {
		e.runPending()
	}
	e.mu.Unlock()
	if draining {
		for !e.Frame() {
		}
	}
}

func (e *Engine) notify(sum TickSummary) {
	if e.OnTick != nil {
		e.OnTick(sum)
	}
	day := uint64(e.Sim.Tuning.TicksPerDay)
	if e.OnDay != nil && day > 0 && sum.Tick%day == 0 {
		e.OnDay(sum.Tick)
	}
}

// Run drives frames until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("simulation engine started", "tick", e.currentTick(), "speed", e.Speed(), "interval", e.Interval)
	for {
		if ctx.Err() != nil {
			break
		}
		speed := e.Speed()
		if speed <= 0 {
			e.settle()
			if !sleep(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		e.Frame()

		target := time.Duration(float64(e.Interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			if !sleep(ctx, target-elapsed) {
				break
			}
		}
	}
	e.settle()
	slog.Info("simulation engine stopped", "tick", e.currentTick())
}

func (e *Engine) currentTick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Sim.Tick
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
