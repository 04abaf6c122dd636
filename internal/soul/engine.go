package soul

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"toolrt/internal/logging"
)

// HealthChecker probes the built-in tool stack on the periodic
// health-check tick and reports whether it's healthy. A nil checker
// means the engine never transitions to Degraded on its own.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Config tunes one Engine.
type Config struct {
	HeartbeatInterval time.Duration // default 10s
	HealthCheckEvery  int           // ticks between health checks, default 6
	Health            HealthChecker
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	if c.HealthCheckEvery <= 0 {
		c.HealthCheckEvery = 6
	}
	return c
}

// Engine is the autonomous loop: Proactive registry, Scheduler, and File
// Watcher, driven by one heartbeat goroutine and a broadcast stop
// channel every long-running inner task observes (§4.10, §5).
type Engine struct {
	cfg       Config
	proactive *ProactiveRegistry
	scheduler *Scheduler
	watcher   *FileWatcher
	logger    zerolog.Logger

	mu       sync.Mutex
	state    State
	tick     int
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewEngine builds a Stopped engine over the given registries. watcher
// may be nil if no file-based triggers are registered.
func NewEngine(cfg Config, proactive *ProactiveRegistry, scheduler *Scheduler, watcher *FileWatcher) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:       cfg,
		proactive: proactive,
		scheduler: scheduler,
		watcher:   watcher,
		logger:    logging.Component("soul"),
		state:     StateStopped,
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State, reason string) {
	e.mu.Lock()
	e.state = s
	tick := e.tick
	e.mu.Unlock()
	PublishEngineState(EngineStatePayload{
		State: s, Reason: reason, TickCount: tick, LastTick: time.Now(),
		Degraded: s == StateDegraded, Updated: time.Now(),
	})
}

// Start transitions Stopped -> Starting -> Running and launches the
// heartbeat loop. Calling Start on an already-running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.state == StateRunning || e.state == StateStarting {
		e.mu.Unlock()
		return
	}
	e.state = StateStarting
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	e.setState(StateStarting, "engine starting")

	// OnStartup tasks fire exactly once as the engine reaches Running.
	for _, t := range e.scheduler.Due(time.Now()) {
		if t.Schedule.Kind == ScheduleOnStartup {
			if err := e.scheduler.ExecuteNow(ctx, t.ID, time.Now()); err != nil {
				e.logger.Warn().Err(err).Str("task", t.Name).Msg("onstartup task failed")
			}
		}
	}

	e.setState(StateRunning, "heartbeat started")
	go e.loop(ctx)
}

// Pause transitions Running -> Paused: the heartbeat keeps ticking but
// skips proactive/scheduler/watcher dispatch.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state == StateRunning {
		e.state = StatePaused
	}
	e.mu.Unlock()
	e.setState(e.State(), "paused")
}

// Resume transitions Paused -> Running.
func (e *Engine) Resume() {
	e.mu.Lock()
	if e.state == StatePaused || e.state == StateDegraded {
		e.state = StateRunning
	}
	e.mu.Unlock()
	e.setState(e.State(), "resumed")
}

// Stop transitions to Stopping, signals the heartbeat to exit, and
// blocks until it has (§4.10's {Stopped,...,Stopping} state machine, §5's
// "shuts down via a broadcast channel every long-running inner task
// observes").
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateStopped || e.state == StateStopping {
		e.mu.Unlock()
		return
	}
	e.state = StateStopping
	stopCh := e.stopCh
	doneCh := e.doneCh
	e.mu.Unlock()

	e.setState(StateStopping, "stop requested")
	if stopCh != nil {
		close(stopCh)
	}
	if doneCh != nil {
		<-doneCh
	}

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()
	e.setState(StateStopped, "stopped")
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()

	var eventsCh <-chan FileEvent
	if e.watcher != nil {
		eventsCh = e.watcher.Events()
	}

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case ev := <-eventsCh:
			if e.State() == StateRunning {
				e.proactive.TriggerByEvent(ctx, ev.Path, ev.Kind, time.Now())
			}
		case now := <-ticker.C:
			e.heartbeat(ctx, now)
		}
	}
}

// heartbeat performs one tick: proactive actions, then scheduler tasks,
// then (opportunistically) any already-buffered file events, then —
// every HealthCheckEvery ticks — a health probe (§4.10's fixed order).
func (e *Engine) heartbeat(ctx context.Context, now time.Time) {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	state := e.state
	e.mu.Unlock()

	if state != StateRunning && state != StateDegraded {
		return
	}

	for _, o := range e.proactive.runAll(ctx, e.proactive.Eligible(now), now) {
		if o.Err != nil {
			e.logger.Warn().Err(o.Err).Str("action", o.ActionID).Msg("proactive action failed")
		}
	}

	for _, t := range e.scheduler.Due(now) {
		if err := e.scheduler.ExecuteNow(ctx, t.ID, now); err != nil {
			e.logger.Warn().Err(err).Str("task", t.Name).Msg("scheduled task failed")
		}
	}

	if e.watcher != nil {
		e.drainEvents(ctx, now)
	}

	if tick%e.cfg.HealthCheckEvery == 0 {
		e.runHealthCheck(ctx, now, tick)
	} else {
		PublishEngineState(EngineStatePayload{State: state, TickCount: tick, LastTick: now, Degraded: state == StateDegraded, Updated: now})
	}
}

func (e *Engine) drainEvents(ctx context.Context, now time.Time) {
	for {
		select {
		case ev := <-e.watcher.Events():
			e.proactive.TriggerByEvent(ctx, ev.Path, ev.Kind, now)
		default:
			return
		}
	}
}

func (e *Engine) runHealthCheck(ctx context.Context, now time.Time, tick int) {
	if e.cfg.Health == nil {
		PublishEngineState(EngineStatePayload{State: e.State(), TickCount: tick, LastTick: now, Updated: now})
		return
	}
	err := e.cfg.Health.CheckHealth(ctx)
	e.mu.Lock()
	if err != nil {
		e.state = StateDegraded
	} else if e.state == StateDegraded {
		e.state = StateRunning
	}
	newState := e.state
	e.mu.Unlock()

	reason := ""
	if err != nil {
		reason = err.Error()
		e.logger.Warn().Err(err).Msg("health check failed; entering degraded state")
	}
	PublishEngineState(EngineStatePayload{
		State: newState, Reason: reason, TickCount: tick, LastTick: now,
		Degraded: newState == StateDegraded, Updated: now,
	})
}
