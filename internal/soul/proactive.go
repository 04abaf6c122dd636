package soul

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
)

// ProactiveAction is one autonomously-fired action (§3).
type ProactiveAction struct {
	ID             string
	Name           string
	Trigger        Trigger
	Priority       Priority
	CooldownSecs   int
	Enabled        bool
	MaxExecutions  int // 0 means unbounded
	Tags           []string
	Run            ActionFunc

	lastExecution time.Time
	executionCnt  int
}

// eligible reports whether a now-evaluation should fire this action: it
// must be enabled, its cooldown must have elapsed, and (if capped) its
// execution count must be below MaxExecutions (§3, §4.10).
func (a *ProactiveAction) eligible(now time.Time) bool {
	if !a.Enabled {
		return false
	}
	if a.MaxExecutions > 0 && a.executionCnt >= a.MaxExecutions {
		return false
	}
	if a.lastExecution.IsZero() {
		return true
	}
	return now.Sub(a.lastExecution) >= time.Duration(a.CooldownSecs)*time.Second
}

// ProactiveRegistry is the mutex-protected action set. Locks are
// released before any executor invocation: callers collect eligible IDs,
// drop the lock, then iterate (§5, §9).
type ProactiveRegistry struct {
	mu      sync.Mutex
	actions map[string]*ProactiveAction
}

// NewProactiveRegistry builds an empty registry.
func NewProactiveRegistry() *ProactiveRegistry {
	return &ProactiveRegistry{actions: map[string]*ProactiveAction{}}
}

// Register adds action, validating its cron expression at insertion if
// its trigger (or any of an All/Any trigger's children) is a Cron.
func (r *ProactiveRegistry) Register(action *ProactiveAction) error {
	if err := validateTrigger(action.Trigger); err != nil {
		return fmt.Errorf("soul: register %s: %w", action.Name, err)
	}
	if action.ID == "" {
		action.ID = action.Name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[action.ID] = action
	return nil
}

func validateTrigger(t Trigger) error {
	switch t.Kind {
	case TriggerCron:
		if _, err := cron.Parse(t.CronExpr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", t.CronExpr, err)
		}
	case TriggerAll, TriggerAny:
		for _, c := range t.Children {
			if err := validateTrigger(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Disable permanently disables action (used once MaxExecutions is
// reached, or by an operator).
func (r *ProactiveRegistry) Disable(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.actions[id]; ok {
		a.Enabled = false
	}
}

// snapshotEligible returns a copy of every pull-evaluated (non-push)
// action eligible to fire at now, without holding the lock during
// execution.
func (r *ProactiveRegistry) snapshotEligible(now time.Time) []*ProactiveAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*ProactiveAction
	for _, a := range r.actions {
		if a.Trigger.isPushBased() {
			continue // push triggers fire via TriggerByEvent/TriggerByCustom only
		}
		if !evaluateTrigger(a.Trigger, now) {
			continue
		}
		if !a.eligible(now) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// snapshotEligibleForEvent returns every push-triggered action eligible
// to fire for the given FileChange/SystemEvent/Custom signal.
func (r *ProactiveRegistry) snapshotEligibleForEvent(now time.Time, matches func(Trigger) bool) []*ProactiveAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*ProactiveAction
	for _, a := range r.actions {
		if !matches(a.Trigger) {
			continue
		}
		if !a.eligible(now) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// recordExecution updates an action's cooldown/execution-count state
// after it runs, disabling it permanently if MaxExecutions is now
// reached.
func (r *ProactiveRegistry) recordExecution(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actions[id]
	if !ok {
		return
	}
	a.lastExecution = at
	a.executionCnt++
	if a.MaxExecutions > 0 && a.executionCnt >= a.MaxExecutions {
		a.Enabled = false
	}
}

// evaluateTrigger decides "ready" for pull-evaluated triggers. Interval
// triggers are always ready (cooldown alone paces them, §4.10). Cron
// triggers compute readiness from the schedule, not an "always ready"
// stub — §9 Open Question (ii)'s fix.
func evaluateTrigger(t Trigger, now time.Time) bool {
	switch t.Kind {
	case TriggerInterval:
		return true
	case TriggerCron:
		sched, err := cron.Parse(t.CronExpr)
		if err != nil {
			return false
		}
		// "ready" iff the schedule's next fire time at or before now is
		// within one tick of now: approximate by checking the schedule's
		// next occurrence computed from one tick ago has already passed.
		return !sched.Next(now.Add(-time.Second)).After(now)
	case TriggerAll:
		for _, c := range t.Children {
			if !evaluateTrigger(c, now) {
				return false
			}
		}
		return true
	case TriggerAny:
		for _, c := range t.Children {
			if evaluateTrigger(c, now) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// matchesFileChange reports whether t (or one of an All/Any's children)
// is a FileChange trigger matching path/kind.
func matchesFileChange(t Trigger, path string, kind FileChangeKind) bool {
	switch t.Kind {
	case TriggerFileChange:
		return t.FilePath == path && (t.FileKind == FileAny || t.FileKind == kind)
	case TriggerAll:
		if len(t.Children) == 0 {
			return false
		}
		for _, c := range t.Children {
			if c.Kind == TriggerFileChange && !matchesFileChange(c, path, kind) {
				return false
			}
		}
		return true
	case TriggerAny:
		for _, c := range t.Children {
			if matchesFileChange(c, path, kind) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchesEventTag(t Trigger, kind TriggerKind, tag string) bool {
	switch t.Kind {
	case kind:
		return t.EventTag == tag
	case TriggerAll:
		for _, c := range t.Children {
			if c.Kind == kind && !matchesEventTag(c, kind, tag) {
				return false
			}
		}
		return len(t.Children) > 0
	case TriggerAny:
		for _, c := range t.Children {
			if matchesEventTag(c, kind, tag) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Eligible exposes snapshotEligible for the engine's heartbeat.
func (r *ProactiveRegistry) Eligible(now time.Time) []*ProactiveAction {
	return r.snapshotEligible(now)
}

// TriggerByEvent fires every eligible action whose trigger is a matching
// FileChange, synchronously with respect to the caller so event ordering
// is preserved (§4.10, §9's "push path must remain synchronous").
func (r *ProactiveRegistry) TriggerByEvent(ctx context.Context, path string, kind FileChangeKind, now time.Time) []ExecutionOutcome {
	actions := r.snapshotEligibleForEvent(now, func(t Trigger) bool { return matchesFileChange(t, path, kind) })
	return r.runAll(ctx, actions, now)
}

// TriggerByCustom fires every eligible action whose trigger is a
// matching Custom or SystemEvent tag.
func (r *ProactiveRegistry) TriggerByCustom(ctx context.Context, tag string, now time.Time) []ExecutionOutcome {
	actions := r.snapshotEligibleForEvent(now, func(t Trigger) bool {
		return matchesEventTag(t, TriggerCustom, tag) || matchesEventTag(t, TriggerSystemEvent, tag)
	})
	return r.runAll(ctx, actions, now)
}

// ExecutionOutcome records one action's run for the caller (heartbeat
// logging, tests).
type ExecutionOutcome struct {
	ActionID string
	Err      error
}

// runAll executes actions (already snapshotted, lock-free) and records
// their cooldown/execution-count state.
func (r *ProactiveRegistry) runAll(ctx context.Context, actions []*ProactiveAction, now time.Time) []ExecutionOutcome {
	outcomes := make([]ExecutionOutcome, 0, len(actions))
	for _, a := range actions {
		var err error
		if a.Run != nil {
			err = a.Run(ctx)
		}
		r.recordExecution(a.ID, now)
		outcomes = append(outcomes, ExecutionOutcome{ActionID: a.ID, Err: err})
	}
	return outcomes
}
