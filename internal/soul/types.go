// Package soul is the Soul Engine (C10): the autonomous loop that
// schedules and executes proactive actions, scheduled tasks, and file
// watch callbacks on its own heartbeat, submitting tool calls the same
// way the interactive planner does.
package soul

import (
	"context"
	"time"
)

// State is the engine's lifecycle state machine (§4.10).
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StatePaused
	StateDegraded
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	case StateDegraded:
		return "Degraded"
	case StateStopping:
		return "Stopping"
	default:
		return "Stopped"
	}
}

// Priority orders proactive actions and scheduled tasks for any caller
// that needs a stable execution order among simultaneously-eligible
// items (lower value never implies "runs first" by itself — the engine
// executes all eligible items every tick — but callers sorting a
// snapshot use this).
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// FileChangeKind is the kind of filesystem event a FileChange trigger
// watches for.
type FileChangeKind string

const (
	FileCreated  FileChangeKind = "created"
	FileModified FileChangeKind = "modified"
	FileRemoved  FileChangeKind = "removed"
	FileAny      FileChangeKind = "any"
)

// TriggerKind discriminates the Trigger union.
type TriggerKind int

const (
	TriggerInterval TriggerKind = iota
	TriggerCron
	TriggerFileChange
	TriggerSystemEvent
	TriggerCustom
	TriggerAll
	TriggerAny
)

// Trigger is the tagged union §3 describes: Interval(secs) | Cron(expr) |
// FileChange(path,kind) | SystemEvent(tag) | Custom(tag) | All([..]) |
// Any([..]).
type Trigger struct {
	Kind TriggerKind

	IntervalSecs int
	CronExpr     string
	FilePath     string
	FileKind     FileChangeKind
	EventTag     string
	Children     []Trigger
}

func IntervalTrigger(secs int) Trigger { return Trigger{Kind: TriggerInterval, IntervalSecs: secs} }
func CronTrigger(expr string) Trigger  { return Trigger{Kind: TriggerCron, CronExpr: expr} }
func FileChangeTrigger(path string, kind FileChangeKind) Trigger {
	return Trigger{Kind: TriggerFileChange, FilePath: path, FileKind: kind}
}
func SystemEventTrigger(tag string) Trigger { return Trigger{Kind: TriggerSystemEvent, EventTag: tag} }
func CustomTrigger(tag string) Trigger      { return Trigger{Kind: TriggerCustom, EventTag: tag} }
func AllTrigger(children ...Trigger) Trigger { return Trigger{Kind: TriggerAll, Children: children} }
func AnyTrigger(children ...Trigger) Trigger { return Trigger{Kind: TriggerAny, Children: children} }

// isPushBased reports whether a trigger is evaluated by external events
// (FileChange/SystemEvent/Custom) rather than pulled by the heartbeat
// (Interval/Cron). A composite (All/Any) is push-based if any leaf is.
func (t Trigger) isPushBased() bool {
	switch t.Kind {
	case TriggerFileChange, TriggerSystemEvent, TriggerCustom:
		return true
	case TriggerAll, TriggerAny:
		for _, c := range t.Children {
			if c.isPushBased() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ActionFunc is what a proactive action or scheduled task actually runs.
type ActionFunc func(ctx context.Context) error

// Schedule is a ScheduledTask's tagged union: Cron(expr) | Interval(secs)
// | Once(time) | OnStartup.
type ScheduleKind int

const (
	ScheduleCron ScheduleKind = iota
	ScheduleInterval
	ScheduleOnce
	ScheduleOnStartup
)

type Schedule struct {
	Kind         ScheduleKind
	CronExpr     string
	IntervalSecs int
	At           time.Time
}

func CronSchedule(expr string) Schedule     { return Schedule{Kind: ScheduleCron, CronExpr: expr} }
func IntervalSchedule(secs int) Schedule    { return Schedule{Kind: ScheduleInterval, IntervalSecs: secs} }
func OnceSchedule(at time.Time) Schedule    { return Schedule{Kind: ScheduleOnce, At: at} }
func OnStartupSchedule() Schedule           { return Schedule{Kind: ScheduleOnStartup} }
