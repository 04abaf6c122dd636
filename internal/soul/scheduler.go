package soul

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
)

// ScheduledTask is one time-indexed task (§3).
type ScheduledTask struct {
	ID       string
	Name     string
	Schedule Schedule
	Enabled  bool
	MaxRuns  int // 0 means unbounded
	Run      ActionFunc

	lastRun  time.Time
	nextRun  time.Time
	hasNext  bool
	runCount int
	started  bool
}

// Scheduler is the time-indexed task registry, protected by one mutex
// (§5 picks one mutex family per registry and documents it: this one is
// synchronous, since its critical sections never block on I/O).
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*ScheduledTask
}

// NewScheduler builds an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: map[string]*ScheduledTask{}}
}

// Add registers task, validating a Cron schedule's expression at
// insertion (§4.10's scheduling contract) and computing its first
// next_run.
func (s *Scheduler) Add(task *ScheduledTask) error {
	if task.Schedule.Kind == ScheduleCron {
		if _, err := cron.Parse(task.Schedule.CronExpr); err != nil {
			return fmt.Errorf("soul: scheduler: invalid cron expression %q: %w", task.Schedule.CronExpr, err)
		}
	}
	if task.ID == "" {
		task.ID = task.Name
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.computeNextRun(task, time.Now())
	s.tasks[task.ID] = task
	return nil
}

// computeNextRun fills task.nextRun from its schedule. Callers must hold
// s.mu.
func (s *Scheduler) computeNextRun(task *ScheduledTask, from time.Time) {
	switch task.Schedule.Kind {
	case ScheduleCron:
		sched, err := cron.Parse(task.Schedule.CronExpr)
		if err != nil {
			task.hasNext = false
			return
		}
		task.nextRun = sched.Next(from)
		task.hasNext = true
	case ScheduleInterval:
		task.nextRun = from.Add(time.Duration(task.Schedule.IntervalSecs) * time.Second)
		task.hasNext = true
	case ScheduleOnce:
		// "Once(t) with t <= now never runs" (§4.10).
		task.hasNext = task.Schedule.At.After(from) && task.runCount == 0
		task.nextRun = task.Schedule.At
	case ScheduleOnStartup:
		task.hasNext = !task.started
		task.nextRun = from
	}
}

// Due returns a snapshot of every enabled task whose next_run has
// arrived, without executing them (callers drop the lock before
// invoking Run, per §5/§9).
func (s *Scheduler) Due(now time.Time) []*ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ScheduledTask
	for _, t := range s.tasks {
		if !t.Enabled || !t.hasNext {
			continue
		}
		if t.MaxRuns > 0 && t.runCount >= t.MaxRuns {
			continue
		}
		if t.nextRun.After(now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ExecuteNow runs task.Run and updates last_run/next_run/run_count under
// the lock, regardless of whether Run returned an error: "tasks that
// return Err log the error and still advance next_run; tasks are never
// retried automatically" (§4.10).
func (s *Scheduler) ExecuteNow(ctx context.Context, taskID string, now time.Time) error {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("soul: scheduler: task %q not found", taskID)
	}

	var runErr error
	if task.Run != nil {
		runErr = task.Run(ctx)
	}

	s.mu.Lock()
	task.lastRun = now
	task.runCount++
	task.started = true
	if task.Schedule.Kind == ScheduleOnce || task.Schedule.Kind == ScheduleOnStartup {
		task.hasNext = false
	} else {
		s.computeNextRun(task, now)
	}
	if task.MaxRuns > 0 && task.runCount >= task.MaxRuns {
		task.hasNext = false
	}
	s.mu.Unlock()

	return runErr
}

// MarkStarted flags an OnStartup task as already run, so a later restart
// of the engine doesn't re-trigger it.
func (s *Scheduler) MarkStarted(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[taskID]; ok {
		t.started = true
	}
}
