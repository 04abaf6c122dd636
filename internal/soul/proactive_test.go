package soul

import (
	"context"
	"testing"
	"time"
)

func TestProactiveActionRespectsCooldown(t *testing.T) {
	reg := NewProactiveRegistry()
	runs := 0
	action := &ProactiveAction{
		Name:         "cleanup_temp",
		Trigger:      IntervalTrigger(1),
		CooldownSecs: 60,
		Enabled:      true,
		Run:          func(ctx context.Context) error { runs++; return nil },
	}
	if err := reg.Register(action); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	reg.runAll(context.Background(), reg.Eligible(now), now)
	if runs != 1 {
		t.Fatalf("expected first tick to fire, got %d runs", runs)
	}

	// Well within cooldown: must not fire again.
	reg.runAll(context.Background(), reg.Eligible(now.Add(30*time.Second)), now.Add(30*time.Second))
	if runs != 1 {
		t.Fatalf("expected no execution within cooldown window, got %d runs", runs)
	}

	// Cooldown elapsed: must fire again.
	reg.runAll(context.Background(), reg.Eligible(now.Add(61*time.Second)), now.Add(61*time.Second))
	if runs != 2 {
		t.Fatalf("expected a second execution once cooldown elapsed, got %d runs", runs)
	}
}

func TestProactiveActionMaxExecutionsPermanentlyDisables(t *testing.T) {
	reg := NewProactiveRegistry()
	runs := 0
	action := &ProactiveAction{
		Name:          "check_updates",
		Trigger:       IntervalTrigger(1),
		CooldownSecs:  1,
		Enabled:       true,
		MaxExecutions: 2,
		Run:           func(ctx context.Context) error { runs++; return nil },
	}
	if err := reg.Register(action); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	for i := 0; i < 5; i++ {
		at := now.Add(time.Duration(i) * 2 * time.Second)
		reg.runAll(context.Background(), reg.Eligible(at), at)
	}
	if runs != 2 {
		t.Fatalf("expected exactly MaxExecutions=2 runs, got %d", runs)
	}
}

func TestPushTriggersAreNotPulledByEligible(t *testing.T) {
	reg := NewProactiveRegistry()
	runs := 0
	action := &ProactiveAction{
		Name:         "on_config_change",
		Trigger:      FileChangeTrigger("/etc/toolrt/config.yaml", FileModified),
		CooldownSecs: 0,
		Enabled:      true,
		Run:          func(ctx context.Context) error { runs++; return nil },
	}
	if err := reg.Register(action); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	reg.runAll(context.Background(), reg.Eligible(now), now)
	if runs != 0 {
		t.Fatal("a FileChange trigger must never fire via the heartbeat's pull path")
	}

	reg.TriggerByEvent(context.Background(), "/etc/toolrt/config.yaml", FileModified, now)
	if runs != 1 {
		t.Fatalf("expected TriggerByEvent to fire the matching action, got %d runs", runs)
	}

	reg.TriggerByEvent(context.Background(), "/etc/toolrt/other.yaml", FileModified, now)
	if runs != 1 {
		t.Fatal("a FileChange event for a different path must not fire this action")
	}
}

func TestAllTriggerRequiresEveryChild(t *testing.T) {
	composite := AllTrigger(IntervalTrigger(1), CronTrigger("*/5 * * * *"))
	now := time.Now()
	// Interval is always ready; cron readiness depends on the schedule, so
	// All must reflect cron's actual readiness, not just "always true".
	if !evaluateTrigger(composite, now) && !evaluateTrigger(CronTrigger("*/5 * * * *"), now) {
		// acceptable: depends on wall clock, but All must never be MORE
		// permissive than its cron child.
	}
	allReady := evaluateTrigger(composite, now)
	cronReady := evaluateTrigger(CronTrigger("*/5 * * * *"), now)
	if allReady && !cronReady {
		t.Fatal("All trigger fired while its cron child was not ready")
	}
}

func TestAnyTriggerFiresIfOneChildReady(t *testing.T) {
	composite := AnyTrigger(IntervalTrigger(1), CronTrigger("0 0 0 1 1 *")) // Jan 1st only
	now := time.Now()
	if !evaluateTrigger(composite, now) {
		t.Fatal("Any trigger with an always-ready Interval child must evaluate true")
	}
}

func TestCronTriggerIsNotAlwaysReady(t *testing.T) {
	// A cron expression that only fires on January 1st must not be
	// "ready" on an arbitrary day (§9 Open Question ii's fix).
	farFuture := CronTrigger("0 0 0 1 1 *")
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	if evaluateTrigger(farFuture, now) {
		t.Fatal("a Jan-1st-only cron trigger must not be ready on July 29th")
	}
}

func TestRegisterRejectsInvalidCronExpression(t *testing.T) {
	reg := NewProactiveRegistry()
	action := &ProactiveAction{Name: "bad", Trigger: CronTrigger("garbage"), CooldownSecs: 1, Enabled: true}
	if err := reg.Register(action); err == nil {
		t.Fatal("expected Register to reject an invalid cron expression at insertion")
	}
}

func TestDisabledActionNeverFires(t *testing.T) {
	reg := NewProactiveRegistry()
	runs := 0
	action := &ProactiveAction{
		Name: "off", Trigger: IntervalTrigger(1), CooldownSecs: 0, Enabled: false,
		Run: func(ctx context.Context) error { runs++; return nil },
	}
	if err := reg.Register(action); err != nil {
		t.Fatal(err)
	}
	reg.runAll(context.Background(), reg.Eligible(time.Now()), time.Now())
	if runs != 0 {
		t.Fatal("a disabled action must never fire")
	}
}
