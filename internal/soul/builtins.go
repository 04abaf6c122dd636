package soul

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Promoter is the subset of the Learning Store's Promotion Engine the
// promote_learnings built-in drives.
type Promoter interface {
	RunPromotionCycle() ([]any, error)
}

// BuiltinActionsConfig supplies the collaborators the five named
// built-in proactive actions (§4.10) need.
type BuiltinActionsConfig struct {
	// Health is probed by health_check.
	Health HealthChecker
	// TempRoots are the user temp directories cleanup_temp is allowed to
	// sweep (never system directories; §4.10 says "user temp roots only").
	TempRoots []string
	// TempMaxAge bounds how old a file must be before cleanup_temp
	// removes it. Default 7 days.
	TempMaxAge time.Duration
	// StateMarkerPath is where sync_state writes its timestamp marker.
	StateMarkerPath string
	// PromoteCycle runs the Learning Store's promotion sweep. nil
	// disables promote_learnings.
	PromoteCycle func(ctx context.Context) error
	// CheckUpdates is called by check_updates; nil disables it.
	CheckUpdates func(ctx context.Context) error
}

// RegisterBuiltinActions registers the five standard proactive actions
// (§4.10) into registry: health_check (5m), cleanup_temp (1h), sync_state
// (1m), check_updates (daily via Cron), promote_learnings (daily via
// Cron).
func RegisterBuiltinActions(registry *ProactiveRegistry, cfg BuiltinActionsConfig) error {
	maxAge := cfg.TempMaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}

	actions := []*ProactiveAction{
		{
			Name: "health_check", Trigger: IntervalTrigger(300), CooldownSecs: 300, Enabled: true,
			Run: func(ctx context.Context) error {
				if cfg.Health == nil {
					return nil
				}
				return cfg.Health.CheckHealth(ctx)
			},
		},
		{
			Name: "cleanup_temp", Trigger: IntervalTrigger(3600), CooldownSecs: 3600, Enabled: true,
			Run: func(ctx context.Context) error { return cleanupTemp(cfg.TempRoots, maxAge) },
		},
		{
			Name: "sync_state", Trigger: IntervalTrigger(60), CooldownSecs: 60, Enabled: true,
			Run: func(ctx context.Context) error { return syncState(cfg.StateMarkerPath) },
		},
		{
			Name: "check_updates", Trigger: CronTrigger("0 0 6 * * *"), CooldownSecs: 23 * 3600, Enabled: cfg.CheckUpdates != nil,
			Run: func(ctx context.Context) error {
				if cfg.CheckUpdates == nil {
					return nil
				}
				return cfg.CheckUpdates(ctx)
			},
		},
		{
			Name: "promote_learnings", Trigger: CronTrigger("0 30 6 * * *"), CooldownSecs: 23 * 3600, Enabled: cfg.PromoteCycle != nil,
			Run: func(ctx context.Context) error {
				if cfg.PromoteCycle == nil {
					return nil
				}
				return cfg.PromoteCycle(ctx)
			},
		},
	}

	for _, a := range actions {
		if err := registry.Register(a); err != nil {
			return fmt.Errorf("soul: register builtin action %s: %w", a.Name, err)
		}
	}
	return nil
}

// cleanupTemp removes files older than maxAge from roots, never
// descending into a root that doesn't exist and never touching
// directories themselves (only regular files).
func cleanupTemp(roots []string, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue // not present; nothing to clean
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			_ = os.Remove(filepath.Join(root, entry.Name()))
		}
	}
	return nil
}

// syncState writes the current timestamp to path, creating its parent
// directory if necessary.
func syncState(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("soul: sync_state: create dir: %w", err)
	}
	return os.WriteFile(path, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644)
}
