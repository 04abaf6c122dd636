// Package activitylog is the supplemented daily activity log (SPEC_FULL
// §4.11): an append-only per-day markdown log of significant tool
// outcomes, kept alongside the Learning Store as ambient input for its
// automatic detector. It is not promoted and carries no lifecycle of its
// own — purely a rotating, human-readable trace.
package activitylog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Log appends one bullet per recorded tool outcome to "<root>/YYYY-MM-DD.md",
// rotating automatically at day boundaries.
type Log struct {
	root string
}

// New builds a Log rooted at root, creating the directory if absent.
func New(root string) (*Log, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("activitylog: create root: %w", err)
	}
	return &Log{root: root}, nil
}

func (l *Log) pathFor(t time.Time) string {
	return filepath.Join(l.root, t.Format("2006-01-02")+".md")
}

// Append writes one bullet line for a tool outcome, creating today's
// file (with a heading) on first write of the day.
func (l *Log) Append(at time.Time, toolName string, success bool, summary string) error {
	path := l.pathFor(at)
	status := "ok"
	if !success {
		status = "failed"
	}

	needsHeading := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeading = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("activitylog: open %s: %w", path, err)
	}
	defer f.Close()

	if needsHeading {
		if _, err := fmt.Fprintf(f, "# Activity Log — %s\n\n", at.Format("2006-01-02")); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(f, "- %s [%s] %s: %s\n", at.Format("15:04:05"), status, toolName, summary)
	return err
}
