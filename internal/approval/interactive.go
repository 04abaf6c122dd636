package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// InteractiveApprover is an Asker backed by a terminal prompt. It colorizes
// the action by risk, renders a unified diff when one is supplied, and
// falls back to Denied if the user doesn't respond within Timeout.
type InteractiveApprover struct {
	Timeout      time.Duration
	ColorEnabled bool

	// prompt is overridable in tests so we don't have to drive a real TTY.
	prompt func(label string, items []string) (int, error)
}

// NewInteractiveApprover builds an InteractiveApprover with the given prompt
// timeout and color setting.
func NewInteractiveApprover(timeout time.Duration, colorEnabled bool) *InteractiveApprover {
	return &InteractiveApprover{Timeout: timeout, ColorEnabled: colorEnabled}
}

const (
	choiceApprove = "Approve"
	choiceSession = "Approve for this session"
	choiceDeny    = "Deny"
)

// Ask implements Asker.
func (a *InteractiveApprover) Ask(ctx context.Context, action Action, diff *Diff) (Decision, error) {
	a.render(action, diff)

	type result struct {
		idx int
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		idx, err := a.runPrompt()
		resultCh <- result{idx: idx, err: err}
	}()

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return Denied, r.err
		}
		switch r.idx {
		case 0:
			return Approved, nil
		case 1:
			return ApprovedForSession, nil
		default:
			return Denied, nil
		}
	case <-timer.C:
		fmt.Println(a.colorize("timed out waiting for approval, denying", color.FgRed))
		return Denied, nil
	case <-ctx.Done():
		return Denied, ctx.Err()
	}
}

func (a *InteractiveApprover) runPrompt() (int, error) {
	if a.prompt != nil {
		return a.prompt("Apply this action?", []string{choiceApprove, choiceSession, choiceDeny})
	}
	sel := promptui.Select{
		Label: "Apply this action?",
		Items: []string{choiceApprove, choiceSession, choiceDeny},
	}
	idx, _, err := sel.Run()
	return idx, err
}

func (a *InteractiveApprover) render(action Action, diff *Diff) {
	separator := strings.Repeat("=", 72)
	fmt.Println()
	fmt.Println(a.colorize(separator, color.FgCyan))
	fmt.Println(a.colorize(fmt.Sprintf("%s  [risk: %s]", action.Type, action.Risk), color.FgYellow, color.Bold))
	fmt.Println(a.colorize(fmt.Sprintf("target: %s", action.Target), color.FgWhite))
	if action.Description != "" {
		fmt.Println(action.Description)
	}
	if diff != nil {
		fmt.Println()
		fmt.Println(a.colorize("changes:", color.FgCyan))
		fmt.Println(unifiedDiff(diff.Before, diff.After))
	}
	fmt.Println(a.colorize(separator, color.FgCyan))
}

// unifiedDiff renders a line-level diff between before and after using the
// donor's diff-match-patch dependency, the same library the donor's edit
// tooling already carries for presenting file changes to a reviewer.
func unifiedDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var b2 strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			b2.WriteString(prefix)
			b2.WriteString(line)
			b2.WriteString("\n")
		}
	}
	return b2.String()
}

func (a *InteractiveApprover) colorize(text string, attrs ...color.Attribute) string {
	if !a.ColorEnabled {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// AutoAsker approves (or denies) everything without ever touching a
// terminal. It backs headless test runs and the Soul Engine's own
// maintenance-action path, per §9's requirement that the Approval Manager
// be usable without an interactive UI.
type AutoAsker struct {
	Decision Decision
}

// NewAutoAsker returns an AutoAsker that always hands back decision.
func NewAutoAsker(decision Decision) *AutoAsker {
	return &AutoAsker{Decision: decision}
}

// Ask implements Asker.
func (a *AutoAsker) Ask(ctx context.Context, action Action, diff *Diff) (Decision, error) {
	return a.Decision, nil
}
