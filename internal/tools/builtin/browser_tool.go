package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"toolrt/internal/approval"
	"toolrt/internal/tools/builtin/browser"
)

// browserTool exposes CDP-session-backed navigation, evaluation, and
// form interaction, gated by the same URL policy as the web tool plus
// script/selector validation.
type browserTool struct {
	approver Approver
	manager  *browser.Manager
	dial     func(ctx context.Context, target string) (browser.Transport, error)
}

// CreateBrowserTool builds the browser builtin tool. dial opens a real
// transport for a resolved CDP endpoint; tests substitute a fake.
func CreateBrowserTool(approver Approver, dial func(ctx context.Context, target string) (browser.Transport, error)) *browserTool {
	return &browserTool{approver: approver, manager: browser.NewManager(10 * time.Minute), dial: dial}
}

func (t *browserTool) Name() string { return "browser" }

func (t *browserTool) Description() string {
	return "Drives a browser session via Chrome DevTools Protocol: navigate, evaluate " +
		"script, and fill forms against a page. session_id, action, url/script/selector/value."
}

func (t *browserTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{"type": "string"},
			"action":     map[string]interface{}{"type": "string", "enum": []string{"navigate", "eval", "fill", "close"}},
			"url":        map[string]interface{}{"type": "string"},
			"script":     map[string]interface{}{"type": "string"},
			"selector":   map[string]interface{}{"type": "string"},
			"value":      map[string]interface{}{"type": "string"},
			"target":     map[string]interface{}{"type": "string", "description": "CDP endpoint host:port, defaults to localhost:9222"},
		},
		"required": []string{"session_id", "action"},
	}
}

func (t *browserTool) Validate(args map[string]interface{}) error {
	id, _ := args["session_id"].(string)
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session_id is required")
	}
	action, _ := args["action"].(string)
	switch action {
	case "navigate", "eval", "fill", "close":
	default:
		return fmt.Errorf("unknown browser action %q", action)
	}
	return nil
}

func (t *browserTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	if err := t.Validate(args); err != nil {
		return nil, err
	}
	sessionID := args["session_id"].(string)
	action := args["action"].(string)
	t.manager.SweepIdle()

	if action == "close" {
		if err := t.manager.Close(sessionID); err != nil {
			return nil, fmt.Errorf("browser: close %s: %w", sessionID, err)
		}
		return &Result{Content: fmt.Sprintf("closed session %s", sessionID)}, nil
	}

	session := t.manager.Open(sessionID, nil)
	if session.Transport == nil {
		target, _ := args["target"].(string)
		if target == "" {
			target = "localhost:9222"
		}
		if t.dial == nil {
			return nil, fmt.Errorf("browser: no transport dialer configured")
		}
		transport, err := t.dial(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("browser: dial %s: %w", target, err)
		}
		session.Transport = transport
	}
	t.manager.Touch(sessionID)

	if !t.approve(ctx, action, sessionID) {
		return &Result{Content: fmt.Sprintf("denied: %s requires approval", action),
			Data: map[string]interface{}{"approved": false}}, nil
	}

	switch action {
	case "navigate":
		rawURL, _ := args["url"].(string)
		if err := browser.ValidateURL(rawURL); err != nil {
			return nil, fmt.Errorf("browser: %w", err)
		}
		if err := session.Transport.Navigate(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("browser: navigate: %w", err)
		}
		return &Result{Content: fmt.Sprintf("navigated to %s", rawURL)}, nil

	case "eval":
		script, _ := args["script"].(string)
		if err := browser.ValidateScript(script); err != nil {
			return nil, fmt.Errorf("browser: %w", err)
		}
		out, err := session.Transport.Eval(ctx, script)
		if err != nil {
			return nil, fmt.Errorf("browser: eval: %w", err)
		}
		return &Result{Content: capMessage(out, 500), Data: map[string]interface{}{"result": out}}, nil

	case "fill":
		selector, _ := args["selector"].(string)
		value, _ := args["value"].(string)
		if err := browser.ValidateSelector(selector); err != nil {
			return nil, fmt.Errorf("browser: %w", err)
		}
		if err := browser.ValidateFormInput(value); err != nil {
			return nil, fmt.Errorf("browser: %w", err)
		}
		script := fmt.Sprintf("document.querySelector(%q).value = %q", selector, value)
		if _, err := session.Transport.Eval(ctx, script); err != nil {
			return nil, fmt.Errorf("browser: fill: %w", err)
		}
		return &Result{Content: fmt.Sprintf("filled %s", selector)}, nil
	}

	return nil, fmt.Errorf("unreachable browser action %q", action)
}

func (t *browserTool) approve(ctx context.Context, action, target string) bool {
	if action == "close" {
		return true
	}
	if t.approver == nil {
		return false
	}
	actionType := approval.NetworkRequest
	risk := approval.RiskMedium
	decision, err := t.approver.Request(ctx, approval.NewAction(actionType, risk, "browser "+action, target))
	return err == nil && (decision == approval.Approved || decision == approval.ApprovedForSession)
}
