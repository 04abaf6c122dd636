package builtin

import (
	"context"
	"fmt"
	"strings"

	"toolrt/internal/approval"
)

// DesktopDriver is the platform-specific backend a desktopTool drives.
// Implementations live outside this package (they touch real display/
// input APIs); this package only enforces the policy envelope around
// them.
type DesktopDriver interface {
	CaptureScreen(ctx context.Context, region string) ([]byte, error)
	Click(ctx context.Context, x, y int) error
	Drag(ctx context.Context, fromX, fromY, toX, toY int) error
	Type(ctx context.Context, text string) error
	Hotkey(ctx context.Context, keys []string) error
	LaunchApplication(ctx context.Context, name string) error
}

// desktopTool exposes screen capture (ungated) and input-injection
// primitives (approval-gated, risk >= Medium).
type desktopTool struct {
	approver Approver
	driver   DesktopDriver
}

// CreateDesktopTool builds the desktop builtin tool.
func CreateDesktopTool(approver Approver, driver DesktopDriver) *desktopTool {
	return &desktopTool{approver: approver, driver: driver}
}

func (t *desktopTool) Name() string { return "desktop" }

func (t *desktopTool) Description() string {
	return "Captures the screen or injects mouse/keyboard input. Screen capture " +
		"needs no approval; click/drag/type/hotkey/launch_application do. action, " +
		"plus action-specific arguments."
}

func (t *desktopTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{"capture_screen", "click", "drag", "type", "hotkey", "launch_application"},
			},
			"region":      map[string]interface{}{"type": "string", "description": "Optional capture region"},
			"x":           map[string]interface{}{"type": "integer"},
			"y":           map[string]interface{}{"type": "integer"},
			"to_x":        map[string]interface{}{"type": "integer"},
			"to_y":        map[string]interface{}{"type": "integer"},
			"text":        map[string]interface{}{"type": "string"},
			"keys":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"application": map[string]interface{}{"type": "string"},
		},
		"required": []string{"action"},
	}
}

func (t *desktopTool) Validate(args map[string]interface{}) error {
	action, ok := args["action"].(string)
	if !ok || strings.TrimSpace(action) == "" {
		return fmt.Errorf("action is required")
	}
	switch action {
	case "capture_screen", "click", "drag", "type", "hotkey", "launch_application":
		return nil
	default:
		return fmt.Errorf("unknown desktop action %q", action)
	}
}

func (t *desktopTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	if err := t.Validate(args); err != nil {
		return nil, err
	}
	if t.driver == nil {
		return nil, fmt.Errorf("desktop: no driver configured")
	}
	action := args["action"].(string)

	if action == "capture_screen" {
		region, _ := args["region"].(string)
		data, err := t.driver.CaptureScreen(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("desktop: capture_screen: %w", err)
		}
		return &Result{Content: fmt.Sprintf("captured %d bytes", len(data)),
			Data: map[string]interface{}{"image_bytes": data}}, nil
	}

	actionType := approval.CustomAction
	if action == "launch_application" {
		actionType = approval.CommandExecute
	}
	if !t.approve(ctx, actionType, action) {
		return &Result{Content: fmt.Sprintf("denied: %s requires approval", action),
			Data: map[string]interface{}{"approved": false}}, nil
	}

	switch action {
	case "click":
		x, _ := intArg(args["x"])
		y, _ := intArg(args["y"])
		if err := t.driver.Click(ctx, x, y); err != nil {
			return nil, fmt.Errorf("desktop: click: %w", err)
		}
		return &Result{Content: fmt.Sprintf("clicked at (%d,%d)", x, y)}, nil

	case "drag":
		x, _ := intArg(args["x"])
		y, _ := intArg(args["y"])
		toX, _ := intArg(args["to_x"])
		toY, _ := intArg(args["to_y"])
		if err := t.driver.Drag(ctx, x, y, toX, toY); err != nil {
			return nil, fmt.Errorf("desktop: drag: %w", err)
		}
		return &Result{Content: fmt.Sprintf("dragged (%d,%d) -> (%d,%d)", x, y, toX, toY)}, nil

	case "type":
		text, _ := args["text"].(string)
		if err := t.driver.Type(ctx, text); err != nil {
			return nil, fmt.Errorf("desktop: type: %w", err)
		}
		return &Result{Content: fmt.Sprintf("typed %d characters", len(text))}, nil

	case "hotkey":
		keys := stringSliceArg(args["keys"])
		if err := t.driver.Hotkey(ctx, keys); err != nil {
			return nil, fmt.Errorf("desktop: hotkey: %w", err)
		}
		return &Result{Content: fmt.Sprintf("pressed %s", strings.Join(keys, "+"))}, nil

	case "launch_application":
		name, _ := args["application"].(string)
		if err := t.driver.LaunchApplication(ctx, name); err != nil {
			return nil, fmt.Errorf("desktop: launch_application: %w", err)
		}
		return &Result{Content: fmt.Sprintf("launched %s", name)}, nil
	}

	return nil, fmt.Errorf("unreachable desktop action %q", action)
}

func (t *desktopTool) approve(ctx context.Context, actionType approval.ActionType, description string) bool {
	if t.approver == nil {
		return false
	}
	action := approval.NewAction(actionType, approval.RiskMedium, description, "desktop")
	decision, err := t.approver.Request(ctx, action)
	return err == nil && (decision == approval.Approved || decision == approval.ApprovedForSession)
}

func stringSliceArg(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
