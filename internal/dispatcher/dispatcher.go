// Package dispatcher is the Tool Dispatcher (C6): it walks the routing
// decision tree of §4.5 — device-management tools first, then remote
// routing, then the built-in catalogue, then the skill runtime — and
// turns any unmatched name into a success=false result rather than an
// error the planner would have to unwrap.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"toolrt/internal/remote"
	"toolrt/internal/sandbox"
	"toolrt/internal/skillvm"
	"toolrt/internal/tools"
	"toolrt/internal/toolregistry"
)

const messageCapBytes = 500

// SkillExecutor is the subset of the skill runtime the dispatcher drives:
// resolving a skill invocation by name and returning a ToolResult. It is
// an interface so markdown-carrier skills (verbatim instructions) and
// script-VM skills (actual execution) can share one dispatch arm.
type SkillExecutor interface {
	ExecuteSkill(ctx context.Context, name string, params map[string]any) (tools.ToolResult, error)
}

// LearningObserver is notified of every terminating tool call so the
// Learning Store (C11) can capture corrections and missing-capability
// signals without the dispatcher importing it directly.
type LearningObserver interface {
	ObserveToolCall(call tools.ToolCall, result tools.ToolResult, dur time.Duration)
}

// Dispatcher routes one ToolCall at a time. It holds no call-scoped
// state; every field is a shared, concurrency-safe collaborator.
type Dispatcher struct {
	catalogue *toolregistry.Registry
	devices   *remote.Registry
	router    *remote.Router
	skills    SkillExecutor
	observer  LearningObserver
	sandbox   *sandbox.Sandbox
	logger    zerolog.Logger
}

// Config wires a Dispatcher's collaborators. Catalogue is required;
// Devices, Router, Skills, Sandbox, and Observer are optional (a nil
// Devices/Router means "local only", a nil Skills means use_skill always
// fails closed, a nil Sandbox means filesystem tools run ungated by the
// path policy layer, a nil Observer means learnings are not captured).
type Config struct {
	Catalogue *toolregistry.Registry
	Devices   *remote.Registry
	Router    *remote.Router
	Skills    SkillExecutor
	Observer  LearningObserver
	Sandbox   *sandbox.Sandbox
	Logger    zerolog.Logger
}

// New builds a Dispatcher. Catalogue must be non-nil.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Catalogue == nil {
		return nil, fmt.Errorf("dispatcher: catalogue is required")
	}
	return &Dispatcher{
		catalogue: cfg.Catalogue,
		devices:   cfg.Devices,
		router:    cfg.Router,
		skills:    cfg.Skills,
		observer:  cfg.Observer,
		sandbox:   cfg.Sandbox,
		logger:    cfg.Logger,
	}, nil
}

// filesystemOpForTool maps a catalogue filesystem tool name to the
// sandbox Operation its call represents, for the pre-execution path
// check. Tools absent from this map are not path-gated here.
var filesystemOpForTool = map[string]sandbox.Operation{
	"file_read":  sandbox.OpRead,
	"file_info":  sandbox.OpRead,
	"find":       sandbox.OpList,
	"list":       sandbox.OpList,
	"file_write": sandbox.OpWrite,
}

// Dispatch resolves call through the routing tree of §4.5 and returns
// its result. It never panics and never returns a Go error: every
// failure mode becomes a success=false ToolResult.
func (d *Dispatcher) Dispatch(ctx context.Context, call tools.ToolCall) tools.ToolResult {
	start := time.Now()
	result := d.route(ctx, call)
	result.Message = capMessage(result.Message)
	if d.observer != nil {
		d.observer.ObserveToolCall(call, result, time.Since(start))
	}
	return result
}

func (d *Dispatcher) route(ctx context.Context, call tools.ToolCall) tools.ToolResult {
	// Step 1: device-management tools always run locally, regardless of
	// which device (if any) is currently active.
	if remote.IsDeviceManagementTool(call.Name) {
		return d.dispatchDeviceManagement(call)
	}

	// Step 2: an attached, active, capability-matching device wins next.
	if d.devices != nil && d.router != nil {
		if _, ok := d.devices.ShouldRoute(call.Name); ok {
			return d.router.Route(ctx, call)
		}
	}

	// Step 3: the built-in catalogue.
	if tool, err := d.catalogue.Get(call.Name); err == nil {
		return d.dispatchBuiltin(ctx, tool, call)
	}

	// Step 4: skill invocation.
	if call.Name == "use_skill" {
		return d.dispatchSkill(ctx, call)
	}

	// Step 5: nothing matched.
	return tools.Fail(fmt.Sprintf("Unknown tool: %s", call.Name), nil)
}

func (d *Dispatcher) dispatchBuiltin(ctx context.Context, tool toolregistry.RegisteredTool, call tools.ToolCall) tools.ToolResult {
	if verdict, blocked := d.checkSandbox(call); blocked {
		return tools.Fail(fmt.Sprintf("%s: %s", call.Name, verdict.Reason), map[string]any{"path_blocked": true})
	}

	policy := d.catalogue.Policy()
	meta := tool.Metadata()
	timeout := policy.TimeoutFor(call.Name)

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := tool.Execute(callCtx, call.Arguments)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return tools.Fail(
				fmt.Sprintf("%s: timed out after %s", call.Name, timeout),
				map[string]any{"timed_out": true, "exit_code": nil},
			)
		}
		return tools.Fail(err.Error(), nil)
	}
	if res == nil {
		return tools.Fail(fmt.Sprintf("%s: produced no result", call.Name), nil)
	}
	data := res.Data
	if meta.Dangerous && data == nil {
		data = map[string]interface{}{}
	}
	return tools.Ok(res.Content, data)
}

// checkSandbox runs the path-policy layer (§4.1) ahead of an approval
// gate the builtin tool itself enforces. It only ever hard-denies: a
// verdict that merely requires approval is left to the tool's own
// Approver, since the dispatcher has no UI-facing collaborator of its
// own to ask. A call with no file_path argument, or a tool this
// dispatcher doesn't path-gate, is left to the tool unchanged.
func (d *Dispatcher) checkSandbox(call tools.ToolCall) (sandbox.Verdict, bool) {
	if d.sandbox == nil {
		return sandbox.Verdict{}, false
	}
	op, gated := filesystemOpForTool[call.Name]
	if !gated {
		return sandbox.Verdict{}, false
	}
	raw, _ := call.Arguments["file_path"].(string)
	if raw == "" {
		return sandbox.Verdict{}, false
	}
	verdict, err := d.sandbox.ResolveAndClassify(raw, op)
	if err != nil {
		return sandbox.Verdict{Reason: err.Error()}, true
	}
	if !verdict.Allowed && !verdict.RequiresApproval {
		return verdict, true
	}
	return verdict, false
}

func (d *Dispatcher) dispatchSkill(ctx context.Context, call tools.ToolCall) tools.ToolResult {
	if d.skills == nil {
		return tools.Fail("use_skill: no skill runtime configured", nil)
	}
	name, _ := call.Arguments["skill"].(string)
	if name == "" {
		return tools.Fail("use_skill: missing required argument \"skill\"", nil)
	}
	params, _ := call.Arguments["params"].(map[string]any)

	res, err := d.skills.ExecuteSkill(ctx, name, params)
	if err != nil {
		if errors.Is(err, skillvm.ErrPermissionDenied) {
			return tools.Fail(fmt.Sprintf("use_skill: %s: permission denied", name), nil)
		}
		return tools.Fail(fmt.Sprintf("use_skill: %s: %s", name, err.Error()), nil)
	}
	return res
}

func (d *Dispatcher) dispatchDeviceManagement(call tools.ToolCall) tools.ToolResult {
	if d.devices == nil {
		return tools.Fail(fmt.Sprintf("%s: no remote device registry configured", call.Name), nil)
	}
	switch call.Name {
	case "list_devices":
		return listDevices(d.devices)
	case "switch_device":
		return switchDevice(d.devices, call.Arguments)
	case "detach_device":
		return detachDevice(d.devices, call.Arguments)
	default:
		return tools.Fail(fmt.Sprintf("Unknown tool: %s", call.Name), nil)
	}
}

func listDevices(registry *remote.Registry) tools.ToolResult {
	devices := registry.List()
	active := registry.ActiveDevice()
	out := make([]map[string]any, 0, len(devices))
	for _, dv := range devices {
		caps := make([]string, 0, len(dv.Capabilities))
		for c := range dv.Capabilities {
			caps = append(caps, c)
		}
		out = append(out, map[string]any{
			"id":           dv.ID,
			"name":         dv.Name,
			"capabilities": caps,
			"last_seen":    dv.LastSeen,
			"active":       active != nil && active.ID == dv.ID,
		})
	}
	msg := fmt.Sprintf("%d device(s) attached", len(devices))
	if active == nil {
		msg += "; local is active"
	} else {
		msg += fmt.Sprintf("; %q is active", active.Name)
	}
	return tools.Ok(msg, map[string]any{"devices": out})
}

func switchDevice(registry *remote.Registry, args map[string]any) tools.ToolResult {
	id, _ := args["device_id"].(string)
	if !registry.SetActive(id) {
		return tools.Fail(fmt.Sprintf("switch_device: unknown device_id %q", id), nil)
	}
	if id == "" {
		return tools.Ok("switched to local", nil)
	}
	return tools.Ok(fmt.Sprintf("switched to device %q", id), nil)
}

func detachDevice(registry *remote.Registry, args map[string]any) tools.ToolResult {
	id, _ := args["device_id"].(string)
	if id == "" {
		return tools.Fail("detach_device: missing required argument \"device_id\"", nil)
	}
	registry.Detach(id)
	return tools.Ok(fmt.Sprintf("detached device %q", id), nil)
}

// capMessage caps a human-facing message at messageCapBytes, appending an
// ellipsis marker (§4.7, §7: "truncation is always announced"). data is
// never truncated by this; only message.
func capMessage(message string) string {
	if len(message) <= messageCapBytes {
		return message
	}
	return message[:messageCapBytes] + "... [truncated]"
}
