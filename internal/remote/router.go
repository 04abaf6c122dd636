package remote

import (
	"context"
	"fmt"
	"time"

	toolerrors "toolrt/internal/errors"
	"toolrt/internal/tools"
)

// Transport is how the Router reaches one device. A websocket connection
// is the concrete implementation (transport.go); tests substitute a fake.
type Transport interface {
	// Send serializes call to the device, awaits its ToolResult, and
	// returns it. correlationID travels with the wire envelope so the
	// device can match request to response out of order.
	Send(ctx context.Context, correlationID string, call tools.ToolCall) (tools.ToolResult, error)
	Close() error
}

// routerRetryConfig bounds the retry attempted for a single transient
// transport failure (a dropped connection, a write error) before the
// circuit breaker for that device sees it as a failure. Tool calls are not
// assumed idempotent, so this stays at one retry, not the resilience
// package's three-attempt default.
var routerRetryConfig = toolerrors.RetryConfig{
	MaxAttempts:  1,
	BaseDelay:    200 * time.Millisecond,
	MaxDelay:     1 * time.Second,
	JitterFactor: 0.25,
}

// Router forwards tool calls to the active device and surfaces transport
// failures as non-success results rather than local errors (§4.9). Each
// device's transport failures are tracked by its own circuit breaker so a
// wedged device fails fast instead of hanging every call on a dead
// connection.
type Router struct {
	registry *Registry
	breakers *toolerrors.CircuitBreakerManager
}

// NewRouter builds a router over registry.
func NewRouter(registry *Registry) *Router {
	return &Router{
		registry: registry,
		breakers: toolerrors.NewCircuitBreakerManager(toolerrors.DefaultCircuitBreakerConfig()),
	}
}

// Route serializes call to the active device and returns its result.
// Callers should only invoke Route after confirming registry.ShouldRoute
// returned true for call.Name; Route itself re-checks for safety.
func (r *Router) Route(ctx context.Context, call tools.ToolCall) tools.ToolResult {
	device, ok := r.registry.ShouldRoute(call.Name)
	if !ok {
		return tools.Fail("no active device can handle this tool", nil)
	}

	breaker := r.breakers.Get(device.ID)
	if err := breaker.Allow(); err != nil {
		return tools.Fail(
			fmt.Sprintf("device %q (%s) is unavailable: %s", device.Name, device.ID, toolerrors.FormatForPlanner(err)),
			map[string]any{"device_id": device.ID, "circuit_state": breaker.State().String()},
		)
	}

	correlationID := newCorrelationID()
	result, err := toolerrors.RetryWithResult(ctx, routerRetryConfig, func(ctx context.Context) (tools.ToolResult, error) {
		return device.Transport.Send(ctx, correlationID, call)
	})
	breaker.Mark(err)
	if err != nil {
		return tools.Fail(
			fmt.Sprintf("device %q (%s): %s", device.Name, device.ID, toolerrors.FormatForPlanner(err)),
			map[string]any{"device_id": device.ID, "correlation_id": correlationID},
		)
	}
	r.registry.Touch(device.ID)
	return result
}
