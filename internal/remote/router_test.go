package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"toolrt/internal/tools"
)

// fakeTransport lets tests script a sequence of Send outcomes without a
// real websocket connection.
type fakeTransport struct {
	calls   int
	results []tools.ToolResult
	errs    []error
}

func (f *fakeTransport) Send(ctx context.Context, correlationID string, call tools.ToolCall) (tools.ToolResult, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return tools.ToolResult{}, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return tools.ToolResult{Success: true}, nil
}

func (f *fakeTransport) Close() error { return nil }

func TestRoute_RetriesOnceOnTransientTransportError(t *testing.T) {
	transport := &fakeTransport{
		errs:    []error{errors.New("connection reset"), nil},
		results: []tools.ToolResult{{}, {Success: true, Message: "ok"}},
	}
	r := NewRegistry()
	r.Attach(&Device{ID: "d1", Name: "phone", Capabilities: map[string]bool{"shell": true}, Transport: transport})
	require.True(t, r.SetActive("d1"))

	router := NewRouter(r)
	result := router.Route(context.Background(), tools.ToolCall{Name: "shell"})
	require.True(t, result.Success)
	require.Equal(t, 2, transport.calls)
}

func TestRoute_OpensCircuitAfterRepeatedFailures(t *testing.T) {
	transport := &fakeTransport{}
	for i := 0; i < 20; i++ {
		transport.errs = append(transport.errs, errors.New("connection refused"))
	}
	r := NewRegistry()
	r.Attach(&Device{ID: "d1", Name: "phone", Capabilities: map[string]bool{"shell": true}, Transport: transport})
	require.True(t, r.SetActive("d1"))

	router := NewRouter(r)
	for i := 0; i < 5; i++ {
		result := router.Route(context.Background(), tools.ToolCall{Name: "shell"})
		require.False(t, result.Success)
	}

	callsBeforeOpen := transport.calls
	result := router.Route(context.Background(), tools.ToolCall{Name: "shell"})
	require.False(t, result.Success)
	require.Equal(t, callsBeforeOpen, transport.calls, "circuit breaker should short-circuit without calling the transport")
	require.Contains(t, fmt.Sprint(result.Data), "circuit_state")
}

func TestRoute_NonTransientErrorDoesNotRetry(t *testing.T) {
	transport := &fakeTransport{errs: []error{errors.New("tool not found on device")}}
	r := NewRegistry()
	r.Attach(&Device{ID: "d1", Name: "phone", Capabilities: map[string]bool{"shell": true}, Transport: transport})
	require.True(t, r.SetActive("d1"))

	router := NewRouter(r)
	result := router.Route(context.Background(), tools.ToolCall{Name: "shell"})
	require.False(t, result.Success)
	require.Equal(t, 1, transport.calls)
}
