package tools

import "fmt"

// ExecutionMode selects where a tool call's side effect actually runs:
// directly on the host, or inside an isolated execution sandbox.
type ExecutionMode int

const (
	ExecutionModeUnknown ExecutionMode = iota
	ExecutionModeLocal
	ExecutionModeSandbox
)

// Validate rejects any mode outside the known set.
func (m ExecutionMode) Validate() error {
	switch m {
	case ExecutionModeLocal, ExecutionModeSandbox:
		return nil
	default:
		return fmt.Errorf("tools: invalid execution mode %d", int(m))
	}
}

// String renders the mode for logs and config files.
func (m ExecutionMode) String() string {
	switch m {
	case ExecutionModeLocal:
		return "local"
	case ExecutionModeSandbox:
		return "sandbox"
	default:
		return "unknown"
	}
}
