package builtin

import (
	"context"
	"testing"

	"toolrt/internal/approval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellTool_BlockedPatternNeverReachesApprover(t *testing.T) {
	approver := &fakeApprover{decision: approval.Approved}
	tool := CreateShellTool(approver, nil)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "rm -rf /",
	})
	require.NoError(t, err)
	assert.Equal(t, true, result.Data["blocked"])
	assert.Empty(t, approver.requests, "blocked commands must never reach the approver")
}

func TestShellTool_DeniedWithoutApprover(t *testing.T) {
	tool := CreateShellTool(nil, nil)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "echo hi",
	})
	require.NoError(t, err)
	assert.Equal(t, false, result.Data["approved"])
}

func TestShellTool_ApprovedCommandRuns(t *testing.T) {
	approver := &fakeApprover{decision: approval.Approved}
	tool := CreateShellTool(approver, nil)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "echo hello",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "hello")
	assert.Equal(t, 0, result.Data["exit_code"])
}

func TestShellTool_HighRiskPrefixRequestsCriticalRisk(t *testing.T) {
	approver := &fakeApprover{decision: approval.Denied}
	tool := CreateShellTool(approver, nil)

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "sudo echo hi",
	})
	require.NoError(t, err)
	require.Len(t, approver.requests, 1)
	assert.Equal(t, approval.RiskCritical, approver.requests[0].Risk)
}

func TestShellTool_AllowlistRejectsNonMatchingCommand(t *testing.T) {
	approver := &fakeApprover{decision: approval.Approved}
	tool := CreateShellTool(approver, []string{`^echo `})

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "ls -la",
	})
	require.NoError(t, err)
	assert.Equal(t, true, result.Data["blocked"])
}

func TestShellTool_AllowlistPermitsMatchingCommand(t *testing.T) {
	approver := &fakeApprover{decision: approval.Approved}
	tool := CreateShellTool(approver, []string{`^echo `})

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "echo matched",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "matched")
}

func TestShellTool_ExecuteUnsafeBypassesApproval(t *testing.T) {
	tool := CreateShellTool(nil, nil)
	result, err := tool.ExecuteUnsafe(context.Background(), map[string]interface{}{
		"command": "echo unsafe",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "unsafe")
}

func TestShellTool_ValidateRejectsEmptyCommand(t *testing.T) {
	tool := CreateShellTool(nil, nil)
	err := tool.Validate(map[string]interface{}{"command": "   "})
	assert.Error(t, err)
}

func TestShellTool_TimeoutIsHonored(t *testing.T) {
	approver := &fakeApprover{decision: approval.Approved}
	tool := CreateShellTool(approver, nil)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"command":         "sleep 2",
		"timeout_seconds": 1,
	})
	require.NoError(t, err)
	assert.Equal(t, true, result.Data["timed_out"])
}
