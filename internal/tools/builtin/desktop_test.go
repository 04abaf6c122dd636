package builtin

import (
	"context"
	"errors"
	"testing"

	"toolrt/internal/approval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDesktopDriver struct {
	clicked    [2]int
	typed      string
	launched   string
	captureErr error
}

func (f *fakeDesktopDriver) CaptureScreen(ctx context.Context, region string) ([]byte, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return []byte("screenshot"), nil
}
func (f *fakeDesktopDriver) Click(ctx context.Context, x, y int) error {
	f.clicked = [2]int{x, y}
	return nil
}
func (f *fakeDesktopDriver) Drag(ctx context.Context, fromX, fromY, toX, toY int) error { return nil }
func (f *fakeDesktopDriver) Type(ctx context.Context, text string) error {
	f.typed = text
	return nil
}
func (f *fakeDesktopDriver) Hotkey(ctx context.Context, keys []string) error { return nil }
func (f *fakeDesktopDriver) LaunchApplication(ctx context.Context, name string) error {
	f.launched = name
	return nil
}

func TestDesktopTool_CaptureScreenNeedsNoApproval(t *testing.T) {
	driver := &fakeDesktopDriver{}
	tool := CreateDesktopTool(nil, driver)

	result, err := tool.Execute(context.Background(), map[string]interface{}{"action": "capture_screen"})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "captured")
}

func TestDesktopTool_ClickDeniedWithoutApprover(t *testing.T) {
	driver := &fakeDesktopDriver{}
	tool := CreateDesktopTool(nil, driver)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"action": "click", "x": 1, "y": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, false, result.Data["approved"])
	assert.Equal(t, [2]int{0, 0}, driver.clicked)
}

func TestDesktopTool_ClickApprovedInvokesDriver(t *testing.T) {
	driver := &fakeDesktopDriver{}
	approver := &fakeApprover{decision: approval.Approved}
	tool := CreateDesktopTool(approver, driver)

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"action": "click", "x": 5, "y": 9,
	})
	require.NoError(t, err)
	assert.Equal(t, [2]int{5, 9}, driver.clicked)
}

func TestDesktopTool_LaunchApplicationUsesCommandExecuteRisk(t *testing.T) {
	driver := &fakeDesktopDriver{}
	approver := &fakeApprover{decision: approval.Approved}
	tool := CreateDesktopTool(approver, driver)

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"action": "launch_application", "application": "calculator",
	})
	require.NoError(t, err)
	assert.Equal(t, "calculator", driver.launched)
	require.Len(t, approver.requests, 1)
	assert.Equal(t, approval.CommandExecute, approver.requests[0].Type)
}

func TestDesktopTool_NoDriverErrorsForNonCaptureAction(t *testing.T) {
	tool := CreateDesktopTool(&fakeApprover{decision: approval.Approved}, nil)
	_, err := tool.Execute(context.Background(), map[string]interface{}{"action": "click", "x": 0, "y": 0})
	assert.Error(t, err)
}

func TestDesktopTool_ValidateRejectsUnknownAction(t *testing.T) {
	tool := CreateDesktopTool(nil, nil)
	err := tool.Validate(map[string]interface{}{"action": "format_disk"})
	assert.Error(t, err)
}

func TestDesktopTool_CaptureScreenPropagatesDriverError(t *testing.T) {
	driver := &fakeDesktopDriver{captureErr: errors.New("no display")}
	tool := CreateDesktopTool(nil, driver)
	_, err := tool.Execute(context.Background(), map[string]interface{}{"action": "capture_screen"})
	assert.Error(t, err)
}
