package dispatcher

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolrt/internal/remote"
	"toolrt/internal/sandbox"
	"toolrt/internal/tools"
	"toolrt/internal/toolregistry"
)

func newTestCatalogue(t *testing.T) *toolregistry.Registry {
	t.Helper()
	reg, err := toolregistry.NewRegistry(toolregistry.Config{})
	require.NoError(t, err)
	return reg
}

func TestDispatch_UnknownToolFailsClosed(t *testing.T) {
	d, err := New(Config{Catalogue: newTestCatalogue(t)})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{Name: "does_not_exist"})
	require.False(t, result.Success)
	require.Contains(t, result.Message, "Unknown tool")
}

func TestDispatch_BuiltinToolRoutesLocally(t *testing.T) {
	d, err := New(Config{Catalogue: newTestCatalogue(t)})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{
		Name:      "find",
		Arguments: map[string]any{"pattern": "*.go", "path": t.TempDir()},
	})
	require.True(t, result.Success)
}

func TestDispatch_UseSkillWithNoRuntimeFailsClosed(t *testing.T) {
	d, err := New(Config{Catalogue: newTestCatalogue(t)})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{
		Name:      "use_skill",
		Arguments: map[string]any{"skill": "anything"},
	})
	require.False(t, result.Success)
	require.Contains(t, result.Message, "no skill runtime configured")
}

func TestDispatch_UseSkillMissingNameArgument(t *testing.T) {
	fake := &fakeSkillExecutor{}
	d, err := New(Config{Catalogue: newTestCatalogue(t), Skills: fake})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{Name: "use_skill"})
	require.False(t, result.Success)
	require.Contains(t, result.Message, "missing required argument")
	require.Equal(t, 0, fake.calls)
}

func TestDispatch_UseSkillDelegatesToRuntime(t *testing.T) {
	fake := &fakeSkillExecutor{result: tools.Ok("ran it", nil)}
	d, err := New(Config{Catalogue: newTestCatalogue(t), Skills: fake})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{
		Name:      "use_skill",
		Arguments: map[string]any{"skill": "deploy"},
	})
	require.True(t, result.Success)
	require.Equal(t, "ran it", result.Message)
	require.Equal(t, "deploy", fake.lastName)
}

func TestDispatch_DeviceManagementRunsLocallyEvenWithActiveDevice(t *testing.T) {
	devices := remote.NewRegistry()
	devices.Attach(&remote.Device{ID: "d1", Name: "phone", Capabilities: map[string]bool{"list_devices": true}})
	require.True(t, devices.SetActive("d1"))

	d, err := New(Config{Catalogue: newTestCatalogue(t), Devices: devices, Router: remote.NewRouter(devices)})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{Name: "list_devices"})
	require.True(t, result.Success)
	require.Contains(t, result.Message, "1 device(s) attached")
}

func TestDispatch_SwitchAndDetachDevice(t *testing.T) {
	devices := remote.NewRegistry()
	devices.Attach(&remote.Device{ID: "d1", Name: "phone", Capabilities: map[string]bool{}})

	d, err := New(Config{Catalogue: newTestCatalogue(t), Devices: devices, Router: remote.NewRouter(devices)})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{
		Name:      "switch_device",
		Arguments: map[string]any{"device_id": "d1"},
	})
	require.True(t, result.Success)
	require.Equal(t, "d1", devices.ActiveDevice().ID)

	result = d.Dispatch(context.Background(), tools.ToolCall{
		Name:      "detach_device",
		Arguments: map[string]any{"device_id": "d1"},
	})
	require.True(t, result.Success)
	require.Nil(t, devices.ActiveDevice())
}

func TestDispatch_UnknownDeviceManagementWithNoRegistryFailsClosed(t *testing.T) {
	d, err := New(Config{Catalogue: newTestCatalogue(t)})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{Name: "switch_device"})
	require.False(t, result.Success)
	require.Contains(t, result.Message, "no remote device registry configured")
}

func TestDispatch_MessageIsCappedAtFiveHundredBytes(t *testing.T) {
	fake := &fakeSkillExecutor{result: tools.Ok(string(make([]byte, 1000)), nil)}
	d, err := New(Config{Catalogue: newTestCatalogue(t), Skills: fake})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{
		Name:      "use_skill",
		Arguments: map[string]any{"skill": "noisy"},
	})
	require.True(t, result.Success)
	require.LessOrEqual(t, len(result.Message), messageCapBytes+len("... [truncated]"))
	require.Contains(t, result.Message, "[truncated]")
}

func TestDispatch_ObserverSeesEveryCall(t *testing.T) {
	obs := &fakeObserver{}
	d, err := New(Config{Catalogue: newTestCatalogue(t), Observer: obs})
	require.NoError(t, err)

	d.Dispatch(context.Background(), tools.ToolCall{Name: "missing_tool"})
	require.Equal(t, 1, obs.calls)
	require.False(t, obs.lastResult.Success)
}

func TestDispatch_SandboxHardBlockPreventsReadOutsideConfiguredRoots(t *testing.T) {
	allowed := t.TempDir()
	sbox, err := sandbox.New(sandbox.Config{AllowRoots: []string{allowed}, DisableApprovalEscalation: true})
	require.NoError(t, err)

	d, err := New(Config{Catalogue: newTestCatalogue(t), Sandbox: sbox})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{
		Name:      "file_read",
		Arguments: map[string]any{"file_path": "/etc/passwd"},
	})
	require.False(t, result.Success)
}

func TestDispatch_SandboxAllowsReadWithinRoots(t *testing.T) {
	allowed := t.TempDir()
	path := allowed + "/ok.txt"
	require.NoError(t, writeFile(path, "hello"))

	sbox, err := sandbox.New(sandbox.Config{AllowRoots: []string{allowed}})
	require.NoError(t, err)

	d, err := New(Config{Catalogue: newTestCatalogue(t), Sandbox: sbox})
	require.NoError(t, err)

	result := d.Dispatch(context.Background(), tools.ToolCall{
		Name:      "file_read",
		Arguments: map[string]any{"file_path": path},
	})
	require.True(t, result.Success)
}

type fakeSkillExecutor struct {
	result   tools.ToolResult
	err      error
	calls    int
	lastName string
}

func (f *fakeSkillExecutor) ExecuteSkill(ctx context.Context, name string, params map[string]any) (tools.ToolResult, error) {
	f.calls++
	f.lastName = name
	return f.result, f.err
}

type fakeObserver struct {
	calls      int
	lastResult tools.ToolResult
}

func (f *fakeObserver) ObserveToolCall(call tools.ToolCall, result tools.ToolResult, dur time.Duration) {
	f.calls++
	f.lastResult = result
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
