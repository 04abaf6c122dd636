package remote

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShouldRoute_LocalByDefault(t *testing.T) {
	r := NewRegistry()
	device, ok := r.ShouldRoute("shell")
	require.False(t, ok)
	require.Nil(t, device)
}

func TestShouldRoute_ActiveDeviceWithCapability(t *testing.T) {
	r := NewRegistry()
	r.Attach(&Device{ID: "d1", Capabilities: map[string]bool{"shell": true}})
	require.True(t, r.SetActive("d1"))

	device, ok := r.ShouldRoute("shell")
	require.True(t, ok)
	require.Equal(t, "d1", device.ID)

	_, ok = r.ShouldRoute("file_read")
	require.False(t, ok)
}

func TestShouldRoute_NeverRoutesDeviceManagementTools(t *testing.T) {
	r := NewRegistry()
	r.Attach(&Device{ID: "d1", Capabilities: map[string]bool{"switch_device": true}})
	require.True(t, r.SetActive("d1"))

	_, ok := r.ShouldRoute("switch_device")
	require.False(t, ok)
}

func TestSetActive_UnknownDeviceFails(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.SetActive("missing"))
	require.Nil(t, r.ActiveDevice())
}

func TestDetach_ClearsActiveDevice(t *testing.T) {
	r := NewRegistry()
	r.Attach(&Device{ID: "d1", Capabilities: map[string]bool{}})
	require.True(t, r.SetActive("d1"))
	r.Detach("d1")
	require.Nil(t, r.ActiveDevice())
}
