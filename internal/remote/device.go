// Package remote is the Remote Device Registry & Router (C9, C12): it
// tracks attached devices and their capability sets, enforces the
// "at most one active device" invariant, and serializes tool calls to
// whichever device is active over a websocket transport.
package remote

import (
	"sync"
	"time"
)

// Device is one attached remote endpoint.
type Device struct {
	ID           string
	Name         string
	Capabilities map[string]bool
	Transport    Transport
	ConnectedAt  time.Time
	LastSeen     time.Time
}

// deviceManagementTools control the router itself; they always execute
// locally regardless of which device is active (§4.5 step 1).
var deviceManagementTools = map[string]bool{
	"list_devices":  true,
	"switch_device": true,
	"detach_device": true,
}

// IsDeviceManagementTool reports whether name is one of the router's own
// management tools.
func IsDeviceManagementTool(name string) bool { return deviceManagementTools[name] }

// Registry tracks attached devices and the single active one. "active" is
// a single field guarded by mu; switching is atomic (§5).
type Registry struct {
	mu       sync.Mutex
	devices  map[string]*Device
	activeID string
}

// NewRegistry builds an empty registry with no active device (local).
func NewRegistry() *Registry {
	return &Registry{devices: map[string]*Device{}}
}

// Attach registers device, replacing any prior device with the same ID.
func (r *Registry) Attach(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ConnectedAt = time.Now()
	d.LastSeen = d.ConnectedAt
	r.devices[d.ID] = d
}

// Detach removes a device. If it was active, the registry reverts to
// local (no active device).
func (r *Registry) Detach(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, id)
	if r.activeID == id {
		r.activeID = ""
	}
}

// SetActive makes id the active device. An empty id clears it back to
// local. Returns false if id is non-empty and unknown.
func (r *Registry) SetActive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" {
		r.activeID = ""
		return true
	}
	if _, ok := r.devices[id]; !ok {
		return false
	}
	r.activeID = id
	return true
}

// ActiveDevice returns the currently active device, or nil if local.
func (r *Registry) ActiveDevice() *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeID == "" {
		return nil
	}
	return r.devices[r.activeID]
}

// List returns a snapshot of attached devices. Callers must not mutate
// the returned devices' shared fields outside the registry.
func (r *Registry) List() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}

// Touch records activity from id, updating LastSeen.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[id]; ok {
		d.LastSeen = time.Now()
	}
}

// ShouldRoute returns the active device iff it is non-local, its
// capability set contains toolName, and toolName is not a
// device-management tool (§4.9).
func (r *Registry) ShouldRoute(toolName string) (*Device, bool) {
	if IsDeviceManagementTool(toolName) {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeID == "" {
		return nil, false
	}
	d, ok := r.devices[r.activeID]
	if !ok || !d.Capabilities[toolName] {
		return nil, false
	}
	return d, true
}
