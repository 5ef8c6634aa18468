package network

import (
	"sort"
	"sync"
	"time"
)

// Device is the in-memory record of an authorized client. It carries
// the resolved limits so the usage monitor never needs to re-read the
// plan while sweeping.
type Device struct {
	MACAddress       string        `json:"macAddress"`
	IPAddress        string        `json:"ipAddress"`
	NetworkSessionID string        `json:"networkSessionId"`
	SessionRowID     int64         `json:"sessionId"`
	VoucherID        int64         `json:"voucherId"`
	TimeLimit        time.Duration `json:"-"`
	DataCapMB        int64         `json:"dataCapMb"`
	DataUsedMB       int64         `json:"dataUsedMb"`
	Online           bool          `json:"online"`
	AuthorizedAt     time.Time     `json:"authorizedAt"`
	LastSeen         time.Time     `json:"lastSeen"`
}

// Registry tracks authorized devices keyed by normalized MAC address.
// It also holds in-flight markers so two concurrent redemptions for the
// same MAC cannot both reach the backend.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]*Device
	inFlight map[string]struct{}
}

// NewRegistry creates an empty device registry
func NewRegistry() *Registry {
	return &Registry{
		devices:  make(map[string]*Device),
		inFlight: make(map[string]struct{}),
	}
}

// BeginAuthorize reserves the MAC for an authorization attempt. It
// returns false when the device is already authorized or another
// attempt is in flight.
func (r *Registry) BeginAuthorize(mac string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[mac]; ok {
		return false
	}
	if _, ok := r.inFlight[mac]; ok {
		return false
	}
	r.inFlight[mac] = struct{}{}
	return true
}

// EndAuthorize releases the in-flight marker for the MAC
func (r *Registry) EndAuthorize(mac string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, mac)
}

// Put stores or replaces the device record
func (r *Registry) Put(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.MACAddress] = d
}

// Get returns a copy of the device record for the MAC, or nil. Callers
// get a snapshot, the stored record keeps changing under the lock as
// the monitor reports usage.
func (r *Registry) Get(mac string) *Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[mac]
	if !ok {
		return nil
	}
	copied := *d
	return &copied
}

// Remove deletes the device record, returning it when present
func (r *Registry) Remove(mac string) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[mac]
	if !ok {
		return nil
	}
	delete(r.devices, mac)
	return d
}

// BindSession attaches the persisted session row to the device record
func (r *Registry) BindSession(mac string, sessionRowID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[mac]; ok {
		d.SessionRowID = sessionRowID
	}
}

// UpdateUsage refreshes usage counters for the device
func (r *Registry) UpdateUsage(mac string, dataUsedMB int64, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[mac]; ok {
		d.DataUsedMB = dataUsedMB
		d.Online = online
		d.LastSeen = time.Now()
	}
}

// List returns a snapshot of all devices sorted by MAC address
func (r *Registry) List() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		copied := *d
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MACAddress < out[j].MACAddress
	})
	return out
}

// Count returns the number of authorized devices
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
