package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
)

func newTestMonitor(adapter *fakeAdapter, store *stubStore) (*Monitor, *Orchestrator) {
	orch := newTestOrchestrator(adapter, store)
	mon := NewMonitor(orch, adapter, store, MonitorConfig{Interval: time.Hour, MaxPollFailures: 3}, zerolog.Nop())
	return mon, orch
}

func authorizeDevice(t *testing.T, orch *Orchestrator, sessionRowID int64) *Device {
	t.Helper()
	device, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{
		MACAddress: "AA:BB:CC:DD:EE:FF",
		IPAddress:  "10.0.0.5",
	})
	require.NoError(t, err)
	if sessionRowID > 0 {
		orch.BindSession(device.MACAddress, sessionRowID)
	}
	return device
}

func TestSweepUpdatesSessionActivity(t *testing.T) {
	adapter := &fakeAdapter{usage: &Usage{DataUsedMB: 120, Online: true}}
	store := newStubStore()
	mon, orch := newTestMonitor(adapter, store)
	authorizeDevice(t, orch, 5)

	mon.Sweep(context.Background())

	assert.Equal(t, int64(120), store.activity[5])
	device := orch.Registry().Get("AA:BB:CC:DD:EE:FF")
	require.NotNil(t, device)
	assert.Equal(t, int64(120), device.DataUsedMB)
}

func TestSweepEnforcesTimeLimit(t *testing.T) {
	adapter := &fakeAdapter{usage: &Usage{DataUsedMB: 1, Online: true}}
	store := newStubStore()
	mon, orch := newTestMonitor(adapter, store)
	authorizeDevice(t, orch, 5)

	// Backdate the authorization past its time budget
	device := orch.Registry().Get("AA:BB:CC:DD:EE:FF")
	device.AuthorizedAt = time.Now().Add(-2 * time.Hour)
	orch.Registry().Put(device)

	mon.Sweep(context.Background())

	assert.Zero(t, orch.Registry().Count())
	assert.Equal(t, []int64{5}, store.ended)
	assert.Contains(t, store.eventTypes(), models.EventTypeLimitEnforced)
}

func TestSweepEnforcesDataLimit(t *testing.T) {
	adapter := &fakeAdapter{usage: &Usage{DataUsedMB: 2048, Online: true}}
	store := newStubStore()
	mon, orch := newTestMonitor(adapter, store)
	authorizeDevice(t, orch, 5)

	mon.Sweep(context.Background())

	assert.Zero(t, orch.Registry().Count())
	assert.Equal(t, []int64{5}, store.ended)
}

func TestSweepTreatsRepeatedPollFailuresAsPeerLost(t *testing.T) {
	adapter := &fakeAdapter{usageErr: errors.New("timeout")}
	store := newStubStore()
	mon, orch := newTestMonitor(adapter, store)
	authorizeDevice(t, orch, 5)

	mon.Sweep(context.Background())
	mon.Sweep(context.Background())
	assert.Equal(t, 1, orch.Registry().Count(), "device survives below the failure threshold")

	mon.Sweep(context.Background())
	assert.Zero(t, orch.Registry().Count())
	assert.Equal(t, []int64{5}, store.ended)
}

func TestSweepFailureStreakResetsOnSuccess(t *testing.T) {
	adapter := &fakeAdapter{usageErr: errors.New("timeout")}
	store := newStubStore()
	mon, orch := newTestMonitor(adapter, store)
	authorizeDevice(t, orch, 5)

	mon.Sweep(context.Background())
	mon.Sweep(context.Background())

	adapter.mu.Lock()
	adapter.usageErr = nil
	adapter.usage = &Usage{DataUsedMB: 10, Online: true}
	adapter.mu.Unlock()
	mon.Sweep(context.Background())
	require.Equal(t, 1, orch.Registry().Count())

	adapter.mu.Lock()
	adapter.usageErr = errors.New("timeout")
	adapter.mu.Unlock()
	mon.Sweep(context.Background())
	mon.Sweep(context.Background())
	assert.Equal(t, 1, orch.Registry().Count(), "streak restarted after a good poll")
}

func TestSweepUsageUnsupportedEnforcesTimeOnly(t *testing.T) {
	adapter := &fakeAdapter{usageErr: ErrUsageUnsupported}
	store := newStubStore()
	mon, orch := newTestMonitor(adapter, store)
	authorizeDevice(t, orch, 5)

	mon.Sweep(context.Background())
	mon.Sweep(context.Background())
	mon.Sweep(context.Background())
	require.Equal(t, 1, orch.Registry().Count(), "unsupported polling is not a failure streak")

	device := orch.Registry().Get("AA:BB:CC:DD:EE:FF")
	device.AuthorizedAt = time.Now().Add(-2 * time.Hour)
	orch.Registry().Put(device)

	mon.Sweep(context.Background())
	assert.Zero(t, orch.Registry().Count())
}

func TestSweepSkipsWhileRunning(t *testing.T) {
	adapter := &fakeAdapter{}
	store := newStubStore()
	mon, orch := newTestMonitor(adapter, store)
	authorizeDevice(t, orch, 5)

	mon.sweeping.Store(true)
	mon.Sweep(context.Background())
	assert.Zero(t, adapter.usageCalls)

	mon.sweeping.Store(false)
	mon.Sweep(context.Background())
	assert.Equal(t, 1, adapter.usageCalls)
}

func TestSweepExpiresOverdueVouchers(t *testing.T) {
	store := newStubStore()
	store.expired = 3
	mon, _ := newTestMonitor(&fakeAdapter{}, store)

	mon.Sweep(context.Background())

	assert.Contains(t, store.eventTypes(), models.EventTypeVoucherExpired)
}
