package network

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotspot-server/hotspot-server-pro/internal/events"
	"github.com/hotspot-server/hotspot-server-pro/internal/models"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
)

// stubStore implements the handful of Store methods the orchestrator
// and monitor touch. Everything else panics via the embedded nil.
type stubStore struct {
	storage.Store

	mu          sync.Mutex
	activeCount int64
	countErr    error
	ended       []int64
	eventLogs   []*models.EventLog
	activity    map[int64]int64
	expired     int64
	expireErr   error
}

func newStubStore() *stubStore {
	return &stubStore{activity: make(map[int64]int64)}
}

func (s *stubStore) CountActiveSessionsForVoucher(_ context.Context, _ int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCount, s.countErr
}

func (s *stubStore) EndSession(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, id)
	return true, nil
}

func (s *stubStore) UpdateSessionActivity(_ context.Context, id, dataUsedMB int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[id] = dataUsedMB
	return true, nil
}

func (s *stubStore) CreateEventLog(_ context.Context, event *models.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventLogs = append(s.eventLogs, event)
	return nil
}

func (s *stubStore) ExpireOverdueVouchers(_ context.Context, _ time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired, s.expireErr
}

func (s *stubStore) eventTypes() []models.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EventType, 0, len(s.eventLogs))
	for _, e := range s.eventLogs {
		out = append(out, e.Type)
	}
	return out
}

// fakeAdapter counts calls and fails on demand
type fakeAdapter struct {
	mu        sync.Mutex
	applyErrs []error
	removeErr error
	usage     *Usage
	usageErr  error

	applyCalls  int
	removeCalls int
	usageCalls  int
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) ApplyPolicy(_ context.Context, _ DeviceInfo, _ Policy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls++
	if len(f.applyErrs) > 0 {
		err := f.applyErrs[0]
		f.applyErrs = f.applyErrs[1:]
		return err
	}
	return nil
}

func (f *fakeAdapter) RemovePolicy(_ context.Context, _ DeviceInfo, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	return f.removeErr
}

func (f *fakeAdapter) Usage(_ context.Context, _ DeviceInfo) (*Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usageCalls++
	if f.usageErr != nil {
		return nil, f.usageErr
	}
	if f.usage != nil {
		u := *f.usage
		return &u, nil
	}
	return &Usage{Online: true}, nil
}

func testPlan() *models.Plan {
	cap := int64(1024)
	return &models.Plan{
		ID:                 1,
		Name:               "Standard",
		DurationMinutes:    60,
		DataLimitMB:        &cap,
		SpeedLimitDownMbps: 10,
		SpeedLimitUpMbps:   5,
		MaxDevices:         2,
		IsActive:           true,
	}
}

func testVoucher() *models.Voucher {
	return &models.Voucher{ID: 42, Code: "WIFI-2026-ABC123", PlanID: 1, Status: models.VoucherStatusActive}
}

func newTestOrchestrator(adapter Adapter, store storage.Store) *Orchestrator {
	registry := NewRegistry()
	notifier := events.NewNotifier(64, zerolog.Nop())
	return NewOrchestrator(adapter, registry, store, notifier, Options{Attempts: 2, Backoff: time.Millisecond}, zerolog.Nop())
}

func TestAuthorizeRegistersDevice(t *testing.T) {
	adapter := &fakeAdapter{}
	store := newStubStore()
	orch := newTestOrchestrator(adapter, store)

	device, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{
		MACAddress: "aa:bb:cc:dd:ee:ff",
		IPAddress:  "10.0.0.5",
	})
	require.NoError(t, err)

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", device.MACAddress)
	assert.Equal(t, "10.0.0.5", device.IPAddress)
	assert.Equal(t, int64(42), device.VoucherID)
	assert.Equal(t, time.Hour, device.TimeLimit)
	assert.Equal(t, int64(1024), device.DataCapMB)
	assert.NotEmpty(t, device.NetworkSessionID)
	assert.True(t, device.Online)

	assert.Equal(t, 1, adapter.applyCalls)
	assert.Equal(t, 1, orch.Registry().Count())
	assert.Contains(t, store.eventTypes(), models.EventTypeDeviceAuthorized)
}

func TestAuthorizeRejectsDuplicateDevice(t *testing.T) {
	adapter := &fakeAdapter{}
	orch := newTestOrchestrator(adapter, newStubStore())

	_, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{MACAddress: "AA:BB:CC:DD:EE:FF"})
	require.NoError(t, err)

	_, err = orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{MACAddress: "aa-bb-cc-dd-ee-ff"})
	assert.ErrorIs(t, err, ErrAlreadyAuthorized)
	assert.Equal(t, 1, adapter.applyCalls)
}

func TestAuthorizeRejectsInFlightDevice(t *testing.T) {
	adapter := &fakeAdapter{}
	orch := newTestOrchestrator(adapter, newStubStore())

	require.True(t, orch.Registry().BeginAuthorize("AA:BB:CC:DD:EE:FF"))

	_, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{MACAddress: "AA:BB:CC:DD:EE:FF"})
	assert.ErrorIs(t, err, ErrAlreadyAuthorized)
	assert.Zero(t, adapter.applyCalls)
}

func TestAuthorizeEnforcesDeviceLimit(t *testing.T) {
	adapter := &fakeAdapter{}
	store := newStubStore()
	store.activeCount = 2 // plan.MaxDevices
	orch := newTestOrchestrator(adapter, store)

	_, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{MACAddress: "AA:BB:CC:DD:EE:FF"})
	assert.ErrorIs(t, err, ErrDeviceLimit)
	assert.Zero(t, adapter.applyCalls)
	assert.Zero(t, orch.Registry().Count())
}

func TestAuthorizeRetriesTransportFailure(t *testing.T) {
	adapter := &fakeAdapter{applyErrs: []error{errors.New("connection refused")}}
	orch := newTestOrchestrator(adapter, newStubStore())

	_, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{MACAddress: "AA:BB:CC:DD:EE:FF"})
	require.NoError(t, err)
	assert.Equal(t, 2, adapter.applyCalls)
}

func TestAuthorizeReportsBackendUnreachable(t *testing.T) {
	boom := errors.New("connection refused")
	adapter := &fakeAdapter{applyErrs: []error{boom, boom}}
	orch := newTestOrchestrator(adapter, newStubStore())

	_, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{MACAddress: "AA:BB:CC:DD:EE:FF"})
	assert.ErrorIs(t, err, ErrBackendUnreachable)
	assert.Equal(t, 2, adapter.applyCalls)
	assert.Zero(t, orch.Registry().Count())
}

func TestAuthorizeDoesNotRetryPolicyRejection(t *testing.T) {
	adapter := &fakeAdapter{applyErrs: []error{ErrPolicyRejected}}
	orch := newTestOrchestrator(adapter, newStubStore())

	_, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{MACAddress: "AA:BB:CC:DD:EE:FF"})
	assert.ErrorIs(t, err, ErrPolicyRejected)
	assert.Equal(t, 1, adapter.applyCalls)
}

func TestAuthorizeRejectsInvalidMAC(t *testing.T) {
	adapter := &fakeAdapter{}
	orch := newTestOrchestrator(adapter, newStubStore())

	_, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{MACAddress: "not-a-mac"})
	assert.Error(t, err)
	assert.Zero(t, adapter.applyCalls)
}

func TestDeauthorizeUnknownDevice(t *testing.T) {
	orch := newTestOrchestrator(&fakeAdapter{}, newStubStore())

	removed, err := orch.Deauthorize(context.Background(), "AA:BB:CC:DD:EE:FF", ReasonManual)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDeauthorizeEndsSession(t *testing.T) {
	adapter := &fakeAdapter{}
	store := newStubStore()
	orch := newTestOrchestrator(adapter, store)

	_, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{MACAddress: "AA:BB:CC:DD:EE:FF"})
	require.NoError(t, err)
	orch.BindSession("AA:BB:CC:DD:EE:FF", 7)

	removed, err := orch.Deauthorize(context.Background(), "AA:BB:CC:DD:EE:FF", ReasonManual)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, orch.Registry().Count())
	assert.Equal(t, []int64{7}, store.ended)
	assert.Contains(t, store.eventTypes(), models.EventTypeDeviceDeauthorized)

	// Second call is a no-op
	removed, err = orch.Deauthorize(context.Background(), "AA:BB:CC:DD:EE:FF", ReasonManual)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, adapter.removeCalls)
}

func TestDeauthorizeDropsLocalStateOnBackendFailure(t *testing.T) {
	adapter := &fakeAdapter{removeErr: errors.New("connection refused")}
	store := newStubStore()
	orch := newTestOrchestrator(adapter, store)

	_, err := orch.Authorize(context.Background(), testVoucher(), testPlan(), DeviceInfo{MACAddress: "AA:BB:CC:DD:EE:FF"})
	require.NoError(t, err)
	orch.BindSession("AA:BB:CC:DD:EE:FF", 9)

	removed, err := orch.Deauthorize(context.Background(), "AA:BB:CC:DD:EE:FF", ReasonTimeLimit)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, orch.Registry().Count())
	assert.Equal(t, []int64{9}, store.ended)
}
