package network

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "lowercase colons", in: "aa:bb:cc:dd:ee:ff", want: "AA:BB:CC:DD:EE:FF"},
		{name: "dashes", in: "aa-bb-cc-dd-ee-ff", want: "AA:BB:CC:DD:EE:FF"},
		{name: "surrounding space", in: "  AA:BB:CC:DD:EE:FF ", want: "AA:BB:CC:DD:EE:FF"},
		{name: "dotted", in: "aabb.ccdd.eeff", want: "AA:BB:CC:DD:EE:FF"},
		{name: "garbage", in: "hello", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMAC(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistryBeginAuthorize(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.BeginAuthorize("AA:BB:CC:DD:EE:FF"))
	assert.False(t, r.BeginAuthorize("AA:BB:CC:DD:EE:FF"), "second attempt while in flight")

	r.EndAuthorize("AA:BB:CC:DD:EE:FF")
	assert.True(t, r.BeginAuthorize("AA:BB:CC:DD:EE:FF"))
	r.EndAuthorize("AA:BB:CC:DD:EE:FF")

	r.Put(&Device{MACAddress: "AA:BB:CC:DD:EE:FF"})
	assert.False(t, r.BeginAuthorize("AA:BB:CC:DD:EE:FF"), "already authorized")
}

func TestRegistryPutGetRemove(t *testing.T) {
	r := NewRegistry()

	assert.Nil(t, r.Get("AA:BB:CC:DD:EE:FF"))
	assert.Nil(t, r.Remove("AA:BB:CC:DD:EE:FF"))

	d := &Device{MACAddress: "AA:BB:CC:DD:EE:FF", VoucherID: 1}
	r.Put(d)
	assert.Equal(t, d, r.Get("AA:BB:CC:DD:EE:FF"))
	assert.Equal(t, 1, r.Count())

	removed := r.Remove("AA:BB:CC:DD:EE:FF")
	require.NotNil(t, removed)
	assert.Equal(t, int64(1), removed.VoucherID)
	assert.Zero(t, r.Count())
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Put(&Device{MACAddress: "AA:BB:CC:DD:EE:FF", DataUsedMB: 1})

	d := r.Get("AA:BB:CC:DD:EE:FF")
	d.DataUsedMB = 999
	d.SessionRowID = 999

	stored := r.Get("AA:BB:CC:DD:EE:FF")
	assert.Equal(t, int64(1), stored.DataUsedMB)
	assert.Zero(t, stored.SessionRowID)
}

func TestRegistryGetSafeAgainstConcurrentUsageWrites(t *testing.T) {
	r := NewRegistry()
	r.Put(&Device{MACAddress: "AA:BB:CC:DD:EE:FF", AuthorizedAt: time.Now()})

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				r.UpdateUsage("AA:BB:CC:DD:EE:FF", int64(i), i%2 == 0)
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if _, err := json.Marshal(r.Get("AA:BB:CC:DD:EE:FF")); err != nil {
					t.Errorf("marshal device: %v", err)
					return
				}
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestRegistryRemoveReturnsCurrentRecord(t *testing.T) {
	r := NewRegistry()
	r.Put(&Device{MACAddress: "AA:BB:CC:DD:EE:FF"})

	snapshot := r.Get("AA:BB:CC:DD:EE:FF")
	r.BindSession("AA:BB:CC:DD:EE:FF", 31)

	removed := r.Remove("AA:BB:CC:DD:EE:FF")
	require.NotNil(t, removed)
	assert.Equal(t, int64(31), removed.SessionRowID, "removal sees the bind, the earlier snapshot does not")
	assert.Zero(t, snapshot.SessionRowID)
}

func TestRegistryBindSession(t *testing.T) {
	r := NewRegistry()
	r.Put(&Device{MACAddress: "AA:BB:CC:DD:EE:FF"})

	r.BindSession("AA:BB:CC:DD:EE:FF", 12)
	assert.Equal(t, int64(12), r.Get("AA:BB:CC:DD:EE:FF").SessionRowID)

	// Unknown MAC is a no-op
	r.BindSession("11:22:33:44:55:66", 99)
	assert.Nil(t, r.Get("11:22:33:44:55:66"))
}

func TestRegistryUpdateUsage(t *testing.T) {
	r := NewRegistry()
	r.Put(&Device{MACAddress: "AA:BB:CC:DD:EE:FF"})

	before := time.Now()
	r.UpdateUsage("AA:BB:CC:DD:EE:FF", 256, true)

	d := r.Get("AA:BB:CC:DD:EE:FF")
	assert.Equal(t, int64(256), d.DataUsedMB)
	assert.True(t, d.Online)
	assert.False(t, d.LastSeen.Before(before))
}

func TestRegistryListReturnsSortedCopies(t *testing.T) {
	r := NewRegistry()
	r.Put(&Device{MACAddress: "CC:CC:CC:CC:CC:CC"})
	r.Put(&Device{MACAddress: "AA:AA:AA:AA:AA:AA"})
	r.Put(&Device{MACAddress: "BB:BB:BB:BB:BB:BB"})

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "AA:AA:AA:AA:AA:AA", list[0].MACAddress)
	assert.Equal(t, "BB:BB:BB:BB:BB:BB", list[1].MACAddress)
	assert.Equal(t, "CC:CC:CC:CC:CC:CC", list[2].MACAddress)

	// Mutating the snapshot must not touch the registry
	list[0].DataUsedMB = 999
	assert.Zero(t, r.Get("AA:AA:AA:AA:AA:AA").DataUsedMB)
}
