package capture

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/xsocket/pkg/packet"
)

func TestStatsDropRate(t *testing.T) {
	s := Stats{Received: 200, DroppedFilter: 30, DroppedDecode: 10, KernelDrops: 99}
	assert.Equal(t, uint64(40), s.Dropped())
	assert.InDelta(t, 20.0, s.DropRate(), 0.001)
	assert.Zero(t, Stats{}.DropRate())
}

func TestRatesBetween(t *testing.T) {
	prev := Stats{Received: 100, Published: 90, DroppedFilter: 10}
	cur := Stats{Received: 300, Published: 250, DroppedFilter: 50}
	r := RatesBetween(prev, cur, 2*time.Second)
	assert.InDelta(t, 100.0, r.Inbound, 0.001)
	assert.InDelta(t, 80.0, r.Published, 0.001)
	assert.InDelta(t, 20.0, r.Dropped, 0.001)

	assert.Equal(t, Rates{}, RatesBetween(prev, cur, 0))
	assert.Zero(t, RatesBetween(cur, prev, time.Second).Inbound)
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	WriteReport(&buf, "eth0", 1500*time.Millisecond, Stats{Received: 4, Published: 3, DroppedChannel: 1, QueueLength: 2, QueueCapacity: 8})
	out := buf.String()
	assert.Contains(t, out, "Interface:         eth0")
	assert.Contains(t, out, "Runtime:           1.5s")
	assert.Contains(t, out, "Dropped:           1 (decode 0, filter 0, undefined 0, channel 1)")
	assert.Contains(t, out, "Drop Rate:         25.00%")
	assert.Contains(t, out, "Queue Usage:       25.00%")
}

func TestMonitorStats(t *testing.T) {
	opts := testOptions()
	src := newFakeSource(opts.ReadTimeout,
		transportFrame(t, packet.IPProtocolTcp, 80),
		transportFrame(t, packet.IPProtocolTcp, 81),
		transportFrame(t, packet.IPProtocolUdp, 53),
	)
	l := newTestListener(t, opts, src)
	done := startAsync(l)
	<-src.drained

	snapshots := make(chan Stats, 16)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		MonitorStats(context.Background(), l, 10*time.Millisecond, func(s Stats, _ Rates) {
			select {
			case snapshots <- s:
			default:
			}
		})
	}()

	st := <-snapshots
	assert.Equal(t, uint64(3), st.Received)
	assert.Equal(t, 3, st.QueueLength)
	assert.Equal(t, DefaultChannelCapacity, st.QueueCapacity)

	l.Stop()
	require.NoError(t, <-done)
	select {
	case <-monitorDone:
	case <-time.After(time.Second):
		t.Fatal("monitor did not return after stop")
	}
}
