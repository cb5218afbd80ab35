package capture

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Stats are the listener counters. Every received frame ends up either
// published or in exactly one drop counter, except channel drops which
// were numbered and stored before being dropped.
type Stats struct {
	Received         uint64
	Published        uint64
	DroppedDecode    uint64
	DroppedFilter    uint64
	DroppedUndefined uint64
	DroppedChannel   uint64
	Stored           int
	KernelDrops      uint64

	// QueueLength is the number of published frames not yet consumed.
	QueueLength   int
	QueueCapacity int
}

// Dropped is the sum of the drop counters, kernel drops excluded.
func (s Stats) Dropped() uint64 {
	return s.DroppedDecode + s.DroppedFilter + s.DroppedUndefined + s.DroppedChannel
}

// DropRate is the share of received frames that were dropped, in percent.
func (s Stats) DropRate() float64 {
	if s.Received == 0 {
		return 0
	}
	return float64(s.Dropped()) / float64(s.Received) * 100
}

// Rates are per-second deltas between two Stats snapshots.
type Rates struct {
	Inbound   float64 // received frames per second
	Published float64
	Dropped   float64
}

// RatesBetween computes the rates from prev to cur over elapsed.
func RatesBetween(prev, cur Stats, elapsed time.Duration) Rates {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return Rates{}
	}
	delta := func(a, b uint64) float64 {
		if b < a {
			return 0
		}
		return float64(b-a) / secs
	}
	return Rates{
		Inbound:   delta(prev.Received, cur.Received),
		Published: delta(prev.Published, cur.Published),
		Dropped:   delta(prev.Dropped(), cur.Dropped()),
	}
}

// MonitorStats calls fn with a snapshot and the rates since the previous
// one every interval until ctx is done or the listener stops.
func MonitorStats(ctx context.Context, l *Listener, interval time.Duration, fn func(Stats, Rates)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev, last := l.Stats(), time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.StopHandle().Done():
			return
		case now := <-ticker.C:
			if l.State() == StateStopped {
				return
			}
			cur := l.Stats()
			fn(cur, RatesBetween(prev, cur, now.Sub(last)))
			prev, last = cur, now
		}
	}
}

// WriteReport prints a multi-section summary of s.
func WriteReport(w io.Writer, iface string, elapsed time.Duration, s Stats) {
	fmt.Fprintln(w, "[CAPTURE INFO]")
	fmt.Fprintf(w, "  Interface:         %s\n", iface)
	fmt.Fprintf(w, "  Runtime:           %v\n", elapsed.Truncate(time.Millisecond))

	fmt.Fprintln(w, "[PACKET STATS]")
	fmt.Fprintf(w, "  Received:          %d\n", s.Received)
	fmt.Fprintf(w, "  Published:         %d\n", s.Published)
	fmt.Fprintf(w, "  Stored:            %d\n", s.Stored)
	fmt.Fprintf(w, "  Dropped:           %d (decode %d, filter %d, undefined %d, channel %d)\n",
		s.Dropped(), s.DroppedDecode, s.DroppedFilter, s.DroppedUndefined, s.DroppedChannel)
	fmt.Fprintf(w, "  Drop Rate:         %.2f%%\n", s.DropRate())
	fmt.Fprintf(w, "  Kernel Drops:      %d\n", s.KernelDrops)

	fmt.Fprintln(w, "[QUEUE STATS]")
	fmt.Fprintf(w, "  Queue Length:      %d\n", s.QueueLength)
	fmt.Fprintf(w, "  Queue Capacity:    %d\n", s.QueueCapacity)
	if s.QueueCapacity > 0 {
		fmt.Fprintf(w, "  Queue Usage:       %.2f%%\n", float64(s.QueueLength)/float64(s.QueueCapacity)*100)
	}
}
