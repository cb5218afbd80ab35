package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/xsocket/internal/log"
	"firestige.xyz/xsocket/internal/metrics"
	"firestige.xyz/xsocket/pkg/datalink"
	"firestige.xyz/xsocket/pkg/packet"
	"firestige.xyz/xsocket/pkg/socket"
)

// State is the lifecycle position of a Listener.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

const readErrorBackoff = 10 * time.Millisecond

// ListenerOption customises a Listener.
type ListenerOption func(*Listener)

func WithLogger(l log.Logger) ListenerOption {
	return func(li *Listener) { li.logger = l }
}

// WithSourceFactory replaces OpenSource, mainly for tests.
func WithSourceFactory(f SourceFactory) ListenerOption {
	return func(li *Listener) { li.factory = f }
}

// WithInterface skips interface lookup and captures on ifi.
func WithInterface(ifi datalink.Interface) ListenerOption {
	return func(li *Listener) { li.ifi = &ifi }
}

// WithStopHandle shares an existing stop handle with the listener.
func WithStopHandle(h *StopHandle) ListenerOption {
	return func(li *Listener) { li.stop = h }
}

// Listener reads frames from one interface, decodes and filters them, and
// publishes matches on a channel in arrival order.
type Listener struct {
	opts    Options
	ifi     *datalink.Interface
	factory SourceFactory
	logger  log.Logger
	stop    *StopHandle

	state  atomic.Int32
	frames chan packet.PacketFrame

	mu     sync.Mutex
	stored []packet.PacketFrame

	captureNo        uint64
	received         atomic.Uint64
	published        atomic.Uint64
	droppedDecode    atomic.Uint64
	droppedFilter    atomic.Uint64
	droppedUndefined atomic.Uint64
	droppedChannel   atomic.Uint64
	kernelDrops      atomic.Uint64
}

// NewListener validates opts and returns a listener in StateCreated. No
// socket is opened until Start.
func NewListener(opts Options, lopts ...ListenerOption) (*Listener, error) {
	valid, err := opts.Validate()
	if err != nil {
		return nil, err
	}
	l := &Listener{
		opts:    valid,
		factory: OpenSource,
		logger:  log.GetLogger(),
	}
	for _, o := range lopts {
		o(l)
	}
	if l.ifi == nil && valid.InterfaceName == "" && valid.InterfaceIndex == 0 {
		return nil, fmt.Errorf("%w: no interface given", ErrInvalidOptions)
	}
	if l.stop == nil {
		l.stop = NewStopHandle()
	}
	l.frames = make(chan packet.PacketFrame, valid.ChannelCapacity)
	return l, nil
}

// Options returns the validated options.
func (l *Listener) Options() Options { return l.opts }

// Frames yields published frames. It is closed when the listener stops.
func (l *Listener) Frames() <-chan packet.PacketFrame { return l.frames }

// StopHandle returns the handle that ends Start.
func (l *Listener) StopHandle() *StopHandle { return l.stop }

// Stop requests a cooperative stop. Start returns within one read timeout.
func (l *Listener) Stop() { l.stop.Stop() }

func (l *Listener) State() State { return State(l.state.Load()) }

// Stored returns a copy of the retained frames.
func (l *Listener) Stored() []packet.PacketFrame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]packet.PacketFrame(nil), l.stored...)
}

func (l *Listener) Stats() Stats {
	l.mu.Lock()
	stored := len(l.stored)
	l.mu.Unlock()
	return Stats{
		Received:         l.received.Load(),
		Published:        l.published.Load(),
		DroppedDecode:    l.droppedDecode.Load(),
		DroppedFilter:    l.droppedFilter.Load(),
		DroppedUndefined: l.droppedUndefined.Load(),
		DroppedChannel:   l.droppedChannel.Load(),
		Stored:           stored,
		KernelDrops:      l.kernelDrops.Load(),
		QueueLength:      len(l.frames),
		QueueCapacity:    cap(l.frames),
	}
}

// Start opens the source and runs the receive loop until the stop handle
// fires, ctx is done, Duration elapses or, with StopOnStoreLimit, the
// store is full. On return the source and the frame channel are closed.
// A listener runs at most once.
func (l *Listener) Start(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	defer func() {
		l.state.Store(int32(StateStopped))
		close(l.frames)
	}()

	ifi, err := l.resolveInterface()
	if err != nil {
		return err
	}
	src, err := l.factory(ifi, l.opts)
	if err != nil {
		return fmt.Errorf("open %s source on %s: %w", l.opts.Engine, ifi.Name, err)
	}

	logger := l.logger.WithField("interface", ifi.Name).WithField("engine", string(l.opts.Engine))
	logger.Info("capture started")

	err = l.run(ctx, src, ifi, logger)

	l.updateKernelDrops(src, ifi.Name)
	if cerr := src.Close(); cerr != nil {
		logger.WithError(cerr).Warn("close capture source")
	}
	st := l.Stats()
	logger.WithFields(map[string]interface{}{
		"received":  st.Received,
		"published": st.Published,
		"stored":    st.Stored,
	}).Info("capture stopped")
	return err
}

func (l *Listener) resolveInterface() (datalink.Interface, error) {
	if l.ifi != nil {
		return *l.ifi, nil
	}
	ifi, err := datalink.Lookup(l.opts.InterfaceIndex, l.opts.InterfaceName)
	if err != nil {
		return datalink.Interface{}, fmt.Errorf("%w: %v", socket.ErrOpen, err)
	}
	return ifi, nil
}

func (l *Listener) run(ctx context.Context, src Source, ifi datalink.Interface, logger log.Logger) error {
	var deadline <-chan time.Time
	if l.opts.Duration > 0 {
		t := time.NewTimer(l.opts.Duration)
		defer t.Stop()
		deadline = t.C
	}

	name := ifi.Name
	received := metrics.CaptureFramesReceived.WithLabelValues(name)
	published := metrics.CaptureFramesPublished.WithLabelValues(name)
	stored := metrics.CaptureFramesStored.WithLabelValues(name)
	dropped := func(reason string) { metrics.CaptureFramesDropped.WithLabelValues(name, reason).Inc() }

	linkType := src.LinkType()
	for {
		// Exit conditions are checked before every blocking read so a stop
		// is observed within one read timeout.
		select {
		case <-ctx.Done():
			return nil
		case <-l.stop.Done():
			return nil
		case <-deadline:
			logger.Debug("capture duration elapsed")
			return nil
		default:
		}

		data, ts, err := src.ReadFrame()
		if err != nil {
			if socket.IsTimeout(err) {
				l.updateKernelDrops(src, name)
				continue
			}
			if errors.Is(err, socket.ErrClosed) {
				return nil
			}
			logger.WithError(err).Debug("read frame")
			l.backoff(ctx)
			continue
		}
		l.received.Add(1)
		received.Inc()

		frame, err := decodeFrame(linkType, data)
		if err != nil {
			l.droppedDecode.Add(1)
			dropped(metrics.DropDecode)
			if logger.IsDebugEnabled() {
				logger.WithError(err).WithField("len", len(data)).Debug("drop undecodable frame")
			}
			continue
		}
		if !l.opts.Match(&frame) {
			l.droppedFilter.Add(1)
			dropped(metrics.DropFilter)
			continue
		}
		if !frame.Classified() && !l.opts.ReceiveUndefined {
			l.droppedUndefined.Add(1)
			dropped(metrics.DropUndefined)
			continue
		}

		l.captureNo++
		frame.CaptureInfo = packet.CaptureInfo{
			CaptureNo:      l.captureNo,
			Timestamp:      ts,
			CaptureLen:     len(data),
			InterfaceIndex: ifi.Index,
			InterfaceName:  ifi.Name,
		}

		full := false
		if l.opts.Store {
			l.mu.Lock()
			if len(l.stored) < l.opts.StoreLimit {
				l.stored = append(l.stored, frame)
				stored.Set(float64(len(l.stored)))
			}
			full = len(l.stored) >= l.opts.StoreLimit
			l.mu.Unlock()
		}

		// Prefer dropping over blocking the read loop.
		select {
		case l.frames <- frame:
			l.published.Add(1)
			published.Inc()
		default:
			l.droppedChannel.Add(1)
			dropped(metrics.DropChannel)
			logger.Debug("frame channel full, dropping frame")
		}

		if full && l.opts.StopOnStoreLimit {
			logger.Debug("store limit reached")
			return nil
		}
	}
}

func (l *Listener) backoff(ctx context.Context) {
	t := time.NewTimer(readErrorBackoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-l.stop.Done():
	}
}

func (l *Listener) updateKernelDrops(src Source, name string) {
	ks, ok := src.(KernelStats)
	if !ok {
		return
	}
	n := ks.KernelDrops()
	l.kernelDrops.Store(n)
	metrics.CaptureKernelDrops.WithLabelValues(name).Set(float64(n))
}
