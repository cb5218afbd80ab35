package socket

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/bpf"

	"firestige.xyz/xsocket/internal/metrics"
	"firestige.xyz/xsocket/pkg/datalink"
	"firestige.xyz/xsocket/pkg/packet"
)

const (
	// DefaultSnapLen covers a full jumbo frame.
	DefaultSnapLen = 65535
	// DefaultReadTimeout bounds every Receive call.
	DefaultReadTimeout = 100 * time.Millisecond
)

// frameConn is the platform link-layer endpoint behind a DataLinkSocket.
type frameConn interface {
	readFrame(b []byte) (int, error)
	writeFrame(b []byte) (int, error)
	setFilter(prog []bpf.RawInstruction) error
	close() error
}

type config struct {
	readTimeout time.Duration
	snapLen     int
	filter      []bpf.RawInstruction
}

// Option configures a DataLinkSocket.
type Option func(*config)

// WithReadTimeout bounds each Receive. Zero blocks until a frame arrives.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) { c.readTimeout = d }
}

// WithSnapLen sets the largest frame Receive returns.
func WithSnapLen(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.snapLen = n
		}
	}
}

// WithFilter attaches an assembled classic BPF program at open time.
func WithFilter(prog []bpf.RawInstruction) Option {
	return func(c *config) { c.filter = prog }
}

// DataLinkSocket sends and receives whole Ethernet frames on one interface.
type DataLinkSocket struct {
	ifi    datalink.Interface
	conn   frameConn
	closed atomic.Bool

	mu  sync.Mutex // guards buf
	buf []byte

	bytesSent  uint64
	framesSent uint64
}

// NewDataLinkSocket opens a link-layer socket bound to ifi.
func NewDataLinkSocket(ifi datalink.Interface, promiscuous bool, opts ...Option) (*DataLinkSocket, error) {
	cfg := config{
		readTimeout: DefaultReadTimeout,
		snapLen:     DefaultSnapLen,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	conn, err := openFrameConn(ifi, promiscuous, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, ifi.Name, err)
	}
	return newDataLinkSocket(ifi, conn, cfg), nil
}

func newDataLinkSocket(ifi datalink.Interface, conn frameConn, cfg config) *DataLinkSocket {
	return &DataLinkSocket{
		ifi:  ifi,
		conn: conn,
		buf:  make([]byte, cfg.snapLen),
	}
}

// Interface returns the interface the socket is bound to.
func (s *DataLinkSocket) Interface() datalink.Interface { return s.ifi }

// SendTo writes one complete Ethernet frame and returns the bytes written.
// A short write is reported as an error wrapping io.ErrShortWrite.
func (s *DataLinkSocket) SendTo(frame []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if len(frame) < packet.EthernetHeaderLen {
		return 0, fmt.Errorf("%w: %d bytes is shorter than an ethernet header", ErrInvalidFrame, len(frame))
	}
	n, err := s.conn.writeFrame(frame)
	if err == nil && n != len(frame) {
		err = io.ErrShortWrite
	}
	if n > 0 {
		atomic.AddUint64(&s.bytesSent, uint64(n))
		metrics.SocketBytesSent.WithLabelValues(s.ifi.Name).Add(float64(n))
	}
	if err != nil {
		return n, fmt.Errorf("send on %s: %w", s.ifi.Name, err)
	}
	atomic.AddUint64(&s.framesSent, 1)
	metrics.SocketFramesSent.WithLabelValues(s.ifi.Name).Inc()
	return n, nil
}

// Send serialises b and writes the frame. A builder without an Ethernet
// layer is rejected by the frame length check.
func (s *DataLinkSocket) Send(b *packet.PacketBuilder) (int, error) {
	return s.SendTo(b.Packet())
}

// Receive returns the next frame as a new slice of exactly the bytes read.
func (s *DataLinkSocket) Receive() ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.conn.readFrame(s.buf)
	if err != nil {
		if IsTimeout(err) {
			return nil, fmt.Errorf("%w on %s", ErrTimeout, s.ifi.Name)
		}
		if s.closed.Load() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("receive on %s: %w", s.ifi.Name, err)
	}
	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out, nil
}

// SetFilter replaces the kernel filter. A nil program accepts everything.
func (s *DataLinkSocket) SetFilter(prog []bpf.RawInstruction) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.conn.setFilter(prog); err != nil {
		return fmt.Errorf("set filter on %s: %w", s.ifi.Name, err)
	}
	return nil
}

// Stats returns the frames and bytes sent so far.
func (s *DataLinkSocket) Stats() (frames, bytes uint64) {
	return atomic.LoadUint64(&s.framesSent), atomic.LoadUint64(&s.bytesSent)
}

// Close releases the socket. Later calls return nil.
func (s *DataLinkSocket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.close()
}

// acceptAll is the program installed when a filter is cleared.
var acceptAll = []bpf.RawInstruction{{Op: 0x06, K: 0xffffffff}}
