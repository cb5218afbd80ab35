//go:build linux

package socket

import (
	"errors"
	"os"
	"time"

	"github.com/mdlayher/packet"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"firestige.xyz/xsocket/pkg/datalink"
)

// packetConn is an AF_PACKET SOCK_RAW socket receiving every ethertype.
type packetConn struct {
	conn    *packet.Conn
	timeout time.Duration
}

func openFrameConn(ifi datalink.Interface, promiscuous bool, cfg config) (frameConn, error) {
	conn, err := packet.Listen(ifi.NetInterface(), packet.Raw, unix.ETH_P_ALL, &packet.Config{
		Filter: cfg.filter,
	})
	if err != nil {
		return nil, err
	}
	if promiscuous {
		if err := conn.SetPromiscuous(true); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return &packetConn{conn: conn, timeout: cfg.readTimeout}, nil
}

func (c *packetConn) readFrame(b []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	n, _, err := c.conn.ReadFrom(b)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, ErrTimeout
		}
		return 0, err
	}
	return n, nil
}

func (c *packetConn) writeFrame(b []byte) (int, error) {
	// The destination only selects the interface for SOCK_RAW; the frame
	// already carries its own link-layer header.
	return c.conn.WriteTo(b, &packet.Addr{HardwareAddr: b[0:6]})
}

func (c *packetConn) setFilter(prog []bpf.RawInstruction) error {
	if prog == nil {
		prog = acceptAll
	}
	return c.conn.SetBPF(prog)
}

func (c *packetConn) close() error { return c.conn.Close() }
