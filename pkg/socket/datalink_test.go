package socket

import (
	"errors"
	"io"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"

	"firestige.xyz/xsocket/pkg/datalink"
	"firestige.xyz/xsocket/pkg/packet"
)

type fakeConn struct {
	inbound [][]byte
	written [][]byte
	filter  []bpf.RawInstruction
	readErr error
	// short truncates every write by this many bytes.
	short  int
	closed int
}

func (c *fakeConn) readFrame(b []byte) (int, error) {
	if c.readErr != nil {
		return 0, c.readErr
	}
	if len(c.inbound) == 0 {
		return 0, ErrTimeout
	}
	n := copy(b, c.inbound[0])
	c.inbound = c.inbound[1:]
	return n, nil
}

func (c *fakeConn) writeFrame(b []byte) (int, error) {
	n := len(b) - c.short
	c.written = append(c.written, append([]byte(nil), b[:n]...))
	return n, nil
}

func (c *fakeConn) setFilter(prog []bpf.RawInstruction) error {
	c.filter = prog
	return nil
}

func (c *fakeConn) close() error {
	c.closed++
	return nil
}

func newTestSocket(conn *fakeConn) *DataLinkSocket {
	ifi := datalink.Interface{Index: 7, Name: "test0", MacAddr: net.HardwareAddr{2, 0, 0, 0, 0, 1}}
	return newDataLinkSocket(ifi, conn, config{snapLen: 128})
}

func TestReceiveReturnsExactCopy(t *testing.T) {
	conn := &fakeConn{inbound: [][]byte{make([]byte, 60), {1, 2, 3}}}
	s := newTestSocket(conn)

	first, err := s.Receive()
	require.NoError(t, err)
	assert.Len(t, first, 60)

	second, err := s.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, second)
	// the first frame must not alias the shared read buffer
	assert.Equal(t, make([]byte, 60), first)
}

func TestReceiveTimeout(t *testing.T) {
	s := newTestSocket(&fakeConn{})
	_, err := s.Receive()
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTimeout(err))
}

func TestReceiveWrapsReadError(t *testing.T) {
	boom := errors.New("boom")
	s := newTestSocket(&fakeConn{readErr: boom})
	_, err := s.Receive()
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsTimeout(err))
}

func TestSendToRejectsShortFrame(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSocket(conn)
	n, err := s.SendTo(make([]byte, 13))
	assert.ErrorIs(t, err, ErrInvalidFrame)
	assert.Zero(t, n)
	assert.Empty(t, conn.written)

	n, err = s.SendTo(make([]byte, 14))
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	frames, bytes := s.Stats()
	assert.Equal(t, uint64(1), frames)
	assert.Equal(t, uint64(14), bytes)
}

func TestSendToReportsShortWrite(t *testing.T) {
	conn := &fakeConn{short: 4}
	s := newTestSocket(conn)

	n, err := s.SendTo(make([]byte, 64))
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 60, n)
	frames, bytes := s.Stats()
	assert.Zero(t, frames)
	assert.Equal(t, uint64(60), bytes)
}

func TestSendBuilder(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSocket(conn)

	b := packet.NewPacketBuilder()
	b.SrcMAC = net.HardwareAddr{2, 0, 0, 0, 0, 1}
	b.DstMAC = net.HardwareAddr{2, 0, 0, 0, 0, 2}
	b.SrcIP = netip.MustParseAddr("192.168.1.2")
	b.DstIP = netip.MustParseAddr("192.168.1.1")
	b.SetUdp(packet.NewUdpBuilder(
		netip.MustParseAddrPort("192.168.1.2:5353"),
		netip.MustParseAddrPort("192.168.1.1:53"),
	))
	n, err := s.Send(b)
	require.NoError(t, err)
	require.Len(t, conn.written, 1)
	assert.Equal(t, len(conn.written[0]), n)
	assert.Equal(t, len(b.Packet()), n)

	frame, err := packet.DecodeEthernetFrame(conn.written[0])
	require.NoError(t, err)
	require.NotNil(t, frame.Udp)
	assert.Equal(t, uint16(53), frame.Udp.DstPort)

	_, err = s.Send(packet.NewPacketBuilder())
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSocket(conn)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, conn.closed)

	_, err := s.Receive()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.SendTo(make([]byte, 64))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.SetFilter(nil), ErrClosed)
}
