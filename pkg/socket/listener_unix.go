//go:build unix

package socket

import (
	"errors"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// ListenerSocket is an OS protocol socket that receives every datagram of
// one IP protocol, together with the peer address.
type ListenerSocket struct {
	fd     int
	opt    SocketOption
	closed atomic.Bool
}

// NewListenerSocket validates opt and opens the socket. A positive timeout
// bounds each ReceiveFrom.
func NewListenerSocket(opt SocketOption, timeout time.Duration) (*ListenerSocket, error) {
	if err := CheckSocketOption(opt); err != nil {
		return nil, err
	}

	domain := unix.AF_INET
	if opt.IPVersion == IPv6 {
		domain = unix.AF_INET6
	}
	typ := unix.SOCK_RAW
	switch opt.SocketType {
	case Dgram:
		typ = unix.SOCK_DGRAM
	case Stream:
		typ = unix.SOCK_STREAM
	}

	fd, err := unix.Socket(domain, typ, int(opt.Protocol))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, opt, err)
	}
	unix.CloseOnExec(fd)

	if timeout > 0 {
		tv := unix.NsecToTimeval(timeout.Nanoseconds())
		if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("%w: set receive timeout: %v", ErrOpen, err)
		}
	}
	if opt.IPVersion == IPv4 && opt.SocketType == Raw {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("%w: set IP_HDRINCL: %v", ErrOpen, err)
		}
	}
	return &ListenerSocket{fd: fd, opt: opt}, nil
}

// Option returns the triple the socket was opened with.
func (s *ListenerSocket) Option() SocketOption { return s.opt }

// ReceiveFrom reads one datagram into buf. Datagrams from peers without an
// inet address and interrupted reads are skipped.
func (s *ListenerSocket) ReceiveFrom(buf []byte) (int, netip.AddrPort, error) {
	for {
		if s.closed.Load() {
			return 0, netip.AddrPort{}, ErrClosed
		}
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			switch {
			case errors.Is(err, unix.EINTR):
				continue
			case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK):
				return 0, netip.AddrPort{}, ErrTimeout
			case s.closed.Load():
				return 0, netip.AddrPort{}, ErrClosed
			}
			return 0, netip.AddrPort{}, fmt.Errorf("recvfrom %s: %w", s.opt, err)
		}
		if peer, ok := peerAddr(from); ok {
			return n, peer, nil
		}
	}
}

// SendTo writes b to dst. For IPv4 raw sockets b must start with the IP
// header.
func (s *ListenerSocket) SendTo(b []byte, dst netip.Addr) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var sa unix.Sockaddr
	dst = dst.Unmap()
	switch {
	case dst.Is4() && s.opt.IPVersion == IPv4:
		sa = &unix.SockaddrInet4{Addr: dst.As4()}
	case dst.Is6() && s.opt.IPVersion == IPv6:
		sa = &unix.SockaddrInet6{Addr: dst.As16()}
	default:
		return 0, fmt.Errorf("%w: destination %s does not match %s socket", ErrInvalidOption, dst, s.opt.IPVersion)
	}
	if err := unix.Sendto(s.fd, b, 0, sa); err != nil {
		return 0, fmt.Errorf("sendto %s: %w", dst, err)
	}
	return len(b), nil
}

// Close releases the descriptor. Later calls return nil.
func (s *ListenerSocket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(s.fd)
}

func peerAddr(sa unix.Sockaddr) (netip.AddrPort, bool) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)), true
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)), true
	}
	return netip.AddrPort{}, false
}
