//go:build !unix

package socket

import (
	"net/netip"
	"time"
)

// ListenerSocket is unavailable on this platform.
type ListenerSocket struct{}

func NewListenerSocket(opt SocketOption, timeout time.Duration) (*ListenerSocket, error) {
	if err := CheckSocketOption(opt); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}

func (s *ListenerSocket) Option() SocketOption { return SocketOption{} }

func (s *ListenerSocket) ReceiveFrom(buf []byte) (int, netip.AddrPort, error) {
	return 0, netip.AddrPort{}, ErrUnsupported
}

func (s *ListenerSocket) SendTo(b []byte, dst netip.Addr) (int, error) { return 0, ErrUnsupported }

func (s *ListenerSocket) Close() error { return nil }
