package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/xsocket/pkg/packet"
)

func TestCheckSocketOption(t *testing.T) {
	tests := []struct {
		name string
		opt  SocketOption
		ok   bool
	}{
		{"v4 stream tcp", SocketOption{IPv4, Stream, packet.IPProtocolTcp}, true},
		{"v4 stream udp", SocketOption{IPv4, Stream, packet.IPProtocolUdp}, false},
		{"v4 raw icmp", SocketOption{IPv4, Raw, packet.IPProtocolIcmp}, true},
		{"v4 raw tcp", SocketOption{IPv4, Raw, packet.IPProtocolTcp}, true},
		{"v4 raw udp", SocketOption{IPv4, Raw, packet.IPProtocolUdp}, true},
		{"v4 raw icmpv6", SocketOption{IPv4, Raw, packet.IPProtocolIcmpv6}, false},
		{"v4 dgram icmp", SocketOption{IPv4, Dgram, packet.IPProtocolIcmp}, true},
		{"v4 dgram tcp", SocketOption{IPv4, Dgram, packet.IPProtocolTcp}, false},
		{"v6 raw icmpv6", SocketOption{IPv6, Raw, packet.IPProtocolIcmpv6}, true},
		{"v6 raw icmp", SocketOption{IPv6, Raw, packet.IPProtocolIcmp}, false},
		{"v6 dgram udp", SocketOption{IPv6, Dgram, packet.IPProtocolUdp}, true},
		{"v6 dgram icmpv6", SocketOption{IPv6, Dgram, packet.IPProtocolIcmpv6}, true},
		{"v6 stream tcp", SocketOption{IPv6, Stream, packet.IPProtocolTcp}, true},
		{"v6 stream udp", SocketOption{IPv6, Stream, packet.IPProtocolUdp}, false},
		{"no protocol", SocketOption{IPv4, Raw, 0}, false},
		{"unknown version", SocketOption{IPVersion(7), Raw, packet.IPProtocolTcp}, false},
		{"unknown protocol", SocketOption{IPv4, Raw, packet.IPProtocol(200)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSocketOption(tt.opt)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidOption)
			assert.Contains(t, err.Error(), "invalid protocol")
		})
	}
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(ErrTimeout))
	assert.False(t, IsTimeout(ErrClosed))
	assert.False(t, IsTimeout(nil))
}
