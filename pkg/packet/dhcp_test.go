package packet

import (
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDhcpDiscoverRoundTrip(t *testing.T) {
	mac, _ := net.ParseMAC("02:42:ac:11:00:02")
	b := NewDhcpDiscover(mac)
	b.TransactionID = 0xcafef00d
	b.Options = append(b.Options, DhcpOption{Code: DhcpOptionHostName, Data: []byte("probe")})

	raw := b.Build()
	require.Len(t, raw, DhcpMinLen)

	p, err := DecodeDhcp(raw)
	require.NoError(t, err)
	assert.Equal(t, DhcpOperationRequest, p.Op)
	assert.Equal(t, uint32(0xcafef00d), p.TransactionID)
	assert.Equal(t, mac, p.ClientHardwareAddr)
	assert.True(t, p.Broadcast())
	assert.Equal(t, netip.IPv4Unspecified(), p.ClientIP)

	mt, ok := p.MessageType()
	require.True(t, ok)
	assert.Equal(t, DhcpMessageDiscover, mt)
	assert.Equal(t, "DHCPDISCOVER", mt.String())

	host, ok := p.Option(DhcpOptionHostName)
	require.True(t, ok)
	assert.Equal(t, []byte("probe"), host)
	require.Len(t, p.Options, 3)
	assert.Equal(t, DhcpOptionMessageType, p.Options[0].Code)
	assert.Equal(t, DhcpOptionParameterRequestList, p.Options[1].Code)
}

func TestDhcpDecodedByGopacket(t *testing.T) {
	mac, _ := net.ParseMAC("02:42:ac:11:00:02")
	b := DhcpBuilder{
		Op:                 DhcpOperationReply,
		TransactionID:      42,
		YourIP:             netip.MustParseAddr("192.168.1.50"),
		ClientHardwareAddr: mac,
		MessageType:        DhcpMessageOffer,
		ServerName:         "gw",
	}
	pkt := gopacket.NewPacket(b.Build(), layers.LayerTypeDHCPv4, gopacket.Default)

	d, ok := pkt.Layer(layers.LayerTypeDHCPv4).(*layers.DHCPv4)
	require.True(t, ok)
	assert.Equal(t, layers.DHCPOpReply, d.Operation)
	assert.Equal(t, uint32(42), d.Xid)
	assert.Equal(t, "192.168.1.50", d.YourClientIP.String())
	assert.Equal(t, mac, d.ClientHWAddr)
	require.NotEmpty(t, d.Options)
	assert.Equal(t, layers.DHCPOptMessageType, d.Options[0].Type)
	assert.Equal(t, []byte{byte(DhcpMessageOffer)}, d.Options[0].Data)
}

func TestDhcpWithoutCookieHasNoOptions(t *testing.T) {
	raw := DhcpBuilder{Op: DhcpOperationRequest, ServerName: "boot"}.Build()
	raw[236] = 0

	p, err := DecodeDhcp(raw)
	require.NoError(t, err)
	assert.Nil(t, p.Options)
	assert.Equal(t, "boot", p.ServerName)
	_, ok := p.MessageType()
	assert.False(t, ok)
}

func TestDecodeDhcpErrors(t *testing.T) {
	_, err := DecodeDhcp(make([]byte, 100))
	assert.ErrorIs(t, err, ErrPacketTooShort)

	raw := DhcpBuilder{MessageType: DhcpMessageAck}.Build()
	raw[241] = 200 // option length past the buffer
	_, err = DecodeDhcp(raw)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}
