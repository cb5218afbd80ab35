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

func TestIpv4RoundTrip(t *testing.T) {
	b := Ipv4Builder{
		Source:         netip.MustParseAddr("192.168.1.10"),
		Destination:    netip.MustParseAddr("8.8.8.8"),
		Protocol:       IPProtocolUdp,
		TTL:            17,
		TOS:            0xb8,
		Identification: 0x1234,
		Flags:          Ipv4FlagDontFragment,
	}
	payload := []byte("hello")

	ip, err := DecodeIpv4(b.Build(payload))
	require.NoError(t, err)
	assert.Equal(t, uint8(4), ip.Version)
	assert.Equal(t, uint8(5), ip.HeaderLength)
	assert.Equal(t, uint8(0xb8>>2), ip.DSCP)
	assert.Equal(t, uint16(25), ip.TotalLength)
	assert.Equal(t, uint16(0x1234), ip.Identification)
	assert.Equal(t, Ipv4FlagDontFragment, ip.Flags)
	assert.Equal(t, uint8(17), ip.TTL)
	assert.Equal(t, IPProtocolUdp, ip.Protocol)
	assert.Equal(t, b.Source, ip.Source)
	assert.Equal(t, b.Destination, ip.Destination)
	assert.Equal(t, payload, ip.Payload)
	assert.False(t, ip.IsFragment())
}

func TestIpv4MatchesGopacket(t *testing.T) {
	b := Ipv4Builder{
		Source:         netip.MustParseAddr("10.0.0.1"),
		Destination:    netip.MustParseAddr("1.1.1.1"),
		Protocol:       IPProtocolTcp,
		TTL:            64,
		Identification: 0xbeef,
		Flags:          Ipv4FlagDontFragment,
	}
	payload := []byte{0xde, 0xad, 0xbe, 0xef}

	ref := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Id:       0xbeef,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(1, 1, 1, 1),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ref, gopacket.Payload(payload)))

	assert.Equal(t, buf.Bytes(), b.Build(payload))
}

func TestIpv4OptionsArePadded(t *testing.T) {
	b := NewIpv4Builder(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), IPProtocolIcmp)
	b.Options = []byte{0x94, 0x04, 0x00} // router alert, one byte short

	raw := b.Build(nil)
	require.Len(t, raw, 24)
	assert.Equal(t, uint16(0), Checksum(raw[:24]))

	ip, err := DecodeIpv4(raw)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), ip.HeaderLength)
	assert.Equal(t, []byte{0x94, 0x04, 0x00, 0x00}, ip.Options)
}

func TestIpv4OptionsCappedAtFortyBytes(t *testing.T) {
	b := NewIpv4Builder(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), IPProtocolUdp)
	b.Options = make([]byte, 44)
	for i := range b.Options {
		b.Options[i] = 0x01 // NOP
	}

	raw := b.Build([]byte{1, 2})
	require.Len(t, raw, 60+2)
	assert.Equal(t, byte(0x4f), raw[0])

	ip, err := DecodeIpv4(raw)
	require.NoError(t, err)
	assert.Equal(t, uint8(15), ip.HeaderLength)
	assert.Len(t, ip.Options, MaxIpv4OptionsLen)
	assert.Equal(t, []byte{1, 2}, ip.Payload)
}

func TestIpv4TrimsLinkPadding(t *testing.T) {
	raw := NewIpv4Builder(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), IPProtocolUdp).Build([]byte{1, 2})
	raw = append(raw, 0, 0, 0, 0, 0, 0)

	ip, err := DecodeIpv4(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, ip.Payload)
}

func TestDecodeIpv4Errors(t *testing.T) {
	_, err := DecodeIpv4(make([]byte, 19))
	assert.ErrorIs(t, err, ErrPacketTooShort)

	bad := make([]byte, 20)
	bad[0] = 0x65 // version 6
	_, err = DecodeIpv4(bad)
	assert.ErrorIs(t, err, ErrInvalidHeader)

	bad[0] = 0x4f // IHL 15 = 60 bytes
	_, err = DecodeIpv4(bad)
	assert.ErrorIs(t, err, ErrPacketTooShort)
}

func TestIpv6RoundTrip(t *testing.T) {
	b := NewIpv6Builder(netip.MustParseAddr("2001:db8::1"), netip.MustParseAddr("2001:db8::2"), IPProtocolIcmpv6)
	b.TrafficClass = 0x20
	b.FlowLabel = 0xabcde

	ip, err := DecodeIpv6(b.Build([]byte{9, 9, 9}))
	require.NoError(t, err)
	assert.Equal(t, uint8(6), ip.Version)
	assert.Equal(t, uint8(0x20), ip.TrafficClass)
	assert.Equal(t, uint32(0xabcde), ip.FlowLabel)
	assert.Equal(t, uint16(3), ip.PayloadLength)
	assert.Equal(t, IPProtocolIcmpv6, ip.NextHeader)
	assert.Equal(t, uint8(64), ip.HopLimit)
	assert.Equal(t, b.Source, ip.Source)
	assert.Equal(t, b.Destination, ip.Destination)
	assert.Equal(t, []byte{9, 9, 9}, ip.Payload)
}

func TestIpv6DecodedByGopacket(t *testing.T) {
	b := NewIpv6Builder(netip.MustParseAddr("fe80::1"), netip.MustParseAddr("ff02::1"), IPProtocolUdp)
	pkt := gopacket.NewPacket(b.Build(make([]byte, UdpHeaderLen)), layers.LayerTypeIPv6, gopacket.Default)

	ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	require.True(t, ok)
	assert.Equal(t, layers.IPProtocolUDP, ip6.NextHeader)
	assert.Equal(t, uint8(64), ip6.HopLimit)
	assert.Equal(t, "ff02::1", ip6.DstIP.String())
}

func TestIPProtocolUnknownFallback(t *testing.T) {
	b := NewIpv4Builder(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), IPProtocol(253))
	ip, err := DecodeIpv4(b.Build(nil))
	require.NoError(t, err)

	assert.False(t, ip.Protocol.Known())
	assert.Equal(t, IPProtocol(253), ip.Protocol)
	assert.Equal(t, "Unknown (253)", ip.Protocol.String())
	assert.Equal(t, "unknown_253", ip.Protocol.ID())
}

func TestParseIPProtocol(t *testing.T) {
	p, err := ParseIPProtocol("TCP")
	require.NoError(t, err)
	assert.Equal(t, IPProtocolTcp, p)

	p, err = ParseIPProtocol("132")
	require.NoError(t, err)
	assert.Equal(t, IPProtocolSctp, p)

	_, err = ParseIPProtocol("300")
	assert.Error(t, err)
}
