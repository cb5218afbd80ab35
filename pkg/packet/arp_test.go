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

func TestArpRoundTrip(t *testing.T) {
	src, _ := net.ParseMAC("02:00:00:00:00:01")
	b := NewArpRequest(src, netip.MustParseAddr("192.168.1.2"), netip.MustParseAddr("192.168.1.1"))

	msg := b.Build(nil)
	require.Len(t, msg, ArpHeaderLen)

	p, err := DecodeArp(msg)
	require.NoError(t, err)
	assert.Equal(t, ArpHardwareTypeEthernet, p.HardwareType)
	assert.Equal(t, EtherTypeIPv4, p.ProtocolType)
	assert.Equal(t, uint8(6), p.HardwareAddrLength)
	assert.Equal(t, uint8(4), p.ProtocolAddrLength)
	assert.Equal(t, ArpOperationRequest, p.Operation)
	assert.Equal(t, src, p.SenderHardwareAddr)
	assert.Equal(t, netip.MustParseAddr("192.168.1.2"), p.SenderProtoAddr)
	assert.Equal(t, net.HardwareAddr{0, 0, 0, 0, 0, 0}, p.TargetHardwareAddr)
	assert.Equal(t, netip.MustParseAddr("192.168.1.1"), p.TargetProtoAddr)
	assert.Empty(t, p.Payload)
}

func TestArpMatchesGopacket(t *testing.T) {
	src, _ := net.ParseMAC("02:00:00:00:00:01")
	dst, _ := net.ParseMAC("02:00:00:00:00:02")
	b := ArpBuilder{
		SrcMAC:    src,
		SrcIP:     netip.MustParseAddr("10.0.0.1"),
		DstMAC:    dst,
		DstIP:     netip.MustParseAddr("10.0.0.2"),
		Operation: ArpOperationReply,
	}

	ref := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   src,
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      dst,
		DstProtAddress:    []byte{10, 0, 0, 2},
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, ref))

	assert.Equal(t, buf.Bytes(), b.Build(nil))
}

func TestArpBuilderNormalisesAddresses(t *testing.T) {
	b := ArpBuilder{Operation: ArpOperationRequest, SrcIP: netip.MustParseAddr("::1")}

	p, err := DecodeArp(b.Build(nil))
	require.NoError(t, err)
	assert.Equal(t, netip.IPv4Unspecified(), p.SenderProtoAddr)
	assert.Equal(t, net.HardwareAddr{0, 0, 0, 0, 0, 0}, p.SenderHardwareAddr)
}

func TestArpUnknownOperation(t *testing.T) {
	b := ArpBuilder{Operation: ArpOperation(42)}
	p, err := DecodeArp(b.Build([]byte{0, 0}))
	require.NoError(t, err)
	assert.False(t, p.Operation.Known())
	assert.Equal(t, ArpOperation(42), p.Operation)
	assert.Equal(t, "Unknown (42)", p.Operation.String())
	assert.Len(t, p.Payload, 2)
}

func TestDecodeArpTooShort(t *testing.T) {
	_, err := DecodeArp([]byte{0, 1, 8, 0})
	assert.ErrorIs(t, err, ErrPacketTooShort)

	msg := NewArpRequest(nil, netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2")).Build(nil)
	_, err = DecodeArp(msg[:20])
	assert.ErrorIs(t, err, ErrInvalidHeader)
}
