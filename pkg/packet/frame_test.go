package packet

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ethFrame(etherType EtherType, payload []byte) []byte {
	return EthernetBuilder{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EtherType: etherType}.Build(payload)
}

func TestDecodeEthernetFrameUdpDhcp(t *testing.T) {
	dhcp := NewDhcpDiscover(testSrcMAC).Build()
	udp := NewUdpBuilder(netip.MustParseAddrPort("0.0.0.0:68"), netip.MustParseAddrPort("255.255.255.255:67")).Build(dhcp)
	ip := NewIpv4Builder(netip.MustParseAddr("0.0.0.0"), netip.MustParseAddr("255.255.255.255"), IPProtocolUdp).Build(udp)

	f, err := DecodeEthernetFrame(ethFrame(EtherTypeIPv4, ip))
	require.NoError(t, err)
	require.NotNil(t, f.Udp)
	require.NotNil(t, f.Dhcp)
	mt, ok := f.Dhcp.MessageType()
	require.True(t, ok)
	assert.Equal(t, DhcpMessageDiscover, mt)

	port, ok := f.DstPort()
	require.True(t, ok)
	assert.Equal(t, uint16(67), port)
}

func TestDecodeEthernetFrameNonDhcpOnPort67(t *testing.T) {
	udp := NewUdpBuilder(netip.MustParseAddrPort("10.0.0.1:67"), netip.MustParseAddrPort("10.0.0.2:67")).Build([]byte("junk"))
	ip := NewIpv4Builder(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), IPProtocolUdp).Build(udp)

	f, err := DecodeEthernetFrame(ethFrame(EtherTypeIPv4, ip))
	require.NoError(t, err)
	assert.NotNil(t, f.Udp)
	assert.Nil(t, f.Dhcp)
}

func TestDecodeEthernetFrameGre(t *testing.T) {
	gre := GreBuilder{Protocol: EtherTypeIPv4}.Build(nil)
	ip := NewIpv4Builder(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), IPProtocolGre).Build(gre)

	f, err := DecodeEthernetFrame(ethFrame(EtherTypeIPv4, ip))
	require.NoError(t, err)
	require.NotNil(t, f.Gre)
	assert.True(t, f.Classified())
}

func TestDecodeEthernetFrameUnclassified(t *testing.T) {
	f, err := DecodeEthernetFrame(ethFrame(EtherTypeLldp, []byte{0x02, 0x07, 0x04}))
	require.NoError(t, err)
	assert.NotNil(t, f.Ethernet)
	assert.False(t, f.Classified())

	et, ok := f.EtherType()
	require.True(t, ok)
	assert.Equal(t, EtherTypeLldp, et)
	_, ok = f.SrcIP()
	assert.False(t, ok)
}

func TestDecodeEthernetFrameUnknownIPProtocol(t *testing.T) {
	ip := NewIpv4Builder(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), IPProtocolSctp).Build([]byte{1, 2, 3, 4})

	f, err := DecodeEthernetFrame(ethFrame(EtherTypeIPv4, ip))
	require.NoError(t, err)
	assert.NotNil(t, f.Ipv4)
	assert.False(t, f.Classified())

	proto, ok := f.IPProtocol()
	require.True(t, ok)
	assert.Equal(t, IPProtocolSctp, proto)
}

func TestDecodeEthernetFrameMalformed(t *testing.T) {
	_, err := DecodeEthernetFrame([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrPacketTooShort)

	ip := NewIpv4Builder(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), IPProtocolTcp).Build([]byte{0, 80})
	_, err = DecodeEthernetFrame(ethFrame(EtherTypeIPv4, ip))
	assert.ErrorIs(t, err, ErrPacketTooShort)
}

func TestDecodeEthernetFrameFragment(t *testing.T) {
	b := NewIpv4Builder(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), IPProtocolTcp)
	b.FragmentOffset = 185
	b.Flags = 0

	f, err := DecodeEthernetFrame(ethFrame(EtherTypeIPv4, b.Build([]byte{0xff})))
	require.NoError(t, err)
	require.NotNil(t, f.Ipv4)
	assert.True(t, f.Ipv4.IsFragment())
	assert.Nil(t, f.Tcp)
}

func TestDecodeEthernetFrameArpAddresses(t *testing.T) {
	arp := NewArpRequest(testSrcMAC, netip.MustParseAddr("10.0.0.7"), netip.MustParseAddr("10.0.0.1")).Build(nil)

	f, err := DecodeEthernetFrame(ethFrame(EtherTypeArp, arp))
	require.NoError(t, err)
	assert.True(t, f.Classified())

	src, ok := f.SrcIP()
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("10.0.0.7"), src)
	dst, ok := f.DstIP()
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), dst)
	_, ok = f.IPProtocol()
	assert.False(t, ok)
}

func TestDecodeIPFrame(t *testing.T) {
	icmp := NewIcmpBuilder().Build(nil)
	ip := NewIpv4Builder(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), IPProtocolIcmp).Build(icmp)

	f, err := DecodeIPFrame(ip)
	require.NoError(t, err)
	assert.Nil(t, f.Ethernet)
	require.NotNil(t, f.Icmp)

	et, ok := f.EtherType()
	require.True(t, ok)
	assert.Equal(t, EtherTypeIPv4, et)

	_, err = DecodeIPFrame([]byte{0x20})
	assert.ErrorIs(t, err, ErrUnsupportedProto)
}
