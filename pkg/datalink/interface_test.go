package datalink

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInterface() Interface {
	return Interface{
		Index:   2,
		Name:    "eth0",
		MacAddr: net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		MTU:     1500,
		IPv4: []InterfaceAddr{
			{Addr: netip.MustParseAddr("192.168.1.4"), Prefix: netip.MustParsePrefix("192.168.1.0/24")},
		},
		IPv6: []InterfaceAddr{
			{Addr: netip.MustParseAddr("fe80::1"), Prefix: netip.MustParsePrefix("fe80::/64")},
			{Addr: netip.MustParseAddr("2001:db8::4"), Prefix: netip.MustParsePrefix("2001:db8::/64")},
		},
	}
}

func TestPrimaryAddresses(t *testing.T) {
	ifi := testInterface()

	v4, ok := ifi.PrimaryIPv4()
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("192.168.1.4"), v4)

	v6, ok := ifi.PrimaryIPv6()
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("2001:db8::4"), v6)

	_, ok = Interface{}.PrimaryIPv4()
	assert.False(t, ok)
}

func TestOnLink(t *testing.T) {
	ifi := testInterface()
	assert.True(t, ifi.OnLink(netip.MustParseAddr("192.168.1.200")))
	assert.True(t, ifi.OnLink(netip.MustParseAddr("::ffff:192.168.1.1")))
	assert.False(t, ifi.OnLink(netip.MustParseAddr("1.1.1.1")))
}

func TestNetInterface(t *testing.T) {
	ni := testInterface().NetInterface()
	assert.Equal(t, 2, ni.Index)
	assert.Equal(t, "eth0", ni.Name)
	assert.Equal(t, 1500, ni.MTU)
}

func TestLookupLoopback(t *testing.T) {
	ifaces, err := net.Interfaces()
	require.NoError(t, err)
	for _, ni := range ifaces {
		if ni.Flags&net.FlagLoopback == 0 {
			continue
		}
		ifi, err := Lookup(0, ni.Name)
		require.NoError(t, err)
		assert.Equal(t, uint32(ni.Index), ifi.Index)

		byIndex, err := Lookup(uint32(ni.Index), "")
		require.NoError(t, err)
		assert.Equal(t, ni.Name, byIndex.Name)
		return
	}
	t.Skip("no loopback interface")
}

func TestLookupRequiresNameOrIndex(t *testing.T) {
	_, err := Lookup(0, "")
	assert.Error(t, err)
}
