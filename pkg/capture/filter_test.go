package capture

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/xsocket/pkg/packet"
)

func decode(t *testing.T, b []byte) *packet.PacketFrame {
	t.Helper()
	f, err := packet.DecodeEthernetFrame(b)
	require.NoError(t, err)
	return &f
}

func TestMatchEmptyOptionsAcceptsAll(t *testing.T) {
	var o Options
	assert.True(t, o.Match(decode(t, lldpFrame())))
	assert.True(t, o.Match(decode(t, transportFrame(t, packet.IPProtocolUdp, 53))))
}

func TestMatchAndAcrossDimensions(t *testing.T) {
	o := Options{
		SrcIPs:   NewSet(netip.MustParseAddr("10.0.0.2")),
		DstPorts: NewSet[uint16](53, 5353),
	}
	assert.True(t, o.Match(decode(t, transportFrame(t, packet.IPProtocolUdp, 53))))
	assert.True(t, o.Match(decode(t, transportFrame(t, packet.IPProtocolTcp, 5353))))
	assert.False(t, o.Match(decode(t, transportFrame(t, packet.IPProtocolUdp, 80))))

	o.SrcIPs = NewSet(netip.MustParseAddr("10.0.0.9"))
	assert.False(t, o.Match(decode(t, transportFrame(t, packet.IPProtocolUdp, 53))))
}

func TestMatchMissingFieldFailsDimension(t *testing.T) {
	o := Options{DstPorts: NewSet[uint16](80)}
	assert.False(t, o.Match(decode(t, lldpFrame())))

	o = Options{EtherTypes: NewSet(packet.EtherTypeLldp)}
	assert.True(t, o.Match(decode(t, lldpFrame())))
	assert.False(t, o.Match(decode(t, transportFrame(t, packet.IPProtocolUdp, 80))))
}

func TestMatchArpAddresses(t *testing.T) {
	sender := netip.MustParseAddr("192.168.0.10")
	arp := packet.NewArpRequest(net.HardwareAddr{2, 0, 0, 0, 0, 2}, sender, netip.MustParseAddr("192.168.0.1"))
	frame := packet.EthernetBuilder{
		SrcMAC:    net.HardwareAddr{2, 0, 0, 0, 0, 2},
		DstMAC:    net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EtherType: packet.EtherTypeArp,
	}.Build(arp.Build(nil))

	o := Options{SrcIPs: NewSet(sender)}
	assert.True(t, o.Match(decode(t, frame)))

	o.IPProtocols = NewSet(packet.IPProtocolTcp)
	assert.False(t, o.Match(decode(t, frame)))
}

func TestValidateUnmapsAddresses(t *testing.T) {
	opts := DefaultOptions()
	opts.DstIPs = NewSet(netip.MustParseAddr("::ffff:10.0.0.1"))
	valid, err := opts.Validate()
	require.NoError(t, err)
	assert.True(t, valid.DstIPs.Contains(netip.MustParseAddr("10.0.0.1")))
	assert.True(t, valid.Match(decode(t, transportFrame(t, packet.IPProtocolUdp, 53))))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		ok     bool
	}{
		{"defaults", func(*Options) {}, true},
		{"zero values get defaults", func(o *Options) { *o = Options{} }, true},
		{"negative duration", func(o *Options) { o.Duration = -1 }, false},
		{"store without limit", func(o *Options) { o.Store = true }, false},
		{"stop on limit without store", func(o *Options) { o.StopOnStoreLimit = true }, false},
		{"unknown engine", func(o *Options) { o.Engine = "netmap" }, false},
		{"raw without protocols", func(o *Options) { o.Engine = EngineRaw }, false},
		{"raw with gre", func(o *Options) {
			o.Engine = EngineRaw
			o.IPProtocols = NewSet(packet.IPProtocolGre)
		}, false},
		{"raw with tcp", func(o *Options) {
			o.Engine = EngineRaw
			o.IPProtocols = NewSet(packet.IPProtocolTcp)
		}, true},
		{"raw kernel filter", func(o *Options) {
			o.Engine = EngineRaw
			o.IPProtocols = NewSet(packet.IPProtocolTcp)
			o.KernelFilter = true
		}, false},
		{"kernel filter", func(o *Options) {
			o.KernelFilter = true
			o.IPProtocols = NewSet(packet.IPProtocolTcp, packet.IPProtocolUdp)
		}, true},
		{"kernel filter and expression", func(o *Options) {
			o.KernelFilter = true
			o.BPFExpression = "udp"
		}, false},
		{"raw expression", func(o *Options) {
			o.Engine = EngineRaw
			o.IPProtocols = NewSet(packet.IPProtocolUdp)
			o.BPFExpression = "udp"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.modify(&o)
			valid, err := o.Validate()
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidOptions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultReadTimeout, valid.ReadTimeout)
			assert.Equal(t, DefaultChannelCapacity, valid.ChannelCapacity)
			assert.NotEmpty(t, valid.Engine)
		})
	}
}

func TestParseEngine(t *testing.T) {
	e, err := ParseEngine("AFPACKET")
	require.NoError(t, err)
	assert.Equal(t, EngineAfpacket, e)
	e, err = ParseEngine("")
	require.NoError(t, err)
	assert.Equal(t, EngineSocket, e)
	_, err = ParseEngine("pfring")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestStopHandle(t *testing.T) {
	h := NewStopHandle()
	assert.False(t, h.Stopped())
	h.Stop()
	h.Stop()
	assert.True(t, h.Stopped())
	select {
	case <-h.Done():
	default:
		t.Fatal("done not closed")
	}
}
