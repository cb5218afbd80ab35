package packet

import (
	"net"
	"net/netip"
)

// NetworkLayer is a builder for the layer above Ethernet: ArpBuilder,
// Ipv4Builder or Ipv6Builder.
type NetworkLayer interface {
	Build(payload []byte) []byte
	networkLayer()
}

// TransportLayer is a builder for the layer above IP: IcmpBuilder,
// Icmpv6Builder, TcpBuilder, UdpBuilder or GreBuilder.
type TransportLayer interface {
	Build(payload []byte) []byte
	IPProtocol() IPProtocol
	transportLayer()
}

// PacketBuilder assembles a frame from per-layer builders.
//
// Each tier holds at most one builder and setting another one replaces
// it. An explicit builder owns its tier. The flat fields only promote into
// a tier that has no builder: Ethernet when a MAC is set, ARP when
// EtherType is ARP, IPv4 or IPv6 from the family of SrcIP and DstIP, and a
// transport when IPProtocol is TCP, UDP, ICMP or ICMPv6.
type PacketBuilder struct {
	SrcMAC     net.HardwareAddr
	DstMAC     net.HardwareAddr
	SrcIP      netip.Addr
	DstIP      netip.Addr
	SrcPort    uint16
	DstPort    uint16
	IPProtocol IPProtocol
	EtherType  EtherType
	Payload    []byte

	ethernet  *EthernetBuilder
	network   NetworkLayer
	transport TransportLayer
}

// NewPacketBuilder returns an empty builder.
func NewPacketBuilder() *PacketBuilder {
	return &PacketBuilder{}
}

// SetEthernet sets the Ethernet layer. The other setters replace the
// builder of their tier, so the last call wins.
func (p *PacketBuilder) SetEthernet(b EthernetBuilder) { p.ethernet = &b }
func (p *PacketBuilder) SetArp(b ArpBuilder) { p.network = b }
func (p *PacketBuilder) SetIpv4(b Ipv4Builder) { p.network = b }
func (p *PacketBuilder) SetIpv6(b Ipv6Builder) { p.network = b }
func (p *PacketBuilder) SetIcmp(b IcmpBuilder) { p.transport = b }
func (p *PacketBuilder) SetIcmpv6(b Icmpv6Builder) { p.transport = b }
func (p *PacketBuilder) SetTcp(b TcpBuilder) { p.transport = b }
func (p *PacketBuilder) SetUdp(b UdpBuilder) { p.transport = b }
func (p *PacketBuilder) SetGre(b GreBuilder) { p.transport = b }

// Ethernet returns the explicit Ethernet builder, if any.
func (p *PacketBuilder) Ethernet() (EthernetBuilder, bool) {
	if p.ethernet == nil {
		return EthernetBuilder{}, false
	}
	return *p.ethernet, true
}

// Network returns the explicit network builder or nil.
func (p *PacketBuilder) Network() NetworkLayer { return p.network }

// Transport returns the explicit transport builder or nil.
func (p *PacketBuilder) Transport() TransportLayer { return p.transport }

// Packet serialises every present layer outermost first. Without an
// Ethernet layer the result starts at the network header. The builder
// itself is left unchanged.
func (p *PacketBuilder) Packet() []byte {
	network := p.networkLayer()
	transport := p.transportLayer()

	buf := append([]byte(nil), p.Payload...)
	if _, isArp := network.(ArpBuilder); !isArp && transport != nil {
		if src, dst, ok := networkAddrs(network); ok {
			transport = withAddrs(transport, src, dst)
		}
		buf = transport.Build(buf)
		network = withProtocol(network, transport.IPProtocol())
	}
	if network != nil {
		buf = network.Build(buf)
	}
	if eth, ok := p.ethernetLayer(network); ok {
		buf = eth.Build(buf)
	}
	return buf
}

func (p *PacketBuilder) ethernetLayer(network NetworkLayer) (EthernetBuilder, bool) {
	var eth EthernetBuilder
	switch {
	case p.ethernet != nil:
		eth = *p.ethernet
	case p.SrcMAC != nil || p.DstMAC != nil:
		eth = EthernetBuilder{SrcMAC: p.SrcMAC, DstMAC: p.DstMAC, EtherType: p.EtherType}
	default:
		return eth, false
	}
	if eth.EtherType == 0 {
		eth.EtherType = etherTypeOf(network)
	}
	return eth, true
}

func (p *PacketBuilder) networkLayer() NetworkLayer {
	if p.network != nil {
		return p.network
	}
	src, dst := p.SrcIP.Unmap(), p.DstIP.Unmap()
	switch {
	case p.EtherType == EtherTypeArp:
		if !src.IsValid() && !dst.IsValid() {
			return nil
		}
		return NewArpRequest(p.SrcMAC, src, dst)
	case src.Is4() && dst.Is4():
		return NewIpv4Builder(src, dst, p.IPProtocol)
	case src.Is6() && dst.Is6():
		return NewIpv6Builder(src, dst, p.IPProtocol)
	}
	return nil
}

func (p *PacketBuilder) transportLayer() TransportLayer {
	if p.transport != nil {
		return p.transport
	}
	src := netip.AddrPortFrom(p.SrcIP, p.SrcPort)
	dst := netip.AddrPortFrom(p.DstIP, p.DstPort)
	switch p.IPProtocol {
	case IPProtocolTcp:
		return NewTcpBuilder(src, dst)
	case IPProtocolUdp:
		return NewUdpBuilder(src, dst)
	case IPProtocolIcmp:
		b := NewIcmpBuilder()
		b.Source, b.Destination = p.SrcIP, p.DstIP
		return b
	case IPProtocolIcmpv6:
		return NewIcmpv6Builder(p.SrcIP, p.DstIP)
	}
	return nil
}

func etherTypeOf(n NetworkLayer) EtherType {
	switch n.(type) {
	case ArpBuilder:
		return EtherTypeArp
	case Ipv4Builder:
		return EtherTypeIPv4
	case Ipv6Builder:
		return EtherTypeIPv6
	}
	return 0
}

func networkAddrs(n NetworkLayer) (src, dst netip.Addr, ok bool) {
	switch b := n.(type) {
	case Ipv4Builder:
		return b.Source, b.Destination, true
	case Ipv6Builder:
		return b.Source, b.Destination, true
	}
	return netip.Addr{}, netip.Addr{}, false
}

// withProtocol fills a zero protocol number from the transport tier.
func withProtocol(n NetworkLayer, proto IPProtocol) NetworkLayer {
	switch b := n.(type) {
	case Ipv4Builder:
		if b.Protocol == 0 {
			b.Protocol = proto
		}
		return b
	case Ipv6Builder:
		if b.NextHeader == 0 {
			b.NextHeader = proto
		}
		return b
	}
	return n
}

// withAddrs fills missing pseudo-header addresses from the network tier.
func withAddrs(t TransportLayer, src, dst netip.Addr) TransportLayer {
	switch b := t.(type) {
	case TcpBuilder:
		if !b.Source.Addr().IsValid() {
			b.Source = netip.AddrPortFrom(src, b.Source.Port())
		}
		if !b.Destination.Addr().IsValid() {
			b.Destination = netip.AddrPortFrom(dst, b.Destination.Port())
		}
		return b
	case UdpBuilder:
		if !b.Source.Addr().IsValid() {
			b.Source = netip.AddrPortFrom(src, b.Source.Port())
		}
		if !b.Destination.Addr().IsValid() {
			b.Destination = netip.AddrPortFrom(dst, b.Destination.Port())
		}
		return b
	case Icmpv6Builder:
		if !b.Source.IsValid() {
			b.Source = src
		}
		if !b.Destination.IsValid() {
			b.Destination = dst
		}
		return b
	}
	return t
}
