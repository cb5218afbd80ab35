package packet

import (
	"fmt"
	"net/netip"
	"time"
)

// CaptureInfo describes where and when a frame was captured.
type CaptureInfo struct {
	// CaptureNo numbers published frames from 1 in publish order.
	CaptureNo      uint64
	Timestamp      time.Time
	CaptureLen     int
	InterfaceIndex uint32
	InterfaceName  string
}

// PacketFrame is a captured frame decoded layer by layer. A nil layer was
// not present. All layers view the same backing buffer.
type PacketFrame struct {
	CaptureInfo CaptureInfo
	Ethernet    *EthernetPacket
	Arp         *ArpPacket
	Ipv4        *Ipv4Packet
	Ipv6        *Ipv6Packet
	Icmp        *IcmpPacket
	Icmpv6      *Icmpv6Packet
	Tcp         *TcpPacket
	Udp         *UdpPacket
	Gre         *GrePacket
	Dhcp        *DhcpPacket
}

// DecodeEthernetFrame decodes a frame that starts at the Ethernet header.
func DecodeEthernetFrame(data []byte) (PacketFrame, error) {
	var f PacketFrame
	eth, err := DecodeEthernet(data)
	if err != nil {
		return f, fmt.Errorf("ethernet: %w", err)
	}
	f.Ethernet = &eth

	switch eth.EtherType {
	case EtherTypeArp:
		a, err := DecodeArp(eth.Payload)
		if err != nil {
			return f, fmt.Errorf("arp: %w", err)
		}
		f.Arp = &a
	case EtherTypeIPv4:
		err = f.decodeIpv4(eth.Payload)
	case EtherTypeIPv6:
		err = f.decodeIpv6(eth.Payload)
	}
	return f, err
}

// DecodeIPFrame decodes a frame that starts at the IP header, as delivered
// by raw IP sockets.
func DecodeIPFrame(data []byte) (PacketFrame, error) {
	var f PacketFrame
	if len(data) < 1 {
		return f, ErrPacketTooShort
	}
	var err error
	switch data[0] >> 4 {
	case 4:
		err = f.decodeIpv4(data)
	case 6:
		err = f.decodeIpv6(data)
	default:
		err = ErrUnsupportedProto
	}
	return f, err
}

func (f *PacketFrame) decodeIpv4(b []byte) error {
	ip, err := DecodeIpv4(b)
	if err != nil {
		return fmt.Errorf("ipv4: %w", err)
	}
	f.Ipv4 = &ip
	// Only the first fragment carries the transport header.
	if ip.FragmentOffset != 0 {
		return nil
	}
	return f.decodeTransport(ip.Protocol, ip.Payload)
}

func (f *PacketFrame) decodeIpv6(b []byte) error {
	ip, err := DecodeIpv6(b)
	if err != nil {
		return fmt.Errorf("ipv6: %w", err)
	}
	f.Ipv6 = &ip
	return f.decodeTransport(ip.NextHeader, ip.Payload)
}

func (f *PacketFrame) decodeTransport(proto IPProtocol, b []byte) error {
	switch proto {
	case IPProtocolIcmp:
		p, err := DecodeIcmp(b)
		if err != nil {
			return fmt.Errorf("icmp: %w", err)
		}
		f.Icmp = &p
	case IPProtocolIcmpv6:
		p, err := DecodeIcmpv6(b)
		if err != nil {
			return fmt.Errorf("icmpv6: %w", err)
		}
		f.Icmpv6 = &p
	case IPProtocolTcp:
		p, err := DecodeTcp(b)
		if err != nil {
			return fmt.Errorf("tcp: %w", err)
		}
		f.Tcp = &p
	case IPProtocolUdp:
		p, err := DecodeUdp(b)
		if err != nil {
			return fmt.Errorf("udp: %w", err)
		}
		f.Udp = &p
		if isDhcpPort(p.SrcPort) || isDhcpPort(p.DstPort) {
			// A UDP/67 payload that is not DHCP still leaves a valid frame.
			if d, err := DecodeDhcp(p.Payload); err == nil {
				f.Dhcp = &d
			}
		}
	case IPProtocolGre:
		p, err := DecodeGre(b)
		if err != nil {
			return fmt.Errorf("gre: %w", err)
		}
		f.Gre = &p
	}
	return nil
}

func isDhcpPort(p uint16) bool { return p == DhcpServerPort || p == DhcpClientPort }

// EtherType returns the Ethernet payload type, or the type implied by the
// IP version when the frame has no Ethernet header.
func (f *PacketFrame) EtherType() (EtherType, bool) {
	switch {
	case f.Ethernet != nil:
		return f.Ethernet.EtherType, true
	case f.Ipv4 != nil:
		return EtherTypeIPv4, true
	case f.Ipv6 != nil:
		return EtherTypeIPv6, true
	}
	return 0, false
}

// IPProtocol returns the IPv4 protocol or IPv6 next header.
func (f *PacketFrame) IPProtocol() (IPProtocol, bool) {
	switch {
	case f.Ipv4 != nil:
		return f.Ipv4.Protocol, true
	case f.Ipv6 != nil:
		return f.Ipv6.NextHeader, true
	}
	return 0, false
}

// SrcIP returns the IP source, or the ARP sender protocol address.
func (f *PacketFrame) SrcIP() (netip.Addr, bool) {
	switch {
	case f.Ipv4 != nil:
		return f.Ipv4.Source, true
	case f.Ipv6 != nil:
		return f.Ipv6.Source, true
	case f.Arp != nil:
		return f.Arp.SenderProtoAddr, f.Arp.SenderProtoAddr.IsValid()
	}
	return netip.Addr{}, false
}

// DstIP returns the IP destination, or the ARP target protocol address.
func (f *PacketFrame) DstIP() (netip.Addr, bool) {
	switch {
	case f.Ipv4 != nil:
		return f.Ipv4.Destination, true
	case f.Ipv6 != nil:
		return f.Ipv6.Destination, true
	case f.Arp != nil:
		return f.Arp.TargetProtoAddr, f.Arp.TargetProtoAddr.IsValid()
	}
	return netip.Addr{}, false
}

// SrcPort returns the TCP or UDP source port.
func (f *PacketFrame) SrcPort() (uint16, bool) {
	switch {
	case f.Tcp != nil:
		return f.Tcp.SrcPort, true
	case f.Udp != nil:
		return f.Udp.SrcPort, true
	}
	return 0, false
}

// DstPort returns the TCP or UDP destination port.
func (f *PacketFrame) DstPort() (uint16, bool) {
	switch {
	case f.Tcp != nil:
		return f.Tcp.DstPort, true
	case f.Udp != nil:
		return f.Udp.DstPort, true
	}
	return 0, false
}

// Classified reports whether the frame decoded into a known higher layer:
// ARP, or IP with a decoded transport.
func (f *PacketFrame) Classified() bool {
	if f.Arp != nil {
		return true
	}
	if f.Ipv4 == nil && f.Ipv6 == nil {
		return false
	}
	return f.Icmp != nil || f.Icmpv6 != nil || f.Tcp != nil || f.Udp != nil || f.Gre != nil
}
