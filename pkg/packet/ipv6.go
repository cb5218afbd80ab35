package packet

import (
	"encoding/binary"
	"net/netip"

	"golang.org/x/net/ipv6"
)

const defaultHopLimit = 64

// Ipv6Packet is a decoded IPv6 fixed header. Extension headers are left in
// the payload.
type Ipv6Packet struct {
	Version       uint8
	TrafficClass  uint8
	FlowLabel     uint32
	PayloadLength uint16
	NextHeader    IPProtocol
	HopLimit      uint8
	Source        netip.Addr
	Destination   netip.Addr
	Payload       []byte
}

// DecodeIpv6 decodes an IPv6 fixed header.
func DecodeIpv6(data []byte) (Ipv6Packet, error) {
	if len(data) < ipv6.HeaderLen {
		return Ipv6Packet{}, ErrPacketTooShort
	}
	if data[0]>>4 != ipv6.Version {
		return Ipv6Packet{}, ErrInvalidHeader
	}

	// Version (4) | Traffic Class (8) | Flow Label (20)
	word := binary.BigEndian.Uint32(data[0:4])
	ip := Ipv6Packet{
		Version:       ipv6.Version,
		TrafficClass:  uint8(word >> 20),
		FlowLabel:     word & 0x000FFFFF,
		PayloadLength: binary.BigEndian.Uint16(data[4:6]),
		NextHeader:    IPProtocol(data[6]),
		HopLimit:      data[7],
		Source:        netip.AddrFrom16([16]byte(data[8:24])),
		Destination:   netip.AddrFrom16([16]byte(data[24:40])),
	}

	end := len(data)
	// A zero payload length means a jumbogram; keep everything.
	if plen := int(ip.PayloadLength); plen > 0 && ipv6.HeaderLen+plen < end {
		end = ipv6.HeaderLen + plen
	}
	ip.Payload = data[ipv6.HeaderLen:end]
	return ip, nil
}

// Ipv6Builder encodes an IPv6 fixed header.
type Ipv6Builder struct {
	Source       netip.Addr
	Destination  netip.Addr
	NextHeader   IPProtocol
	HopLimit     uint8
	TrafficClass uint8
	FlowLabel    uint32
}

// NewIpv6Builder returns a builder with hop limit 64.
func NewIpv6Builder(src, dst netip.Addr, next IPProtocol) Ipv6Builder {
	return Ipv6Builder{
		Source:      src,
		Destination: dst,
		NextHeader:  next,
		HopLimit:    defaultHopLimit,
	}
}

func (Ipv6Builder) networkLayer() {}

// Build returns the header followed by payload with payload length set.
func (b Ipv6Builder) Build(payload []byte) []byte {
	buf := make([]byte, ipv6.HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(ipv6.Version)<<28|uint32(b.TrafficClass)<<20|b.FlowLabel&0x000FFFFF)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	buf[6] = uint8(b.NextHeader)
	buf[7] = b.HopLimit
	src, dst := b.Source.As16(), b.Destination.As16()
	copy(buf[8:24], src[:])
	copy(buf[24:40], dst[:])
	copy(buf[ipv6.HeaderLen:], payload)
	return buf
}
