package packet

import (
	"encoding/binary"
	"math/rand/v2"
	"net/netip"

	"golang.org/x/net/ipv4"
)

// IPv4 flag bits as carried in the top three bits of the fragment word.
const (
	Ipv4FlagMoreFragments uint8 = 0x1
	Ipv4FlagDontFragment  uint8 = 0x2
)

const defaultTTL = 64

// MaxIpv4OptionsLen is the largest option area a 4-bit IHL can describe.
const MaxIpv4OptionsLen = 40

// Ipv4Packet is a decoded IPv4 header.
type Ipv4Packet struct {
	Version        uint8
	HeaderLength   uint8 // in 32-bit words
	DSCP           uint8
	ECN            uint8
	TotalLength    uint16
	Identification uint16
	Flags          uint8
	FragmentOffset uint16
	TTL            uint8
	Protocol       IPProtocol
	Checksum       uint16
	Source         netip.Addr
	Destination    netip.Addr
	Options        []byte
	Payload        []byte
}

// DecodeIpv4 decodes an IPv4 header. The payload is cut at TotalLength so
// link-layer padding is not reported as data.
func DecodeIpv4(data []byte) (Ipv4Packet, error) {
	if len(data) < ipv4.HeaderLen {
		return Ipv4Packet{}, ErrPacketTooShort
	}
	if data[0]>>4 != ipv4.Version {
		return Ipv4Packet{}, ErrInvalidHeader
	}

	// IHL - lower 4 bits of first byte, in 32-bit words
	ihl := data[0] & 0x0F
	headerLen := int(ihl) * 4
	if headerLen < ipv4.HeaderLen || len(data) < headerLen {
		return Ipv4Packet{}, ErrPacketTooShort
	}

	ip := Ipv4Packet{
		Version:      ipv4.Version,
		HeaderLength: ihl,
		DSCP:         data[1] >> 2,
		ECN:          data[1] & 0x03,

		// Total Length (2 bytes at offset 2)
		TotalLength: binary.BigEndian.Uint16(data[2:4]),

		// Identification (2 bytes at offset 4)
		Identification: binary.BigEndian.Uint16(data[4:6]),

		TTL:      data[8],
		Protocol: IPProtocol(data[9]),
		Checksum: binary.BigEndian.Uint16(data[10:12]),
	}

	// Flags (3 bits) and Fragment Offset (13 bits) at offset 6
	frag := binary.BigEndian.Uint16(data[6:8])
	ip.Flags = uint8(frag >> 13)
	ip.FragmentOffset = frag & 0x1FFF

	ip.Source = netip.AddrFrom4([4]byte(data[12:16]))
	ip.Destination = netip.AddrFrom4([4]byte(data[16:20]))

	if headerLen > ipv4.HeaderLen {
		ip.Options = data[ipv4.HeaderLen:headerLen]
	}

	// TotalLength beyond the buffer is a truncated capture; keep what
	// was captured.
	end := len(data)
	if total := int(ip.TotalLength); total >= headerLen && total < end {
		end = total
	}
	ip.Payload = data[headerLen:end]
	return ip, nil
}

// IsFragment reports whether the datagram is part of a fragmented packet.
func (p Ipv4Packet) IsFragment() bool {
	return p.Flags&Ipv4FlagMoreFragments != 0 || p.FragmentOffset != 0
}

// Ipv4Builder encodes an IPv4 header.
type Ipv4Builder struct {
	Source         netip.Addr
	Destination    netip.Addr
	Protocol       IPProtocol
	TTL            uint8
	TOS            uint8
	Identification uint16
	Flags          uint8
	FragmentOffset uint16
	// Options are copied verbatim and zero-padded to a 4-byte boundary.
	// Bytes past MaxIpv4OptionsLen are dropped.
	Options []byte
}

// NewIpv4Builder returns a builder with TTL 64, DF set and a random
// identification.
func NewIpv4Builder(src, dst netip.Addr, proto IPProtocol) Ipv4Builder {
	return Ipv4Builder{
		Source:         src,
		Destination:    dst,
		Protocol:       proto,
		TTL:            defaultTTL,
		Identification: uint16(rand.Uint32()),
		Flags:          Ipv4FlagDontFragment,
	}
}

func (Ipv4Builder) networkLayer() {}

// Build returns the header followed by payload with total length and
// header checksum filled in.
func (b Ipv4Builder) Build(payload []byte) []byte {
	options := b.Options
	if len(options) > MaxIpv4OptionsLen {
		options = options[:MaxIpv4OptionsLen]
	}
	optLen := (len(options) + 3) &^ 3
	headerLen := ipv4.HeaderLen + optLen
	buf := make([]byte, headerLen+len(payload))

	buf[0] = ipv4.Version<<4 | uint8(headerLen/4)
	buf[1] = b.TOS
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)))
	binary.BigEndian.PutUint16(buf[4:6], b.Identification)
	binary.BigEndian.PutUint16(buf[6:8], uint16(b.Flags&0x7)<<13|b.FragmentOffset&0x1FFF)
	buf[8] = b.TTL
	buf[9] = uint8(b.Protocol)
	src, dst := to4(b.Source), to4(b.Destination)
	copy(buf[12:16], src[:])
	copy(buf[16:20], dst[:])
	copy(buf[ipv4.HeaderLen:], options)

	binary.BigEndian.PutUint16(buf[10:12], Checksum(buf[:headerLen]))
	copy(buf[headerLen:], payload)
	return buf
}

// to4 returns the IPv4 bytes of a, or 0.0.0.0 when a is not IPv4.
func to4(a netip.Addr) [4]byte {
	a = a.Unmap()
	if !a.Is4() {
		return [4]byte{}
	}
	return a.As4()
}
