package packet

import (
	"encoding/binary"
	"net/netip"
)

// UdpHeaderLen is the fixed UDP header length.
const UdpHeaderLen = 8

// UdpPacket is a decoded UDP header.
type UdpPacket struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
	Payload  []byte
}

// DecodeUdp decodes a UDP header. The payload is cut at Length when the
// field is consistent with the buffer.
func DecodeUdp(data []byte) (UdpPacket, error) {
	if len(data) < UdpHeaderLen {
		return UdpPacket{}, ErrPacketTooShort
	}

	udp := UdpPacket{
		// Source Port (2 bytes at offset 0)
		SrcPort: binary.BigEndian.Uint16(data[0:2]),
		// Destination Port (2 bytes at offset 2)
		DstPort: binary.BigEndian.Uint16(data[2:4]),
		// Length (2 bytes at offset 4) - includes header and data
		Length:   binary.BigEndian.Uint16(data[4:6]),
		Checksum: binary.BigEndian.Uint16(data[6:8]),
	}

	// A Length past the buffer means a truncated capture (snaplen); the
	// payload then runs to the end of what was captured.
	end := len(data)
	if l := int(udp.Length); l >= UdpHeaderLen && l < end {
		end = l
	}
	udp.Payload = data[UdpHeaderLen:end]
	return udp, nil
}

// UdpBuilder encodes a UDP datagram. Source and Destination also feed the
// pseudo-header checksum.
type UdpBuilder struct {
	Source      netip.AddrPort
	Destination netip.AddrPort
}

// NewUdpBuilder returns a builder for src to dst.
func NewUdpBuilder(src, dst netip.AddrPort) UdpBuilder {
	return UdpBuilder{Source: src, Destination: dst}
}

func (UdpBuilder) transportLayer() {}

// IPProtocol returns IPProtocolUdp.
func (UdpBuilder) IPProtocol() IPProtocol { return IPProtocolUdp }

// Build returns the header followed by payload. A computed checksum of
// zero is sent as 0xffff.
func (b UdpBuilder) Build(payload []byte) []byte {
	buf := make([]byte, UdpHeaderLen+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], b.Source.Port())
	binary.BigEndian.PutUint16(buf[2:4], b.Destination.Port())
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(buf)))
	copy(buf[UdpHeaderLen:], payload)

	csum := transportChecksum(b.Source.Addr(), b.Destination.Addr(), IPProtocolUdp, buf)
	if csum == 0 {
		csum = 0xffff
	}
	binary.BigEndian.PutUint16(buf[6:8], csum)
	return buf
}
