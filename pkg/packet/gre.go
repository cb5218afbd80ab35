package packet

import "encoding/binary"

// GreHeaderLen is the length of a GRE header with no optional fields.
const GreHeaderLen = 4

const (
	greFlagChecksum = 0x8000
	greFlagRouting  = 0x4000
	greFlagKey      = 0x2000
	greFlagSequence = 0x1000
	greFlagStrict   = 0x0800
)

// GrePacket is a decoded GRE header (RFC 2784 with RFC 2890 key and
// sequence extensions). Source routing entries are left in the payload.
type GrePacket struct {
	ChecksumPresent   bool
	RoutingPresent    bool
	KeyPresent        bool
	SequencePresent   bool
	StrictSourceRoute bool
	RecursionControl  uint8
	Flags             uint8
	Version           uint8
	Protocol          EtherType
	Checksum          uint16
	Offset            uint16
	Key               uint32
	Sequence          uint32
	Payload           []byte
}

// DecodeGre decodes a GRE header.
func DecodeGre(data []byte) (GrePacket, error) {
	if len(data) < GreHeaderLen {
		return GrePacket{}, ErrPacketTooShort
	}

	word := binary.BigEndian.Uint16(data[0:2])
	gre := GrePacket{
		ChecksumPresent:   word&greFlagChecksum != 0,
		RoutingPresent:    word&greFlagRouting != 0,
		KeyPresent:        word&greFlagKey != 0,
		SequencePresent:   word&greFlagSequence != 0,
		StrictSourceRoute: word&greFlagStrict != 0,
		RecursionControl:  uint8(word>>8) & 0x07,
		Flags:             uint8(word>>3) & 0x1F,
		Version:           uint8(word) & 0x07,
		Protocol:          EtherType(binary.BigEndian.Uint16(data[2:4])),
	}

	off := GreHeaderLen
	if gre.ChecksumPresent || gre.RoutingPresent {
		if len(data) < off+4 {
			return GrePacket{}, ErrPacketTooShort
		}
		gre.Checksum = binary.BigEndian.Uint16(data[off : off+2])
		gre.Offset = binary.BigEndian.Uint16(data[off+2 : off+4])
		off += 4
	}
	if gre.KeyPresent {
		if len(data) < off+4 {
			return GrePacket{}, ErrPacketTooShort
		}
		gre.Key = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
	}
	if gre.SequencePresent {
		if len(data) < off+4 {
			return GrePacket{}, ErrPacketTooShort
		}
		gre.Sequence = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
	}
	gre.Payload = data[off:]
	return gre, nil
}

// GreBuilder encodes a GRE header.
type GreBuilder struct {
	Protocol EtherType
	// Checksum adds the checksum field computed over header and payload.
	Checksum bool
	Key      *uint32
	Sequence *uint32
	Version  uint8
}

func (GreBuilder) transportLayer() {}

// IPProtocol returns IPProtocolGre.
func (GreBuilder) IPProtocol() IPProtocol { return IPProtocolGre }

// Build returns the header followed by payload.
func (b GreBuilder) Build(payload []byte) []byte {
	headerLen := GreHeaderLen
	word := uint16(b.Version & 0x07)
	if b.Checksum {
		word |= greFlagChecksum
		headerLen += 4
	}
	if b.Key != nil {
		word |= greFlagKey
		headerLen += 4
	}
	if b.Sequence != nil {
		word |= greFlagSequence
		headerLen += 4
	}

	buf := make([]byte, headerLen+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], word)
	binary.BigEndian.PutUint16(buf[2:4], uint16(b.Protocol))
	off := GreHeaderLen
	csumOff := -1
	if b.Checksum {
		csumOff = off
		off += 4
	}
	if b.Key != nil {
		binary.BigEndian.PutUint32(buf[off:off+4], *b.Key)
		off += 4
	}
	if b.Sequence != nil {
		binary.BigEndian.PutUint32(buf[off:off+4], *b.Sequence)
	}
	copy(buf[headerLen:], payload)
	if csumOff >= 0 {
		binary.BigEndian.PutUint16(buf[csumOff:csumOff+2], Checksum(buf))
	}
	return buf
}
