package packet

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"net/netip"
)

// IcmpHeaderLen is the type, code and checksum prefix shared by every
// ICMP message. IcmpEchoHeaderLen adds identifier and sequence number.
const (
	IcmpHeaderLen     = 4
	IcmpEchoHeaderLen = 8
)

// IcmpType is the ICMPv4 message type.
type IcmpType uint8

const (
	IcmpTypeEchoReply                 IcmpType = 0
	IcmpTypeDestinationUnreachable    IcmpType = 3
	IcmpTypeSourceQuench              IcmpType = 4
	IcmpTypeRedirectMessage           IcmpType = 5
	IcmpTypeEchoRequest               IcmpType = 8
	IcmpTypeRouterAdvertisement       IcmpType = 9
	IcmpTypeRouterSolicitation        IcmpType = 10
	IcmpTypeTimeExceeded              IcmpType = 11
	IcmpTypeParameterProblem          IcmpType = 12
	IcmpTypeTimestampRequest          IcmpType = 13
	IcmpTypeTimestampReply            IcmpType = 14
	IcmpTypeInformationRequest        IcmpType = 15
	IcmpTypeInformationReply          IcmpType = 16
	IcmpTypeAddressMaskRequest        IcmpType = 17
	IcmpTypeAddressMaskReply          IcmpType = 18
	IcmpTypeTraceroute                IcmpType = 30
	IcmpTypeDatagramConversionError   IcmpType = 31
	IcmpTypeMobileHostRedirect        IcmpType = 32
	IcmpTypeIPv6WhereAreYou           IcmpType = 33
	IcmpTypeIPv6IAmHere               IcmpType = 34
	IcmpTypeMobileRegistrationRequest IcmpType = 35
	IcmpTypeMobileRegistrationReply   IcmpType = 36
	IcmpTypeDomainNameRequest         IcmpType = 37
	IcmpTypeDomainNameReply           IcmpType = 38
	IcmpTypeSkip                      IcmpType = 39
	IcmpTypePhoturis                  IcmpType = 40
)

var icmpTypeNames = map[IcmpType]enumName{
	IcmpTypeEchoReply:                 {"echo_reply", "Echo Reply"},
	IcmpTypeDestinationUnreachable:    {"destination_unreachable", "Destination Unreachable"},
	IcmpTypeSourceQuench:              {"source_quench", "Source Quench"},
	IcmpTypeRedirectMessage:           {"redirect_message", "Redirect Message"},
	IcmpTypeEchoRequest:               {"echo_request", "Echo Request"},
	IcmpTypeRouterAdvertisement:       {"router_advertisement", "Router Advertisement"},
	IcmpTypeRouterSolicitation:        {"router_solicitation", "Router Solicitation"},
	IcmpTypeTimeExceeded:              {"time_exceeded", "Time Exceeded"},
	IcmpTypeParameterProblem:          {"parameter_problem", "Parameter Problem"},
	IcmpTypeTimestampRequest:          {"timestamp_request", "Timestamp Request"},
	IcmpTypeTimestampReply:            {"timestamp_reply", "Timestamp Reply"},
	IcmpTypeInformationRequest:        {"information_request", "Information Request"},
	IcmpTypeInformationReply:          {"information_reply", "Information Reply"},
	IcmpTypeAddressMaskRequest:        {"address_mask_request", "Address Mask Request"},
	IcmpTypeAddressMaskReply:          {"address_mask_reply", "Address Mask Reply"},
	IcmpTypeTraceroute:                {"traceroute", "Traceroute"},
	IcmpTypeDatagramConversionError:   {"datagram_conversion_error", "Datagram Conversion Error"},
	IcmpTypeMobileHostRedirect:        {"mobile_host_redirect", "Mobile Host Redirect"},
	IcmpTypeIPv6WhereAreYou:           {"ipv6_where_are_you", "IPv6 Where Are You"},
	IcmpTypeIPv6IAmHere:               {"ipv6_i_am_here", "IPv6 I Am Here"},
	IcmpTypeMobileRegistrationRequest: {"mobile_registration_request", "Mobile Registration Request"},
	IcmpTypeMobileRegistrationReply:   {"mobile_registration_reply", "Mobile Registration Reply"},
	IcmpTypeDomainNameRequest:         {"domain_name_request", "Domain Name Request"},
	IcmpTypeDomainNameReply:           {"domain_name_reply", "Domain Name Reply"},
	IcmpTypeSkip:                      {"skip", "SKIP"},
	IcmpTypePhoturis:                  {"photuris", "Photuris"},
}

// Known reports whether t is one of the named ICMP types.
func (t IcmpType) Known() bool {
	_, ok := icmpTypeNames[t]
	return ok
}

// ID returns an identifier such as "echo_reply", or unknown_<n>.
func (t IcmpType) ID() string {
	if n, ok := icmpTypeNames[t]; ok {
		return n.id
	}
	return fmt.Sprintf("unknown_%d", uint8(t))
}

func (t IcmpType) String() string {
	if n, ok := icmpTypeNames[t]; ok {
		return n.name
	}
	return fmt.Sprintf("Unknown (%d)", uint8(t))
}

// hasEchoFields reports whether messages of type t carry an identifier and
// sequence number in the first four payload bytes.
func (t IcmpType) hasEchoFields() bool {
	switch t {
	case IcmpTypeEchoReply, IcmpTypeEchoRequest,
		IcmpTypeTimestampRequest, IcmpTypeTimestampReply,
		IcmpTypeInformationRequest, IcmpTypeInformationReply,
		IcmpTypeAddressMaskRequest, IcmpTypeAddressMaskReply:
		return true
	}
	return false
}

// IcmpPacket is a decoded ICMPv4 message. Payload starts right after the
// checksum.
type IcmpPacket struct {
	Type     IcmpType
	Code     uint8
	Checksum uint16
	Payload  []byte
}

// DecodeIcmp decodes an ICMPv4 message.
func DecodeIcmp(data []byte) (IcmpPacket, error) {
	if len(data) < IcmpHeaderLen {
		return IcmpPacket{}, ErrPacketTooShort
	}
	return IcmpPacket{
		Type:     IcmpType(data[0]),
		Code:     data[1],
		Checksum: binary.BigEndian.Uint16(data[2:4]),
		Payload:  data[IcmpHeaderLen:],
	}, nil
}

// Echo returns the identifier and sequence number of echo-style messages.
func (p IcmpPacket) Echo() (id, seq uint16, ok bool) {
	if !p.Type.hasEchoFields() || len(p.Payload) < 4 {
		return 0, 0, false
	}
	return binary.BigEndian.Uint16(p.Payload[0:2]), binary.BigEndian.Uint16(p.Payload[2:4]), true
}

// IcmpBuilder encodes an ICMPv4 message with the 8-byte echo layout.
// The addresses are not part of the ICMPv4 checksum; they seed the IPv4
// layer when the builder is promoted inside a PacketBuilder.
type IcmpBuilder struct {
	Source      netip.Addr
	Destination netip.Addr
	Type        IcmpType
	Code        uint8
	// Identifier and Sequence are randomised at build time when nil.
	Identifier *uint16
	Sequence   *uint16
}

// NewIcmpBuilder returns an echo request from localhost to localhost.
func NewIcmpBuilder() IcmpBuilder {
	lo := netip.AddrFrom4([4]byte{127, 0, 0, 1})
	return IcmpBuilder{
		Source:      lo,
		Destination: lo,
		Type:        IcmpTypeEchoRequest,
	}
}

func (IcmpBuilder) transportLayer() {}

// IPProtocol returns IPProtocolIcmp.
func (IcmpBuilder) IPProtocol() IPProtocol { return IPProtocolIcmp }

// Build returns the 8-byte header followed by payload. Types without an
// identifier and sequence get four zero "unused" bytes instead.
func (b IcmpBuilder) Build(payload []byte) []byte {
	buf := make([]byte, IcmpEchoHeaderLen+len(payload))
	buf[0] = uint8(b.Type)
	buf[1] = b.Code
	if b.Type.hasEchoFields() {
		binary.BigEndian.PutUint16(buf[4:6], valueOrRandom(b.Identifier))
		binary.BigEndian.PutUint16(buf[6:8], valueOrRandom(b.Sequence))
	}
	copy(buf[IcmpEchoHeaderLen:], payload)
	binary.BigEndian.PutUint16(buf[2:4], Checksum(buf))
	return buf
}

// Uint16 returns a pointer to v, for the optional builder fields.
func Uint16(v uint16) *uint16 { return &v }

// Uint32 returns a pointer to v, for the optional builder fields.
func Uint32(v uint32) *uint32 { return &v }

func valueOrRandom(v *uint16) uint16 {
	if v != nil {
		return *v
	}
	return uint16(rand.Uint32())
}
