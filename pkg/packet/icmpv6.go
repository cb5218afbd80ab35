package packet

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Icmpv6Type is the ICMPv6 message type.
type Icmpv6Type uint8

const (
	Icmpv6TypeDestinationUnreachable           Icmpv6Type = 1
	Icmpv6TypePacketTooBig                     Icmpv6Type = 2
	Icmpv6TypeTimeExceeded                     Icmpv6Type = 3
	Icmpv6TypeParameterProblem                 Icmpv6Type = 4
	Icmpv6TypeEchoRequest                      Icmpv6Type = 128
	Icmpv6TypeEchoReply                        Icmpv6Type = 129
	Icmpv6TypeMulticastListenerQuery           Icmpv6Type = 130
	Icmpv6TypeMulticastListenerReport          Icmpv6Type = 131
	Icmpv6TypeMulticastListenerDone            Icmpv6Type = 132
	Icmpv6TypeRouterSolicitation               Icmpv6Type = 133
	Icmpv6TypeRouterAdvertisement              Icmpv6Type = 134
	Icmpv6TypeNeighborSolicitation             Icmpv6Type = 135
	Icmpv6TypeNeighborAdvertisement            Icmpv6Type = 136
	Icmpv6TypeRedirectMessage                  Icmpv6Type = 137
	Icmpv6TypeRouterRenumbering                Icmpv6Type = 138
	Icmpv6TypeNodeInformationQuery             Icmpv6Type = 139
	Icmpv6TypeNodeInformationResponse          Icmpv6Type = 140
	Icmpv6TypeInverseNeighborDiscoverySolicit  Icmpv6Type = 141
	Icmpv6TypeInverseNeighborDiscoveryAdvert   Icmpv6Type = 142
	Icmpv6TypeMulticastListenerReportV2        Icmpv6Type = 143
	Icmpv6TypeHomeAgentAddressDiscoveryRequest Icmpv6Type = 144
	Icmpv6TypeHomeAgentAddressDiscoveryReply   Icmpv6Type = 145
	Icmpv6TypeMobilePrefixSolicitation         Icmpv6Type = 146
	Icmpv6TypeMobilePrefixAdvertisement        Icmpv6Type = 147
	Icmpv6TypeCertificationPathSolicitation    Icmpv6Type = 148
	Icmpv6TypeCertificationPathAdvertisement   Icmpv6Type = 149
	Icmpv6TypeExperimentalMobility             Icmpv6Type = 150
	Icmpv6TypeMulticastRouterAdvertisement     Icmpv6Type = 151
	Icmpv6TypeMulticastRouterSolicitation      Icmpv6Type = 152
	Icmpv6TypeMulticastRouterTermination       Icmpv6Type = 153
	Icmpv6TypeFMIPv6                           Icmpv6Type = 154
	Icmpv6TypeRPLControl                       Icmpv6Type = 155
	Icmpv6TypeILNPv6LocatorUpdate              Icmpv6Type = 156
	Icmpv6TypeDuplicateAddressRequest          Icmpv6Type = 157
	Icmpv6TypeDuplicateAddressConfirmation     Icmpv6Type = 158
	Icmpv6TypeMPLControl                       Icmpv6Type = 159
	Icmpv6TypeExtendedEchoRequest              Icmpv6Type = 160
	Icmpv6TypeExtendedEchoReply                Icmpv6Type = 161
)

var icmpv6TypeNames = map[Icmpv6Type]enumName{
	Icmpv6TypeDestinationUnreachable:           {"destination_unreachable", "Destination Unreachable"},
	Icmpv6TypePacketTooBig:                     {"packet_too_big", "Packet Too Big"},
	Icmpv6TypeTimeExceeded:                     {"time_exceeded", "Time Exceeded"},
	Icmpv6TypeParameterProblem:                 {"parameter_problem", "Parameter Problem"},
	Icmpv6TypeEchoRequest:                      {"echo_request", "Echo Request"},
	Icmpv6TypeEchoReply:                        {"echo_reply", "Echo Reply"},
	Icmpv6TypeMulticastListenerQuery:           {"multicast_listener_query", "Multicast Listener Query"},
	Icmpv6TypeMulticastListenerReport:          {"multicast_listener_report", "Multicast Listener Report"},
	Icmpv6TypeMulticastListenerDone:            {"multicast_listener_done", "Multicast Listener Done"},
	Icmpv6TypeRouterSolicitation:               {"router_solicitation", "Router Solicitation"},
	Icmpv6TypeRouterAdvertisement:              {"router_advertisement", "Router Advertisement"},
	Icmpv6TypeNeighborSolicitation:             {"neighbor_solicitation", "Neighbor Solicitation"},
	Icmpv6TypeNeighborAdvertisement:            {"neighbor_advertisement", "Neighbor Advertisement"},
	Icmpv6TypeRedirectMessage:                  {"redirect_message", "Redirect Message"},
	Icmpv6TypeRouterRenumbering:                {"router_renumbering", "Router Renumbering"},
	Icmpv6TypeNodeInformationQuery:             {"node_information_query", "ICMP Node Information Query"},
	Icmpv6TypeNodeInformationResponse:          {"node_information_response", "ICMP Node Information Response"},
	Icmpv6TypeInverseNeighborDiscoverySolicit:  {"inverse_neighbor_discovery_solicitation", "Inverse Neighbor Discovery Solicitation"},
	Icmpv6TypeInverseNeighborDiscoveryAdvert:   {"inverse_neighbor_discovery_advertisement", "Inverse Neighbor Discovery Advertisement"},
	Icmpv6TypeMulticastListenerReportV2:        {"multicast_listener_report_v2", "Version 2 Multicast Listener Report"},
	Icmpv6TypeHomeAgentAddressDiscoveryRequest: {"home_agent_address_discovery_request", "Home Agent Address Discovery Request"},
	Icmpv6TypeHomeAgentAddressDiscoveryReply:   {"home_agent_address_discovery_reply", "Home Agent Address Discovery Reply"},
	Icmpv6TypeMobilePrefixSolicitation:         {"mobile_prefix_solicitation", "Mobile Prefix Solicitation"},
	Icmpv6TypeMobilePrefixAdvertisement:        {"mobile_prefix_advertisement", "Mobile Prefix Advertisement"},
	Icmpv6TypeCertificationPathSolicitation:    {"certification_path_solicitation", "Certification Path Solicitation"},
	Icmpv6TypeCertificationPathAdvertisement:   {"certification_path_advertisement", "Certification Path Advertisement"},
	Icmpv6TypeExperimentalMobility:             {"experimental_mobility", "Experimental Mobility Protocols"},
	Icmpv6TypeMulticastRouterAdvertisement:     {"multicast_router_advertisement", "Multicast Router Advertisement"},
	Icmpv6TypeMulticastRouterSolicitation:      {"multicast_router_solicitation", "Multicast Router Solicitation"},
	Icmpv6TypeMulticastRouterTermination:       {"multicast_router_termination", "Multicast Router Termination"},
	Icmpv6TypeFMIPv6:                           {"fmipv6", "FMIPv6 Messages"},
	Icmpv6TypeRPLControl:                       {"rpl_control", "RPL Control Message"},
	Icmpv6TypeILNPv6LocatorUpdate:              {"ilnpv6_locator_update", "ILNPv6 Locator Update Message"},
	Icmpv6TypeDuplicateAddressRequest:          {"duplicate_address_request", "Duplicate Address Request"},
	Icmpv6TypeDuplicateAddressConfirmation:     {"duplicate_address_confirmation", "Duplicate Address Confirmation"},
	Icmpv6TypeMPLControl:                       {"mpl_control", "MPL Control Message"},
	Icmpv6TypeExtendedEchoRequest:              {"extended_echo_request", "Extended Echo Request"},
	Icmpv6TypeExtendedEchoReply:                {"extended_echo_reply", "Extended Echo Reply"},
}

// Known reports whether t is one of the named ICMPv6 types.
func (t Icmpv6Type) Known() bool {
	_, ok := icmpv6TypeNames[t]
	return ok
}

// ID returns an identifier such as "neighbor_solicitation", or unknown_<n>.
func (t Icmpv6Type) ID() string {
	if n, ok := icmpv6TypeNames[t]; ok {
		return n.id
	}
	return fmt.Sprintf("unknown_%d", uint8(t))
}

func (t Icmpv6Type) String() string {
	if n, ok := icmpv6TypeNames[t]; ok {
		return n.name
	}
	return fmt.Sprintf("Unknown (%d)", uint8(t))
}

// Icmpv6Packet is a decoded ICMPv6 message.
type Icmpv6Packet struct {
	Type     Icmpv6Type
	Code     uint8
	Checksum uint16
	Payload  []byte
}

// DecodeIcmpv6 decodes an ICMPv6 message.
func DecodeIcmpv6(data []byte) (Icmpv6Packet, error) {
	if len(data) < IcmpHeaderLen {
		return Icmpv6Packet{}, ErrPacketTooShort
	}
	return Icmpv6Packet{
		Type:     Icmpv6Type(data[0]),
		Code:     data[1],
		Checksum: binary.BigEndian.Uint16(data[2:4]),
		Payload:  data[IcmpHeaderLen:],
	}, nil
}

func (t Icmpv6Type) hasEchoFields() bool {
	return t == Icmpv6TypeEchoRequest || t == Icmpv6TypeEchoReply
}

// Echo returns the identifier and sequence number of echo messages.
func (p Icmpv6Packet) Echo() (id, seq uint16, ok bool) {
	if !p.Type.hasEchoFields() || len(p.Payload) < 4 {
		return 0, 0, false
	}
	return binary.BigEndian.Uint16(p.Payload[0:2]), binary.BigEndian.Uint16(p.Payload[2:4]), true
}

// Icmpv6Builder encodes an ICMPv6 message with the 8-byte echo layout.
// Source and Destination feed the pseudo-header checksum.
type Icmpv6Builder struct {
	Source      netip.Addr
	Destination netip.Addr
	Type        Icmpv6Type
	Code        uint8
	// Identifier and Sequence are randomised at build time when nil.
	Identifier *uint16
	Sequence   *uint16
}

// NewIcmpv6Builder returns an echo request between src and dst.
func NewIcmpv6Builder(src, dst netip.Addr) Icmpv6Builder {
	return Icmpv6Builder{
		Source:      src,
		Destination: dst,
		Type:        Icmpv6TypeEchoRequest,
	}
}

func (Icmpv6Builder) transportLayer() {}

// IPProtocol returns IPProtocolIcmpv6.
func (Icmpv6Builder) IPProtocol() IPProtocol { return IPProtocolIcmpv6 }

// Build returns the 8-byte header followed by payload. Only echo messages
// carry an identifier and sequence; other types leave those bytes zero.
func (b Icmpv6Builder) Build(payload []byte) []byte {
	buf := make([]byte, IcmpEchoHeaderLen+len(payload))
	buf[0] = uint8(b.Type)
	buf[1] = b.Code
	if b.Type.hasEchoFields() {
		binary.BigEndian.PutUint16(buf[4:6], valueOrRandom(b.Identifier))
		binary.BigEndian.PutUint16(buf[6:8], valueOrRandom(b.Sequence))
	}
	copy(buf[IcmpEchoHeaderLen:], payload)
	binary.BigEndian.PutUint16(buf[2:4], transportChecksum(b.Source, b.Destination, IPProtocolIcmpv6, buf))
	return buf
}
