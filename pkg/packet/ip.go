package packet

import (
	"fmt"
	"strings"
)

// IPProtocol is the IPv4 protocol or IPv6 next-header number. Values
// outside the known set are carried unchanged.
type IPProtocol uint8

const (
	IPProtocolHopOpt    IPProtocol = 0
	IPProtocolIcmp      IPProtocol = 1
	IPProtocolIgmp      IPProtocol = 2
	IPProtocolGgp       IPProtocol = 3
	IPProtocolIPv4      IPProtocol = 4
	IPProtocolSt        IPProtocol = 5
	IPProtocolTcp       IPProtocol = 6
	IPProtocolEgp       IPProtocol = 8
	IPProtocolIgp       IPProtocol = 9
	IPProtocolUdp       IPProtocol = 17
	IPProtocolIPv6      IPProtocol = 41
	IPProtocolIPv6Route IPProtocol = 43
	IPProtocolIPv6Frag  IPProtocol = 44
	IPProtocolRsvp      IPProtocol = 46
	IPProtocolGre       IPProtocol = 47
	IPProtocolEsp       IPProtocol = 50
	IPProtocolAh        IPProtocol = 51
	IPProtocolIcmpv6    IPProtocol = 58
	IPProtocolIPv6NoNxt IPProtocol = 59
	IPProtocolIPv6Opts  IPProtocol = 60
	IPProtocolOspf      IPProtocol = 89
	IPProtocolPim       IPProtocol = 103
	IPProtocolVrrp      IPProtocol = 112
	IPProtocolL2tp      IPProtocol = 115
	IPProtocolSctp      IPProtocol = 132
	IPProtocolUdpLite   IPProtocol = 136
	IPProtocolMplsInIP  IPProtocol = 137
)

var ipProtocolNames = map[IPProtocol]enumName{
	IPProtocolHopOpt:    {"hopopt", "IPv6 Hop-by-Hop Option"},
	IPProtocolIcmp:      {"icmp", "ICMP"},
	IPProtocolIgmp:      {"igmp", "IGMP"},
	IPProtocolGgp:       {"ggp", "GGP"},
	IPProtocolIPv4:      {"ipv4", "IPv4 encapsulation"},
	IPProtocolSt:        {"st", "Internet Stream Protocol"},
	IPProtocolTcp:       {"tcp", "TCP"},
	IPProtocolEgp:       {"egp", "EGP"},
	IPProtocolIgp:       {"igp", "IGP"},
	IPProtocolUdp:       {"udp", "UDP"},
	IPProtocolIPv6:      {"ipv6", "IPv6 encapsulation"},
	IPProtocolIPv6Route: {"ipv6_route", "IPv6 Routing Header"},
	IPProtocolIPv6Frag:  {"ipv6_frag", "IPv6 Fragment Header"},
	IPProtocolRsvp:      {"rsvp", "RSVP"},
	IPProtocolGre:       {"gre", "GRE"},
	IPProtocolEsp:       {"esp", "ESP"},
	IPProtocolAh:        {"ah", "AH"},
	IPProtocolIcmpv6:    {"icmpv6", "ICMPv6"},
	IPProtocolIPv6NoNxt: {"ipv6_nonxt", "IPv6 No Next Header"},
	IPProtocolIPv6Opts:  {"ipv6_opts", "IPv6 Destination Options"},
	IPProtocolOspf:      {"ospf", "OSPF"},
	IPProtocolPim:       {"pim", "PIM"},
	IPProtocolVrrp:      {"vrrp", "VRRP"},
	IPProtocolL2tp:      {"l2tp", "L2TP"},
	IPProtocolSctp:      {"sctp", "SCTP"},
	IPProtocolUdpLite:   {"udplite", "UDP-Lite"},
	IPProtocolMplsInIP:  {"mpls_in_ip", "MPLS-in-IP"},
}

// Known reports whether p is one of the named protocols.
func (p IPProtocol) Known() bool {
	_, ok := ipProtocolNames[p]
	return ok
}

// ID returns a lower-case identifier such as "tcp", or unknown_<n>.
func (p IPProtocol) ID() string {
	if n, ok := ipProtocolNames[p]; ok {
		return n.id
	}
	return fmt.Sprintf("unknown_%d", uint8(p))
}

func (p IPProtocol) String() string {
	if n, ok := ipProtocolNames[p]; ok {
		return n.name
	}
	return fmt.Sprintf("Unknown (%d)", uint8(p))
}

// ParseIPProtocol accepts an identifier ("udp") or a number.
func ParseIPProtocol(s string) (IPProtocol, error) {
	id := strings.ToLower(strings.TrimSpace(s))
	for p, n := range ipProtocolNames {
		if n.id == id {
			return p, nil
		}
	}
	v, err := parseUint(id, 8)
	if err != nil {
		return 0, fmt.Errorf("ip protocol %q: %w", s, err)
	}
	return IPProtocol(v), nil
}
