package packet

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// EthernetHeaderLen is the length of an untagged Ethernet II header.
const EthernetHeaderLen = 14

// EtherType is the Ethernet payload protocol. Values outside the known
// set are carried unchanged.
type EtherType uint16

const (
	EtherTypeIPv4           EtherType = 0x0800
	EtherTypeArp            EtherType = 0x0806
	EtherTypeWakeOnLan      EtherType = 0x0842
	EtherTypeTrill          EtherType = 0x22F3
	EtherTypeDECnet         EtherType = 0x6003
	EtherTypeRarp           EtherType = 0x8035
	EtherTypeAppleTalk      EtherType = 0x809B
	EtherTypeAarp           EtherType = 0x80F3
	EtherTypeVlan           EtherType = 0x8100
	EtherTypeIpx            EtherType = 0x8137
	EtherTypeQnx            EtherType = 0x8204
	EtherTypeIPv6           EtherType = 0x86DD
	EtherTypeFlowControl    EtherType = 0x8808
	EtherTypeCobraNet       EtherType = 0x8819
	EtherTypeMpls           EtherType = 0x8847
	EtherTypeMplsMulticast  EtherType = 0x8848
	EtherTypePppoeDiscovery EtherType = 0x8863
	EtherTypePppoeSession   EtherType = 0x8864
	EtherTypePBridge        EtherType = 0x88A8
	EtherTypeLldp           EtherType = 0x88CC
	EtherTypePtp            EtherType = 0x88F7
	EtherTypeCfm            EtherType = 0x8902
	EtherTypeQinQ           EtherType = 0x9100
)

var etherTypeNames = map[EtherType]enumName{
	EtherTypeIPv4:           {"ipv4", "IPv4"},
	EtherTypeArp:            {"arp", "ARP"},
	EtherTypeWakeOnLan:      {"wake_on_lan", "Wake-on-LAN"},
	EtherTypeTrill:          {"trill", "TRILL"},
	EtherTypeDECnet:         {"decnet", "DECnet Phase IV"},
	EtherTypeRarp:           {"rarp", "RARP"},
	EtherTypeAppleTalk:      {"appletalk", "AppleTalk"},
	EtherTypeAarp:           {"aarp", "AARP"},
	EtherTypeVlan:           {"vlan", "VLAN"},
	EtherTypeIpx:            {"ipx", "IPX"},
	EtherTypeQnx:            {"qnx", "QNX Qnet"},
	EtherTypeIPv6:           {"ipv6", "IPv6"},
	EtherTypeFlowControl:    {"flow_control", "Ethernet Flow Control"},
	EtherTypeCobraNet:       {"cobranet", "CobraNet"},
	EtherTypeMpls:           {"mpls", "MPLS"},
	EtherTypeMplsMulticast:  {"mpls_multicast", "MPLS Multicast"},
	EtherTypePppoeDiscovery: {"pppoe_discovery", "PPPoE Discovery"},
	EtherTypePppoeSession:   {"pppoe_session", "PPPoE Session"},
	EtherTypePBridge:        {"pbridge", "Provider Bridging"},
	EtherTypeLldp:           {"lldp", "LLDP"},
	EtherTypePtp:            {"ptp", "PTP"},
	EtherTypeCfm:            {"cfm", "CFM"},
	EtherTypeQinQ:           {"qinq", "Q-in-Q"},
}

// Known reports whether t is one of the named EtherTypes.
func (t EtherType) Known() bool {
	_, ok := etherTypeNames[t]
	return ok
}

// ID returns a lower-case identifier such as "ipv4", or unknown_<n>.
func (t EtherType) ID() string {
	if n, ok := etherTypeNames[t]; ok {
		return n.id
	}
	return fmt.Sprintf("unknown_0x%04x", uint16(t))
}

func (t EtherType) String() string {
	if n, ok := etherTypeNames[t]; ok {
		return n.name
	}
	return fmt.Sprintf("Unknown (0x%04x)", uint16(t))
}

// ParseEtherType accepts an identifier ("arp"), or a decimal or 0x-prefixed number.
func ParseEtherType(s string) (EtherType, error) {
	id := strings.ToLower(strings.TrimSpace(s))
	for t, n := range etherTypeNames {
		if n.id == id {
			return t, nil
		}
	}
	v, err := parseUint(s, 16)
	if err != nil {
		return 0, fmt.Errorf("ether type %q: %w", s, err)
	}
	return EtherType(v), nil
}

// EthernetPacket is a decoded Ethernet II header.
type EthernetPacket struct {
	Destination net.HardwareAddr
	Source      net.HardwareAddr
	EtherType   EtherType
	Payload     []byte
}

// DecodeEthernet decodes an Ethernet II header. VLAN tags are not
// stripped; a tagged frame reports EtherTypeVlan.
func DecodeEthernet(data []byte) (EthernetPacket, error) {
	if len(data) < EthernetHeaderLen {
		return EthernetPacket{}, ErrPacketTooShort
	}

	eth := EthernetPacket{
		// Destination MAC (6 bytes at offset 0)
		Destination: net.HardwareAddr(data[0:6]),
		// Source MAC (6 bytes at offset 6)
		Source: net.HardwareAddr(data[6:12]),
		// EtherType (2 bytes at offset 12)
		EtherType: EtherType(binary.BigEndian.Uint16(data[12:14])),
		Payload:   data[EthernetHeaderLen:],
	}
	return eth, nil
}

// EthernetBuilder encodes an Ethernet II header.
type EthernetBuilder struct {
	SrcMAC    net.HardwareAddr
	DstMAC    net.HardwareAddr
	EtherType EtherType
}

// Build returns the header followed by payload. The frame is not padded
// to the 60-byte minimum; drivers do that.
func (b EthernetBuilder) Build(payload []byte) []byte {
	buf := make([]byte, EthernetHeaderLen+len(payload))
	putMAC(buf[0:6], b.DstMAC)
	putMAC(buf[6:12], b.SrcMAC)
	binary.BigEndian.PutUint16(buf[12:14], uint16(b.EtherType))
	copy(buf[EthernetHeaderLen:], payload)
	return buf
}

// putMAC writes at most len(dst) bytes of mac; a short or nil address
// leaves the remainder zeroed.
func putMAC(dst []byte, mac net.HardwareAddr) {
	copy(dst, mac)
}
