package packet

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/mdlayher/arp"
)

// ArpHeaderLen is the length of an Ethernet/IPv4 ARP message.
const ArpHeaderLen = 28

// ArpHardwareType is the ARP hardware address space.
type ArpHardwareType uint16

const ArpHardwareTypeEthernet ArpHardwareType = 1

// ArpOperation is the ARP opcode.
type ArpOperation uint16

const (
	ArpOperationRequest      ArpOperation = 1
	ArpOperationReply        ArpOperation = 2
	ArpOperationRarpRequest  ArpOperation = 3
	ArpOperationRarpReply    ArpOperation = 4
	ArpOperationInArpRequest ArpOperation = 8
	ArpOperationInArpReply   ArpOperation = 9
	ArpOperationNak          ArpOperation = 10
)

var arpOperationNames = map[ArpOperation]enumName{
	ArpOperationRequest:      {"request", "ARP Request"},
	ArpOperationReply:        {"reply", "ARP Reply"},
	ArpOperationRarpRequest:  {"rarp_request", "RARP Request"},
	ArpOperationRarpReply:    {"rarp_reply", "RARP Reply"},
	ArpOperationInArpRequest: {"inarp_request", "InARP Request"},
	ArpOperationInArpReply:   {"inarp_reply", "InARP Reply"},
	ArpOperationNak:          {"nak", "ARP NAK"},
}

// Known reports whether o is one of the named operations.
func (o ArpOperation) Known() bool {
	_, ok := arpOperationNames[o]
	return ok
}

// ID returns an identifier such as "request", or unknown_<n>.
func (o ArpOperation) ID() string {
	if n, ok := arpOperationNames[o]; ok {
		return n.id
	}
	return fmt.Sprintf("unknown_%d", uint16(o))
}

func (o ArpOperation) String() string {
	if n, ok := arpOperationNames[o]; ok {
		return n.name
	}
	return fmt.Sprintf("Unknown (%d)", uint16(o))
}

// ArpPacket is a decoded ARP message.
type ArpPacket struct {
	HardwareType       ArpHardwareType
	ProtocolType       EtherType
	HardwareAddrLength uint8
	ProtocolAddrLength uint8
	Operation          ArpOperation
	SenderHardwareAddr net.HardwareAddr
	SenderProtoAddr    netip.Addr
	TargetHardwareAddr net.HardwareAddr
	TargetProtoAddr    netip.Addr
	// Payload holds any bytes after the addresses, usually link padding.
	Payload []byte
}

// DecodeArp decodes an ARP message.
func DecodeArp(data []byte) (ArpPacket, error) {
	if len(data) < 8 {
		return ArpPacket{}, ErrPacketTooShort
	}
	var p arp.Packet
	if err := p.UnmarshalBinary(data); err != nil {
		return ArpPacket{}, fmt.Errorf("%w: arp: %v", ErrInvalidHeader, err)
	}

	end := 8 + 2*int(p.HardwareAddrLength) + 2*int(p.IPLength)
	return ArpPacket{
		HardwareType:       ArpHardwareType(p.HardwareType),
		ProtocolType:       EtherType(p.ProtocolType),
		HardwareAddrLength: p.HardwareAddrLength,
		ProtocolAddrLength: p.IPLength,
		Operation:          ArpOperation(p.Operation),
		SenderHardwareAddr: p.SenderHardwareAddr,
		SenderProtoAddr:    p.SenderIP,
		TargetHardwareAddr: p.TargetHardwareAddr,
		TargetProtoAddr:    p.TargetIP,
		Payload:            data[end:],
	}, nil
}

// ArpBuilder encodes an Ethernet/IPv4 ARP message.
type ArpBuilder struct {
	SrcMAC    net.HardwareAddr
	SrcIP     netip.Addr
	DstMAC    net.HardwareAddr
	DstIP     netip.Addr
	Operation ArpOperation
}

// NewArpRequest asks who has dst on behalf of srcMAC/src.
func NewArpRequest(srcMAC net.HardwareAddr, src, dst netip.Addr) ArpBuilder {
	return ArpBuilder{
		SrcMAC:    srcMAC,
		SrcIP:     src,
		DstMAC:    make(net.HardwareAddr, 6),
		DstIP:     dst,
		Operation: ArpOperationRequest,
	}
}

func (ArpBuilder) networkLayer() {}

// Build returns the 28-byte message followed by payload. Missing or
// malformed addresses are written as zeroes.
func (b ArpBuilder) Build(payload []byte) []byte {
	p := arp.Packet{
		HardwareType:       uint16(ArpHardwareTypeEthernet),
		ProtocolType:       0x0800,
		HardwareAddrLength: 6,
		IPLength:           4,
		Operation:          arp.Operation(b.Operation),
		SenderHardwareAddr: mac6(b.SrcMAC),
		SenderIP:           netip.AddrFrom4(to4(b.SrcIP)),
		TargetHardwareAddr: mac6(b.DstMAC),
		TargetIP:           netip.AddrFrom4(to4(b.DstIP)),
	}
	msg, err := p.MarshalBinary()
	if err != nil {
		// Only reachable with inconsistent lengths, which mac6/to4 rule out.
		msg = make([]byte, ArpHeaderLen)
	}
	return append(msg, payload...)
}

func mac6(mac net.HardwareAddr) net.HardwareAddr {
	out := make(net.HardwareAddr, 6)
	copy(out, mac)
	return out
}
