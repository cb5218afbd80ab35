package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"
)

// DHCP framing constants (RFC 2131, RFC 1542).
const (
	DhcpFixedLen    = 236
	DhcpMinLen      = 300
	DhcpServerPort  = 67
	DhcpClientPort  = 68
	dhcpMagicCookie = 0x63825363

	dhcpFlagBroadcast = 0x8000
)

// DhcpOperation is the BOOTP op field.
type DhcpOperation uint8

const (
	DhcpOperationRequest DhcpOperation = 1
	DhcpOperationReply   DhcpOperation = 2
)

// DhcpMessageType is the value of option 53.
type DhcpMessageType uint8

const (
	DhcpMessageDiscover DhcpMessageType = 1
	DhcpMessageOffer    DhcpMessageType = 2
	DhcpMessageRequest  DhcpMessageType = 3
	DhcpMessageDecline  DhcpMessageType = 4
	DhcpMessageAck      DhcpMessageType = 5
	DhcpMessageNak      DhcpMessageType = 6
	DhcpMessageRelease  DhcpMessageType = 7
	DhcpMessageInform   DhcpMessageType = 8
)

var dhcpMessageTypeNames = map[DhcpMessageType]enumName{
	DhcpMessageDiscover: {"discover", "DHCPDISCOVER"},
	DhcpMessageOffer:    {"offer", "DHCPOFFER"},
	DhcpMessageRequest:  {"request", "DHCPREQUEST"},
	DhcpMessageDecline:  {"decline", "DHCPDECLINE"},
	DhcpMessageAck:      {"ack", "DHCPACK"},
	DhcpMessageNak:      {"nak", "DHCPNAK"},
	DhcpMessageRelease:  {"release", "DHCPRELEASE"},
	DhcpMessageInform:   {"inform", "DHCPINFORM"},
}

// Known reports whether t is one of the named message types.
func (t DhcpMessageType) Known() bool {
	_, ok := dhcpMessageTypeNames[t]
	return ok
}

// ID returns an identifier such as "discover", or unknown_<n>.
func (t DhcpMessageType) ID() string {
	if n, ok := dhcpMessageTypeNames[t]; ok {
		return n.id
	}
	return fmt.Sprintf("unknown_%d", uint8(t))
}

func (t DhcpMessageType) String() string {
	if n, ok := dhcpMessageTypeNames[t]; ok {
		return n.name
	}
	return fmt.Sprintf("Unknown (%d)", uint8(t))
}

// DhcpOptionCode is a DHCP option tag.
type DhcpOptionCode uint8

const (
	DhcpOptionPad                  DhcpOptionCode = 0
	DhcpOptionSubnetMask           DhcpOptionCode = 1
	DhcpOptionRouter               DhcpOptionCode = 3
	DhcpOptionDomainNameServer     DhcpOptionCode = 6
	DhcpOptionHostName             DhcpOptionCode = 12
	DhcpOptionDomainName           DhcpOptionCode = 15
	DhcpOptionRequestedIPAddress   DhcpOptionCode = 50
	DhcpOptionIPAddressLeaseTime   DhcpOptionCode = 51
	DhcpOptionMessageType          DhcpOptionCode = 53
	DhcpOptionServerIdentifier     DhcpOptionCode = 54
	DhcpOptionParameterRequestList DhcpOptionCode = 55
	DhcpOptionMaximumMessageSize   DhcpOptionCode = 57
	DhcpOptionClientIdentifier     DhcpOptionCode = 61
	DhcpOptionEnd                  DhcpOptionCode = 255
)

// DhcpOption is one TLV entry of the options field.
type DhcpOption struct {
	Code DhcpOptionCode
	Data []byte
}

// DhcpPacket is a decoded DHCP (BOOTP) message.
type DhcpPacket struct {
	Op                 DhcpOperation
	HardwareType       uint8
	HardwareLen        uint8
	Hops               uint8
	TransactionID      uint32
	Secs               uint16
	Flags              uint16
	ClientIP           netip.Addr
	YourIP             netip.Addr
	ServerIP           netip.Addr
	GatewayIP          netip.Addr
	ClientHardwareAddr net.HardwareAddr
	ServerName         string
	File               string
	Options            []DhcpOption
}

// DecodeDhcp decodes a DHCP message. A message without the magic cookie
// is a plain BOOTP message and has no options.
func DecodeDhcp(data []byte) (DhcpPacket, error) {
	if len(data) < DhcpFixedLen {
		return DhcpPacket{}, ErrPacketTooShort
	}

	p := DhcpPacket{
		Op:            DhcpOperation(data[0]),
		HardwareType:  data[1],
		HardwareLen:   data[2],
		Hops:          data[3],
		TransactionID: binary.BigEndian.Uint32(data[4:8]),
		Secs:          binary.BigEndian.Uint16(data[8:10]),
		Flags:         binary.BigEndian.Uint16(data[10:12]),
		ClientIP:      netip.AddrFrom4([4]byte(data[12:16])),
		YourIP:        netip.AddrFrom4([4]byte(data[16:20])),
		ServerIP:      netip.AddrFrom4([4]byte(data[20:24])),
		GatewayIP:     netip.AddrFrom4([4]byte(data[24:28])),
		ServerName:    cString(data[44:108]),
		File:          cString(data[108:236]),
	}
	if p.HardwareLen > 16 {
		return DhcpPacket{}, ErrInvalidHeader
	}
	p.ClientHardwareAddr = net.HardwareAddr(data[28 : 28+int(p.HardwareLen)])

	if len(data) < DhcpFixedLen+4 || binary.BigEndian.Uint32(data[236:240]) != dhcpMagicCookie {
		return p, nil
	}
	opts, err := decodeDhcpOptions(data[DhcpFixedLen+4:])
	if err != nil {
		return DhcpPacket{}, err
	}
	p.Options = opts
	return p, nil
}

func decodeDhcpOptions(b []byte) ([]DhcpOption, error) {
	var opts []DhcpOption
	for i := 0; i < len(b); {
		code := DhcpOptionCode(b[i])
		switch code {
		case DhcpOptionEnd:
			return opts, nil
		case DhcpOptionPad:
			i++
			continue
		}
		if i+1 >= len(b) {
			return nil, ErrInvalidHeader
		}
		l := int(b[i+1])
		if i+2+l > len(b) {
			return nil, ErrInvalidHeader
		}
		opts = append(opts, DhcpOption{Code: code, Data: b[i+2 : i+2+l]})
		i += 2 + l
	}
	return opts, nil
}

// Option returns the first option with the given code.
func (p DhcpPacket) Option(code DhcpOptionCode) ([]byte, bool) {
	for _, o := range p.Options {
		if o.Code == code {
			return o.Data, true
		}
	}
	return nil, false
}

// MessageType returns the value of option 53.
func (p DhcpPacket) MessageType() (DhcpMessageType, bool) {
	v, ok := p.Option(DhcpOptionMessageType)
	if !ok || len(v) != 1 {
		return 0, false
	}
	return DhcpMessageType(v[0]), true
}

// Broadcast reports whether the client asked for broadcast replies.
func (p DhcpPacket) Broadcast() bool { return p.Flags&dhcpFlagBroadcast != 0 }

// DhcpBuilder encodes a DHCP message, normally used as a UDP payload.
type DhcpBuilder struct {
	Op                 DhcpOperation
	Hops               uint8
	TransactionID      uint32
	Secs               uint16
	Broadcast          bool
	ClientIP           netip.Addr
	YourIP             netip.Addr
	ServerIP           netip.Addr
	GatewayIP          netip.Addr
	ClientHardwareAddr net.HardwareAddr
	ServerName         string
	File               string
	// MessageType is written as option 53 ahead of Options when non-zero.
	MessageType DhcpMessageType
	Options     []DhcpOption
}

// NewDhcpDiscover returns a broadcast DHCPDISCOVER from mac with a random
// transaction id.
func NewDhcpDiscover(mac net.HardwareAddr) DhcpBuilder {
	return DhcpBuilder{
		Op:                 DhcpOperationRequest,
		TransactionID:      rand.Uint32(),
		Broadcast:          true,
		ClientHardwareAddr: mac,
		MessageType:        DhcpMessageDiscover,
		Options: []DhcpOption{{
			Code: DhcpOptionParameterRequestList,
			Data: []byte{
				byte(DhcpOptionSubnetMask),
				byte(DhcpOptionRouter),
				byte(DhcpOptionDomainNameServer),
				byte(DhcpOptionDomainName),
			},
		}},
	}
}

// Build returns the encoded message, padded to the 300-byte BOOTP minimum.
func (b DhcpBuilder) Build() []byte {
	buf := make([]byte, DhcpFixedLen+4, DhcpMinLen)
	buf[0] = uint8(b.Op)
	buf[1] = uint8(ArpHardwareTypeEthernet)
	hlen := len(b.ClientHardwareAddr)
	if hlen > 16 {
		hlen = 16
	}
	buf[2] = uint8(hlen)
	buf[3] = b.Hops
	binary.BigEndian.PutUint32(buf[4:8], b.TransactionID)
	binary.BigEndian.PutUint16(buf[8:10], b.Secs)
	if b.Broadcast {
		binary.BigEndian.PutUint16(buf[10:12], dhcpFlagBroadcast)
	}
	for i, a := range []netip.Addr{b.ClientIP, b.YourIP, b.ServerIP, b.GatewayIP} {
		ip := to4(a)
		copy(buf[12+4*i:16+4*i], ip[:])
	}
	copy(buf[28:28+hlen], b.ClientHardwareAddr)
	copy(buf[44:107], b.ServerName)
	copy(buf[108:235], b.File)
	binary.BigEndian.PutUint32(buf[236:240], dhcpMagicCookie)

	if b.MessageType != 0 {
		buf = append(buf, byte(DhcpOptionMessageType), 1, byte(b.MessageType))
	}
	for _, o := range b.Options {
		data := o.Data
		if len(data) > 255 {
			data = data[:255]
		}
		buf = append(buf, byte(o.Code), byte(len(data)))
		buf = append(buf, data...)
	}
	buf = append(buf, byte(DhcpOptionEnd))
	for len(buf) < DhcpMinLen {
		buf = append(buf, byte(DhcpOptionPad))
	}
	return buf
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
