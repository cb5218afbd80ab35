package socket

import (
	"fmt"

	"firestige.xyz/xsocket/pkg/packet"
)

// IPVersion selects the socket address family.
type IPVersion int

const (
	IPv4 IPVersion = iota
	IPv6
)

func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "v4"
	case IPv6:
		return "v6"
	}
	return fmt.Sprintf("IPVersion(%d)", int(v))
}

// SocketType selects the socket semantics.
type SocketType int

const (
	Raw SocketType = iota
	Dgram
	Stream
)

func (t SocketType) String() string {
	switch t {
	case Raw:
		return "raw"
	case Dgram:
		return "dgram"
	case Stream:
		return "stream"
	}
	return fmt.Sprintf("SocketType(%d)", int(t))
}

// SocketOption is the (version, type, protocol) triple of a protocol
// socket. A zero Protocol means none was given.
type SocketOption struct {
	IPVersion  IPVersion
	SocketType SocketType
	Protocol   packet.IPProtocol
}

func (o SocketOption) String() string {
	return fmt.Sprintf("%s/%s/%s", o.IPVersion, o.SocketType, o.Protocol.ID())
}

var supportedOptions = map[IPVersion]map[SocketType][]packet.IPProtocol{
	IPv4: {
		Raw:    {packet.IPProtocolIcmp, packet.IPProtocolTcp, packet.IPProtocolUdp},
		Dgram:  {packet.IPProtocolIcmp, packet.IPProtocolUdp},
		Stream: {packet.IPProtocolTcp},
	},
	IPv6: {
		Raw:    {packet.IPProtocolIcmpv6, packet.IPProtocolTcp, packet.IPProtocolUdp},
		Dgram:  {packet.IPProtocolIcmpv6, packet.IPProtocolUdp},
		Stream: {packet.IPProtocolTcp},
	},
}

// CheckSocketOption reports whether the triple is a supported combination.
// It never touches the operating system.
func CheckSocketOption(opt SocketOption) error {
	for _, p := range supportedOptions[opt.IPVersion][opt.SocketType] {
		if p == opt.Protocol && p != 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: invalid protocol %s for %s %s socket",
		ErrInvalidOption, opt.Protocol, opt.IPVersion, opt.SocketType)
}
