package packet

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"strings"
)

// TcpHeaderLen is the length of a TCP header without options.
const TcpHeaderLen = 20

// MaxTcpOptionsLen is the largest option area a 4-bit data offset can
// describe.
const MaxTcpOptionsLen = 40

const (
	DefaultTcpWindow   = 65535
	DefaultMss         = 1460
	DefaultWindowScale = 7
)

// TcpFlag is a single TCP control bit. NS lives in the low bit of byte 12.
type TcpFlag uint16

const (
	TcpFlagFin TcpFlag = 0x001
	TcpFlagSyn TcpFlag = 0x002
	TcpFlagRst TcpFlag = 0x004
	TcpFlagPsh TcpFlag = 0x008
	TcpFlagAck TcpFlag = 0x010
	TcpFlagUrg TcpFlag = 0x020
	TcpFlagEce TcpFlag = 0x040
	TcpFlagCwr TcpFlag = 0x080
	TcpFlagNs  TcpFlag = 0x100
)

var tcpFlagOrder = []TcpFlag{
	TcpFlagFin, TcpFlagSyn, TcpFlagRst, TcpFlagPsh, TcpFlagAck,
	TcpFlagUrg, TcpFlagEce, TcpFlagCwr, TcpFlagNs,
}

var tcpFlagNames = map[TcpFlag]string{
	TcpFlagFin: "FIN",
	TcpFlagSyn: "SYN",
	TcpFlagRst: "RST",
	TcpFlagPsh: "PSH",
	TcpFlagAck: "ACK",
	TcpFlagUrg: "URG",
	TcpFlagEce: "ECE",
	TcpFlagCwr: "CWR",
	TcpFlagNs:  "NS",
}

func (f TcpFlag) String() string {
	if n, ok := tcpFlagNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Unknown (0x%03x)", uint16(f))
}

// TcpFlags is a set of TCP control bits.
type TcpFlags uint16

// NewTcpFlags ORs flags into a set.
func NewTcpFlags(flags ...TcpFlag) TcpFlags {
	var s TcpFlags
	for _, f := range flags {
		s |= TcpFlags(f)
	}
	return s
}

// Has reports whether f is set.
func (s TcpFlags) Has(f TcpFlag) bool { return s&TcpFlags(f) == TcpFlags(f) }

// List returns the set bits from FIN to NS.
func (s TcpFlags) List() []TcpFlag {
	var out []TcpFlag
	for _, f := range tcpFlagOrder {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s TcpFlags) String() string {
	flags := s.List()
	if len(flags) == 0 {
		return "none"
	}
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.String()
	}
	return strings.Join(names, "|")
}

// ParseTcpFlags parses names such as "SYN|ACK" or "syn,ack".
func ParseTcpFlags(s string) ([]TcpFlag, error) {
	var out []TcpFlag
	for _, name := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' || r == ' ' }) {
		found := false
		for f, n := range tcpFlagNames {
			if strings.EqualFold(n, name) {
				out = append(out, f)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown tcp flag %q", ErrInvalidHeader, name)
		}
	}
	return out, nil
}

// TcpOptionKind is the kind octet of a TCP option.
type TcpOptionKind uint8

const (
	TcpOptionKindEol           TcpOptionKind = 0
	TcpOptionKindNop           TcpOptionKind = 1
	TcpOptionKindMss           TcpOptionKind = 2
	TcpOptionKindWindowScale   TcpOptionKind = 3
	TcpOptionKindSackPermitted TcpOptionKind = 4
	TcpOptionKindSack          TcpOptionKind = 5
	TcpOptionKindTimestamps    TcpOptionKind = 8
)

var tcpOptionKindNames = map[TcpOptionKind]enumName{
	TcpOptionKindEol:           {"eol", "End of Option List"},
	TcpOptionKindNop:           {"nop", "No Operation"},
	TcpOptionKindMss:           {"mss", "Maximum Segment Size"},
	TcpOptionKindWindowScale:   {"wscale", "Window Scale"},
	TcpOptionKindSackPermitted: {"sack_permitted", "SACK Permitted"},
	TcpOptionKindSack:          {"sack", "SACK"},
	TcpOptionKindTimestamps:    {"timestamps", "Timestamps"},
}

// Known reports whether k is one of the named option kinds.
func (k TcpOptionKind) Known() bool {
	_, ok := tcpOptionKindNames[k]
	return ok
}

// ID returns an identifier such as "mss", or unknown_<n>.
func (k TcpOptionKind) ID() string {
	if n, ok := tcpOptionKindNames[k]; ok {
		return n.id
	}
	return fmt.Sprintf("unknown_%d", uint8(k))
}

func (k TcpOptionKind) String() string {
	if n, ok := tcpOptionKindNames[k]; ok {
		return n.name
	}
	return fmt.Sprintf("Unknown (%d)", uint8(k))
}

// TcpOption is one entry of the TCP option list. Data excludes the kind
// and length octets; EOL and NOP have no data.
type TcpOption struct {
	Kind TcpOptionKind
	Data []byte
}

// Len returns the encoded length of o.
func (o TcpOption) Len() int {
	if o.Kind == TcpOptionKindEol || o.Kind == TcpOptionKindNop {
		return 1
	}
	return 2 + len(o.Data)
}

func TcpOptionNop() TcpOption { return TcpOption{Kind: TcpOptionKindNop} }

func TcpOptionMss(mss uint16) TcpOption {
	return TcpOption{Kind: TcpOptionKindMss, Data: binary.BigEndian.AppendUint16(nil, mss)}
}

func TcpOptionWindowScale(shift uint8) TcpOption {
	return TcpOption{Kind: TcpOptionKindWindowScale, Data: []byte{shift}}
}

func TcpOptionSackPermitted() TcpOption { return TcpOption{Kind: TcpOptionKindSackPermitted} }

// TcpOptionSack encodes left/right edge pairs.
func TcpOptionSack(edges ...uint32) TcpOption {
	var data []byte
	for _, e := range edges {
		data = binary.BigEndian.AppendUint32(data, e)
	}
	return TcpOption{Kind: TcpOptionKindSack, Data: data}
}

func TcpOptionTimestamps(value, echo uint32) TcpOption {
	data := binary.BigEndian.AppendUint32(nil, value)
	return TcpOption{Kind: TcpOptionKindTimestamps, Data: binary.BigEndian.AppendUint32(data, echo)}
}

// DefaultSynOptions is the option list of a typical SYN:
// MSS, SACK permitted, NOP, NOP, window scale.
func DefaultSynOptions() []TcpOption {
	return []TcpOption{
		TcpOptionMss(DefaultMss),
		TcpOptionSackPermitted(),
		TcpOptionNop(),
		TcpOptionNop(),
		TcpOptionWindowScale(DefaultWindowScale),
	}
}

// TcpPacket is a decoded TCP header.
type TcpPacket struct {
	SrcPort         uint16
	DstPort         uint16
	Sequence        uint32
	Acknowledgement uint32
	DataOffset      uint8 // in 32-bit words
	Reserved        uint8
	Flags           TcpFlags
	Window          uint16
	Checksum        uint16
	UrgentPointer   uint16
	Options         []TcpOption
	Payload         []byte
}

// DecodeTcp decodes a TCP header and its options.
func DecodeTcp(data []byte) (TcpPacket, error) {
	if len(data) < TcpHeaderLen {
		return TcpPacket{}, ErrPacketTooShort
	}

	tcp := TcpPacket{
		// Source Port (2 bytes at offset 0)
		SrcPort: binary.BigEndian.Uint16(data[0:2]),
		// Destination Port (2 bytes at offset 2)
		DstPort: binary.BigEndian.Uint16(data[2:4]),
		// Sequence Number (4 bytes at offset 4)
		Sequence: binary.BigEndian.Uint32(data[4:8]),
		// Acknowledgment Number (4 bytes at offset 8)
		Acknowledgement: binary.BigEndian.Uint32(data[8:12]),
		Window:          binary.BigEndian.Uint16(data[14:16]),
		Checksum:        binary.BigEndian.Uint16(data[16:18]),
		UrgentPointer:   binary.BigEndian.Uint16(data[18:20]),
	}

	// Byte 12: | data offset (4) | reserved (3) | NS (1) |
	tcp.DataOffset = data[12] >> 4
	tcp.Reserved = (data[12] >> 1) & 0x07
	tcp.Flags = TcpFlags(uint16(data[12]&0x01)<<8 | uint16(data[13]))

	headerLen := int(tcp.DataOffset) * 4
	if headerLen < TcpHeaderLen || len(data) < headerLen {
		return TcpPacket{}, ErrPacketTooShort
	}

	opts, err := decodeTcpOptions(data[TcpHeaderLen:headerLen])
	if err != nil {
		return TcpPacket{}, err
	}
	tcp.Options = opts
	tcp.Payload = data[headerLen:]
	return tcp, nil
}

// decodeTcpOptions walks the option area until EOL or its end. Trailing
// zero padding is not reported.
func decodeTcpOptions(b []byte) ([]TcpOption, error) {
	var opts []TcpOption
	for i := 0; i < len(b); {
		kind := TcpOptionKind(b[i])
		switch kind {
		case TcpOptionKindEol:
			return opts, nil
		case TcpOptionKindNop:
			opts = append(opts, TcpOption{Kind: kind})
			i++
			continue
		}
		if i+1 >= len(b) {
			return nil, ErrInvalidHeader
		}
		l := int(b[i+1])
		if l < 2 || i+l > len(b) {
			return nil, ErrInvalidHeader
		}
		opt := TcpOption{Kind: kind}
		if l > 2 {
			opt.Data = b[i+2 : i+l]
		}
		opts = append(opts, opt)
		i += l
	}
	return opts, nil
}

// TcpBuilder encodes a TCP segment. Source and Destination also feed the
// pseudo-header checksum.
type TcpBuilder struct {
	Source          netip.AddrPort
	Destination     netip.AddrPort
	Sequence        uint32
	Acknowledgement uint32
	Window          uint16
	Flags           []TcpFlag
	// Options are written in this order and zero-padded to 4 bytes. Build
	// keeps the leading options that fit in MaxTcpOptionsLen and drops
	// the rest.
	Options       []TcpOption
	UrgentPointer uint16
}

// NewTcpBuilder returns a SYN with window 65535 and a random sequence.
func NewTcpBuilder(src, dst netip.AddrPort) TcpBuilder {
	return TcpBuilder{
		Source:      src,
		Destination: dst,
		Sequence:    rand.Uint32(),
		Window:      DefaultTcpWindow,
		Flags:       []TcpFlag{TcpFlagSyn},
	}
}

func (TcpBuilder) transportLayer() {}

// IPProtocol returns IPProtocolTcp.
func (TcpBuilder) IPProtocol() IPProtocol { return IPProtocolTcp }

// fitTcpOptions returns the leading options whose encoding fits in
// MaxTcpOptionsLen, and their encoded length.
func fitTcpOptions(opts []TcpOption) ([]TcpOption, int) {
	n := 0
	for i, o := range opts {
		if n+o.Len() > MaxTcpOptionsLen {
			return opts[:i], n
		}
		n += o.Len()
	}
	return opts, n
}

// Build returns the header, options and payload with data offset and
// checksum filled in.
func (b TcpBuilder) Build(payload []byte) []byte {
	options, optLen := fitTcpOptions(b.Options)
	headerLen := TcpHeaderLen + (optLen+3)&^3
	buf := make([]byte, headerLen+len(payload))

	binary.BigEndian.PutUint16(buf[0:2], b.Source.Port())
	binary.BigEndian.PutUint16(buf[2:4], b.Destination.Port())
	binary.BigEndian.PutUint32(buf[4:8], b.Sequence)
	binary.BigEndian.PutUint32(buf[8:12], b.Acknowledgement)
	flags := NewTcpFlags(b.Flags...)
	buf[12] = uint8(headerLen/4)<<4 | uint8(flags>>8)&0x01
	buf[13] = uint8(flags)
	binary.BigEndian.PutUint16(buf[14:16], b.Window)
	binary.BigEndian.PutUint16(buf[18:20], b.UrgentPointer)

	off := TcpHeaderLen
	for _, o := range options {
		buf[off] = uint8(o.Kind)
		if o.Len() > 1 {
			buf[off+1] = uint8(o.Len())
			copy(buf[off+2:], o.Data)
		}
		off += o.Len()
	}
	copy(buf[headerLen:], payload)

	csum := transportChecksum(b.Source.Addr(), b.Destination.Addr(), IPProtocolTcp, buf)
	binary.BigEndian.PutUint16(buf[16:18], csum)
	return buf
}
