package capture

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"firestige.xyz/xsocket/pkg/packet"
)

// Engine selects how frames are read from the interface.
type Engine string

const (
	// EngineSocket reads from a DataLinkSocket.
	EngineSocket Engine = "socket"
	// EngineAfpacket reads from a TPACKET_V3 memory-mapped ring.
	EngineAfpacket Engine = "afpacket"
	// EngineRaw reads IPv4 datagrams from one raw socket per protocol.
	EngineRaw Engine = "raw"
)

// ParseEngine accepts an engine name in any case. Empty means EngineSocket.
func ParseEngine(s string) (Engine, error) {
	switch e := Engine(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return EngineSocket, nil
	case EngineSocket, EngineAfpacket, EngineRaw:
		return e, nil
	}
	return "", fmt.Errorf("%w: unknown engine %q", ErrInvalidOptions, s)
}

const (
	DefaultReadTimeout     = 100 * time.Millisecond
	DefaultChannelCapacity = 4096
	DefaultSnapLen         = 65535
	DefaultRingSizeMB      = 16
)

// Options configure one capture session. Every filter set that is non
// empty must match: dimensions are ANDed, values inside a set are ORed.
type Options struct {
	InterfaceIndex uint32
	InterfaceName  string

	SrcIPs      Set[netip.Addr]
	DstIPs      Set[netip.Addr]
	SrcPorts    Set[uint16]
	DstPorts    Set[uint16]
	EtherTypes  Set[packet.EtherType]
	IPProtocols Set[packet.IPProtocol]

	// Duration stops the capture once elapsed. Zero means no limit.
	Duration time.Duration
	// ReadTimeout bounds each blocking read and so the stop latency.
	ReadTimeout time.Duration
	Promiscuous bool

	// Store retains the first StoreLimit published frames in memory.
	Store            bool
	StoreLimit       int
	StopOnStoreLimit bool
	// ReceiveUndefined publishes frames without a known higher layer.
	ReceiveUndefined bool

	Engine       Engine
	KernelFilter bool
	// BPFExpression is a tcpdump style kernel filter. It replaces the
	// program KernelFilter would generate, so the two are exclusive.
	BPFExpression   string
	ChannelCapacity int
	SnapLen         int
	RingSizeMB      int
}

// DefaultOptions returns options that capture everything on no interface.
func DefaultOptions() Options {
	return Options{
		ReadTimeout:     DefaultReadTimeout,
		Engine:          EngineSocket,
		ChannelCapacity: DefaultChannelCapacity,
		SnapLen:         DefaultSnapLen,
		RingSizeMB:      DefaultRingSizeMB,
	}
}

var rawProtocols = NewSet(packet.IPProtocolIcmp, packet.IPProtocolTcp, packet.IPProtocolUdp)

// Validate checks o and fills zero values with defaults. The returned
// options own fresh copies of every set.
func (o Options) Validate() (Options, error) {
	invalid := func(format string, args ...any) (Options, error) {
		return Options{}, fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...))
	}

	switch {
	case o.Duration < 0:
		return invalid("negative duration %s", o.Duration)
	case o.ReadTimeout < 0:
		return invalid("negative read timeout %s", o.ReadTimeout)
	case o.StoreLimit < 0:
		return invalid("negative store limit %d", o.StoreLimit)
	case o.Store && o.StoreLimit == 0:
		return invalid("store requires a positive store limit")
	case o.StopOnStoreLimit && !o.Store:
		return invalid("stop on store limit requires store")
	case o.KernelFilter && o.BPFExpression != "":
		return invalid("kernel filter and bpf expression are exclusive")
	case o.ChannelCapacity < 0:
		return invalid("negative channel capacity %d", o.ChannelCapacity)
	case o.SnapLen < 0:
		return invalid("negative snap length %d", o.SnapLen)
	case o.RingSizeMB < 0:
		return invalid("negative ring size %d", o.RingSizeMB)
	}

	if o.ReadTimeout == 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.ChannelCapacity == 0 {
		o.ChannelCapacity = DefaultChannelCapacity
	}
	if o.SnapLen == 0 {
		o.SnapLen = DefaultSnapLen
	}
	if o.RingSizeMB == 0 {
		o.RingSizeMB = DefaultRingSizeMB
	}
	engine, err := ParseEngine(string(o.Engine))
	if err != nil {
		return Options{}, err
	}
	o.Engine = engine

	if o.Engine == EngineRaw {
		if o.IPProtocols.Len() == 0 {
			return invalid("raw engine requires at least one ip protocol")
		}
		for p := range o.IPProtocols {
			if !rawProtocols.Contains(p) {
				return invalid("raw engine cannot capture %s", p.ID())
			}
		}
		if o.KernelFilter || o.BPFExpression != "" {
			return invalid("raw engine does not support a kernel filter")
		}
	}

	o.SrcIPs = unmapAll(o.SrcIPs)
	o.DstIPs = unmapAll(o.DstIPs)
	o.SrcPorts = clone(o.SrcPorts)
	o.DstPorts = clone(o.DstPorts)
	o.EtherTypes = clone(o.EtherTypes)
	o.IPProtocols = clone(o.IPProtocols)

	if _, err := o.kernelProgram(); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return o, nil
}

func clone[T comparable](s Set[T]) Set[T] {
	out := make(Set[T], len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

func unmapAll(s Set[netip.Addr]) Set[netip.Addr] {
	out := make(Set[netip.Addr], len(s))
	for a := range s {
		out[a.Unmap()] = struct{}{}
	}
	return out
}
