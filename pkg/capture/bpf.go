package capture

import (
	"fmt"
	"slices"

	"golang.org/x/net/bpf"

	"firestige.xyz/xsocket/pkg/packet"
)

const (
	maxFilterEtherTypes = 255
	maxFilterProtocols  = 100

	etherTypeOffset   = 12
	ipv4ProtoOffset   = packet.EthernetHeaderLen + 9
	ipv6NextHdrOffset = packet.EthernetHeaderLen + 6
)

// CompileFilter assembles a classic BPF program for Ethernet frames that
// accepts the given ether types and, for IPv4 and IPv6, the given protocols.
// Empty lists accept everything on that dimension. The program only narrows
// what the kernel delivers; Options.Match still decides what is published.
//
//	ldh [12]
//	jeq #et0, types_ok ... ret #0
//	types_ok: jeq #0x0800, v4, v6
//	v4: ldb [23]; jeq #p0, accept ...; ret #0
//	v6: jeq #0x86dd, ipv6, reject; ldb [20]; jeq #p0, accept ...; ret #0
//	reject: ret #0
//	accept: ret #snaplen
func CompileFilter(etherTypes []packet.EtherType, protocols []packet.IPProtocol, snapLen int) ([]bpf.RawInstruction, error) {
	if len(etherTypes) > maxFilterEtherTypes {
		return nil, fmt.Errorf("kernel filter supports at most %d ether types, got %d", maxFilterEtherTypes, len(etherTypes))
	}
	if len(protocols) > maxFilterProtocols {
		return nil, fmt.Errorf("kernel filter supports at most %d ip protocols, got %d", maxFilterProtocols, len(protocols))
	}
	if snapLen <= 0 {
		snapLen = DefaultSnapLen
	}
	etherTypes = slices.Clone(etherTypes)
	slices.Sort(etherTypes)
	protocols = slices.Clone(protocols)
	slices.Sort(protocols)

	accept := bpf.RetConstant{Val: uint32(snapLen)}
	reject := bpf.RetConstant{Val: 0}

	prog := []bpf.Instruction{
		bpf.LoadAbsolute{Off: etherTypeOffset, Size: 2},
	}

	n := len(etherTypes)
	if n > 0 {
		for i, et := range etherTypes {
			prog = append(prog, bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(et), SkipTrue: uint8(n - i)})
		}
		prog = append(prog, reject)
	}

	m := len(protocols)
	if m == 0 {
		prog = append(prog, accept)
		return bpf.Assemble(prog)
	}

	// IPv4 block, falling through to the IPv6 block.
	prog = append(prog,
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(packet.EtherTypeIPv4), SkipFalse: uint8(m + 2)},
		bpf.LoadAbsolute{Off: ipv4ProtoOffset, Size: 1},
	)
	for j, p := range protocols {
		prog = append(prog, bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(p), SkipTrue: uint8(2*m - j + 4)})
	}
	prog = append(prog, reject)

	prog = append(prog,
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(packet.EtherTypeIPv6), SkipFalse: uint8(m + 2)},
		bpf.LoadAbsolute{Off: ipv6NextHdrOffset, Size: 1},
	)
	for j, p := range protocols {
		prog = append(prog, bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(p), SkipTrue: uint8(m - j + 1)})
	}
	prog = append(prog, reject, reject, accept)

	return bpf.Assemble(prog)
}

// kernelProgram returns the program to attach to the capture socket, if
// any. BPFExpression and KernelFilter are mutually exclusive.
func (o *Options) kernelProgram() ([]bpf.RawInstruction, error) {
	switch {
	case o.BPFExpression != "":
		return CompileExpression(o.BPFExpression, o.SnapLen)
	case o.KernelFilter:
		return CompileFilter(o.EtherTypes.Values(), o.IPProtocols.Values(), o.SnapLen)
	}
	return nil, nil
}
