package cmd

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"firestige.xyz/xsocket/internal/dissect"
	"firestige.xyz/xsocket/pkg/packet"
)

// formatFrame renders one frame as a single summary line.
func formatFrame(f *packet.PacketFrame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", f.CaptureInfo.CaptureNo, f.CaptureInfo.Timestamp.Format("15:04:05.000000"))

	switch {
	case f.Arp != nil:
		a := f.Arp
		fmt.Fprintf(&b, " ARP %s %s (%s) > %s (%s)", a.Operation.ID(), a.SenderProtoAddr, a.SenderHardwareAddr,
			a.TargetProtoAddr, a.TargetHardwareAddr)
	case f.Ipv4 != nil || f.Ipv6 != nil:
		src, _ := f.SrcIP()
		dst, _ := f.DstIP()
		proto, _ := f.IPProtocol()
		sp, hasPorts := f.SrcPort()
		dp, _ := f.DstPort()
		if hasPorts {
			fmt.Fprintf(&b, " %s %s > %s", proto.ID(), netip.AddrPortFrom(src, sp), netip.AddrPortFrom(dst, dp))
		} else {
			fmt.Fprintf(&b, " %s %s > %s", proto.ID(), src, dst)
		}
		switch {
		case f.Tcp != nil:
			fmt.Fprintf(&b, " [%s] seq=%d ack=%d win=%d", f.Tcp.Flags, f.Tcp.Sequence, f.Tcp.Acknowledgement, f.Tcp.Window)
		case f.Icmp != nil:
			fmt.Fprintf(&b, " %s code=%d", f.Icmp.Type, f.Icmp.Code)
		case f.Icmpv6 != nil:
			fmt.Fprintf(&b, " %s code=%d", f.Icmpv6.Type, f.Icmpv6.Code)
		case f.Gre != nil:
			fmt.Fprintf(&b, " proto=%s", f.Gre.Protocol.ID())
		}
	case f.Ethernet != nil:
		fmt.Fprintf(&b, " %s %s > %s", f.Ethernet.EtherType.ID(), f.Ethernet.Source, f.Ethernet.Destination)
	}
	fmt.Fprintf(&b, " len=%d", f.CaptureInfo.CaptureLen)

	if labels := dissect.Label(f); len(labels) > 0 {
		keys := make([]string, 0, len(labels))
		for k := range labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + labels[k]
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(pairs, " "))
	}
	return b.String()
}
