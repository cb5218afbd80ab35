package capture

import "firestige.xyz/xsocket/pkg/packet"

// Match reports whether f passes every non-empty filter dimension.
func (o *Options) Match(f *packet.PacketFrame) bool {
	if et, ok := f.EtherType(); !o.EtherTypes.match(et, ok) {
		return false
	}
	if p, ok := f.IPProtocol(); !o.IPProtocols.match(p, ok) {
		return false
	}
	if ip, ok := f.SrcIP(); !o.SrcIPs.match(ip.Unmap(), ok) {
		return false
	}
	if ip, ok := f.DstIP(); !o.DstIPs.match(ip.Unmap(), ok) {
		return false
	}
	if port, ok := f.SrcPort(); !o.SrcPorts.match(port, ok) {
		return false
	}
	port, ok := f.DstPort()
	return o.DstPorts.match(port, ok)
}
