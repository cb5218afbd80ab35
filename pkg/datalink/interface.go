// Package datalink describes network interfaces for sockets and capture.
package datalink

import (
	"fmt"
	"net"
	"net/netip"
)

// InterfaceAddr is an address assigned to an interface.
type InterfaceAddr struct {
	Addr   netip.Addr
	Prefix netip.Prefix
}

// Gateway is the next hop used when crafting frames for off-link hosts.
type Gateway struct {
	MacAddr net.HardwareAddr
	IP      netip.Addr
}

// Interface is a snapshot of a network interface. Gateway is filled in by
// the caller; discovering it is out of scope here.
type Interface struct {
	Index   uint32
	Name    string
	MacAddr net.HardwareAddr
	MTU     int
	Flags   net.Flags
	IPv4    []InterfaceAddr
	IPv6    []InterfaceAddr
	Gateway *Gateway
}

// ByName looks up an interface by name.
func ByName(name string) (Interface, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return Interface{}, fmt.Errorf("interface %q: %w", name, err)
	}
	return FromNet(ifi)
}

// ByIndex looks up an interface by index.
func ByIndex(index uint32) (Interface, error) {
	ifi, err := net.InterfaceByIndex(int(index))
	if err != nil {
		return Interface{}, fmt.Errorf("interface #%d: %w", index, err)
	}
	return FromNet(ifi)
}

// Lookup resolves by name when set, otherwise by index.
func Lookup(index uint32, name string) (Interface, error) {
	if name != "" {
		return ByName(name)
	}
	if index == 0 {
		return Interface{}, fmt.Errorf("interface: neither name nor index given")
	}
	return ByIndex(index)
}

// FromNet converts a net.Interface and collects its unicast addresses.
func FromNet(ifi *net.Interface) (Interface, error) {
	out := Interface{
		Index:   uint32(ifi.Index),
		Name:    ifi.Name,
		MacAddr: ifi.HardwareAddr,
		MTU:     ifi.MTU,
		Flags:   ifi.Flags,
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return out, fmt.Errorf("interface %q addresses: %w", ifi.Name, err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipnet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		ones, _ := ipnet.Mask.Size()
		entry := InterfaceAddr{Addr: addr, Prefix: netip.PrefixFrom(addr, ones).Masked()}
		if addr.Is4() {
			out.IPv4 = append(out.IPv4, entry)
		} else {
			out.IPv6 = append(out.IPv6, entry)
		}
	}
	return out, nil
}

// NetInterface returns the net.Interface view used by socket libraries.
func (i Interface) NetInterface() *net.Interface {
	return &net.Interface{
		Index:        int(i.Index),
		MTU:          i.MTU,
		Name:         i.Name,
		HardwareAddr: i.MacAddr,
		Flags:        i.Flags,
	}
}

// PrimaryIPv4 returns the first IPv4 address, if any.
func (i Interface) PrimaryIPv4() (netip.Addr, bool) {
	if len(i.IPv4) == 0 {
		return netip.Addr{}, false
	}
	return i.IPv4[0].Addr, true
}

// PrimaryIPv6 returns the first global IPv6 address, falling back to the
// first IPv6 address of any scope.
func (i Interface) PrimaryIPv6() (netip.Addr, bool) {
	for _, a := range i.IPv6 {
		if a.Addr.IsGlobalUnicast() {
			return a.Addr, true
		}
	}
	if len(i.IPv6) == 0 {
		return netip.Addr{}, false
	}
	return i.IPv6[0].Addr, true
}

// OnLink reports whether dst is inside one of the interface prefixes.
func (i Interface) OnLink(dst netip.Addr) bool {
	dst = dst.Unmap()
	for _, set := range [][]InterfaceAddr{i.IPv4, i.IPv6} {
		for _, a := range set {
			if a.Prefix.Contains(dst) {
				return true
			}
		}
	}
	return false
}
