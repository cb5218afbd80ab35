package packet

import "net/netip"

// Checksum returns the RFC 1071 Internet checksum of b. An odd trailing
// byte is padded with zero.
func Checksum(b []byte) uint16 {
	return fold(sum(b, 0))
}

// sum adds b to s as a sequence of big-endian 16-bit words.
func sum(b []byte, s uint32) uint32 {
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		s += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if n%2 == 1 {
		s += uint32(b[n-1]) << 8
	}
	return s
}

func fold(s uint32) uint16 {
	for s > 0xffff {
		s = (s >> 16) + (s & 0xffff)
	}
	return ^uint16(s)
}

// pseudoHeaderSum sums the IPv4 or IPv6 pseudo-header for an upper-layer
// segment of the given length. IPv4 is used when both addresses are IPv4.
func pseudoHeaderSum(src, dst netip.Addr, proto IPProtocol, length int) uint32 {
	src, dst = src.Unmap(), dst.Unmap()
	var s uint32
	if src.Is4() && dst.Is4() {
		a, b := src.As4(), dst.As4()
		s = sum(a[:], s)
		s = sum(b[:], s)
		s += uint32(proto)
		s += uint32(length & 0xffff)
		return s
	}
	a, b := src.As16(), dst.As16()
	s = sum(a[:], s)
	s = sum(b[:], s)
	s += uint32(length>>16) + uint32(length&0xffff)
	s += uint32(proto)
	return s
}

// transportChecksum computes the checksum of a segment whose checksum
// field has already been zeroed.
func transportChecksum(src, dst netip.Addr, proto IPProtocol, segment []byte) uint16 {
	return fold(sum(segment, pseudoHeaderSum(src, dst, proto, len(segment))))
}
