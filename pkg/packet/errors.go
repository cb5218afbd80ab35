// Package packet implements header codecs, builders and frame decoding.
package packet

import "errors"

// Sentinel decoding errors.
var (
	ErrPacketTooShort   = errors.New("xsocket: packet too short")
	ErrInvalidHeader    = errors.New("xsocket: invalid header")
	ErrUnsupportedProto = errors.New("xsocket: unsupported protocol")
)
