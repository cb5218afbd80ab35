// Package socket provides datalink and raw protocol sockets.
package socket

import (
	"errors"
	"net"
	"os"
)

// Sentinel errors. ErrInvalidOption and ErrInvalidFrame are validation
// failures, ErrOpen is a resource failure and ErrTimeout is retryable.
var (
	ErrInvalidOption = errors.New("xsocket: invalid socket option")
	ErrInvalidFrame  = errors.New("xsocket: invalid frame")
	ErrOpen          = errors.New("xsocket: socket open failed")
	ErrTimeout       = errors.New("xsocket: receive timeout")
	ErrClosed        = errors.New("xsocket: socket closed")
	ErrUnsupported   = errors.New("xsocket: unsupported on this platform")
)

// IsTimeout reports whether err is a receive timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
