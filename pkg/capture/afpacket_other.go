//go:build !linux || !cgo

package capture

import (
	"fmt"

	"firestige.xyz/xsocket/pkg/datalink"
	"firestige.xyz/xsocket/pkg/socket"
)

func openAfpacketSource(ifi datalink.Interface, opts Options) (Source, error) {
	return nil, fmt.Errorf("afpacket engine: %w", socket.ErrUnsupported)
}
