//go:build !cgo

package capture

import (
	"fmt"

	"golang.org/x/net/bpf"

	"firestige.xyz/xsocket/pkg/socket"
)

// CompileExpression needs libpcap and so a cgo build.
func CompileExpression(expr string, _ int) ([]bpf.RawInstruction, error) {
	return nil, fmt.Errorf("%w: bpf expression %q needs a cgo build", socket.ErrUnsupported, expr)
}
