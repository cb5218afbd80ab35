//go:build cgo

package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"
)

func TestCompileExpression(t *testing.T) {
	raw, err := CompileExpression("udp", 65535)
	require.NoError(t, err)
	insns, ok := bpf.Disassemble(raw)
	require.True(t, ok)
	vm, err := bpf.NewVM(insns)
	require.NoError(t, err)

	n, err := vm.Run(ipv6UdpFrame())
	require.NoError(t, err)
	assert.Positive(t, n)

	n, err = vm.Run(lldpFrame())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = CompileExpression("not a filter ((", 65535)
	assert.Error(t, err)
}

func TestValidateExpression(t *testing.T) {
	o := DefaultOptions()
	o.BPFExpression = "tcp port 80"
	_, err := o.Validate()
	require.NoError(t, err)

	o.BPFExpression = "port port"
	_, err = o.Validate()
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
