package packet

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreRoundTrip(t *testing.T) {
	b := GreBuilder{
		Protocol: EtherTypeIPv4,
		Checksum: true,
		Key:      Uint32(0xdeadbeef),
		Sequence: Uint32(123),
	}
	payload := []byte{0x45, 0, 0, 20}

	raw := b.Build(payload)
	require.Len(t, raw, GreHeaderLen+12+len(payload))
	assert.Equal(t, uint16(0), Checksum(raw))

	gre, err := DecodeGre(raw)
	require.NoError(t, err)
	assert.True(t, gre.ChecksumPresent)
	assert.True(t, gre.KeyPresent)
	assert.True(t, gre.SequencePresent)
	assert.False(t, gre.RoutingPresent)
	assert.Equal(t, EtherTypeIPv4, gre.Protocol)
	assert.Equal(t, uint32(0xdeadbeef), gre.Key)
	assert.Equal(t, uint32(123), gre.Sequence)
	assert.Equal(t, payload, gre.Payload)
}

func TestGreDecodedByGopacket(t *testing.T) {
	raw := GreBuilder{Protocol: EtherTypeIPv6, Key: Uint32(9)}.Build(nil)
	pkt := gopacket.NewPacket(raw, layers.LayerTypeGRE, gopacket.Default)

	gre, ok := pkt.Layer(layers.LayerTypeGRE).(*layers.GRE)
	require.True(t, ok)
	assert.True(t, gre.KeyPresent)
	assert.Equal(t, uint32(9), gre.Key)
	assert.Equal(t, layers.EthernetTypeIPv6, gre.Protocol)
}

func TestDecodeGreTruncatedOptionalFields(t *testing.T) {
	raw := GreBuilder{Protocol: EtherTypeIPv4, Key: Uint32(1)}.Build(nil)
	_, err := DecodeGre(raw[:6])
	assert.ErrorIs(t, err, ErrPacketTooShort)
}
