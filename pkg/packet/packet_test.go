package packet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePacket(blockSize int) *Packet {
	p := New(blockSize)
	p.Command = CmdREAD
	p.PIC = 3
	p.Options = 7
	p.SetUID("AAAAAAAAAAAAAAAAAAAAAAAAA")
	for i := range p.Data {
		p.Data[i] = byte(i)
	}
	return p
}

func TestEncodeUncraftedFails(t *testing.T) {
	p := samplePacket(16)
	_, err := Encode(p)
	require.ErrorIs(t, err, ErrUncrafted)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	p := samplePacket(16)
	p.Finalize()
	first := p.checksum
	p.Finalize()
	require.Equal(t, first, p.checksum)
}

func TestRoundTrip(t *testing.T) {
	p := samplePacket(16)
	p.Finalize()

	wire, err := Encode(p)
	require.NoError(t, err)
	require.Len(t, wire, Size(16))

	decoded, err := Decode(wire, 16)
	require.NoError(t, err)
	require.Equal(t, p.Command, decoded.Command)
	require.Equal(t, p.PIC, decoded.PIC)
	require.Equal(t, p.Options, decoded.Options)
	require.Equal(t, p.UID, decoded.UID)
	require.Equal(t, p.Data, decoded.Data)
	require.NoError(t, decoded.Verify())

	reencoded, err := Encode(decoded)
	require.NoError(t, err)
	require.Equal(t, wire, reencoded)
}

func TestDecodeMalformedLength(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3}, 16)
	require.ErrorIs(t, err, ErrMalformedLength)
}

func TestDecodeCorruptChecksum(t *testing.T) {
	p := samplePacket(16)
	p.Finalize()
	wire, err := Encode(p)
	require.NoError(t, err)

	wire[len(wire)-1] ^= 0xFF // flip a checksum byte

	decoded, err := Decode(wire, 16)
	require.NoError(t, err)
	require.ErrorIs(t, decoded.Verify(), ErrCorrupt)
}

func TestBroadcastUID(t *testing.T) {
	p := samplePacket(4)
	p.UID = Broadcast
	require.True(t, p.IsBroadcast())
	require.True(t, p.MatchesUID("anything"))
}

func TestUIDStringTrimsNull(t *testing.T) {
	p := samplePacket(4)
	p.SetUID("X")
	require.Equal(t, "X", p.UIDString())
}

func TestCRCMatchesKnownVector(t *testing.T) {
	// CRC-16/ARC("123456789") = 0xBB3D, the standard check value for this
	// polynomial/init combination.
	require.Equal(t, uint16(0xBB3D), crc16([]byte("123456789")))
}
