// Package packet implements the fixed-size wire packet described in
// spec.md §3/§4.A: a Command byte, a PIC hop counter, a 4-byte little-endian
// Options field, a 25-byte UID, a D-byte data payload, and a little-endian
// CRC-16 checksum.
package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Command codes, spec.md §6.
const (
	CmdACK     byte = 1
	CmdPING    byte = 2
	CmdREAD    byte = 3
	CmdWRITE   byte = 4
	CmdSENSORS byte = 5
	CmdLOAD    byte = 6
	CmdEXEC    byte = 7
	CmdRETR    byte = 8
	CmdERR     byte = 255
)

// Options values for PING.
const (
	PingOwn byte = 0
	PingAll byte = 1
)

// Options values for SENSORS.
const (
	SensorsAll  byte = 0
	SensorsTemp byte = 1
	SensorsVdd  byte = 2
)

// Options values for ERR.
const (
	ErrChecksumMismatch uint32 = 1
)

// UIDSize is the fixed width of the UID field on the wire.
const UIDSize = 25

// headerSize is Command(1) + PIC(1) + Options(4).
const headerSize = 6

// checksumSize is the trailing CRC-16 field.
const checksumSize = 2

// Broadcast is the sentinel UID (25 bytes, all 0xFF) that every node treats
// as matching its own identity for PING/ALL, per spec.md §6.
var Broadcast = func() [UIDSize]byte {
	var b [UIDSize]byte
	for i := range b {
		b[i] = 0xFF
	}
	return b
}()

var (
	// ErrMalformedLength is returned by Decode when the input is not
	// exactly packet Size(d) bytes.
	ErrMalformedLength = errors.New("packet: malformed length")
	// ErrUncrafted is returned by Encode when the packet has never been
	// Finalize'd. Field changes made after Finalize are not detected.
	ErrUncrafted = errors.New("packet: not finalized")
	// ErrCorrupt is returned by Verify when the checksum does not match the
	// canonical (checksum-zeroed) form. Decode does not check the checksum.
	ErrCorrupt = errors.New("packet: checksum mismatch")
)

// Packet is the in-memory representation of one wire packet. Data must be
// exactly BlockSize bytes for a given deployment; the zero value is not a
// valid packet until New populates Data.
type Packet struct {
	Command byte
	PIC     byte
	Options uint32
	UID     [UIDSize]byte
	Data    []byte

	checksum uint16
	crafted  bool
}

// Size returns the total wire size of a packet with a D-byte data payload.
func Size(blockSize int) int {
	return headerSize + UIDSize + blockSize + checksumSize
}

// New allocates a Packet with a zeroed Data payload of blockSize bytes.
func New(blockSize int) *Packet {
	return &Packet{Data: make([]byte, blockSize)}
}

// SetUID copies uid into the UID field, null-padding (or truncating) to
// UIDSize bytes as spec.md §3 requires ("callers supply null padding").
func (p *Packet) SetUID(uid string) {
	var buf [UIDSize]byte
	copy(buf[:], uid)
	p.UID = buf
}

// UIDString returns the UID field as a Go string, trimmed at the first NUL.
func (p *Packet) UIDString() string {
	if i := bytes.IndexByte(p.UID[:], 0); i >= 0 {
		return string(p.UID[:i])
	}
	return string(p.UID[:])
}

// IsBroadcast reports whether the UID field is the all-0xFF sentinel.
func (p *Packet) IsBroadcast() bool {
	return p.UID == Broadcast
}

// MatchesUID reports whether the packet's UID field addresses either the
// given device UID or the broadcast sentinel. Both sides are compared up to
// their first NUL, so a UID given in its null-padded field form matches.
func (p *Packet) MatchesUID(uid string) bool {
	if p.IsBroadcast() {
		return true
	}
	want := []byte(uid)
	if i := bytes.IndexByte(want, 0); i >= 0 {
		want = want[:i]
	}
	return p.UIDString() == string(want)
}

// canonical renders the packet with the checksum field zeroed, the form
// the CRC is computed over (spec.md §3).
func (p *Packet) canonical() []byte {
	buf := make([]byte, 0, Size(len(p.Data)))
	buf = append(buf, p.Command, p.PIC)
	var optBuf [4]byte
	binary.LittleEndian.PutUint32(optBuf[:], p.Options)
	buf = append(buf, optBuf[:]...)
	buf = append(buf, p.UID[:]...)
	buf = append(buf, p.Data...)
	buf = append(buf, 0, 0) // checksum field, zeroed
	return buf
}

// Finalize computes and installs the CRC-16 checksum over the canonical
// form and marks the packet as ready to transmit. Finalize is idempotent:
// calling it again without mutating the packet reproduces the same bytes.
func (p *Packet) Finalize() *Packet {
	p.checksum = crc16(p.canonical()[:Size(len(p.Data))-checksumSize])
	p.crafted = true
	return p
}

// Encode serializes a finalized packet to its wire form. It fails with
// ErrUncrafted if the packet has not been Finalize'd.
func Encode(p *Packet) ([]byte, error) {
	if !p.crafted {
		return nil, ErrUncrafted
	}
	buf := p.canonical()
	binary.LittleEndian.PutUint16(buf[len(buf)-checksumSize:], p.checksum)
	return buf, nil
}

// Decode parses buf into a Packet. It fails with ErrMalformedLength if buf
// is not exactly Size(blockSize) bytes. The returned packet carries whatever
// checksum was present on the wire; use Verify to check it.
func Decode(buf []byte, blockSize int) (*Packet, error) {
	want := Size(blockSize)
	if len(buf) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedLength, len(buf), want)
	}

	p := &Packet{}
	p.Command = buf[0]
	p.PIC = buf[1]
	p.Options = binary.LittleEndian.Uint32(buf[2:6])
	copy(p.UID[:], buf[6:6+UIDSize])
	dataStart := headerSize + UIDSize
	p.Data = append([]byte(nil), buf[dataStart:dataStart+blockSize]...)
	p.checksum = binary.LittleEndian.Uint16(buf[dataStart+blockSize:])
	p.crafted = true
	return p, nil
}

// Verify reports whether the packet's installed checksum matches the CRC-16
// computed over its canonical form. A mismatch means the packet is corrupt
// (spec.md §3).
func (p *Packet) Verify() error {
	canonical := p.canonical()
	computed := crc16(canonical[:len(canonical)-checksumSize])
	if computed != p.checksum {
		return ErrCorrupt
	}
	return nil
}

// Clone returns a deep copy of p, including its crafted/checksum state.
func (p *Packet) Clone() *Packet {
	cp := *p
	cp.Data = append([]byte(nil), p.Data...)
	return &cp
}
