// Package serialport implements the station-side framed serial transport
// of spec.md §4.C: open a port at a configured baud rate, send whole
// packets, receive whole packets with a per-command deadline, and power
// cycle the link.
package serialport

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/sramlab/chainstation/pkg/packet"
)

// ErrTimedOut is returned by Receive when the deadline elapses before a
// full packet has arrived. Per spec.md §4.C this is a recoverable error:
// the transport retains no partial-read state across calls.
var ErrTimedOut = errors.New("serialport: receive timed out")

// ErrClosed is returned by Send/Receive when the port is not open.
var ErrClosed = errors.New("serialport: port not open")

// Port is a station-side serial link to the head of a chain.
type Port struct {
	devicePath string
	baud       int
	blockSize  int

	port serial.Port
	open bool
}

// Open opens devicePath at baud and configures it for packets of the given
// block size. The port starts powered on.
func Open(devicePath string, baud, blockSize int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := serial.Open(devicePath, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", devicePath, err)
	}
	return &Port{
		devicePath: devicePath,
		baud:       baud,
		blockSize:  blockSize,
		port:       sp,
		open:       true,
	}, nil
}

// Close releases the underlying OS handle.
func (p *Port) Close() error {
	if !p.open {
		return nil
	}
	p.open = false
	return p.port.Close()
}

// IsOpen reports the current power state, per the "ON"/"OFF" distinction
// spec.md §4.E's status handler exposes.
func (p *Port) IsOpen() bool {
	return p.open
}

// PowerOn reopens a previously power-cycled-off port.
func (p *Port) PowerOn() error {
	if p.open {
		return nil
	}
	sp, err := serial.Open(p.devicePath, &serial.Mode{
		BaudRate: p.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("serialport: power on %s: %w", p.devicePath, err)
	}
	p.port = sp
	p.open = true
	return nil
}

// PowerOff closes the port, modeling a controlled power-down of the chain
// head without forgetting the device path/baud configuration.
func (p *Port) PowerOff() error {
	return p.Close()
}

// PowerCycle toggles the serial port's power line (DTR, with an RTS
// fallback) per spec.md §4.C, settling briefly so attached devices see a
// clean power transition.
func (p *Port) PowerCycle() error {
	if !p.open {
		return ErrClosed
	}
	if err := p.port.SetDTR(false); err != nil {
		if rerr := p.port.SetRTS(false); rerr != nil {
			return fmt.Errorf("serialport: power cycle (off): %w", err)
		}
	}
	time.Sleep(100 * time.Millisecond)
	if err := p.port.SetDTR(true); err != nil {
		if rerr := p.port.SetRTS(true); rerr != nil {
			return fmt.Errorf("serialport: power cycle (on): %w", err)
		}
	}
	return nil
}

// Send finalizes pkt and writes its wire form in a single write.
func (p *Port) Send(pkt *packet.Packet) error {
	if !p.open {
		return ErrClosed
	}
	pkt.Finalize()
	wire, err := packet.Encode(pkt)
	if err != nil {
		return fmt.Errorf("serialport: encode: %w", err)
	}
	if _, err := p.port.Write(wire); err != nil {
		return fmt.Errorf("serialport: write: %w", err)
	}
	return nil
}

// Receive blocks until either a full packet has been read or deadline
// elapses, per spec.md §4.C. On timeout it returns ErrTimedOut and retains
// no partial-read state: the next Receive starts from a clean buffer.
func (p *Port) Receive(deadline time.Duration) (*packet.Packet, error) {
	if !p.open {
		return nil, ErrClosed
	}
	if err := p.port.SetReadTimeout(deadline); err != nil {
		return nil, fmt.Errorf("serialport: set read timeout: %w", err)
	}

	want := packet.Size(p.blockSize)
	buf := make([]byte, want)
	read := 0
	deadlineAt := time.Now().Add(deadline)

	for read < want {
		n, err := p.port.Read(buf[read:])
		if err != nil {
			return nil, fmt.Errorf("serialport: read: %w", err)
		}
		if n == 0 {
			// go.bug.st/serial returns (0, nil) when the read timeout
			// elapses with nothing new to deliver.
			return nil, ErrTimedOut
		}
		read += n
		if read < want && time.Now().After(deadlineAt) {
			return nil, ErrTimedOut
		}
	}

	return packet.Decode(buf, p.blockSize)
}
