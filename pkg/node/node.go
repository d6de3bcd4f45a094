// Package node implements the per-device forwarding state machine of
// spec.md §4.B: a single-threaded actor with two independent one-packet
// receive buffers (upstream, downstream) that parses, dispatches, and
// re-forwards packets identically regardless of chain position.
//
// The two buffers are modeled as two channels rather than two byte
// counters driven by DMA completion interrupts — the bucket-brigade
// invariant spec.md's design notes call out ("the two-buffer split is the
// mechanism that guarantees [no interleaving]") falls out for free from
// using two independent Go channels instead of hand-rolled buffer state.
package node

import (
	"context"
	"encoding/binary"
	"log"

	"github.com/sramlab/chainstation/pkg/packet"
)

// SensorState holds the raw and calibration telemetry words a Node
// reports through SENSORS. Missing calibration values are left at zero,
// per spec.md §9's resolution of the open question on SENSORS subsets.
type SensorState struct {
	TempRaw    uint16
	VoltageRaw uint16
	Temp30Cal  uint16
	Temp110Cal uint16
	VddCal     uint16
}

// Node is one device's forwarding state machine. All fields are only
// touched from the goroutine running Run; Node is not safe for concurrent
// use from outside that goroutine, matching the single-threaded firmware
// it models.
type Node struct {
	UID       string
	SRAMSize  int
	BlockSize int

	Sensors SensorState

	Interp Interpreter

	// RecvFromAbove is the upstream buffer: packets arriving from the
	// station or from the node above.
	RecvFromAbove <-chan []byte
	// SendToAbove transmits out the upstream port, toward the station.
	SendToAbove chan<- []byte
	// RecvFromBelow is the downstream buffer: response traffic arriving
	// from the node below.
	RecvFromBelow <-chan []byte
	// SendToBelow transmits out the downstream port, toward the next node.
	SendToBelow chan<- []byte

	Logger *log.Logger

	sram          []byte
	sourceStaging []byte
	outputRegion  []byte
	outputPtr     int
}

// New constructs a Node with SRAM zeroed to sramSize bytes.
func New(uid string, sramSize, blockSize int, interp Interpreter) *Node {
	if interp == nil {
		interp = NewEchoInterpreter()
	}
	return &Node{
		UID:       uid,
		SRAMSize:  sramSize,
		BlockSize: blockSize,
		Interp:    interp,
		sram:      make([]byte, sramSize),
	}
}

// SeedSRAM overwrites the SRAM contents, e.g. to pre-populate a known
// pattern for a test scenario.
func (n *Node) SeedSRAM(data []byte) {
	copy(n.sram, data)
}

func (n *Node) logf(format string, args ...interface{}) {
	if n.Logger != nil {
		n.Logger.Printf(format, args...)
	}
}

// Run executes the main loop described in spec.md §4.B until ctx is
// cancelled or RecvFromAbove is closed.
func (n *Node) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-n.RecvFromAbove:
			if !ok {
				return
			}
			n.handleUpstream(raw)
		case raw, ok := <-n.RecvFromBelow:
			if !ok {
				return
			}
			n.passThroughUpstream(raw)
		}
	}
}

// passThroughUpstream is the downstream-receiver side channel: it
// retransmits whatever arrived on the downstream buffer upstream without
// inspecting it (spec.md §4.B, "return-path bucket brigade").
func (n *Node) passThroughUpstream(raw []byte) {
	n.SendToAbove <- raw
}

func (n *Node) handleUpstream(raw []byte) {
	p, err := packet.Decode(raw, n.BlockSize)
	if err != nil {
		// A malformed-length buffer cannot happen over the channel
		// transport this package uses in place of raw UART bytes; a real
		// byte-oriented transport would simply keep accumulating here.
		n.logf("node %s: dropping malformed buffer: %v", n.UID, err)
		return
	}

	if verr := p.Verify(); verr != nil {
		n.sendErr(p)
		return
	}

	p.PIC++

	switch p.Command {
	case packet.CmdPING:
		n.handlePing(p)
	case packet.CmdREAD:
		n.handleRead(p)
	case packet.CmdWRITE:
		n.handleWrite(p)
	case packet.CmdSENSORS:
		n.handleSensors(p)
	case packet.CmdLOAD:
		n.handleLoad(p)
	case packet.CmdEXEC:
		n.handleExec(p)
	case packet.CmdRETR:
		n.handleRetr(p)
	case packet.CmdERR:
		n.forwardUpstream(p)
	default:
		n.forwardUpstream(p)
	}
}

// sendErr synthesizes an ERR packet (Options=checksum mismatch) and sends
// it upstream, per spec.md §4.B step 2. The PIC on the synthesized packet
// is still incremented by this hop even though the originating packet
// failed its checksum, matching spec.md §8 scenario 3 (pic=1 at the head
// node for a packet station-crafted with pic=0).
func (n *Node) sendErr(p *packet.Packet) {
	errPkt := packet.New(n.BlockSize)
	errPkt.Command = packet.CmdERR
	errPkt.PIC = p.PIC + 1
	errPkt.Options = packet.ErrChecksumMismatch
	errPkt.UID = p.UID
	errPkt.Finalize()
	n.sendUpstream(errPkt)
}

func (n *Node) handlePing(p *packet.Packet) {
	switch byte(p.Options) {
	case packet.PingOwn:
		if p.MatchesUID(n.UID) {
			ack := p.Clone()
			ack.Command = packet.CmdACK
			ack.Options = uint32(n.SRAMSize)
			n.sendUpstream(ack)
			return
		}
		n.forwardDownstream(p)
	case packet.PingAll:
		ack := p.Clone()
		ack.SetUID(n.UID)
		ack.Options = uint32(n.SRAMSize)
		ack.Command = packet.CmdACK
		n.sendUpstream(ack)

		// Re-emit the original broadcast downstream so every further node
		// also announces itself.
		fwd := p.Clone()
		n.forwardDownstream(fwd)
	default:
		n.forwardDownstream(p)
	}
}

func (n *Node) handleRead(p *packet.Packet) {
	if !p.MatchesUID(n.UID) {
		n.forwardDownstream(p)
		return
	}
	offset := int(p.Options)
	start := offset * n.BlockSize
	if start < 0 || start+n.BlockSize > len(n.sram) {
		// Out-of-range offsets are a Reader-level precondition violation
		// (spec.md §7); the node still ACKs, with zeroed data, rather than
		// leaving the requester waiting on a response that never comes.
		for i := range p.Data {
			p.Data[i] = 0
		}
		p.Command = packet.CmdACK
		n.sendUpstream(p)
		return
	}
	copy(p.Data, n.sram[start:start+n.BlockSize])
	p.Command = packet.CmdACK
	n.sendUpstream(p)
}

func (n *Node) handleWrite(p *packet.Packet) {
	if !p.MatchesUID(n.UID) {
		n.forwardDownstream(p)
		return
	}
	offset := int(p.Options)
	start := offset * n.BlockSize
	if start >= 0 && start+n.BlockSize <= len(n.sram) {
		copy(n.sram[start:start+n.BlockSize], p.Data)
	}
	p.Command = packet.CmdACK
	n.sendUpstream(p)
}

func (n *Node) handleSensors(p *packet.Packet) {
	if !p.MatchesUID(n.UID) {
		n.forwardDownstream(p)
		return
	}
	for i := range p.Data {
		p.Data[i] = 0
	}
	switch byte(p.Options) {
	case packet.SensorsTemp:
		putFields(p.Data, n.Sensors.Temp110Cal, n.Sensors.Temp30Cal, n.Sensors.TempRaw)
	case packet.SensorsVdd:
		putFields(p.Data, n.Sensors.VddCal, n.Sensors.VoltageRaw)
	default: // SensorsAll and any unrecognized subset
		putFields(p.Data, n.Sensors.Temp110Cal, n.Sensors.Temp30Cal, n.Sensors.TempRaw, n.Sensors.VddCal, n.Sensors.VoltageRaw)
	}
	p.Command = packet.CmdACK
	n.sendUpstream(p)
}

// putFields writes a sequence of little-endian 16-bit fields starting at
// offset 0 of buf. Fields that would overflow buf are silently dropped —
// D is always sized well above the widest SENSORS subset in practice.
func putFields(buf []byte, fields ...uint16) {
	off := 0
	for _, f := range fields {
		if off+2 > len(buf) {
			return
		}
		binary.LittleEndian.PutUint16(buf[off:off+2], f)
		off += 2
	}
}

func (n *Node) handleLoad(p *packet.Packet) {
	if !p.MatchesUID(n.UID) {
		n.forwardDownstream(p)
		return
	}
	offset := int(p.Options)
	end := offset*n.BlockSize + n.BlockSize
	if end > len(n.sourceStaging) {
		grown := make([]byte, end)
		copy(grown, n.sourceStaging)
		n.sourceStaging = grown
	}
	copy(n.sourceStaging[offset*n.BlockSize:end], p.Data)
	p.Command = packet.CmdACK
	n.sendUpstream(p)
}

func (n *Node) handleExec(p *packet.Packet) {
	if !p.MatchesUID(n.UID) {
		n.forwardDownstream(p)
		return
	}
	if p.Options == 1 {
		n.outputPtr = 0
		n.Interp.Reset()
		n.outputRegion = nil
	}
	status := n.Interp.Eval(n.sourceStaging)
	n.outputRegion = n.Interp.Output()
	p.Options = status
	p.Command = packet.CmdACK
	n.sendUpstream(p)
}

func (n *Node) handleRetr(p *packet.Packet) {
	if !p.MatchesUID(n.UID) {
		n.forwardDownstream(p)
		return
	}
	offset := int(p.Options)
	start := offset * n.BlockSize
	for i := range p.Data {
		p.Data[i] = 0
	}
	if start < len(n.outputRegion) {
		end := start + n.BlockSize
		if end > len(n.outputRegion) {
			end = len(n.outputRegion)
		}
		copy(p.Data, n.outputRegion[start:end])
	}
	p.Command = packet.CmdACK
	n.sendUpstream(p)
}

// forwardUpstream re-finalizes p (pic already incremented by the caller)
// and transmits it out the upstream port unchanged otherwise, per
// spec.md's invariant that the forwarding branch only ever mutates pic
// and the checksum.
func (n *Node) forwardUpstream(p *packet.Packet) {
	n.sendUpstream(p)
}

func (n *Node) forwardDownstream(p *packet.Packet) {
	p.Finalize()
	wire, err := packet.Encode(p)
	if err != nil {
		n.logf("node %s: encode failed forwarding downstream: %v", n.UID, err)
		return
	}
	n.SendToBelow <- wire
}

func (n *Node) sendUpstream(p *packet.Packet) {
	p.Finalize()
	wire, err := packet.Encode(p)
	if err != nil {
		n.logf("node %s: encode failed sending upstream: %v", n.UID, err)
		return
	}
	n.SendToAbove <- wire
}
