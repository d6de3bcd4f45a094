package reader

import (
	"time"

	"github.com/sramlab/chainstation/pkg/eventlog"
	"github.com/sramlab/chainstation/pkg/packet"
	"github.com/sramlab/chainstation/pkg/store"
)

// Read dumps every block of every managed device's SRAM, persisting each
// block as it arrives (spec.md §4.E). A timed-out block aborts the rest of
// that device's dump and moves on to the next device; a corrupt block is
// skipped (not retried) and the dump goes on with the next offset.
func (r *Reader) Read() map[string]interface{} {
	if !r.requirePowered() || !r.requireManaged() {
		return nil
	}

	saved := 0
	for _, d := range r.Table.List() {
		blockCount := d.SRAMSize / r.Board.BlockSize()
		for offset := 0; offset < blockCount; offset++ {
			p := packet.New(r.Board.BlockSize())
			p.Command = packet.CmdREAD
			p.Options = uint32(offset)
			p.SetUID(d.UID)
			if err := r.Transport.Send(p); err != nil {
				r.emit(eventlog.Error, err.Error(), map[string]interface{}{"uid": d.UID})
				break
			}
			resp, err := r.Transport.Receive(r.BlockDeadline)
			if err != nil {
				r.emit(eventlog.Error, eventlog.MsgReceiveTimedOut, map[string]interface{}{"uid": d.UID, "offset": offset})
				break // abort this device, continue to the next
			}
			if verr := resp.Verify(); verr != nil {
				r.emit(eventlog.Warning, eventlog.MsgPacketCorrupted, map[string]interface{}{"uid": d.UID, "offset": offset})
				continue
			}
			if resp.Command != packet.CmdACK || resp.UIDString() != d.UID {
				r.emit(eventlog.Warning, eventlog.MsgUnknownUID, map[string]interface{}{"uid": d.UID})
				continue
			}
			if r.Samples != nil {
				if err := r.Samples.SaveSample(store.Sample{
					UID: d.UID, BoardKind: r.Board.Kind(), PIC: d.PIC,
					BlockOffset: offset, Payload: append([]byte(nil), resp.Data...),
					CapturedAt: time.Now(),
				}); err != nil {
					r.logf("reader %s: save sample uid=%s offset=%d: %v", r.Name, d.UID, offset, err)
				}
			}
			saved++
		}
	}
	return map[string]interface{}{"blocks_saved": saved}
}

// Write pushes a single block to one managed device. The caller's data is
// null-padded to the board's block size.
func (r *Reader) Write(uid string, offset int, data []byte) map[string]interface{} {
	if !r.requirePowered() || !r.requireManaged() {
		return nil
	}
	d, err := r.Table.Get(uid)
	if err != nil {
		r.emit(eventlog.Error, eventlog.MsgUnknownUID, map[string]interface{}{"uid": uid})
		return nil
	}
	blockCount := d.SRAMSize / r.Board.BlockSize()
	if offset < 0 || offset >= blockCount {
		r.emit(eventlog.Error, eventlog.MsgOffsetOutOfRange, map[string]interface{}{"uid": uid, "offset": offset})
		return nil
	}
	if len(data) > r.Board.BlockSize() {
		r.emit(eventlog.Error, "write payload exceeds block size", map[string]interface{}{"uid": uid, "offset": offset})
		return nil
	}

	p := packet.New(r.Board.BlockSize())
	p.Command = packet.CmdWRITE
	p.Options = uint32(offset)
	p.SetUID(uid)
	copy(p.Data, data)

	if err := r.Transport.Send(p); err != nil {
		r.emit(eventlog.Error, err.Error(), map[string]interface{}{"uid": uid})
		return nil
	}
	resp, err := r.Transport.Receive(r.BlockDeadline)
	if err != nil {
		r.emit(eventlog.Error, eventlog.MsgReceiveTimedOut, map[string]interface{}{"uid": uid, "offset": offset})
		return nil
	}
	if verr := resp.Verify(); verr != nil {
		r.emit(eventlog.Warning, eventlog.MsgPacketCorrupted, map[string]interface{}{"uid": uid, "offset": offset})
		return nil
	}
	if resp.Command != packet.CmdACK || resp.UIDString() != uid {
		r.emit(eventlog.Error, "unexpected response to write", map[string]interface{}{"uid": uid})
		return nil
	}
	return map[string]interface{}{"status": "OK"}
}

// invertBytes returns the bitwise-NOT of b, used by WriteInvert.
func invertBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = ^v
	}
	return out
}

// WriteInvert writes the bitwise-NOT of each even-indexed managed device's
// most recent complete reference dump back to that device, per spec.md
// §4.E. A device with no reference dump, or an incomplete one, is skipped
// with a WARNING rather than aborting the whole operation.
func (r *Reader) WriteInvert() map[string]interface{} {
	if !r.requirePowered() || !r.requireManaged() {
		return nil
	}
	if !r.Board.Supports(CapWriteInvert) {
		r.emit(eventlog.Error, "write_invert is not supported on this board variant", nil)
		return nil
	}
	if r.Samples == nil {
		r.emit(eventlog.Warning, eventlog.MsgMissingReferenceSample, nil)
		return map[string]interface{}{"blocks_written": 0}
	}

	devices := r.Table.List()
	written := 0
	for idx, d := range devices {
		if idx%2 != 0 {
			continue
		}
		blockCount := d.SRAMSize / r.Board.BlockSize()
		blocks, complete, err := r.Samples.ReferenceDump(d.UID, blockCount)
		if err != nil {
			r.emit(eventlog.Error, err.Error(), map[string]interface{}{"uid": d.UID})
			continue
		}
		if len(blocks) == 0 {
			r.emit(eventlog.Warning, eventlog.MsgMissingReferenceSample, map[string]interface{}{"uid": d.UID})
			continue
		}
		if !complete {
			r.emit(eventlog.Warning, eventlog.MsgPartialReferenceSample, map[string]interface{}{"uid": d.UID})
			continue
		}
		for offset := 0; offset < blockCount; offset++ {
			if r.Write(d.UID, offset, invertBytes(blocks[offset])) != nil {
				written++
			}
		}
	}
	return map[string]interface{}{"blocks_written": written}
}
