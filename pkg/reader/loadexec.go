package reader

import (
	"bytes"

	"github.com/sramlab/chainstation/pkg/eventlog"
	"github.com/sramlab/chainstation/pkg/packet"
)

// maxRetrieveBlocks bounds Retrieve's scan of the output region: the Reader
// has no a priori bound on how much output an EXEC produced, so it stops
// either at the first all-zero block (end-of-output heuristic) or here,
// whichever comes first.
const maxRetrieveBlocks = 64

// Load pushes source in block-sized chunks to one managed device's staging
// area, per spec.md §4.E. An empty source still loads as a single
// zero-length chunk so EXEC always has a defined (possibly empty) program.
func (r *Reader) Load(uid string, source []byte) map[string]interface{} {
	if !r.requirePowered() || !r.requireManaged() {
		return nil
	}
	if _, err := r.Table.Get(uid); err != nil {
		r.emit(eventlog.Error, eventlog.MsgUnknownUID, map[string]interface{}{"uid": uid})
		return nil
	}

	blockSize := r.Board.BlockSize()
	chunks := chunkBytes(source, blockSize)
	for i, c := range chunks {
		p := packet.New(blockSize)
		p.Command = packet.CmdLOAD
		p.Options = uint32(i)
		p.SetUID(uid)
		copy(p.Data, c)
		if err := r.Transport.Send(p); err != nil {
			r.emit(eventlog.Error, err.Error(), map[string]interface{}{"uid": uid, "chunk": i})
			return nil
		}
		resp, err := r.Transport.Receive(r.BlockDeadline)
		if err != nil {
			r.emit(eventlog.Error, eventlog.MsgReceiveTimedOut, map[string]interface{}{"uid": uid, "chunk": i})
			return nil
		}
		if verr := resp.Verify(); verr != nil {
			r.emit(eventlog.Warning, eventlog.MsgPacketCorrupted, map[string]interface{}{"uid": uid, "chunk": i})
			return nil
		}
		if resp.Command != packet.CmdACK {
			r.emit(eventlog.Error, "unexpected response to load", map[string]interface{}{"uid": uid, "chunk": i})
			return nil
		}
	}
	return map[string]interface{}{"status": "OK", "chunks": len(chunks)}
}

func chunkBytes(b []byte, size int) [][]byte {
	if len(b) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for i := 0; i < len(b); i += size {
		end := i + size
		if end > len(b) {
			end = len(b)
		}
		out = append(out, b[i:end])
	}
	return out
}

// Exec triggers evaluation of one device's staged program. reset clears the
// prior output region and interpreter state before evaluating, per
// spec.md §4.E's Options=1 reset flag. A non-zero return code is surfaced
// as an event but still reported back to the caller.
func (r *Reader) Exec(uid string, reset bool) map[string]interface{} {
	if !r.requirePowered() || !r.requireManaged() {
		return nil
	}
	if _, err := r.Table.Get(uid); err != nil {
		r.emit(eventlog.Error, eventlog.MsgUnknownUID, map[string]interface{}{"uid": uid})
		return nil
	}

	p := packet.New(r.Board.BlockSize())
	p.Command = packet.CmdEXEC
	if reset {
		p.Options = 1
	}
	p.SetUID(uid)
	if err := r.Transport.Send(p); err != nil {
		r.emit(eventlog.Error, err.Error(), map[string]interface{}{"uid": uid})
		return nil
	}
	resp, err := r.Transport.Receive(r.BlockDeadline)
	if err != nil {
		r.emit(eventlog.Error, eventlog.MsgReceiveTimedOut, map[string]interface{}{"uid": uid})
		return nil
	}
	if verr := resp.Verify(); verr != nil {
		r.emit(eventlog.Warning, eventlog.MsgPacketCorrupted, map[string]interface{}{"uid": uid})
		return nil
	}
	code := resp.Options
	if code != 0 {
		r.emit(eventlog.Warning, eventlog.MsgInterpreterNonZero, map[string]interface{}{"uid": uid, "code": code})
	}
	return map[string]interface{}{"status": "OK", "code": code}
}

// Retrieve concatenates RETR blocks from one device's output region until
// either a zero-filled block (end-of-output) or maxRetrieveBlocks is
// reached.
func (r *Reader) Retrieve(uid string) map[string]interface{} {
	if !r.requirePowered() || !r.requireManaged() {
		return nil
	}
	if _, err := r.Table.Get(uid); err != nil {
		r.emit(eventlog.Error, eventlog.MsgUnknownUID, map[string]interface{}{"uid": uid})
		return nil
	}

	blockSize := r.Board.BlockSize()
	var raw []byte
	for offset := 0; offset < maxRetrieveBlocks; offset++ {
		p := packet.New(blockSize)
		p.Command = packet.CmdRETR
		p.Options = uint32(offset)
		p.SetUID(uid)
		if err := r.Transport.Send(p); err != nil {
			r.emit(eventlog.Error, err.Error(), map[string]interface{}{"uid": uid, "offset": offset})
			break
		}
		resp, err := r.Transport.Receive(r.BlockDeadline)
		if err != nil {
			r.emit(eventlog.Error, eventlog.MsgReceiveTimedOut, map[string]interface{}{"uid": uid, "offset": offset})
			break
		}
		if verr := resp.Verify(); verr != nil {
			r.emit(eventlog.Warning, eventlog.MsgPacketCorrupted, map[string]interface{}{"uid": uid, "offset": offset})
			break
		}
		if isAllZero(resp.Data) {
			break
		}
		raw = append(raw, resp.Data...)
	}
	return map[string]interface{}{"raw": raw, "text": string(bytes.TrimRight(raw, "\x00"))}
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
