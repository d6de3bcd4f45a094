package reader

import (
	"github.com/sramlab/chainstation/pkg/eventlog"
	"github.com/sramlab/chainstation/pkg/membership"
	"github.com/sramlab/chainstation/pkg/packet"
)

// Ping runs the discovery protocol of spec.md §4.E: broadcast PING/ALL,
// then collect ACKs until the chain falls silent, replacing the
// membership table's contents with whatever answered this round. A device
// that fails to refresh on this round is removed, matching the invariant
// that a device disappears when a subsequent ping fails to refresh it.
func (r *Reader) Ping() map[string]interface{} {
	if !r.requirePowered() {
		return nil
	}

	before := r.Table.List()
	hadDevices := len(before) > 0

	p := packet.New(r.Board.BlockSize())
	p.Command = packet.CmdPING
	p.Options = uint32(packet.PingAll)
	p.UID = packet.Broadcast
	if err := r.Transport.Send(p); err != nil {
		r.emit(eventlog.Error, err.Error(), nil)
		return nil
	}

	seenPIC := make(map[string]byte)
	for {
		resp, err := r.Transport.Receive(r.PingDeadline)
		if err != nil {
			break // discovery ends when the chain falls silent
		}
		if resp.Command != packet.CmdACK {
			continue
		}
		if verr := resp.Verify(); verr != nil {
			r.emit(eventlog.Warning, eventlog.MsgPacketCorrupted, map[string]interface{}{"uid": resp.UIDString()})
			continue
		}

		uid := resp.UIDString()
		if prevPIC, ok := seenPIC[uid]; ok {
			// The same UID answering twice in one round is a chain wiring
			// fault; the lower PIC (closer hop) wins.
			if resp.PIC < prevPIC {
				seenPIC[uid] = resp.PIC
				r.Table.Upsert(membership.Device{UID: uid, PIC: resp.PIC, SRAMSize: int(resp.Options)})
			}
			r.emit(eventlog.Warning, "duplicate uid answered ping more than once; lower pic kept", map[string]interface{}{"uid": uid})
			continue
		}
		seenPIC[uid] = resp.PIC
		r.Table.Upsert(membership.Device{UID: uid, PIC: resp.PIC, SRAMSize: int(resp.Options)})
	}

	for _, d := range before {
		if _, ok := seenPIC[d.UID]; !ok {
			r.Table.Remove(d.UID)
		}
	}

	nowEmpty := r.Table.Len() == 0
	switch {
	case hadDevices && nowEmpty:
		r.emit(eventlog.Error, eventlog.MsgDevicesLost, nil)
	case !hadDevices && nowEmpty:
		r.emit(eventlog.Error, eventlog.MsgNoDevicesIdentified, nil)
	}

	return r.Status()
}
