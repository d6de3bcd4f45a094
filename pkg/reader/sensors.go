package reader

import (
	"encoding/binary"
	"time"

	"github.com/sramlab/chainstation/pkg/eventlog"
	"github.com/sramlab/chainstation/pkg/packet"
	"github.com/sramlab/chainstation/pkg/store"
)

// Sensors reads the full SENSORS subset from every managed device and
// persists the reading, per spec.md §4.E.
func (r *Reader) Sensors() map[string]interface{} {
	if !r.requirePowered() || !r.requireManaged() {
		return nil
	}

	readings := 0
	for _, d := range r.Table.List() {
		p := packet.New(r.Board.BlockSize())
		p.Command = packet.CmdSENSORS
		p.Options = uint32(packet.SensorsAll)
		p.SetUID(d.UID)
		if err := r.Transport.Send(p); err != nil {
			r.emit(eventlog.Error, err.Error(), map[string]interface{}{"uid": d.UID})
			continue
		}
		resp, err := r.Transport.Receive(r.BlockDeadline)
		if err != nil {
			r.emit(eventlog.Error, eventlog.MsgReceiveTimedOut, map[string]interface{}{"uid": d.UID})
			continue
		}
		if verr := resp.Verify(); verr != nil {
			r.emit(eventlog.Warning, eventlog.MsgPacketCorrupted, map[string]interface{}{"uid": d.UID})
			continue
		}
		if resp.Command != packet.CmdACK || resp.UIDString() != d.UID {
			r.emit(eventlog.Warning, eventlog.MsgUnknownUID, map[string]interface{}{"uid": d.UID})
			continue
		}
		if r.SensorStore != nil {
			if err := r.SensorStore.SaveSensorReading(decodeSensorsAll(d.UID, r.Board.Kind(), resp.Data)); err != nil {
				r.logf("reader %s: save sensor reading uid=%s: %v", r.Name, d.UID, err)
			}
		}
		readings++
	}
	return map[string]interface{}{"readings": readings}
}

// decodeSensorsAll parses the field ordering handleSensors/SENSORS/All uses on
// the node side (Temp110Cal, Temp30Cal, TempRaw, VddCal, VoltageRaw).
func decodeSensorsAll(uid, boardKind string, data []byte) store.SensorReading {
	field := func(off int) uint16 {
		if off+2 > len(data) {
			return 0
		}
		return binary.LittleEndian.Uint16(data[off : off+2])
	}
	return store.SensorReading{
		UID:        uid,
		BoardKind:  boardKind,
		Temp110Cal: field(0),
		Temp30Cal:  field(2),
		TempRaw:    field(4),
		VddCal:     field(6),
		VoltageRaw: field(8),
		CapturedAt: time.Now(),
	}
}
