// Package reader implements the station-side command planner/executor of
// spec.md §4.E: the Reader drives a Transport (a real serial port or an
// in-process test fake) through the discovery protocol and every per-device
// command exchange, updating the membership table and persisting results
// as it goes.
package reader

import (
	"log"
	"time"

	"github.com/sramlab/chainstation/pkg/eventlog"
	"github.com/sramlab/chainstation/pkg/membership"
	"github.com/sramlab/chainstation/pkg/packet"
	"github.com/sramlab/chainstation/pkg/store"
)

// Transport is everything a Reader needs from the link to the chain head,
// satisfied by *serialport.Port against real hardware and by a channel-
// backed fake wrapping a *node.Chain in tests.
type Transport interface {
	Send(pkt *packet.Packet) error
	Receive(deadline time.Duration) (*packet.Packet, error)
	PowerOn() error
	PowerOff() error
	PowerCycle() error
	IsOpen() bool
}

// Reader is one chain's command planner/executor. It owns the membership
// table for its chain and is not safe for concurrent command dispatch —
// spec.md §5 expects a Dispatcher to serialize calls into a Reader.
type Reader struct {
	Name        string
	Transport   Transport
	Table       *membership.Table
	Board       Board
	Samples     store.SampleStore
	SensorStore store.SensorStore
	Sink        *eventlog.Sink
	Logger      *log.Logger

	// PingDeadline bounds each individual ACK wait during discovery.
	PingDeadline time.Duration
	// BlockDeadline bounds each single-exchange command (read/write/sensors/
	// load/exec/retrieve block).
	BlockDeadline time.Duration
}

// New constructs a Reader with spec.md §6's default deadlines.
func New(name string, transport Transport, board Board, samples store.SampleStore, sensors store.SensorStore, sink *eventlog.Sink, logger *log.Logger) *Reader {
	return &Reader{
		Name:          name,
		Transport:     transport,
		Table:         membership.New(),
		Board:         board,
		Samples:       samples,
		SensorStore:   sensors,
		Sink:          sink,
		Logger:        logger,
		PingDeadline:  200 * time.Millisecond,
		BlockDeadline: 500 * time.Millisecond,
	}
}

func (r *Reader) emit(level eventlog.Level, msg string, ctx map[string]interface{}) {
	if r.Sink == nil {
		return
	}
	r.Sink.Emit(eventlog.Record{SourceName: r.Name, Level: level, Message: msg, Context: ctx})
}

func (r *Reader) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

// requirePowered enforces the precondition every command but power_on/
// power_off/status shares: the link must be open (spec.md §4.E).
func (r *Reader) requirePowered() bool {
	if !r.Transport.IsOpen() {
		r.emit(eventlog.Error, eventlog.MsgPortPoweredOff, nil)
		return false
	}
	return true
}

// requireManaged enforces the second shared precondition: the membership
// table must be non-empty.
func (r *Reader) requireManaged() bool {
	if r.Table.Len() == 0 {
		r.emit(eventlog.Error, eventlog.MsgEmptyMembership, nil)
		return false
	}
	return true
}

// PowerOn needs neither precondition: it is how the link gets powered on.
func (r *Reader) PowerOn() map[string]interface{} {
	if err := r.Transport.PowerOn(); err != nil {
		r.emit(eventlog.Error, err.Error(), nil)
		return map[string]interface{}{"status": "ERROR", "msg": err.Error()}
	}
	return map[string]interface{}{"status": "OK"}
}

// PowerOff likewise needs neither precondition.
func (r *Reader) PowerOff() map[string]interface{} {
	if err := r.Transport.PowerOff(); err != nil {
		r.emit(eventlog.Error, err.Error(), nil)
		return map[string]interface{}{"status": "ERROR", "msg": err.Error()}
	}
	return map[string]interface{}{"status": "OK"}
}

// Status reports the link's power state and every managed device, ordered
// by PIC, per spec.md §4.E. It needs neither precondition.
func (r *Reader) Status() map[string]interface{} {
	state := "OFF"
	if r.Transport.IsOpen() {
		state = "ON"
	}
	devices := make([]map[string]interface{}, 0, r.Table.Len())
	for _, d := range r.Table.List() {
		devices = append(devices, map[string]interface{}{
			"uid": d.UID, "pic": d.PIC, "sram_size": d.SRAMSize,
		})
	}
	return map[string]interface{}{"state": state, "devices": devices}
}
