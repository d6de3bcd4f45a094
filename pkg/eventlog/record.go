// Package eventlog implements the structured event log sink of
// spec.md §3/§4.G: a Record type fanned out to one or more Outputs, each
// filtered by a level threshold, with one output's failure never blocking
// another's.
package eventlog

import "time"

// Level is one of the four severities spec.md §3 defines for Event records.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Record is the structured event emitted by a Reader/Dispatcher and
// consumed by every configured Output, per spec.md §3.
type Record struct {
	SourceName string
	Level      Level
	Message    string
	Context    map[string]interface{}
	EmittedAt  time.Time
}

// Fixed message templates downstream dashboards pattern-match on
// (spec.md §7: "a stable message template").
const (
	MsgPortPoweredOff          = "serial port is powered off"
	MsgEmptyMembership         = "no devices are currently managed"
	MsgNoDevicesIdentified     = "no devices could be identified"
	MsgDevicesLost             = "devices were connected but now none could be identified"
	MsgPacketCorrupted         = "packet is corrupted"
	MsgReceiveTimedOut         = "receive from chain timed out"
	MsgUnknownUID              = "command addressed an unmanaged device"
	MsgOffsetOutOfRange        = "block offset is out of range"
	MsgMissingReferenceSample  = "a full memory sample must be read from this device before write-invert"
	MsgPartialReferenceSample  = "reference sample for this device is incomplete"
	MsgInterpreterNonZero      = "interpreter returned a non-zero status code"
)
