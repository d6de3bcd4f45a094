// Package store defines the SampleStore/SensorStore contracts spec.md §1
// treats as an external collaborator (the relational store for samples,
// sensor readings, and logs — "persistence semantics are the
// collaborator's problem") and ships two concrete, swappable adapters
// (SQLStore over SQLite, MemoryStore in process) so the Reader's
// write_invert reference-sample lookup (spec.md §4.E) has something real to
// run against.
package store

import "time"

// Sample is the station-side record of one SRAM block capture, matching
// the "Persisted samples table" columns of spec.md §6.
type Sample struct {
	UID         string
	BoardKind   string
	PIC         byte
	BlockOffset int
	Payload     []byte
	CapturedAt  time.Time
}

// SensorReading is the station-side record of one SENSORS exchange.
type SensorReading struct {
	UID        string
	BoardKind  string
	TempRaw    uint16
	VoltageRaw uint16
	Temp30Cal  uint16
	Temp110Cal uint16
	VddCal     uint16
	CapturedAt time.Time
}

// SampleStore persists Samples and answers the "does a complete reference
// dump exist" question write_invert needs (spec.md §4.E).
type SampleStore interface {
	SaveSample(s Sample) error
	// ReferenceDump returns the most recent sample payload for each block
	// offset of uid, and whether every offset in [0, blockCount) is
	// present — i.e. whether the reference dump is complete.
	ReferenceDump(uid string, blockCount int) (blocks map[int][]byte, complete bool, err error)
}

// SensorStore persists SensorReadings.
type SensorStore interface {
	SaveSensorReading(r SensorReading) error
}
