// Package membership implements the station-side chain membership table
// described in spec.md §3/§4.D: a map from device UID to device record,
// mutated only by the owning Reader.
package membership

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrMissing is returned by Get when the UID is not present in the table.
var ErrMissing = errors.New("membership: device not found")

// Device is the station-side record of one chain member.
type Device struct {
	UID       string
	PIC       byte
	SRAMSize  int
	LastSeen  time.Time
}

// Table is the chain membership table. It owns no I/O; every mutation
// happens synchronously from the owning Reader's goroutine. The internal
// mutex exists only to let Status()/List() be read safely from other
// threads per spec.md §5 ("other threads must treat it as opaque"), not to
// allow concurrent writers.
type Table struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// New returns an empty Table.
func New() *Table {
	return &Table{devices: make(map[string]Device)}
}

// Clear removes every device from the table.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devices = make(map[string]Device)
}

// Upsert inserts or replaces the record for d.UID, stamping LastSeen to now
// if the caller left it zero.
func (t *Table) Upsert(d Device) {
	if d.LastSeen.IsZero() {
		d.LastSeen = time.Now()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devices[d.UID] = d
}

// Remove deletes uid from the table if present.
func (t *Table) Remove(uid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.devices, uid)
}

// Get returns the record for uid, or ErrMissing if uid is not managed.
func (t *Table) Get(uid string) (Device, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.devices[uid]
	if !ok {
		return Device{}, ErrMissing
	}
	return d, nil
}

// List returns every managed device ordered by PIC ascending.
func (t *Table) List() []Device {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Device, 0, len(t.devices))
	for _, d := range t.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PIC < out[j].PIC })
	return out
}

// Len returns the number of managed devices.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.devices)
}
