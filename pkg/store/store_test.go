package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReferenceDumpCompleteness(t *testing.T) {
	m := NewMemoryStore()
	now := time.Now()

	require.NoError(t, m.SaveSample(Sample{UID: "X", BlockOffset: 0, Payload: []byte{1}, CapturedAt: now}))
	require.NoError(t, m.SaveSample(Sample{UID: "X", BlockOffset: 1, Payload: []byte{2}, CapturedAt: now}))

	_, complete, err := m.ReferenceDump("X", 4)
	require.NoError(t, err)
	require.False(t, complete)

	require.NoError(t, m.SaveSample(Sample{UID: "X", BlockOffset: 2, Payload: []byte{3}, CapturedAt: now}))
	require.NoError(t, m.SaveSample(Sample{UID: "X", BlockOffset: 3, Payload: []byte{4}, CapturedAt: now}))

	blocks, complete, err := m.ReferenceDump("X", 4)
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, []byte{1}, blocks[0])
}

func TestMemoryStoreReferenceDumpKeepsNewestPerOffset(t *testing.T) {
	m := NewMemoryStore()
	old := time.Now().Add(-time.Hour)
	newer := time.Now()

	require.NoError(t, m.SaveSample(Sample{UID: "X", BlockOffset: 0, Payload: []byte{0xAA}, CapturedAt: old}))
	require.NoError(t, m.SaveSample(Sample{UID: "X", BlockOffset: 0, Payload: []byte{0xBB}, CapturedAt: newer}))

	blocks, _, err := m.ReferenceDump("X", 1)
	require.NoError(t, err)
	require.Equal(t, []byte{0xBB}, blocks[0])
}

func TestSQLStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "chain.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SaveSample(Sample{
		UID: "X", BoardKind: "nucleo", PIC: 1, BlockOffset: 0,
		Payload: []byte{0xDE, 0xAD}, CapturedAt: time.Now(),
	}))
	require.NoError(t, db.SaveSensorReading(SensorReading{
		UID: "X", BoardKind: "nucleo", TempRaw: 100, CapturedAt: time.Now(),
	}))

	blocks, complete, err := db.ReferenceDump("X", 1)
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, []byte{0xDE, 0xAD}, blocks[0])
}

func TestBytesCSVRoundTrip(t *testing.T) {
	data := []byte{0, 1, 2, 255}
	csv := bytesToCSV(data)
	require.Equal(t, "0,1,2,255", csv)

	back, err := csvToBytes(csv)
	require.NoError(t, err)
	require.Equal(t, data, back)
}
