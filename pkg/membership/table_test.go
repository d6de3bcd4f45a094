package membership

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertAndGet(t *testing.T) {
	tbl := New()
	tbl.Upsert(Device{UID: "AAA", PIC: 1, SRAMSize: 16384})

	d, err := tbl.Get("AAA")
	require.NoError(t, err)
	require.Equal(t, byte(1), d.PIC)
	require.False(t, d.LastSeen.IsZero())
}

func TestGetMissing(t *testing.T) {
	tbl := New()
	_, err := tbl.Get("nope")
	require.ErrorIs(t, err, ErrMissing)
}

func TestListOrderedByPIC(t *testing.T) {
	tbl := New()
	tbl.Upsert(Device{UID: "Z", PIC: 3})
	tbl.Upsert(Device{UID: "X", PIC: 1})
	tbl.Upsert(Device{UID: "Y", PIC: 2})

	list := tbl.List()
	require.Len(t, list, 3)
	require.Equal(t, "X", list[0].UID)
	require.Equal(t, "Y", list[1].UID)
	require.Equal(t, "Z", list[2].UID)
}

func TestRemoveAndClear(t *testing.T) {
	tbl := New()
	tbl.Upsert(Device{UID: "A", PIC: 1})
	tbl.Upsert(Device{UID: "B", PIC: 2})
	tbl.Remove("A")
	require.Equal(t, 1, tbl.Len())

	tbl.Clear()
	require.Equal(t, 0, tbl.Len())
}
