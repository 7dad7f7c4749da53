package hashtable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMixBatchMatchesScalar(t *testing.T) {
	keys := []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	out := make([]uint64, len(keys))
	MixBatch(42, keys, out)
	for i, k := range keys {
		require.Equal(t, Mix(42, k), out[i])
	}
}

func TestOATableInsertLookupRehash(t *testing.T) {
	tbl := NewOATable(4, true)
	for i := int64(0); i < 100; i++ {
		tbl.Insert(Mix(0, uint64(i)), i, i*10)
	}
	for i := int64(0); i < 100; i++ {
		v, ok := tbl.Lookup(Mix(0, uint64(i)), i)
		require.True(t, ok)
		require.Equal(t, i*10, v)
	}
	_, ok := tbl.Lookup(Mix(0, 12345), 12345)
	require.False(t, ok)
}

func TestBucketTableInternIsStable(t *testing.T) {
	bt := NewBucketTable(4)
	h := Mix(0, 0xABCD)
	id1 := bt.InternOrInsert(h, "hello")
	id2 := bt.InternOrInsert(h, "hello")
	require.Equal(t, id1, id2)
	id3 := bt.InternOrInsert(Mix(0, 0xEF01), "world")
	require.NotEqual(t, id1, id3)
}

func TestAggCellPackUnpack(t *testing.T) {
	cell := PackCell(0x1234000000000000, 7)
	require.Equal(t, uint16(0x1234), CellSalt(cell))
	require.Equal(t, uint32(7), CellGroupID(cell))
	require.False(t, CellIsEmpty(cell))
	require.True(t, CellIsEmpty(AggCellEmpty))
}
