package batch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synerthink/dotdb/internal/index"
)

// TestScenarioFApplyWhatYouCan implements spec.md Scenario F: build a
// B+-tree "ix" and a hash index "hx", construct a batch with a duplicate
// Insert, confirm validate() rejects it, then remove the duplicate and
// confirm apply_to_indices reports successful=2, failed=[], and both
// indexes contain the same two entries.
func TestScenarioFApplyWhatYouCan(t *testing.T) {
	mgr := NewIndexManager()
	require.NoError(t, mgr.AddBTreeIndex("ix", index.NewBPlusTree(4)))
	require.NoError(t, mgr.AddHashIndex("hx", index.NewHashIndex(index.AlgorithmChained, 8)))

	wb := NewWriteBatch(0)
	require.NoError(t, wb.Add(Insert([]byte("1"), []byte("a"))))
	require.NoError(t, wb.Add(Insert([]byte("2"), []byte("b"))))
	require.NoError(t, wb.Add(Insert([]byte("1"), []byte("dup"))))

	err := wb.Validate()
	require.Error(t, err)

	wb2 := NewWriteBatch(0)
	require.NoError(t, wb2.Add(Insert([]byte("1"), []byte("a"))))
	require.NoError(t, wb2.Add(Insert([]byte("2"), []byte("b"))))
	require.NoError(t, wb2.Validate())

	result := wb2.ApplyToIndices(mgr)
	require.Equal(t, 2, result.Successful)
	require.Empty(t, result.Failed)

	for _, name := range []string{"ix", "hx"} {
		v, ok, err := mgr.GetFromIndex(name, []byte("1"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "a", string(v))

		v, ok, err = mgr.GetFromIndex(name, []byte("2"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "b", string(v))
	}
}

func TestWriteBatchFullRejectsBeyondCap(t *testing.T) {
	wb := NewWriteBatch(2)
	require.NoError(t, wb.Add(Insert([]byte("1"), []byte("a"))))
	require.NoError(t, wb.Add(Insert([]byte("2"), []byte("b"))))
	require.True(t, wb.Full())
	err := wb.Add(Insert([]byte("3"), []byte("c")))
	require.Error(t, err)
}

func TestApplyToIndicesCollectsPerOperationFailures(t *testing.T) {
	mgr := NewIndexManager()
	require.NoError(t, mgr.AddBTreeIndex("ix", index.NewBPlusTree(4)))

	wb := NewWriteBatch(0)
	require.NoError(t, wb.Add(Update([]byte("missing"), nil, []byte("v"))))
	require.NoError(t, wb.Add(Insert([]byte("1"), []byte("a"))))

	result := wb.ApplyToIndices(mgr)
	require.Equal(t, 1, result.Successful)
	require.Len(t, result.Failed, 1)
	require.Equal(t, 0, result.Failed[0].OpIndex)
}

func TestIndexManagerLockOrderIsGroupedAlphabetical(t *testing.T) {
	mgr := NewIndexManager()
	require.NoError(t, mgr.AddCompositeIndex("zeta", index.NewCompositeIndex(4)))
	require.NoError(t, mgr.AddHashIndex("beta", index.NewHashIndex(index.AlgorithmChained, 8)))
	require.NoError(t, mgr.AddBTreeIndex("alpha", index.NewBPlusTree(4)))
	require.NoError(t, mgr.AddBTreeIndex("gamma", index.NewBPlusTree(4)))

	ordered := mgr.orderedEntries()
	names := make([]string, len(ordered))
	for i, e := range ordered {
		names[i] = e.name
	}
	require.Equal(t, []string{"alpha", "gamma", "beta", "zeta"}, names)
}

func TestIndexManagerPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mgr := NewIndexManager()
	require.NoError(t, mgr.AddBTreeIndex("ix", index.NewBPlusTree(4)))
	mgr.SetPersistence(dir)

	require.NoError(t, mgr.InsertToAll([]byte("k"), []byte("v")))
	require.NoError(t, mgr.SaveAll())

	fresh := NewIndexManager()
	require.NoError(t, fresh.AddBTreeIndex("ix", index.NewBPlusTree(4)))
	fresh.SetPersistence(dir)
	require.NoError(t, fresh.LoadIndices())

	v, ok, err := fresh.GetFromIndex("ix", []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", string(v))
}
