package mvcc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synerthink/dotdb/internal/pageio"
)

func page(body string) *pageio.Page {
	return pageio.NewPage(5, pageio.PageTypeData, 0, []byte(body))
}

// TestWriteConflictScenarioD exercises spec.md scenario D: T1 begins, T2
// begins, T1 writes+commits page 5, T2 writes the same page and sees a
// write conflict against T1's commit.
func TestWriteConflictScenarioD(t *testing.T) {
	s := New(0)

	t1 := TxnID(1)
	t2 := TxnID(2)
	s.CreateSnapshot(t1, RepeatableRead)
	s.CreateSnapshot(t2, RepeatableRead)

	s.AddVersion(5, page("a"), t1)
	s.CommitTransaction(t1)

	s.AddVersion(5, page("b"), t2)
	require.True(t, s.CheckWriteConflict(5, t2))
}

func TestGetVisibleVersionOwnVsCommitted(t *testing.T) {
	s := New(0)
	t1 := TxnID(1)
	t2 := TxnID(2)

	s.CreateSnapshot(t1, RepeatableRead)
	s.AddVersion(5, page("a"), t1)
	s.CommitTransaction(t1)

	s.CreateSnapshot(t2, RepeatableRead)
	got, ok := s.GetVisibleVersion(5, t2)
	require.True(t, ok)
	require.Equal(t, "a", string(got.Body))

	s.AddVersion(5, page("b-uncommitted"), t2)
	got, ok = s.GetVisibleVersion(5, t2)
	require.True(t, ok)
	require.Equal(t, "b-uncommitted", string(got.Body))
}

func TestUncommittedInvisibleToOtherTxn(t *testing.T) {
	s := New(0)
	t1 := TxnID(1)
	t2 := TxnID(2)
	s.CreateSnapshot(t1, RepeatableRead)
	s.CreateSnapshot(t2, RepeatableRead)

	s.AddVersion(5, page("uncommitted"), t1)

	_, ok := s.GetVisibleVersion(5, t2)
	require.False(t, ok)
}

func TestAbortRemovesVersions(t *testing.T) {
	s := New(0)
	t1 := TxnID(1)
	s.CreateSnapshot(t1, RepeatableRead)
	s.AddVersion(5, page("a"), t1)
	s.AbortTransaction(t1)

	_, ok := s.GetVisibleVersion(5, t1)
	require.False(t, ok)
}

func TestGCCollectsObsoleteVersions(t *testing.T) {
	s := New(2)
	t1 := TxnID(1)
	s.CreateSnapshot(t1, RepeatableRead)
	for i := 0; i < 5; i++ {
		s.AddVersion(5, page("v"), t1)
		s.CommitTransaction(t1)
		s.CreateSnapshot(t1, RepeatableRead)
	}
	stats := s.Stats()
	require.Less(t, stats.TotalVersions, 5)
	require.Greater(t, stats.TotalGCRuns, uint64(0))
}

func TestSerializableReadWriteConflict(t *testing.T) {
	s := New(0)

	base := TxnID(0)
	s.AddVersion(5, page("base"), base)
	s.CommitTransaction(base)

	t1 := TxnID(1)
	t2 := TxnID(2)
	s.CreateSnapshot(t1, Serializable)
	s.CreateSnapshot(t2, Serializable)

	// t1 reads page 5, pinning it to its read-set.
	_, ok := s.GetVisibleVersion(5, t1)
	require.True(t, ok)

	// t2 concurrently writes and commits page 5.
	s.AddVersion(5, page("b"), t2)
	s.CommitTransaction(t2)

	require.True(t, s.CheckSerializableConflict(t1))
}
