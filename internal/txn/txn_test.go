package txn

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synerthink/dotdb/internal/dberrors"
	"github.com/synerthink/dotdb/internal/mvcc"
	"github.com/synerthink/dotdb/internal/pageio"
	"github.com/synerthink/dotdb/internal/wal"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	pages, err := pageio.Init(pageio.Config{Path: filepath.Join(dir, "data.db")})
	require.NoError(t, err)
	t.Cleanup(func() { pages.Close() })

	logMgr, err := wal.Open(wal.Config{Dir: filepath.Join(dir, "wal")})
	require.NoError(t, err)
	t.Cleanup(func() { logMgr.Close() })

	store := mvcc.New(0)
	return New(pages, logMgr, store)
}

func writePage(t *testing.T, m *Manager, tx *Transaction, pageID pageio.PageID, body string) {
	t.Helper()
	p := pageio.NewPage(pageID, pageio.PageTypeData, 0, []byte(body))
	require.NoError(t, m.Write(context.Background(), tx, pageID, p))
}

// TestScenarioCMVCCVisibility exercises spec.md scenario C: snapshot
// isolation across overlapping transactions.
func TestScenarioCMVCCVisibility(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	t1, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)
	writePage(t, m, t1, 1, "v1")
	require.NoError(t, m.Commit(ctx, t1))

	t2, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)

	t3, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)
	writePage(t, m, t3, 1, "v2")

	got, err := m.Read(ctx, t2, 1)
	require.NoError(t, err)
	require.Equal(t, "v1", string(got.Body))

	require.NoError(t, m.Commit(ctx, t3))

	got, err = m.Read(ctx, t2, 1)
	require.NoError(t, err)
	require.Equal(t, "v1", string(got.Body))

	t4, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)
	got, err = m.Read(ctx, t4, 1)
	require.NoError(t, err)
	require.Equal(t, "v2", string(got.Body))
}

// TestScenarioDWriteWriteConflict exercises spec.md scenario D.
func TestScenarioDWriteWriteConflict(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	t1, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)
	t2, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)

	writePage(t, m, t1, 5, "a")
	require.NoError(t, m.Commit(ctx, t1))

	p := pageio.NewPage(5, pageio.PageTypeData, 0, []byte("b"))
	err = m.Write(ctx, t2, 5, p)
	require.Error(t, err)
	require.Equal(t, dberrors.ConcurrencyConflict, dberrors.KindOf(err))
}

func TestAbortFreesAllocatedPages(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	tx, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)
	p, err := m.Allocate(ctx, tx, pageio.PageTypeData, 0)
	require.NoError(t, err)
	require.NoError(t, m.Abort(ctx, tx))

	tx2, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)
	p2, err := m.Allocate(ctx, tx2, pageio.PageTypeData, 0)
	require.NoError(t, err)
	require.Equal(t, p.ID, p2.ID)
}

// TestCommitFreesPagesImmediately exercises the Free/Commit protocol: a
// page freed by a committed transaction must return to the free list
// right away, not only after a crash-recovery replay.
func TestCommitFreesPagesImmediately(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	tx, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)
	p, err := m.Allocate(ctx, tx, pageio.PageTypeData, 0)
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, tx))

	tx2, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)
	require.NoError(t, m.Free(ctx, tx2, p.ID))
	require.NoError(t, m.Commit(ctx, tx2))

	tx3, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)
	p2, err := m.Allocate(ctx, tx3, pageio.PageTypeData, 0)
	require.NoError(t, err)
	require.Equal(t, p.ID, p2.ID, "freed page should be reused without a recovery replay")
	require.NoError(t, m.Commit(ctx, tx3))
}

func TestRecoverReplaysCommittedWrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	pages, err := pageio.Init(pageio.Config{Path: filepath.Join(dir, "data.db")})
	require.NoError(t, err)
	logMgr, err := wal.Open(wal.Config{Dir: filepath.Join(dir, "wal")})
	require.NoError(t, err)
	store := mvcc.New(0)
	m := New(pages, logMgr, store)

	tx, err := m.Begin(ctx, mvcc.RepeatableRead)
	require.NoError(t, err)
	p, err := m.Allocate(ctx, tx, pageio.PageTypeData, 0)
	require.NoError(t, err)
	writePage(t, m, tx, p.ID, "recovered")
	require.NoError(t, m.Commit(ctx, tx))
	require.NoError(t, logMgr.Close())
	require.NoError(t, pages.Close())

	pages2, err := pageio.Init(pageio.Config{Path: filepath.Join(dir, "data.db")})
	require.NoError(t, err)
	defer pages2.Close()
	logMgr2, err := wal.Open(wal.Config{Dir: filepath.Join(dir, "wal")})
	require.NoError(t, err)
	defer logMgr2.Close()
	store2 := mvcc.New(0)
	m2 := New(pages2, logMgr2, store2)
	require.NoError(t, m2.Recover(ctx))

	got, err := pages2.ReadPage(p.ID)
	require.NoError(t, err)
	require.Equal(t, "recovered", string(got.Body))
}
