package wal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synerthink/dotdb/internal/pageio"
)

func TestAppendAndReadRecords(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.AppendBegin(1)
	require.NoError(t, err)
	_, err = m.AppendWrite(1, pageio.PageID(5), []byte("payload"))
	require.NoError(t, err)
	_, err = m.AppendCommit(1)
	require.NoError(t, err)

	var types []RecordType
	err = m.ReadRecords(func(r *Record) error {
		types = append(types, r.Header.Type)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []RecordType{RecordBegin, RecordWrite, RecordCommit}, types)
}

func TestReplaySkipsUncommittedTransactions(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	defer m.Close()

	// txn 1 commits.
	_, err = m.AppendBegin(1)
	require.NoError(t, err)
	_, err = m.AppendWrite(1, pageio.PageID(1), []byte("a"))
	require.NoError(t, err)
	_, err = m.AppendCommit(1)
	require.NoError(t, err)

	// txn 2 never commits (simulates a crash mid-transaction).
	_, err = m.AppendBegin(2)
	require.NoError(t, err)
	_, err = m.AppendWrite(2, pageio.PageID(2), []byte("b"))
	require.NoError(t, err)

	var appliedPages []pageio.PageID
	err = m.Replay(func(r *Record) error {
		appliedPages = append(appliedPages, r.Header.PageID)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []pageio.PageID{1}, appliedPages)
}

func TestRotationSplitsSegments(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(Config{Dir: dir, MaxSegmentSize: 2 * (RecordHeaderSize + 4)})
	require.NoError(t, err)
	defer m.Close()

	for i := uint64(1); i <= 5; i++ {
		_, err := m.AppendWrite(i, pageio.PageID(i), []byte("xxxx"))
		require.NoError(t, err)
	}

	entries, err := filepath.Glob(filepath.Join(dir, "wal.*"))
	require.NoError(t, err)
	require.Greater(t, len(entries), 1)

	count := 0
	err = m.ReadRecords(func(r *Record) error {
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 5, count)
}

func TestCheckpointAndPurge(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.AppendWrite(1, pageio.PageID(1), []byte("a"))
	require.NoError(t, err)

	lsn, err := m.Checkpoint(pageio.VersionID(3))
	require.NoError(t, err)
	require.Equal(t, uint32(1), lsn.FileID)

	_, err = m.AppendWrite(2, pageio.PageID(2), []byte("b"))
	require.NoError(t, err)

	require.NoError(t, m.PurgeOldFiles(lsn.FileID+1))

	entries, err := filepath.Glob(filepath.Join(dir, "wal.*"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestPurgeArchivesSegmentsWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	archiveDir := t.TempDir()
	m, err := Open(Config{Dir: dir, ArchiveDir: archiveDir})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.AppendWrite(1, pageio.PageID(1), []byte("a"))
	require.NoError(t, err)

	lsn, err := m.Checkpoint(pageio.VersionID(3))
	require.NoError(t, err)

	require.NoError(t, m.PurgeOldFiles(lsn.FileID+1))

	archived, err := filepath.Glob(filepath.Join(archiveDir, "wal.*.gz"))
	require.NoError(t, err)
	require.Len(t, archived, 1)

	live, err := filepath.Glob(filepath.Join(dir, "wal.*"))
	require.NoError(t, err)
	require.Len(t, live, 1)
}

func TestReopenPreservesRecords(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(Config{Dir: dir})
	require.NoError(t, err)

	_, err = m.AppendWrite(1, pageio.PageID(1), []byte("a"))
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	count := 0
	err = reopened.ReadRecords(func(r *Record) error {
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
