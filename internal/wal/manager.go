package wal

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/synerthink/dotdb/internal/dberrors"
	"github.com/synerthink/dotdb/internal/dotlog"
	"github.com/synerthink/dotdb/internal/dotmetrics"
	"github.com/synerthink/dotdb/internal/pageio"
)

var log = dotlog.For("wal")

// DefaultMaxSegmentSize bounds a single wal.NNNN file before rotation.
const DefaultMaxSegmentSize = 16 * 1024 * 1024

// Config configures a Manager's creation or opening.
type Config struct {
	Dir            string
	MaxSegmentSize int64

	// ArchiveDir, if set, makes PurgeOldFiles gzip each segment into this
	// directory as "wal.NNNN.gz" before removing it from Dir, instead of
	// discarding it outright.
	ArchiveDir string
}

// Manager owns a directory of rotating wal.NNNN segment files. Appends are
// always made to the current (highest-numbered) segment; once it would
// exceed MaxSegmentSize, rotateLocked starts a fresh one. Every field is
// guarded by mu — single coarse mutex, matching the teacher's WALManager,
// which itself has no sub-locks because append/flush/checkpoint/recover
// are only ever called from the transaction manager's own critical
// section.
type Manager struct {
	mu             sync.Mutex
	dir            string
	maxSegmentSize int64
	archiveDir     string

	fileID      uint32
	file        *os.File
	currentSize int64
}

// Open opens or creates the segment directory described by cfg. If
// segment files already exist, it opens the highest-numbered one and
// rescans it to find the true end of valid, checksummed data (a crash can
// leave a partially-written trailing record, mirroring the teacher's
// recoverLSN scan).
func Open(cfg Config) (*Manager, error) {
	maxSize := cfg.MaxSegmentSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSegmentSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o777); err != nil {
		return nil, dberrors.Wrap(dberrors.IO, "wal", cfg.Dir, "create wal directory", err)
	}

	if cfg.ArchiveDir != "" {
		if err := os.MkdirAll(cfg.ArchiveDir, 0o777); err != nil {
			return nil, dberrors.Wrap(dberrors.IO, "wal", cfg.ArchiveDir, "create wal archive directory", err)
		}
	}

	m := &Manager{dir: cfg.Dir, maxSegmentSize: maxSize, archiveDir: cfg.ArchiveDir}

	ids, err := listSegmentIDs(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		if err := m.createSegmentLocked(1); err != nil {
			return nil, err
		}
		log.Debug().Str("dir", cfg.Dir).Msg("wal initialized")
		return m, nil
	}

	latest := ids[len(ids)-1]
	if err := m.openSegmentLocked(latest); err != nil {
		return nil, err
	}
	log.Debug().Str("dir", cfg.Dir).Uint32("file_id", latest).Int64("size", m.currentSize).Msg("wal opened")
	return m, nil
}

func listSegmentIDs(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.IO, "wal", dir, "list wal directory", err)
	}
	var ids []uint32
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "wal.") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(e.Name(), "wal."), 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(n))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Manager) segmentPath(fileID uint32) string {
	return filepath.Join(m.dir, segmentName(fileID))
}

func (m *Manager) createSegmentLocked(fileID uint32) error {
	path := m.segmentPath(fileID)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return dberrors.Wrap(dberrors.IO, "wal", path, "create segment", err)
	}
	hdr := SegmentHeader{FormatVersion: SegmentFormatVersion, FileID: fileID}
	if _, err := f.WriteAt(hdr.encode(), 0); err != nil {
		f.Close()
		return dberrors.Wrap(dberrors.IO, "wal", path, "write segment header", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return dberrors.Wrap(dberrors.IO, "wal", path, "sync segment header", err)
	}
	m.file = f
	m.fileID = fileID
	m.currentSize = 0
	return nil
}

func (m *Manager) openSegmentLocked(fileID uint32) error {
	path := m.segmentPath(fileID)
	f, err := os.OpenFile(path, os.O_RDWR, 0o666)
	if err != nil {
		return dberrors.Wrap(dberrors.IO, "wal", path, "open segment", err)
	}
	hdrBuf := make([]byte, SegmentHeaderSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil && err != io.EOF {
		f.Close()
		return dberrors.Wrap(dberrors.IO, "wal", path, "read segment header", err)
	}
	if _, err := decodeSegmentHeader(hdrBuf); err != nil {
		f.Close()
		return err
	}

	validEnd, err := scanValidEnd(f)
	if err != nil {
		f.Close()
		return err
	}

	m.file = f
	m.fileID = fileID
	m.currentSize = validEnd - int64(SegmentHeaderSize)
	return nil
}

// scanValidEnd walks records from the end of the header, stopping at the
// first truncated or checksum-invalid record (a crash mid-write), and
// returns the file offset of the last fully valid record's end.
func scanValidEnd(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, dberrors.Wrap(dberrors.IO, "wal", f.Name(), "stat segment", err)
	}
	offset := int64(SegmentHeaderSize)
	for offset+RecordHeaderSize <= fi.Size() {
		hdrBuf := make([]byte, RecordHeaderSize)
		if _, err := f.ReadAt(hdrBuf, offset); err != nil {
			break
		}
		hdr := decodeRecordHeader(hdrBuf)
		total := int64(RecordHeaderSize) + int64(hdr.DataLength)
		if offset+total > fi.Size() {
			break
		}
		full := make([]byte, total)
		if _, err := f.ReadAt(full, offset); err != nil {
			break
		}
		if _, err := decodeRecord(full); err != nil {
			break
		}
		offset += total
	}
	return offset, nil
}

// Append writes a new record to the current segment, rotating first if it
// would not fit within MaxSegmentSize. It returns the LSN the record was
// written at.
func (m *Manager) Append(typ RecordType, txnID uint64, pageID pageio.PageID, payload []byte) (LSN, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(RecordHeaderSize) + int64(len(payload))
	if m.currentSize+size > m.maxSegmentSize && m.currentSize > 0 {
		if err := m.rotateLocked(); err != nil {
			return LSN{}, err
		}
	}

	lsn := LSN{FileID: m.fileID, Offset: uint64(m.currentSize)}
	rec := newRecord(typ, lsn, txnID, pageID, payload)
	buf := rec.encode()
	if _, err := m.file.WriteAt(buf, int64(SegmentHeaderSize)+m.currentSize); err != nil {
		return LSN{}, dberrors.Wrap(dberrors.IO, "wal", m.file.Name(), "append record", err)
	}
	m.currentSize += int64(len(buf))
	dotmetrics.WALAppends.WithLabelValues(typ.String()).Inc()
	return lsn, nil
}

// Flush forces the current segment's pending writes to stable storage.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked()
}

func (m *Manager) flushLocked() error {
	if err := m.file.Sync(); err != nil {
		return dberrors.Wrap(dberrors.IO, "wal", m.file.Name(), "sync segment", err)
	}
	dotmetrics.WALFlushes.Inc()
	return nil
}

func (m *Manager) rotateLocked() error {
	if err := m.flushLocked(); err != nil {
		return err
	}
	if err := m.file.Close(); err != nil {
		return dberrors.Wrap(dberrors.IO, "wal", m.file.Name(), "close segment", err)
	}
	nextID := m.fileID + 1
	if err := m.createSegmentLocked(nextID); err != nil {
		return err
	}
	dotmetrics.WALRotations.Inc()
	log.Debug().Uint32("file_id", nextID).Msg("wal rotated")
	return nil
}

// Checkpoint appends a Checkpoint record stamped with the given
// page-store version, flushes it, and forces rotation so that every
// segment file older than the checkpoint's is eligible for PurgeOldFiles
// once its committed records have been durably applied elsewhere.
func (m *Manager) Checkpoint(version pageio.VersionID) (LSN, error) {
	lsn, err := m.Append(RecordCheckpoint, 0, 0, encodeCheckpointPayload(version))
	if err != nil {
		return LSN{}, err
	}
	if err := m.Flush(); err != nil {
		return LSN{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.rotateLocked(); err != nil {
		return LSN{}, err
	}
	return lsn, nil
}

// ReadRecords invokes fn for every valid record across all segment files,
// in ascending (file_id, offset) order. A truncated or checksum-invalid
// trailing record (the tail of a crash) ends the scan of that segment
// without error, since scanValidEnd already bounds reads to the valid
// prefix on open; ReadRecords re-derives the same bound for historical
// segments that are no longer the open current file.
func (m *Manager) ReadRecords(fn func(*Record) error) error {
	m.mu.Lock()
	ids, err := listSegmentIDs(m.dir)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := m.readSegmentRecords(id, fn); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) readSegmentRecords(fileID uint32, fn func(*Record) error) error {
	path := m.segmentPath(fileID)
	f, err := os.Open(path)
	if err != nil {
		return dberrors.Wrap(dberrors.IO, "wal", path, "open segment for read", err)
	}
	defer f.Close()

	validEnd, err := scanValidEnd(f)
	if err != nil {
		return err
	}

	offset := int64(SegmentHeaderSize)
	for offset < validEnd {
		hdrBuf := make([]byte, RecordHeaderSize)
		if _, err := f.ReadAt(hdrBuf, offset); err != nil {
			return dberrors.Wrap(dberrors.IO, "wal", path, "read record header", err)
		}
		hdr := decodeRecordHeader(hdrBuf)
		total := int64(RecordHeaderSize) + int64(hdr.DataLength)
		full := make([]byte, total)
		if _, err := f.ReadAt(full, offset); err != nil {
			return dberrors.Wrap(dberrors.IO, "wal", path, "read record", err)
		}
		rec, err := decodeRecord(full)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		offset += total
	}
	return nil
}

// Replay performs idempotent redo recovery: a first pass collects the set
// of transaction ids that reached a Commit record, then a second pass
// applies every Write/Allocate/Free record belonging to a committed
// transaction, in log order. Records belonging to transactions that never
// committed (crashed mid-transaction, or explicitly aborted) are skipped,
// so replay is safe to run multiple times against the same log.
func (m *Manager) Replay(apply func(*Record) error) error {
	committed := make(map[uint64]bool)
	if err := m.ReadRecords(func(r *Record) error {
		if r.Header.Type == RecordCommit {
			committed[r.Header.TxnID] = true
		}
		return nil
	}); err != nil {
		return err
	}

	applied := 0
	if err := m.ReadRecords(func(r *Record) error {
		switch r.Header.Type {
		case RecordWrite, RecordAllocate, RecordFree:
			if !committed[r.Header.TxnID] {
				return nil
			}
			applied++
			return apply(r)
		}
		return nil
	}); err != nil {
		return err
	}
	log.Info().Int("applied", applied).Int("committed_txns", len(committed)).Msg("wal replay complete")
	return nil
}

// PurgeOldFiles removes every segment file with a file id strictly less
// than beforeFileID. Callers are expected to pass the file id of the most
// recent checkpoint's LSN, so that no segment still needed for recovery
// is deleted. If ArchiveDir is configured, each segment is gzipped into it
// before removal instead of being discarded outright.
func (m *Manager) PurgeOldFiles(beforeFileID uint32) error {
	ids, err := listSegmentIDs(m.dir)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id >= beforeFileID {
			continue
		}
		if m.archiveDir != "" {
			if err := m.archiveSegment(id); err != nil {
				return err
			}
		}
		if err := os.Remove(m.segmentPath(id)); err != nil && !os.IsNotExist(err) {
			return dberrors.Wrap(dberrors.IO, "wal", m.segmentPath(id), "purge segment", err)
		}
		log.Debug().Uint32("file_id", id).Msg("wal segment purged")
	}
	return nil
}

// archiveSegment gzip-compresses segment fileID into ArchiveDir as
// "wal.NNNN.gz", so PurgeOldFiles can discard the live segment without
// losing the historical record.
func (m *Manager) archiveSegment(fileID uint32) error {
	src := m.segmentPath(fileID)
	in, err := os.Open(src)
	if err != nil {
		return dberrors.Wrap(dberrors.IO, "wal", src, "open segment for archive", err)
	}
	defer in.Close()

	dst := filepath.Join(m.archiveDir, segmentName(fileID)+".gz")
	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return dberrors.Wrap(dberrors.IO, "wal", dst, "create archive file", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		return dberrors.Wrap(dberrors.IO, "wal", dst, "write archive", err)
	}
	if err := gw.Close(); err != nil {
		return dberrors.Wrap(dberrors.IO, "wal", dst, "close archive writer", err)
	}
	if err := out.Sync(); err != nil {
		return dberrors.Wrap(dberrors.IO, "wal", dst, "sync archive", err)
	}
	log.Debug().Uint32("file_id", fileID).Str("archive", dst).Msg("wal segment archived")
	return nil
}

// CurrentLSN returns the LSN the next Append call would assign.
func (m *Manager) CurrentLSN() LSN {
	m.mu.Lock()
	defer m.mu.Unlock()
	return LSN{FileID: m.fileID, Offset: uint64(m.currentSize)}
}

// Close flushes and closes the current segment file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.flushLocked(); err != nil {
		return err
	}
	return m.file.Close()
}
