// Package wal implements the write-ahead log (C2): a sequence of
// fixed-header, checksummed records spread across rotating segment files,
// appended before the page store is mutated so that a crash between the
// two can always be repaired by replay.
//
// Grounded on the teacher's internal/transaction/wal.go (WALManager: an
// LSN counter, writeEntry/recoverLSN, Checkpoint truncation, Recover
// replay), generalized from the teacher's single-file/no-checksum/
// B+-tree-page-only design to multi-segment rotation, per-record CRC32,
// and the full {Begin, Commit, Abort, Write, Allocate, Free, Read,
// Checkpoint} record set.
package wal

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/synerthink/dotdb/internal/dberrors"
	"github.com/synerthink/dotdb/internal/pageio"
)

// RecordType enumerates the kinds of WAL records.
type RecordType uint8

const (
	RecordBegin RecordType = iota
	RecordCommit
	RecordAbort
	RecordWrite
	RecordAllocate
	RecordFree
	RecordRead
	RecordCheckpoint
)

func (t RecordType) String() string {
	switch t {
	case RecordBegin:
		return "begin"
	case RecordCommit:
		return "commit"
	case RecordAbort:
		return "abort"
	case RecordWrite:
		return "write"
	case RecordAllocate:
		return "allocate"
	case RecordFree:
		return "free"
	case RecordRead:
		return "read"
	case RecordCheckpoint:
		return "checkpoint"
	default:
		return "unknown"
	}
}

// LSN (log sequence number) locates a record by the segment file that
// holds it and the byte offset within that file.
type LSN struct {
	FileID uint32
	Offset uint64
}

// Less reports whether lsn sorts strictly before other.
func (lsn LSN) Less(other LSN) bool {
	if lsn.FileID != other.FileID {
		return lsn.FileID < other.FileID
	}
	return lsn.Offset < other.Offset
}

// RecordHeaderSize is the bit-exact fixed header size from spec.md §6.
const RecordHeaderSize = 37

// RecordHeader is the fixed-size prefix of every record:
//
//	offset 0:  RecordType        (1 byte)
//	offset 1:  LSN.FileID        (4 bytes)
//	offset 5:  LSN.Offset        (8 bytes)
//	offset 13: TxnID             (8 bytes)
//	offset 21: PageID            (8 bytes, 0 when the record has no associated page)
//	offset 29: Checksum          (4 bytes)
//	offset 33: DataLength        (4 bytes)
type RecordHeader struct {
	Type       RecordType
	LSN        LSN
	TxnID      uint64
	PageID     pageio.PageID
	Checksum   uint32
	DataLength uint32
}

func (h *RecordHeader) encode(buf []byte) {
	buf[0] = byte(h.Type)
	binary.LittleEndian.PutUint32(buf[1:5], h.LSN.FileID)
	binary.LittleEndian.PutUint64(buf[5:13], h.LSN.Offset)
	binary.LittleEndian.PutUint64(buf[13:21], h.TxnID)
	binary.LittleEndian.PutUint64(buf[21:29], uint64(h.PageID))
	binary.LittleEndian.PutUint32(buf[29:33], h.Checksum)
	binary.LittleEndian.PutUint32(buf[33:37], h.DataLength)
}

func decodeRecordHeader(buf []byte) RecordHeader {
	return RecordHeader{
		Type:       RecordType(buf[0]),
		LSN:        LSN{FileID: binary.LittleEndian.Uint32(buf[1:5]), Offset: binary.LittleEndian.Uint64(buf[5:13])},
		TxnID:      binary.LittleEndian.Uint64(buf[13:21]),
		PageID:     pageio.PageID(binary.LittleEndian.Uint64(buf[21:29])),
		Checksum:   binary.LittleEndian.Uint32(buf[29:33]),
		DataLength: binary.LittleEndian.Uint32(buf[33:37]),
	}
}

// Record is a single WAL entry: a header plus an opaque payload whose
// shape depends on Header.Type (page bytes for Write, an encoded
// VersionID for Checkpoint, empty for Begin/Commit/Abort/Allocate/Free/Read).
type Record struct {
	Header  RecordHeader
	Payload []byte
}

// recordChecksum computes CRC32 (IEEE) over the header with its Checksum
// field zeroed, followed by the payload — mirroring pageio's convention of
// excluding the checksum field itself from the hashed bytes.
func recordChecksum(h RecordHeader, payload []byte) uint32 {
	h.Checksum = 0
	var buf [RecordHeaderSize]byte
	h.encode(buf[:])
	crc := crc32.NewIEEE()
	crc.Write(buf[:])
	crc.Write(payload)
	return crc.Sum32()
}

// newRecord builds a Record with its checksum already computed.
func newRecord(typ RecordType, lsn LSN, txnID uint64, pageID pageio.PageID, payload []byte) *Record {
	r := &Record{
		Header: RecordHeader{
			Type:       typ,
			LSN:        lsn,
			TxnID:      txnID,
			PageID:     pageID,
			DataLength: uint32(len(payload)),
		},
		Payload: payload,
	}
	r.Header.Checksum = recordChecksum(r.Header, r.Payload)
	return r
}

// encode serializes the record to its on-disk form (header followed by payload).
func (r *Record) encode() []byte {
	buf := make([]byte, RecordHeaderSize+len(r.Payload))
	r.Header.encode(buf[:RecordHeaderSize])
	copy(buf[RecordHeaderSize:], r.Payload)
	return buf
}

// verifyChecksum reports whether the record's stored checksum matches its
// current header+payload contents.
func (r *Record) verifyChecksum() bool {
	return r.Header.Checksum == recordChecksum(r.Header, r.Payload)
}

func decodeRecord(buf []byte) (*Record, error) {
	if len(buf) < RecordHeaderSize {
		return nil, dberrors.New(dberrors.Corruption, "wal", "", "truncated record header")
	}
	hdr := decodeRecordHeader(buf[:RecordHeaderSize])
	rest := buf[RecordHeaderSize:]
	if uint32(len(rest)) < hdr.DataLength {
		return nil, dberrors.New(dberrors.Corruption, "wal", "", "truncated record payload")
	}
	rec := &Record{Header: hdr, Payload: rest[:hdr.DataLength]}
	if !rec.verifyChecksum() {
		return nil, dberrors.New(dberrors.Corruption, "wal", "", "record checksum mismatch")
	}
	return rec, nil
}

// encodeCheckpointPayload encodes a storage-engine VersionID as an 8-byte
// little-endian payload for a Checkpoint record.
func encodeCheckpointPayload(v pageio.VersionID) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeCheckpointPayload(buf []byte) (pageio.VersionID, error) {
	if len(buf) < 8 {
		return 0, dberrors.New(dberrors.Corruption, "wal", "", "truncated checkpoint payload")
	}
	return pageio.VersionID(binary.LittleEndian.Uint64(buf)), nil
}
