package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/synerthink/dotdb/internal/dberrors"
	"github.com/synerthink/dotdb/internal/pageio"
)

// SegmentMagic is the bit-exact magic stamped at byte 0 of every segment file.
var SegmentMagic = [4]byte{0x44, 0x4F, 0x54, 0x57} // "DOTW"

// SegmentHeaderSize is the bit-exact fixed header size from spec.md §6.
const SegmentHeaderSize = 128

// SegmentFormatVersion is the highest segment format this build can open.
const SegmentFormatVersion uint32 = 1

// segmentHeaderWireSize is the number of meaningful bytes within
// SegmentHeaderSize; the remainder is zero padding reserved for future use.
const segmentHeaderWireSize = 4 + 4 + 4 + 8 + 8 + 8

// SegmentHeader is the fixed header prefixing every segment file:
// {magic, format_version, file_id, current_lsn (file_id+offset),
// current_version}.
type SegmentHeader struct {
	FormatVersion  uint32
	FileID         uint32
	CurrentLSN     LSN
	CurrentVersion pageio.VersionID
}

func (h *SegmentHeader) encode() []byte {
	buf := make([]byte, SegmentHeaderSize)
	copy(buf[0:4], SegmentMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.FormatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], h.FileID)
	binary.LittleEndian.PutUint32(buf[12:16], h.CurrentLSN.FileID)
	binary.LittleEndian.PutUint64(buf[16:24], h.CurrentLSN.Offset)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.CurrentVersion))
	return buf
}

func decodeSegmentHeader(buf []byte) (*SegmentHeader, error) {
	if len(buf) < segmentHeaderWireSize {
		return nil, dberrors.New(dberrors.Corruption, "wal", "", "truncated segment header")
	}
	if string(buf[0:4]) != string(SegmentMagic[:]) {
		return nil, dberrors.New(dberrors.Corruption, "wal", "", "bad segment magic")
	}
	h := &SegmentHeader{
		FormatVersion: binary.LittleEndian.Uint32(buf[4:8]),
		FileID:        binary.LittleEndian.Uint32(buf[8:12]),
		CurrentLSN: LSN{
			FileID: binary.LittleEndian.Uint32(buf[12:16]),
			Offset: binary.LittleEndian.Uint64(buf[16:24]),
		},
		CurrentVersion: pageio.VersionID(binary.LittleEndian.Uint64(buf[24:32])),
	}
	if h.FormatVersion > SegmentFormatVersion {
		return nil, dberrors.New(dberrors.Corruption, "wal", "", "unsupported segment format_version")
	}
	return h, nil
}

// segmentName returns the conventional "wal.NNNN" file name for a segment id.
func segmentName(fileID uint32) string {
	return fmt.Sprintf("wal.%04d", fileID)
}
