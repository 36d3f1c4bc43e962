package pageio

import (
	"encoding/binary"

	"github.com/synerthink/dotdb/internal/dberrors"
)

// FileMagic is the bit-exact magic stamped at byte 0 of the data file.
var FileMagic = [4]byte{0x44, 0x4F, 0x54, 0x44} // "DOTD"

// SupportedFormatVersion is the highest format_version this build can open.
const SupportedFormatVersion uint32 = 1

// DefaultPageSize is the default page size when a config does not override it.
const DefaultPageSize = 4096

// HeaderSize is the number of bytes page 0 (the file header) occupies;
// must be >= 4096 per spec.md §3.
const HeaderSize = 4096

// fileHeaderWireSize is the number of meaningful bytes within HeaderSize;
// the remainder is zero padding reserved for future fields.
const fileHeaderWireSize = 4 + 4 + 4 + 8 + 8 + 8

// FileHeader is the page-0 record: {magic, format_version, page_size,
// total_pages, current_version, first_free_page}.
type FileHeader struct {
	FormatVersion  uint32
	PageSize       uint32
	TotalPages     uint64
	CurrentVersion VersionID
	FirstFreePage  PageID
}

func (h *FileHeader) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], FileMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.FormatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], h.PageSize)
	binary.LittleEndian.PutUint64(buf[12:20], h.TotalPages)
	binary.LittleEndian.PutUint64(buf[20:28], uint64(h.CurrentVersion))
	binary.LittleEndian.PutUint64(buf[28:36], uint64(h.FirstFreePage))
	return buf
}

func decodeFileHeader(buf []byte) (*FileHeader, error) {
	if len(buf) < fileHeaderWireSize {
		return nil, dberrors.New(dberrors.Corruption, "pageio", "0", "truncated file header")
	}
	if string(buf[0:4]) != string(FileMagic[:]) {
		return nil, dberrors.New(dberrors.Corruption, "pageio", "0", "bad file magic")
	}
	h := &FileHeader{
		FormatVersion:  binary.LittleEndian.Uint32(buf[4:8]),
		PageSize:       binary.LittleEndian.Uint32(buf[8:12]),
		TotalPages:     binary.LittleEndian.Uint64(buf[12:20]),
		CurrentVersion: VersionID(binary.LittleEndian.Uint64(buf[20:28])),
		FirstFreePage:  PageID(binary.LittleEndian.Uint64(buf[28:36])),
	}
	if h.FormatVersion > SupportedFormatVersion {
		return nil, dberrors.New(dberrors.Corruption, "pageio", "0", "unsupported format_version")
	}
	return h, nil
}
