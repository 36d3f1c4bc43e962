// Package pageio implements the fixed-size paged file format (C1): typed
// pages with CRC32 checksums, a free-list for page reuse, and a version
// field per page. It is the lowest layer the rest of the engine builds on —
// the write-ahead log records page writes against it, MVCC version chains
// hold immutable Page snapshots produced by it, and secondary indexes may
// use it as raw backing storage.
//
// Adapted from the teacher's PageManager (internal/page/page_manager.go):
// same file-backed, LRU-cached, WriteAt/ReadAt-at-a-fixed-offset shape, but
// the page payload is now an opaque typed byte buffer instead of a B+-tree
// node, matching spec.md's {Meta, Node, Data, Free} page-type sum type.
package pageio

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/synerthink/dotdb/internal/dberrors"
)

// PageID identifies a page within the data file. 0 is the file header;
// 1..N are data pages.
type PageID uint64

// VersionID is the storage-engine-level monotonic version counter stamped
// on each page at write time (distinct from MVCC's per-transaction commit
// timestamps, and from the MPT-level StateVersionId in package stateversion).
type VersionID uint64

// PageType enumerates the page payload kinds.
type PageType uint8

const (
	PageTypeMeta PageType = iota
	PageTypeNode
	PageTypeData
	PageTypeFree
)

func (t PageType) String() string {
	switch t {
	case PageTypeMeta:
		return "meta"
	case PageTypeNode:
		return "node"
	case PageTypeData:
		return "data"
	case PageTypeFree:
		return "free"
	default:
		return "unknown"
	}
}

// PageHeaderSize is the bit-exact on-disk header size from spec.md §6.
const PageHeaderSize = 32

// PageHeader is the fixed 32-byte header prefixing every page's body.
//
// Wire layout (little-endian, exactly PageHeaderSize bytes):
//
//	offset 0:  PageType   (1 byte)
//	offset 1:  reserved   (7 bytes, zero) — aligns Version to an 8-byte boundary
//	offset 8:  Version    (8 bytes)
//	offset 16: RefCount   (4 bytes)
//	offset 20: Checksum   (4 bytes)
//	offset 24: DataSize   (2 bytes)
//	offset 26: reserved   (6 bytes, zero)
type PageHeader struct {
	PageType PageType
	Version  VersionID
	RefCount uint32
	Checksum uint32
	DataSize uint16
}

func (h *PageHeader) encode(buf []byte) {
	if len(buf) < PageHeaderSize {
		panic("pageio: header buffer too small")
	}
	for i := range buf[:PageHeaderSize] {
		buf[i] = 0
	}
	buf[0] = byte(h.PageType)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.Version))
	binary.LittleEndian.PutUint32(buf[16:20], h.RefCount)
	binary.LittleEndian.PutUint32(buf[20:24], h.Checksum)
	binary.LittleEndian.PutUint16(buf[24:26], h.DataSize)
}

func decodeHeader(buf []byte) PageHeader {
	return PageHeader{
		PageType: PageType(buf[0]),
		Version:  VersionID(binary.LittleEndian.Uint64(buf[8:16])),
		RefCount: binary.LittleEndian.Uint32(buf[16:20]),
		Checksum: binary.LittleEndian.Uint32(buf[20:24]),
		DataSize: binary.LittleEndian.Uint16(buf[24:26]),
	}
}

// Page is a single in-memory page: a header plus only the semantically
// live portion of the body (body[0:DataSize]). A Page is exclusively owned
// by its caller until Store.WritePage returns (design notes §9); once
// handed to MVCC as a committed version it is treated as immutable.
type Page struct {
	ID     PageID
	Header PageHeader
	Body   []byte // length == Header.DataSize
}

// NewPage builds a page with its checksum already computed over body.
func NewPage(id PageID, pageType PageType, version VersionID, body []byte) *Page {
	p := &Page{
		ID: id,
		Header: PageHeader{
			PageType: pageType,
			Version:  version,
			DataSize: uint16(len(body)),
		},
		Body: body,
	}
	p.UpdateChecksum()
	return p
}

// checksum computes CRC32 (IEEE) over page_type‖version‖ref_count‖data_size‖
// body[0:data_size], per spec.md §3 "Invariants". The checksum field itself
// and the reserved padding are never part of the hashed input.
func checksum(h PageHeader, body []byte) uint32 {
	var prefix [15]byte
	prefix[0] = byte(h.PageType)
	binary.LittleEndian.PutUint64(prefix[1:9], uint64(h.Version))
	binary.LittleEndian.PutUint32(prefix[9:13], h.RefCount)
	binary.LittleEndian.PutUint16(prefix[13:15], h.DataSize)

	crc := crc32.NewIEEE()
	crc.Write(prefix[:])
	n := int(h.DataSize)
	if n > len(body) {
		n = len(body)
	}
	crc.Write(body[:n])
	return crc.Sum32()
}

// UpdateChecksum recomputes and stores Header.Checksum from the current body.
func (p *Page) UpdateChecksum() {
	p.Header.DataSize = uint16(len(p.Body))
	p.Header.Checksum = checksum(p.Header, p.Body)
}

// VerifyChecksum reports whether the page's stored checksum matches its
// current header+body contents.
func (p *Page) VerifyChecksum() bool {
	return p.Header.Checksum == checksum(p.Header, p.Body)
}

// encodeInto serializes header+body into a page-sized buffer, zero-padding
// the remainder, ready to be written at the page's file offset.
func (p *Page) encodeInto(pageSize int) ([]byte, error) {
	if PageHeaderSize+len(p.Body) > pageSize {
		return nil, dberrors.New(dberrors.InvalidOperation, "pageio", idStr(p.ID),
			"serialized page exceeds page size")
	}
	buf := make([]byte, pageSize)
	p.Header.encode(buf[:PageHeaderSize])
	copy(buf[PageHeaderSize:], p.Body)
	return buf, nil
}

// EncodeForWAL serializes header+body without page-size padding, for
// embedding in a WAL Write record (where the WAL, not the page size,
// bounds the record length).
func (p *Page) EncodeForWAL() ([]byte, error) {
	buf := make([]byte, PageHeaderSize+len(p.Body))
	p.Header.encode(buf[:PageHeaderSize])
	copy(buf[PageHeaderSize:], p.Body)
	return buf, nil
}

// DecodeFromWAL reconstructs a page from the bytes EncodeForWAL produced.
func DecodeFromWAL(id PageID, raw []byte) (*Page, error) {
	return decodePage(id, raw)
}

func decodePage(id PageID, raw []byte) (*Page, error) {
	if len(raw) < PageHeaderSize {
		return nil, dberrors.New(dberrors.Corruption, "pageio", idStr(id), "truncated page header")
	}
	hdr := decodeHeader(raw[:PageHeaderSize])
	body := raw[PageHeaderSize:]
	if int(hdr.DataSize) > len(body) {
		return nil, dberrors.New(dberrors.Corruption, "pageio", idStr(id), "data_size exceeds page body")
	}
	page := &Page{ID: id, Header: hdr, Body: bytes.Clone(body[:hdr.DataSize])}
	return page, nil
}
