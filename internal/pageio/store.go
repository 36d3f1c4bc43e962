package pageio

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/synerthink/dotdb/internal/dberrors"
	"github.com/synerthink/dotdb/internal/dotlog"
)

var log = dotlog.For("pageio")

// Config configures a Store's creation or opening.
type Config struct {
	Path      string
	PageSize  int // only honored on creation; ignored when opening an existing file
	CacheSize int
}

// Store is a file-backed page allocator with an LRU decode cache. The
// underlying *os.File is single-threaded (design notes §9): every method
// that mutates file-level structure (growth, free-list head, page writes)
// holds mu for its duration. Higher-level concurrency (concurrent readers
// across many logical pages) is expected to be provided by a buffer
// manager external collaborator (§6) layered on top.
type Store struct {
	mu       sync.Mutex
	file     *os.File
	cache    *lruCache
	pageSize int
	header   FileHeader
}

// Init opens or creates the data file described by cfg. On creation it
// writes a fresh file header with total_pages=1 (page 0 itself is not a
// data page, but total_pages accounts for the header occupying slot 0's
// accounting window) and first_free_page=0. On open it verifies the magic
// and rejects an unsupported format_version.
func Init(cfg Config) (*Store, error) {
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.IO, "pageio", cfg.Path, "open data file", err)
	}

	s := &Store{
		file:     f,
		cache:    newLRUCache(cfg.CacheSize),
		pageSize: pageSize,
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberrors.Wrap(dberrors.IO, "pageio", cfg.Path, "stat data file", err)
	}

	if fi.Size() == 0 {
		s.header = FileHeader{
			FormatVersion:  SupportedFormatVersion,
			PageSize:       uint32(pageSize),
			TotalPages:     1,
			CurrentVersion: 0,
			FirstFreePage:  0,
		}
		if err := s.flushHeaderLocked(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		raw := make([]byte, HeaderSize)
		if _, err := f.ReadAt(raw, 0); err != nil && err != io.EOF {
			f.Close()
			return nil, dberrors.Wrap(dberrors.IO, "pageio", cfg.Path, "read file header", err)
		}
		hdr, err := decodeFileHeader(raw)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.header = *hdr
		s.pageSize = int(hdr.PageSize)
	}

	log.Debug().Str("path", cfg.Path).Uint64("total_pages", s.header.TotalPages).Msg("page store opened")
	return s, nil
}

func (s *Store) offsetOf(id PageID) int64 {
	if id == 0 {
		return 0
	}
	return int64(HeaderSize) + int64(id-1)*int64(s.pageSize)
}

func (s *Store) flushHeaderLocked() error {
	buf := s.header.encode()
	if _, err := s.file.WriteAt(buf, 0); err != nil {
		return dberrors.Wrap(dberrors.IO, "pageio", "0", "write file header", err)
	}
	if err := s.file.Sync(); err != nil {
		return dberrors.Wrap(dberrors.IO, "pageio", "0", "sync file header", err)
	}
	return nil
}

// CurrentVersion returns the file header's current_version field.
func (s *Store) CurrentVersion() VersionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header.CurrentVersion
}

// SetCurrentVersion advances the header's current_version and flushes it.
func (s *Store) SetCurrentVersion(v VersionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header.CurrentVersion = v
	return s.flushHeaderLocked()
}

// TotalPages returns the number of page slots currently allocated in the file.
func (s *Store) TotalPages() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header.TotalPages
}

// ReadPage reads, verifies and returns the page at id. Checksum mismatches
// are reported as Corruption, per spec.md §4.1 failure semantics.
func (s *Store) ReadPage(id PageID) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readPageLocked(id, true)
}

func (s *Store) readPageLocked(id PageID, verify bool) (*Page, error) {
	if id != 0 && uint64(id) >= s.header.TotalPages {
		return nil, dberrors.New(dberrors.NotFound, "pageio", idStr(id), "page id out of range")
	}
	if cached := s.cache.get(id); cached != nil && verify {
		return cached, nil
	}

	raw := make([]byte, s.pageSize)
	if _, err := s.file.ReadAt(raw, s.offsetOf(id)); err != nil && err != io.EOF {
		return nil, dberrors.Wrap(dberrors.IO, "pageio", idStr(id), "read page", err)
	}
	p, err := decodePage(id, raw)
	if err != nil {
		return nil, err
	}
	if verify && !p.VerifyChecksum() {
		return nil, dberrors.New(dberrors.Corruption, "pageio", idStr(id), "checksum mismatch")
	}
	s.cache.put(id, p)
	return p, nil
}

// WritePage serializes and writes page at its own offset, flushing the
// write before returning. If page.ID grows the file, the header's
// total_pages is extended and flushed BEFORE the page body is written —
// violating this order risks an orphan page after a crash (spec.md §4.1).
func (s *Store) WritePage(page *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writePageLocked(page)
}

func (s *Store) writePageLocked(page *Page) error {
	if uint64(page.ID) >= s.header.TotalPages {
		s.header.TotalPages = uint64(page.ID) + 1
		if err := s.flushHeaderLocked(); err != nil {
			return err
		}
	}

	buf, err := page.encodeInto(s.pageSize)
	if err != nil {
		return err
	}
	if _, err := s.file.WriteAt(buf, s.offsetOf(page.ID)); err != nil {
		return dberrors.Wrap(dberrors.IO, "pageio", idStr(page.ID), "write page", err)
	}
	if err := s.file.Sync(); err != nil {
		return dberrors.Wrap(dberrors.IO, "pageio", idStr(page.ID), "sync page", err)
	}
	s.cache.put(page.ID, page)
	return nil
}

// AllocatePage returns a fully-initialized page of the given type and
// version, reusing the free-list head if one exists, or appending a new
// page at the end of the file otherwise.
func (s *Store) AllocatePage(pageType PageType, version VersionID) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.header.FirstFreePage != 0 {
		return s.reuseFreePageLocked(pageType, version)
	}

	id := PageID(s.header.TotalPages)
	p := NewPage(id, pageType, version, nil)
	if err := s.writePageLocked(p); err != nil {
		return nil, err
	}
	return p, nil
}

// reuseFreePageLocked detaches the free-list head. Per spec.md §4.1, a
// checksum mismatch while reading a free-list page during reuse triggers a
// best-effort recovery read (skip verification, the page is about to be
// rewritten anyway) rather than surfacing Corruption.
func (s *Store) reuseFreePageLocked(pageType PageType, version VersionID) (*Page, error) {
	id := s.header.FirstFreePage
	free, err := s.readPageLocked(id, false)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.Corruption, "pageio", idStr(id), "free-list page unreadable during reuse", err)
	}
	if len(free.Body) < 8 {
		return nil, dberrors.New(dberrors.Corruption, "pageio", idStr(id), "free-list page missing next pointer")
	}
	next := PageID(binary.LittleEndian.Uint64(free.Body[:8]))

	p := NewPage(id, pageType, version, nil)
	if err := s.writePageLocked(p); err != nil {
		return nil, err
	}

	s.header.FirstFreePage = next
	if err := s.flushHeaderLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// FreePage releases id back to the free list. The new free page (storing
// the current list head as its next pointer) is written before the header
// is updated to point at id, so a crash mid-operation leaves the old head
// intact rather than dangling (spec.md §4.1 ordering requirement).
func (s *Store) FreePage(id PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := make([]byte, 8)
	binary.LittleEndian.PutUint64(body, uint64(s.header.FirstFreePage))
	free := NewPage(id, PageTypeFree, s.header.CurrentVersion, body)
	if err := s.writePageLocked(free); err != nil {
		return err
	}

	s.header.FirstFreePage = id
	return s.flushHeaderLocked()
}

// Stats returns the page decode cache's hit/miss/size counters.
func (s *Store) Stats() CacheStats {
	return s.cache.stats()
}

// Close flushes the header and closes the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushHeaderLocked(); err != nil {
		return err
	}
	return s.file.Close()
}
