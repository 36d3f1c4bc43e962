// Package index implements C8's pluggable secondary indexes: an ordered
// B+-tree, a hash index with swappable collision-handling algorithms, and
// a composite index over ordered byte-string keys, all sharing a common
// Index/IndexMaintenance/IndexPersistence contract and binary persistence
// format.
//
// The B+-tree's split/merge/redistribute/leaf-linkage shape is grounded on
// the teacher's internal/btree (index_src_ref/tree.go): same algorithmic
// structure (ORDER-based node capacity, upward split propagation, leaf
// next-pointers for range scans), generalized from the teacher's
// page-manager-backed, single-tree-per-file design to a plain in-memory
// node tree, since here the B+-tree is one of several pluggable secondary
// indexes rather than the engine's sole on-disk structure (C1/pageio
// already owns on-disk page layout).
package index

import "fmt"

// Entry is one key/value pair as returned by Keys/Values/Entries.
type Entry struct {
	Key   []byte
	Value []byte
}

// Index is the shared contract every index shape implements.
type Index interface {
	Insert(key, value []byte) error
	Get(key []byte) ([]byte, bool, error)
	Update(key, value []byte) error
	Delete(key []byte) error
	Contains(key []byte) (bool, error)
	Len() int
	Clear()
	IndexType() string
	Keys() [][]byte
	Values() [][]byte
	Entries() []Entry
}

// IndexMaintenance is the shared maintenance contract.
type IndexMaintenance interface {
	Compact() error
	Verify() error
	Stats() Stats
	Rebuild() error
}

// IndexPersistence is the shared binary-persistence contract, per
// spec.md §4.8's format: header (capacity, config fields, size,
// entry_count) followed by length-prefixed key/value pairs.
type IndexPersistence interface {
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
	SaveToDisk(path string) error
	LoadFromDisk(path string) error
	FormatVersion() uint32
	SupportsIncrementalSave() bool
}

// Stats mirrors the reference's AdvancedHashStats / B-tree stats.
type Stats struct {
	Entries        int
	Depth          int
	LoadFactor     float64
	CollisionCount int
	MaxChainLength int
}

// ErrDuplicateKey is returned by Insert when key already exists.
type ErrDuplicateKey struct{ Key []byte }

func (e *ErrDuplicateKey) Error() string { return fmt.Sprintf("index: duplicate key %x", e.Key) }

// ErrKeyNotFound is returned by Update/Delete when key is absent.
type ErrKeyNotFound struct{ Key []byte }

func (e *ErrKeyNotFound) Error() string { return fmt.Sprintf("index: key not found %x", e.Key) }
