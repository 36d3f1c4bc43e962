package index

import (
	"bytes"
	"hash/fnv"
	"sync"
)

// Algorithm selects the hash index's collision-handling strategy.
type Algorithm string

const (
	// AlgorithmChained is separate chaining (the default).
	AlgorithmChained Algorithm = "chained"
	// AlgorithmRobinHood is linear-probing with Robin Hood displacement.
	AlgorithmRobinHood Algorithm = "robin_hood"
	// AlgorithmCuckoo is two-table cuckoo hashing.
	AlgorithmCuckoo Algorithm = "cuckoo"
)

func loadFactorThreshold(a Algorithm) float64 {
	switch a {
	case AlgorithmRobinHood:
		return 0.9
	case AlgorithmCuckoo:
		return 0.5
	default:
		return 0.75
	}
}

type hashEntry struct {
	key   []byte
	value []byte
	// probeDistance and occupied are only meaningful for RobinHood.
	probeDistance int
	occupied      bool
}

// HashIndex is an open-hashing secondary index over []byte keys with a
// swappable collision-resolution Algorithm. Switching algorithms
// (SetAlgorithm) drains the current table and reinserts every entry under
// the new scheme.
type HashIndex struct {
	mu sync.RWMutex

	algo Algorithm

	// chained representation
	buckets [][]hashEntry

	// robin hood / cuckoo representation (single flat table, or two
	// tables for cuckoo)
	table  []hashEntry
	table2 []hashEntry

	size int
}

// NewHashIndex creates an empty hash index with the given algorithm and
// initial capacity (rounded up to a power of two, minimum 8).
func NewHashIndex(algo Algorithm, initialCapacity int) *HashIndex {
	capacity := 8
	for capacity < initialCapacity {
		capacity <<= 1
	}
	h := &HashIndex{algo: algo}
	h.allocate(capacity)
	return h
}

func (h *HashIndex) IndexType() string { return "hash:" + string(h.algo) }

func hashKey(key []byte) uint64 {
	f := fnv.New64a()
	f.Write(key)
	return f.Sum64()
}

func (h *HashIndex) allocate(capacity int) {
	switch h.algo {
	case AlgorithmChained:
		h.buckets = make([][]hashEntry, capacity)
	case AlgorithmCuckoo:
		h.table = make([]hashEntry, capacity)
		h.table2 = make([]hashEntry, capacity)
	default: // RobinHood
		h.table = make([]hashEntry, capacity)
	}
}

func (h *HashIndex) capacity() int {
	switch h.algo {
	case AlgorithmChained:
		return len(h.buckets)
	default:
		return len(h.table)
	}
}

func (h *HashIndex) loadFactor() float64 {
	if h.capacity() == 0 {
		return 1
	}
	return float64(h.size) / float64(h.capacity())
}

// SetAlgorithm switches collision-handling strategy, draining and
// reinserting every entry under the new scheme.
func (h *HashIndex) SetAlgorithm(algo Algorithm) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if algo == h.algo {
		return
	}
	entries := h.entriesLocked()
	h.algo = algo
	h.size = 0
	h.allocate(8)
	for _, e := range entries {
		h.insertLocked(e.Key, e.Value, true)
	}
}

func (h *HashIndex) maybeResizeLocked() {
	if h.loadFactor() < loadFactorThreshold(h.algo) {
		return
	}
	entries := h.entriesLocked()
	h.allocate(h.capacity() * 2)
	h.size = 0
	for _, e := range entries {
		h.insertLocked(e.Key, e.Value, true)
	}
}

func (h *HashIndex) Insert(key, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.containsLocked(key) {
		return &ErrDuplicateKey{Key: key}
	}
	h.insertLocked(key, value, false)
	h.maybeResizeLocked()
	return nil
}

// insertLocked inserts a single new entry, incrementing size exactly
// once; overwrite indicates a rehash/algorithm-switch reinsertion where
// keys are known-unique.
func (h *HashIndex) insertLocked(key, value []byte, _ bool) {
	switch h.algo {
	case AlgorithmChained:
		idx := int(hashKey(key) % uint64(len(h.buckets)))
		h.buckets[idx] = append(h.buckets[idx], hashEntry{key: key, value: value, occupied: true})
	case AlgorithmCuckoo:
		h.cuckooPlace(key, value)
	default:
		h.robinHoodInsert(key, value)
	}
	h.size++
}

// cuckooPlace settles key/value into one of the two tables, displacing
// and relocating existing occupants as needed. Displacement never
// changes h.size — it only ever moves already-counted entries around.
// If displacement chains exceed the retry budget, the table is grown
// (without touching h.size, since nothing new is being added) and
// placement is retried.
func (h *HashIndex) cuckooPlace(key, value []byte) {
	cur := hashEntry{key: key, value: value, occupied: true}
	for {
		n := len(h.table)
		for attempt := 0; attempt < n+n; attempt++ {
			i1 := int(hashKey(cur.key) % uint64(n))
			if !h.table[i1].occupied {
				h.table[i1] = cur
				return
			}
			i2 := int(hashKey(append(append([]byte(nil), cur.key...), 0xFF)) % uint64(n))
			if !h.table2[i2].occupied {
				h.table2[i2] = cur
				return
			}
			evicted := h.table[i1]
			h.table[i1] = cur
			cur = evicted
		}
		// Displacement failed to settle: grow and retry placing cur.
		entries := h.entriesLocked()
		h.allocate(n * 2)
		for _, e := range entries {
			h.cuckooPlace(e.Key, e.Value)
		}
	}
}

func (h *HashIndex) robinHoodInsert(key, value []byte) {
	n := len(h.table)
	idx := int(hashKey(key) % uint64(n))
	entry := hashEntry{key: key, value: value, probeDistance: 0, occupied: true}
	for i := 0; i < n; i++ {
		pos := (idx + i) % n
		cur := h.table[pos]
		if !cur.occupied {
			h.table[pos] = entry
			return
		}
		if cur.probeDistance < entry.probeDistance {
			h.table[pos] = entry
			entry = cur
		}
		entry.probeDistance++
	}
}

func (h *HashIndex) findChained(key []byte) (int, int, bool) {
	idx := int(hashKey(key) % uint64(len(h.buckets)))
	for j, e := range h.buckets[idx] {
		if e.occupied && bytes.Equal(e.key, key) {
			return idx, j, true
		}
	}
	return idx, -1, false
}

func (h *HashIndex) findFlat(key []byte) (table []hashEntry, pos int, ok bool) {
	switch h.algo {
	case AlgorithmCuckoo:
		n := len(h.table)
		i1 := int(hashKey(key) % uint64(n))
		if h.table[i1].occupied && bytes.Equal(h.table[i1].key, key) {
			return h.table, i1, true
		}
		i2 := int(hashKey(append(append([]byte(nil), key...), 0xFF)) % uint64(n))
		if h.table2[i2].occupied && bytes.Equal(h.table2[i2].key, key) {
			return h.table2, i2, true
		}
		return nil, -1, false
	default: // RobinHood
		n := len(h.table)
		idx := int(hashKey(key) % uint64(n))
		for i := 0; i < n; i++ {
			pos := (idx + i) % n
			cur := h.table[pos]
			if !cur.occupied {
				return nil, -1, false
			}
			if bytes.Equal(cur.key, key) {
				return h.table, pos, true
			}
		}
		return nil, -1, false
	}
}

func (h *HashIndex) containsLocked(key []byte) bool {
	if h.algo == AlgorithmChained {
		_, _, ok := h.findChained(key)
		return ok
	}
	_, _, ok := h.findFlat(key)
	return ok
}

func (h *HashIndex) Get(key []byte) ([]byte, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.algo == AlgorithmChained {
		idx, j, ok := h.findChained(key)
		if !ok {
			return nil, false, nil
		}
		return h.buckets[idx][j].value, true, nil
	}
	table, pos, ok := h.findFlat(key)
	if !ok {
		return nil, false, nil
	}
	return table[pos].value, true, nil
}

func (h *HashIndex) Contains(key []byte) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.containsLocked(key), nil
}

func (h *HashIndex) Update(key, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.algo == AlgorithmChained {
		idx, j, ok := h.findChained(key)
		if !ok {
			return &ErrKeyNotFound{Key: key}
		}
		h.buckets[idx][j].value = value
		return nil
	}
	table, pos, ok := h.findFlat(key)
	if !ok {
		return &ErrKeyNotFound{Key: key}
	}
	table[pos].value = value
	return nil
}

func (h *HashIndex) Delete(key []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.algo {
	case AlgorithmChained:
		idx, j, ok := h.findChained(key)
		if !ok {
			return &ErrKeyNotFound{Key: key}
		}
		bucket := h.buckets[idx]
		h.buckets[idx] = append(bucket[:j], bucket[j+1:]...)
		h.size--
		return nil
	case AlgorithmCuckoo:
		table, pos, ok := h.findFlat(key)
		if !ok {
			return &ErrKeyNotFound{Key: key}
		}
		table[pos] = hashEntry{}
		h.size--
		return nil
	default: // RobinHood: backward-shift deletion
		n := len(h.table)
		_, pos, ok := h.findFlat(key)
		if !ok {
			return &ErrKeyNotFound{Key: key}
		}
		for {
			next := (pos + 1) % n
			if !h.table[next].occupied || h.table[next].probeDistance == 0 {
				h.table[pos] = hashEntry{}
				break
			}
			h.table[pos] = h.table[next]
			h.table[pos].probeDistance--
			pos = next
		}
		h.size--
		return nil
	}
}

func (h *HashIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

func (h *HashIndex) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.size = 0
	h.allocate(8)
}

func (h *HashIndex) entriesLocked() []Entry {
	var out []Entry
	switch h.algo {
	case AlgorithmChained:
		for _, bucket := range h.buckets {
			for _, e := range bucket {
				if e.occupied {
					out = append(out, Entry{Key: e.key, Value: e.value})
				}
			}
		}
	case AlgorithmCuckoo:
		for _, e := range h.table {
			if e.occupied {
				out = append(out, Entry{Key: e.key, Value: e.value})
			}
		}
		for _, e := range h.table2 {
			if e.occupied {
				out = append(out, Entry{Key: e.key, Value: e.value})
			}
		}
	default:
		for _, e := range h.table {
			if e.occupied {
				out = append(out, Entry{Key: e.key, Value: e.value})
			}
		}
	}
	return out
}

func (h *HashIndex) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entriesLocked()
}

func (h *HashIndex) Keys() [][]byte {
	entries := h.Entries()
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

func (h *HashIndex) Values() [][]byte {
	entries := h.Entries()
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// Stats reports the index's current load factor and, for chained hashing,
// collision/chain-length diagnostics.
func (h *HashIndex) IndexStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := Stats{Entries: h.size, LoadFactor: h.loadFactor()}
	if h.algo == AlgorithmChained {
		maxChain := 0
		collisions := 0
		for _, bucket := range h.buckets {
			if len(bucket) > 1 {
				collisions += len(bucket) - 1
			}
			if len(bucket) > maxChain {
				maxChain = len(bucket)
			}
		}
		s.CollisionCount = collisions
		s.MaxChainLength = maxChain
	}
	return s
}
