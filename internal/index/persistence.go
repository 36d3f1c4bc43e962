package index

import (
	"encoding/binary"
	"os"

	"github.com/synerthink/dotdb/internal/dberrors"
)

// FormatVersion is the binary persistence format's version tag, bumped
// whenever the header or entry layout changes incompatibly.
const FormatVersion uint32 = 1

// encodeHeader writes capacity, the number of config fields, the config
// fields, size and entry_count, all as little-endian 8-byte (usize)
// fields.
func encodeHeader(buf []byte, capacity uint64, config []uint64, size uint64, entryCount uint64) []byte {
	var tmp [8]byte
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	putU64(capacity)
	putU64(uint64(len(config)))
	for _, c := range config {
		putU64(c)
	}
	putU64(size)
	putU64(entryCount)
	return buf
}

func encodeEntries(buf []byte, entries []Entry) []byte {
	var tmp [8]byte
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	for _, e := range entries {
		putU64(uint64(len(e.Key)))
		buf = append(buf, e.Key...)
		putU64(uint64(len(e.Value)))
		buf = append(buf, e.Value...)
	}
	return buf
}

// decodedIndex is the parsed form of one serialized index file.
type decodedIndex struct {
	Capacity uint64
	Config   []uint64
	Size     uint64
	Entries  []Entry
}

// decodeIndex parses the header + entries, rejecting any length-field
// inconsistency or premature EOF with a SerializationError, per spec.md
// §4.8.
func decodeIndex(data []byte) (*decodedIndex, error) {
	readU64 := func() (uint64, error) {
		if len(data) < 8 {
			return 0, dberrors.New(dberrors.SerializationError, "index", "", "unexpected EOF reading usize field")
		}
		v := binary.LittleEndian.Uint64(data[:8])
		data = data[8:]
		return v, nil
	}

	capacity, err := readU64()
	if err != nil {
		return nil, err
	}
	numConfig, err := readU64()
	if err != nil {
		return nil, err
	}
	config := make([]uint64, numConfig)
	for i := range config {
		config[i], err = readU64()
		if err != nil {
			return nil, err
		}
	}
	size, err := readU64()
	if err != nil {
		return nil, err
	}
	entryCount, err := readU64()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, entryCount)
	for i := uint64(0); i < entryCount; i++ {
		keyLen, err := readU64()
		if err != nil {
			return nil, err
		}
		if uint64(len(data)) < keyLen {
			return nil, dberrors.New(dberrors.SerializationError, "index", "", "key_len exceeds remaining data")
		}
		key := append([]byte(nil), data[:keyLen]...)
		data = data[keyLen:]

		valLen, err := readU64()
		if err != nil {
			return nil, err
		}
		if uint64(len(data)) < valLen {
			return nil, dberrors.New(dberrors.SerializationError, "index", "", "value_len exceeds remaining data")
		}
		val := append([]byte(nil), data[:valLen]...)
		data = data[valLen:]

		entries = append(entries, Entry{Key: key, Value: val})
	}

	if entryCount != uint64(len(entries)) {
		return nil, dberrors.New(dberrors.SerializationError, "index", "", "entry_count mismatch")
	}

	return &decodedIndex{Capacity: capacity, Config: config, Size: size, Entries: entries}, nil
}

// --- BPlusTree persistence ---

func (t *BPlusTree) Serialize() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := t.Entries()
	buf := encodeHeader(nil, uint64(t.order), []uint64{uint64(t.order)}, uint64(t.size), uint64(len(entries)))
	buf = encodeEntries(buf, entries)
	return buf, nil
}

func (t *BPlusTree) Deserialize(data []byte) error {
	decoded, err := decodeIndex(data)
	if err != nil {
		return err
	}
	order := DefaultOrder
	if len(decoded.Config) > 0 {
		order = int(decoded.Config[0])
	}
	t.mu.Lock()
	t.order = order
	t.root = &bnode{leaf: true}
	t.size = 0
	t.mu.Unlock()
	for _, e := range decoded.Entries {
		if err := t.Insert(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (t *BPlusTree) SaveToDisk(path string) error {
	data, err := t.Serialize()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return dberrors.Wrap(dberrors.IO, "index", "", "save btree to disk", err)
	}
	return nil
}

func (t *BPlusTree) LoadFromDisk(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return dberrors.Wrap(dberrors.IO, "index", "", "load btree from disk", err)
	}
	return t.Deserialize(data)
}

func (t *BPlusTree) FormatVersion() uint32        { return FormatVersion }
func (t *BPlusTree) SupportsIncrementalSave() bool { return false }

// --- HashIndex persistence ---

func algorithmTag(a Algorithm) uint64 {
	switch a {
	case AlgorithmRobinHood:
		return 1
	case AlgorithmCuckoo:
		return 2
	default:
		return 0
	}
}

func algorithmFromTag(tag uint64) Algorithm {
	switch tag {
	case 1:
		return AlgorithmRobinHood
	case 2:
		return AlgorithmCuckoo
	default:
		return AlgorithmChained
	}
}

func (h *HashIndex) Serialize() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entries := h.entriesLocked()
	buf := encodeHeader(nil, uint64(h.capacity()), []uint64{algorithmTag(h.algo)}, uint64(h.size), uint64(len(entries)))
	buf = encodeEntries(buf, entries)
	return buf, nil
}

func (h *HashIndex) Deserialize(data []byte) error {
	decoded, err := decodeIndex(data)
	if err != nil {
		return err
	}
	algo := AlgorithmChained
	if len(decoded.Config) > 0 {
		algo = algorithmFromTag(decoded.Config[0])
	}
	capacity := int(decoded.Capacity)
	if capacity < 8 {
		capacity = 8
	}
	h.mu.Lock()
	h.algo = algo
	h.size = 0
	h.allocate(capacity)
	h.mu.Unlock()
	for _, e := range decoded.Entries {
		if err := h.Insert(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (h *HashIndex) SaveToDisk(path string) error {
	data, err := h.Serialize()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return dberrors.Wrap(dberrors.IO, "index", "", "save hash index to disk", err)
	}
	return nil
}

func (h *HashIndex) LoadFromDisk(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return dberrors.Wrap(dberrors.IO, "index", "", "load hash index from disk", err)
	}
	return h.Deserialize(data)
}

func (h *HashIndex) FormatVersion() uint32        { return FormatVersion }
func (h *HashIndex) SupportsIncrementalSave() bool { return false }
