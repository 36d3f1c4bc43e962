package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/synerthink/dotdb/internal/index"
)

type indexGroup string

const (
	groupBTree     indexGroup = "1_btree"
	groupHash      indexGroup = "2_hash"
	groupComposite indexGroup = "3_composite"
)

type namedIndex struct {
	name  string
	group indexGroup
	idx   index.Index
}

// IndexManager owns a named set of B+-tree, hash, and composite indexes
// and fans batch operations out to all of them.
type IndexManager struct {
	mu sync.RWMutex

	entries map[string]*namedIndex

	persistDir string
	autoSave   bool
}

// NewIndexManager creates an empty manager.
func NewIndexManager() *IndexManager {
	return &IndexManager{entries: make(map[string]*namedIndex)}
}

func (m *IndexManager) addIndex(name string, group indexGroup, idx index.Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[name]; exists {
		return fmt.Errorf("index manager: index %q already registered", name)
	}
	m.entries[name] = &namedIndex{name: name, group: group, idx: idx}
	return nil
}

// AddBTreeIndex registers a B+-tree index under name.
func (m *IndexManager) AddBTreeIndex(name string, tree *index.BPlusTree) error {
	return m.addIndex(name, groupBTree, tree)
}

// AddHashIndex registers a hash index under name.
func (m *IndexManager) AddHashIndex(name string, h *index.HashIndex) error {
	return m.addIndex(name, groupHash, h)
}

// AddCompositeIndex registers a composite index under name.
func (m *IndexManager) AddCompositeIndex(name string, c *index.CompositeIndex) error {
	return m.addIndex(name, groupComposite, c)
}

// RemoveIndex unregisters name.
func (m *IndexManager) RemoveIndex(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[name]; !ok {
		return fmt.Errorf("index manager: no such index %q", name)
	}
	delete(m.entries, name)
	return nil
}

// IndexNames returns every registered index name.
func (m *IndexManager) IndexNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IndexType reports name's index kind ("bplustree", "hash:<algo>",
// "composite"), per index.Index.IndexType.
func (m *IndexManager) IndexType(name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return "", fmt.Errorf("index manager: no such index %q", name)
	}
	return e.idx.IndexType(), nil
}

// orderedEntries returns every registered index sorted by (group, name) —
// B+-tree group, then hash group, then composite group, alphabetically by
// name within each — the fixed lock-acquisition order for cross-index
// batch operations.
func (m *IndexManager) orderedEntries() []*namedIndex {
	out := make([]*namedIndex, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].group != out[j].group {
			return out[i].group < out[j].group
		}
		return out[i].name < out[j].name
	})
	return out
}

// InsertToAll inserts key/value into every registered index, in the fixed
// group order, stopping at the first error.
func (m *IndexManager) InsertToAll(key, value []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.orderedEntries() {
		if err := e.idx.Insert(key, value); err != nil {
			return fmt.Errorf("index manager: insert into %q: %w", e.name, err)
		}
	}
	return nil
}

// UpdateInAll updates key to value in every registered index.
func (m *IndexManager) UpdateInAll(key, value []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.orderedEntries() {
		if err := e.idx.Update(key, value); err != nil {
			return fmt.Errorf("index manager: update in %q: %w", e.name, err)
		}
	}
	return nil
}

// DeleteFromAll removes key from every registered index.
func (m *IndexManager) DeleteFromAll(key []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.orderedEntries() {
		if err := e.idx.Delete(key); err != nil {
			return fmt.Errorf("index manager: delete from %q: %w", e.name, err)
		}
	}
	return nil
}

// GetFromIndex reads key from the single named index.
func (m *IndexManager) GetFromIndex(name string, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, false, fmt.Errorf("index manager: no such index %q", name)
	}
	return e.idx.Get(key)
}

// GetFromCompositeIndex reads a structured CompositeKey from the named
// composite index.
func (m *IndexManager) GetFromCompositeIndex(name string, key index.CompositeKey) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, false, fmt.Errorf("index manager: no such index %q", name)
	}
	c, ok := e.idx.(*index.CompositeIndex)
	if !ok {
		return nil, false, fmt.Errorf("index manager: %q is not a composite index", name)
	}
	return c.GetComposite(key)
}

// ClearAll empties every registered index.
func (m *IndexManager) ClearAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.orderedEntries() {
		e.idx.Clear()
	}
}

// TotalEntries sums Len() across every registered index.
func (m *IndexManager) TotalEntries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, e := range m.entries {
		total += e.idx.Len()
	}
	return total
}

// AllStats reports index.Stats per registered index name.
func (m *IndexManager) AllStats() map[string]index.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]index.Stats, len(m.entries))
	for name, e := range m.entries {
		if maint, ok := e.idx.(index.IndexMaintenance); ok {
			out[name] = maint.Stats()
		}
	}
	return out
}

// SetPersistence configures the directory AutoSave/LoadIndices persist
// each named index's file under, as "<dir>/<name>.idx".
func (m *IndexManager) SetPersistence(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistDir = dir
}

// AutoSave enables or disables saving every index to its persistence file
// after each successful batch apply.
func (m *IndexManager) AutoSave(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoSave = enabled
}

func (m *IndexManager) pathFor(name string) string {
	return filepath.Join(m.persistDir, name+".idx")
}

// SaveAll persists every registered index to its configured file.
func (m *IndexManager) SaveAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.persistDir == "" {
		return fmt.Errorf("index manager: no persistence directory configured")
	}
	for _, e := range m.orderedEntries() {
		p, ok := e.idx.(index.IndexPersistence)
		if !ok {
			continue
		}
		if err := p.SaveToDisk(m.pathFor(e.name)); err != nil {
			return fmt.Errorf("index manager: save %q: %w", e.name, err)
		}
	}
	return nil
}

// LoadIndices loads every registered index from its configured file,
// skipping indexes with no file present yet.
func (m *IndexManager) LoadIndices() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.persistDir == "" {
		return fmt.Errorf("index manager: no persistence directory configured")
	}
	for _, e := range m.orderedEntries() {
		p, ok := e.idx.(index.IndexPersistence)
		if !ok {
			continue
		}
		if _, statErr := os.Stat(m.pathFor(e.name)); os.IsNotExist(statErr) {
			continue
		}
		if err := p.LoadFromDisk(m.pathFor(e.name)); err != nil {
			return fmt.Errorf("index manager: load %q: %w", e.name, err)
		}
	}
	return nil
}

// maybeAutoSave saves every index if AutoSave is enabled; called by
// ApplyToIndices once a batch completes.
func (m *IndexManager) maybeAutoSave() {
	m.mu.RLock()
	enabled := m.autoSave
	m.mu.RUnlock()
	if enabled {
		_ = m.SaveAll()
	}
}
