package index

// depth returns the B+-tree's height (root-to-leaf edge count).
func (t *BPlusTree) depth() int {
	d := 0
	n := t.root
	for !n.leaf {
		d++
		n = n.children[0]
	}
	return d
}

func (t *BPlusTree) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{Entries: t.size, Depth: t.depth()}
}

// Verify walks the tree checking key ordering and leaf-chain continuity.
func (t *BPlusTree) Verify() error {
	entries := t.Entries()
	for i := 1; i < len(entries); i++ {
		if string(entries[i-1].Key) >= string(entries[i].Key) {
			return &errVerification{"btree entries out of order"}
		}
	}
	return nil
}

// Compact reclaims leaves left underfull by deletes by reconstructing
// the tree from its current entries at full node occupancy.
func (t *BPlusTree) Compact() error {
	return t.Rebuild()
}

// Rebuild reconstructs the tree from its current entries, normalizing
// node occupancy (useful after many deletes fragment leaves below
// capacity without merging, e.g. following a bulk LoadFromDisk).
func (t *BPlusTree) Rebuild() error {
	entries := t.Entries()
	t.mu.Lock()
	order := t.order
	t.mu.Unlock()
	fresh := NewBPlusTree(order)
	for _, e := range entries {
		if err := fresh.Insert(e.Key, e.Value); err != nil {
			return err
		}
	}
	t.mu.Lock()
	t.root = fresh.root
	t.size = fresh.size
	t.mu.Unlock()
	return nil
}

func (h *HashIndex) Stats() Stats { return h.IndexStats() }

func (h *HashIndex) Verify() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]bool, h.size)
	for _, e := range h.entriesLocked() {
		if seen[string(e.Key)] {
			return &errVerification{"hash index has duplicate key"}
		}
		seen[string(e.Key)] = true
	}
	return nil
}

// Compact reclaims table capacity left oversized by deletes by draining
// and reinserting every entry into a freshly sized table.
func (h *HashIndex) Compact() error {
	return h.Rebuild()
}

// Rebuild drains and reinserts every entry into a table sized for the
// current entry count.
func (h *HashIndex) Rebuild() error {
	entries := h.Entries()
	h.mu.Lock()
	algo := h.algo
	h.mu.Unlock()
	fresh := NewHashIndex(algo, len(entries)*2)
	for _, e := range entries {
		if err := fresh.Insert(e.Key, e.Value); err != nil {
			return err
		}
	}
	h.mu.Lock()
	h.buckets = fresh.buckets
	h.table = fresh.table
	h.table2 = fresh.table2
	h.size = fresh.size
	h.mu.Unlock()
	return nil
}

func (c *CompositeIndex) Stats() Stats   { return c.tree.Stats() }
func (c *CompositeIndex) Verify() error  { return c.tree.Verify() }
func (c *CompositeIndex) Compact() error { return c.tree.Compact() }
func (c *CompositeIndex) Rebuild() error { return c.tree.Rebuild() }

func (c *CompositeIndex) Serialize() ([]byte, error)        { return c.tree.Serialize() }
func (c *CompositeIndex) Deserialize(data []byte) error     { return c.tree.Deserialize(data) }
func (c *CompositeIndex) SaveToDisk(path string) error      { return c.tree.SaveToDisk(path) }
func (c *CompositeIndex) LoadFromDisk(path string) error    { return c.tree.LoadFromDisk(path) }
func (c *CompositeIndex) FormatVersion() uint32             { return c.tree.FormatVersion() }
func (c *CompositeIndex) SupportsIncrementalSave() bool     { return c.tree.SupportsIncrementalSave() }

type errVerification struct{ msg string }

func (e *errVerification) Error() string { return e.msg }
