package index

import (
	"bytes"
	"encoding/binary"
)

// CompositeKey is an ordered sequence of byte-string components, compared
// lexicographically component-by-component (not as a flat concatenation,
// so components of differing length still sort correctly).
type CompositeKey [][]byte

// Compare returns -1, 0, or 1 comparing a to b component-by-component; a
// key that is a strict prefix of the other sorts first.
func (a CompositeKey) Compare(b CompositeKey) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := bytes.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// encode produces a sortable flat byte-string for CompositeKey, so a
// plain BPlusTree can order entries the same way Compare does: each
// component is length-prefixed (big-endian uint32) so no component's
// content can bleed into its neighbor's comparison.
func (a CompositeKey) encode() []byte {
	var buf bytes.Buffer
	for _, part := range a {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(part)))
		buf.Write(lenBuf[:])
		buf.Write(part)
	}
	return buf.Bytes()
}

// CompositeIndex is a secondary index over CompositeKey, backed by a
// BPlusTree keyed on the composite's sortable encoding so range scans
// still iterate in component order.
type CompositeIndex struct {
	tree *BPlusTree
}

// NewCompositeIndex creates an empty composite index with the given
// B+-tree node order.
func NewCompositeIndex(order int) *CompositeIndex {
	return &CompositeIndex{tree: NewBPlusTree(order)}
}

func (c *CompositeIndex) IndexType() string { return "composite" }

func (c *CompositeIndex) InsertComposite(key CompositeKey, value []byte) error {
	return c.tree.Insert(key.encode(), value)
}

func (c *CompositeIndex) GetComposite(key CompositeKey) ([]byte, bool, error) {
	return c.tree.Get(key.encode())
}

func (c *CompositeIndex) UpdateComposite(key CompositeKey, value []byte) error {
	return c.tree.Update(key.encode(), value)
}

func (c *CompositeIndex) DeleteComposite(key CompositeKey) error {
	return c.tree.Delete(key.encode())
}

// Insert/Get/Update/Delete/Contains satisfy Index using the raw encoded
// key, for callers that already hold the flat encoding.
func (c *CompositeIndex) Insert(key, value []byte) error        { return c.tree.Insert(key, value) }
func (c *CompositeIndex) Get(key []byte) ([]byte, bool, error)   { return c.tree.Get(key) }
func (c *CompositeIndex) Update(key, value []byte) error         { return c.tree.Update(key, value) }
func (c *CompositeIndex) Delete(key []byte) error                { return c.tree.Delete(key) }
func (c *CompositeIndex) Contains(key []byte) (bool, error)      { return c.tree.Contains(key) }
func (c *CompositeIndex) Len() int                                { return c.tree.Len() }
func (c *CompositeIndex) Clear()                                  { c.tree.Clear() }
func (c *CompositeIndex) Keys() [][]byte                          { return c.tree.Keys() }
func (c *CompositeIndex) Values() [][]byte                        { return c.tree.Values() }
func (c *CompositeIndex) Entries() []Entry                        { return c.tree.Entries() }
