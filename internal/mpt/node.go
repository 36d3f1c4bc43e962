// Package mpt implements the Merkle Patricia Trie (C5): a content-addressed,
// immutable node store with a {Empty, Leaf, Extension, Branch} sum type,
// deterministic canonical serialization, and Merkle proof generation and
// verification.
//
// Grounded structurally on the teacher's internal/btree (an ordered,
// disk-backed tree with split/merge rebuild on mutation), but the node
// shape, hashing, and content-addressing are new — the teacher's B+-tree
// has no notion of a cryptographic root hash. The hash function choice
// (Keccak256 via golang.org/x/crypto/sha3) follows the Ethereum-style
// tries referenced elsewhere in the retrieval pack.
package mpt

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/synerthink/dotdb/internal/dberrors"
)

// NodeId is the content hash of a node's canonical serialization.
type NodeId [32]byte

// EmptyNodeID is the sentinel identifying the Empty node; it is never
// looked up in storage.
var EmptyNodeID = NodeId{}

func (id NodeId) IsEmpty() bool { return id == EmptyNodeID }

// Nibbles is a sequence of 4-bit values (0-15), one per byte.
type Nibbles []byte

// BytesToNibbles expands a byte key into its nibble sequence, high nibble first.
func BytesToNibbles(key []byte) Nibbles {
	n := make(Nibbles, len(key)*2)
	for i, b := range key {
		n[2*i] = b >> 4
		n[2*i+1] = b & 0x0F
	}
	return n
}

// NibblesToBytes collapses an even-length nibble sequence back to bytes.
// Only used by callers that know the nibble count is even (full byte keys).
func NibblesToBytes(n Nibbles) []byte {
	out := make([]byte, len(n)/2)
	for i := range out {
		out[i] = n[2*i]<<4 | n[2*i+1]
	}
	return out
}

func commonPrefixLen(a, b Nibbles) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// NodeKind tags the sum type's active case.
type NodeKind uint8

const (
	KindEmpty NodeKind = iota
	KindLeaf
	KindExtension
	KindBranch
)

func (k NodeKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindLeaf:
		return "leaf"
	case KindExtension:
		return "extension"
	case KindBranch:
		return "branch"
	default:
		return "unknown"
	}
}

// Node is the MPT node sum type. Only the fields relevant to Kind are
// meaningful; nodes are immutable once stored.
type Node struct {
	Kind NodeKind

	// Leaf, Extension
	Path Nibbles

	// Leaf value, or Branch's stored value when HasValue
	Value    []byte
	HasValue bool

	// Extension
	Child NodeId

	// Branch
	Children [16]NodeId
	HasChild [16]bool
}

// canonicalEncode serializes node deterministically: a one-byte tag
// followed by a fixed field layout per kind. Branch children are always
// emitted in slot order 0..15 so that identical logical content always
// produces identical bytes regardless of insertion history.
func canonicalEncode(n *Node) []byte {
	switch n.Kind {
	case KindEmpty:
		return []byte{byte(KindEmpty)}
	case KindLeaf:
		buf := make([]byte, 0, 1+4+len(n.Path)+4+len(n.Value))
		buf = append(buf, byte(KindLeaf))
		buf = appendLenPrefixed(buf, n.Path)
		buf = appendLenPrefixed(buf, n.Value)
		return buf
	case KindExtension:
		buf := make([]byte, 0, 1+4+len(n.Path)+32)
		buf = append(buf, byte(KindExtension))
		buf = appendLenPrefixed(buf, n.Path)
		buf = append(buf, n.Child[:]...)
		return buf
	case KindBranch:
		var presence uint16
		for i := 0; i < 16; i++ {
			if n.HasChild[i] {
				presence |= 1 << uint(i)
			}
		}
		buf := make([]byte, 0, 1+2+32*16+1+4+len(n.Value))
		buf = append(buf, byte(KindBranch))
		var pbuf [2]byte
		binary.LittleEndian.PutUint16(pbuf[:], presence)
		buf = append(buf, pbuf[:]...)
		for i := 0; i < 16; i++ {
			if n.HasChild[i] {
				buf = append(buf, n.Children[i][:]...)
			}
		}
		if n.HasValue {
			buf = append(buf, 1)
			buf = appendLenPrefixed(buf, n.Value)
		} else {
			buf = append(buf, 0)
		}
		return buf
	default:
		panic("mpt: unknown node kind")
	}
}

func appendLenPrefixed(buf []byte, data []byte) []byte {
	var lbuf [4]byte
	binary.LittleEndian.PutUint32(lbuf[:], uint32(len(data)))
	buf = append(buf, lbuf[:]...)
	return append(buf, data...)
}

// EncodedSize returns the byte size of n's canonical serialization, used
// by the pruner to account bytes reclaimed on delete.
func EncodedSize(n *Node) int {
	return len(canonicalEncode(n))
}

// HashNode computes node's content-addressed NodeId.
func HashNode(n *Node) NodeId {
	if n.Kind == KindEmpty {
		return EmptyNodeID
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(canonicalEncode(n))
	var id NodeId
	copy(id[:], h.Sum(nil))
	return id
}

func decodeNode(raw []byte) (*Node, error) {
	if len(raw) == 0 {
		return nil, dberrors.New(dberrors.Corruption, "mpt", "", "empty node encoding")
	}
	kind := NodeKind(raw[0])
	rest := raw[1:]
	switch kind {
	case KindEmpty:
		return &Node{Kind: KindEmpty}, nil
	case KindLeaf:
		path, rest, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		value, _, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindLeaf, Path: Nibbles(path), Value: value}, nil
	case KindExtension:
		path, rest, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		if len(rest) < 32 {
			return nil, dberrors.New(dberrors.Corruption, "mpt", "", "truncated extension child")
		}
		var child NodeId
		copy(child[:], rest[:32])
		return &Node{Kind: KindExtension, Path: Nibbles(path), Child: child}, nil
	case KindBranch:
		if len(rest) < 2 {
			return nil, dberrors.New(dberrors.Corruption, "mpt", "", "truncated branch presence mask")
		}
		presence := binary.LittleEndian.Uint16(rest[:2])
		rest = rest[2:]
		n := &Node{Kind: KindBranch}
		for i := 0; i < 16; i++ {
			if presence&(1<<uint(i)) != 0 {
				if len(rest) < 32 {
					return nil, dberrors.New(dberrors.Corruption, "mpt", "", "truncated branch child")
				}
				copy(n.Children[i][:], rest[:32])
				n.HasChild[i] = true
				rest = rest[32:]
			}
		}
		if len(rest) < 1 {
			return nil, dberrors.New(dberrors.Corruption, "mpt", "", "truncated branch value flag")
		}
		hasValue := rest[0] == 1
		rest = rest[1:]
		if hasValue {
			value, _, err := readLenPrefixed(rest)
			if err != nil {
				return nil, err
			}
			n.Value = value
			n.HasValue = true
		}
		return n, nil
	default:
		return nil, dberrors.New(dberrors.Corruption, "mpt", "", "unknown node kind in encoding")
	}
}

func readLenPrefixed(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, dberrors.New(dberrors.Corruption, "mpt", "", "truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, dberrors.New(dberrors.Corruption, "mpt", "", "truncated length-prefixed field")
	}
	return buf[:n], buf[n:], nil
}
