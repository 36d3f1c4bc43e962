package mpt

import (
	"sync"

	"github.com/synerthink/dotdb/internal/dberrors"
)

// Trie is a Merkle Patricia Trie over a shared Storage. The root NodeId is
// held in its own lock so concurrent readers never observe a torn update
// while a writer is mid-mutation (spec.md §5: "the root NodeId lives in a
// separate read-write cell").
type Trie struct {
	storage Storage

	rootMu sync.RWMutex
	root   NodeId
}

// NewTrie creates an empty trie over storage.
func NewTrie(storage Storage) *Trie {
	return &Trie{storage: storage, root: EmptyNodeID}
}

// OpenTrie resumes a trie at a previously computed root.
func OpenTrie(storage Storage, root NodeId) *Trie {
	return &Trie{storage: storage, root: root}
}

// Root returns the trie's current root hash.
func (t *Trie) Root() NodeId {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	return t.root
}

// Get looks up key, returning (value, true, nil) on a hit, (nil, false, nil) on a miss.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	root := t.Root()
	return t.getAt(root, BytesToNibbles(key))
}

func (t *Trie) getAt(id NodeId, nibbles Nibbles) ([]byte, bool, error) {
	n, err := t.storage.GetNode(id)
	if err != nil {
		return nil, false, err
	}
	switch n.Kind {
	case KindEmpty:
		return nil, false, nil
	case KindLeaf:
		if nibblesEqual(n.Path, nibbles) {
			return n.Value, true, nil
		}
		return nil, false, nil
	case KindExtension:
		if len(nibbles) < len(n.Path) || !nibblesEqual(n.Path, nibbles[:len(n.Path)]) {
			return nil, false, nil
		}
		return t.getAt(n.Child, nibbles[len(n.Path):])
	case KindBranch:
		if len(nibbles) == 0 {
			if n.HasValue {
				return n.Value, true, nil
			}
			return nil, false, nil
		}
		idx := nibbles[0]
		if !n.HasChild[idx] {
			return nil, false, nil
		}
		return t.getAt(n.Children[idx], nibbles[1:])
	default:
		return nil, false, dberrors.New(dberrors.Corruption, "mpt", "", "unknown node kind during get")
	}
}

func nibblesEqual(a, b Nibbles) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Put inserts or replaces key→value and returns the trie's new root hash.
func (t *Trie) Put(key, value []byte) (NodeId, error) {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()
	newRoot, err := t.putAt(t.root, BytesToNibbles(key), value)
	if err != nil {
		return NodeId{}, err
	}
	t.root = newRoot
	return newRoot, nil
}

func (t *Trie) store(n *Node) (NodeId, error) {
	return t.storage.PutNode(n)
}

func (t *Trie) putAt(id NodeId, nibbles Nibbles, value []byte) (NodeId, error) {
	n, err := t.storage.GetNode(id)
	if err != nil {
		return NodeId{}, err
	}
	switch n.Kind {
	case KindEmpty:
		return t.store(&Node{Kind: KindLeaf, Path: nibbles, Value: value})

	case KindLeaf:
		if nibblesEqual(n.Path, nibbles) {
			return t.store(&Node{Kind: KindLeaf, Path: nibbles, Value: value})
		}
		return t.splitLeaf(n.Path, n.Value, nibbles, value)

	case KindExtension:
		common := commonPrefixLen(n.Path, nibbles)
		if common == len(n.Path) {
			newChild, err := t.putAt(n.Child, nibbles[common:], value)
			if err != nil {
				return NodeId{}, err
			}
			return t.store(&Node{Kind: KindExtension, Path: n.Path, Child: newChild})
		}
		return t.splitExtension(n.Path, n.Child, nibbles, value)

	case KindBranch:
		branch := *n
		if len(nibbles) == 0 {
			branch.Value = value
			branch.HasValue = true
			return t.store(&branch)
		}
		idx := nibbles[0]
		childID := EmptyNodeID
		if branch.HasChild[idx] {
			childID = branch.Children[idx]
		}
		newChild, err := t.putAt(childID, nibbles[1:], value)
		if err != nil {
			return NodeId{}, err
		}
		branch.Children[idx] = newChild
		branch.HasChild[idx] = true
		return t.store(&branch)

	default:
		return NodeId{}, dberrors.New(dberrors.Corruption, "mpt", "", "unknown node kind during put")
	}
}

// splitLeaf builds a Branch (optionally wrapped in an Extension) from two
// diverging leaf paths: the existing leaf's (oldPath, oldValue) and the
// incoming (newPath, newValue).
func (t *Trie) splitLeaf(oldPath Nibbles, oldValue []byte, newPath Nibbles, newValue []byte) (NodeId, error) {
	common := commonPrefixLen(oldPath, newPath)
	branch, err := t.buildDivergentBranch(oldPath[common:], oldValue, newPath[common:], newValue)
	if err != nil {
		return NodeId{}, err
	}
	return t.wrapWithExtension(oldPath[:common], branch)
}

// splitExtension handles a Put whose nibbles diverge partway through an
// Extension's path: build a Branch at the divergence point, placing the
// extension's existing child on one side and the new value on the other.
func (t *Trie) splitExtension(path Nibbles, child NodeId, nibbles Nibbles, value []byte) (NodeId, error) {
	common := commonPrefixLen(path, nibbles)
	oldRemainder := path[common:]
	newRemainder := nibbles[common:]

	var branch Node
	branch.Kind = KindBranch

	// oldRemainder is never empty: Put only reaches splitExtension when
	// common < len(path), since common == len(path) is handled earlier.
	oldIdx := oldRemainder[0]
	oldTail := oldRemainder[1:]
	if len(oldTail) == 0 {
		branch.Children[oldIdx] = child
		branch.HasChild[oldIdx] = true
	} else {
		id, err := t.store(&Node{Kind: KindExtension, Path: oldTail, Child: child})
		if err != nil {
			return NodeId{}, err
		}
		branch.Children[oldIdx] = id
		branch.HasChild[oldIdx] = true
	}

	if len(newRemainder) == 0 {
		branch.Value = value
		branch.HasValue = true
	} else {
		newIdx := newRemainder[0]
		newTail := newRemainder[1:]
		id, err := t.store(&Node{Kind: KindLeaf, Path: newTail, Value: value})
		if err != nil {
			return NodeId{}, err
		}
		branch.Children[newIdx] = id
		branch.HasChild[newIdx] = true
	}

	branchID, err := t.store(&branch)
	if err != nil {
		return NodeId{}, err
	}
	return t.wrapWithExtension(path[:common], branchID)
}

// buildDivergentBranch places two (remainder-path, value) pairs into a
// fresh Branch's child slots (or its value slot, for an empty remainder).
func (t *Trie) buildDivergentBranch(pathA Nibbles, valueA []byte, pathB Nibbles, valueB []byte) (NodeId, error) {
	var branch Node
	branch.Kind = KindBranch

	if err := t.placeInBranch(&branch, pathA, valueA); err != nil {
		return NodeId{}, err
	}
	if err := t.placeInBranch(&branch, pathB, valueB); err != nil {
		return NodeId{}, err
	}
	return t.store(&branch)
}

func (t *Trie) placeInBranch(branch *Node, path Nibbles, value []byte) error {
	if len(path) == 0 {
		branch.Value = value
		branch.HasValue = true
		return nil
	}
	idx := path[0]
	id, err := t.store(&Node{Kind: KindLeaf, Path: path[1:], Value: value})
	if err != nil {
		return err
	}
	branch.Children[idx] = id
	branch.HasChild[idx] = true
	return nil
}

// wrapWithExtension wraps child in an Extension over prefix, unless prefix
// is empty, in which case child is returned unwrapped.
func (t *Trie) wrapWithExtension(prefix Nibbles, child NodeId) (NodeId, error) {
	if len(prefix) == 0 {
		return child, nil
	}
	return t.store(&Node{Kind: KindExtension, Path: prefix, Child: child})
}

// Delete removes key if present, returning (new_root, existed).
func (t *Trie) Delete(key []byte) (NodeId, bool, error) {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()
	newRoot, existed, err := t.deleteAt(t.root, BytesToNibbles(key))
	if err != nil {
		return NodeId{}, false, err
	}
	if existed {
		t.root = newRoot
	}
	return t.root, existed, nil
}

func (t *Trie) deleteAt(id NodeId, nibbles Nibbles) (NodeId, bool, error) {
	n, err := t.storage.GetNode(id)
	if err != nil {
		return NodeId{}, false, err
	}
	switch n.Kind {
	case KindEmpty:
		return EmptyNodeID, false, nil

	case KindLeaf:
		if nibblesEqual(n.Path, nibbles) {
			return EmptyNodeID, true, nil
		}
		return id, false, nil

	case KindExtension:
		if len(nibbles) < len(n.Path) || !nibblesEqual(n.Path, nibbles[:len(n.Path)]) {
			return id, false, nil
		}
		newChild, existed, err := t.deleteAt(n.Child, nibbles[len(n.Path):])
		if err != nil || !existed {
			return id, existed, err
		}
		if newChild.IsEmpty() {
			return EmptyNodeID, true, nil
		}
		merged, err := t.mergeExtension(n.Path, newChild)
		if err != nil {
			return NodeId{}, false, err
		}
		return merged, true, nil

	case KindBranch:
		branch := *n
		if len(nibbles) == 0 {
			if !branch.HasValue {
				return id, false, nil
			}
			branch.HasValue = false
			branch.Value = nil
		} else {
			idx := nibbles[0]
			if !branch.HasChild[idx] {
				return id, false, nil
			}
			newChild, existed, err := t.deleteAt(branch.Children[idx], nibbles[1:])
			if err != nil || !existed {
				return id, existed, err
			}
			if newChild.IsEmpty() {
				branch.HasChild[idx] = false
				branch.Children[idx] = EmptyNodeID
			} else {
				branch.Children[idx] = newChild
			}
		}
		collapsed, err := t.collapseBranch(&branch)
		if err != nil {
			return NodeId{}, false, err
		}
		return collapsed, true, nil

	default:
		return NodeId{}, false, dberrors.New(dberrors.Corruption, "mpt", "", "unknown node kind during delete")
	}
}

// mergeExtension folds an Extension's path into its (now-updated) child
// when that child is itself a Leaf or Extension, preserving canonical
// shape: an Extension never points directly at another Extension, and a
// Leaf's full path is always materialized on the Leaf node itself.
func (t *Trie) mergeExtension(path Nibbles, child NodeId) (NodeId, error) {
	childNode, err := t.storage.GetNode(child)
	if err != nil {
		return NodeId{}, err
	}
	switch childNode.Kind {
	case KindLeaf:
		merged := append(append(Nibbles{}, path...), childNode.Path...)
		return t.store(&Node{Kind: KindLeaf, Path: merged, Value: childNode.Value})
	case KindExtension:
		merged := append(append(Nibbles{}, path...), childNode.Path...)
		return t.store(&Node{Kind: KindExtension, Path: merged, Child: childNode.Child})
	default:
		return t.store(&Node{Kind: KindExtension, Path: path, Child: child})
	}
}

// collapseBranch normalizes a Branch after a child or value removal: with
// zero children and no value it collapses to Empty; with exactly one
// child and no value it collapses into a Leaf/Extension prefixed by that
// child's slot nibble; otherwise it is re-stored unchanged.
func (t *Trie) collapseBranch(branch *Node) (NodeId, error) {
	if branch.HasValue {
		return t.store(branch)
	}
	onlyIdx := -1
	count := 0
	for i := 0; i < 16; i++ {
		if branch.HasChild[i] {
			count++
			onlyIdx = i
		}
	}
	switch count {
	case 0:
		return EmptyNodeID, nil
	case 1:
		childID := branch.Children[onlyIdx]
		childNode, err := t.storage.GetNode(childID)
		if err != nil {
			return NodeId{}, err
		}
		slot := Nibbles{byte(onlyIdx)}
		switch childNode.Kind {
		case KindLeaf:
			merged := append(append(Nibbles{}, slot...), childNode.Path...)
			return t.store(&Node{Kind: KindLeaf, Path: merged, Value: childNode.Value})
		case KindExtension:
			merged := append(append(Nibbles{}, slot...), childNode.Path...)
			return t.store(&Node{Kind: KindExtension, Path: merged, Child: childNode.Child})
		default:
			return t.store(&Node{Kind: KindExtension, Path: slot, Child: childID})
		}
	default:
		return t.store(branch)
	}
}
