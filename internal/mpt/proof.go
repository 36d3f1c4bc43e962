package mpt

import "bytes"

// StateProof is a Merkle inclusion proof: the ordered chain of nodes
// traversed from the root down to (and including) the terminal node that
// either witnesses key's value or where the lookup diverged.
type StateProof struct {
	Key      []byte
	Value    []byte
	HasValue bool
	RootHash NodeId
	Nodes    []*Node
}

// GetProof builds a StateProof for key against the trie's current root.
func (t *Trie) GetProof(key []byte) (*StateProof, error) {
	root := t.Root()
	nibbles := BytesToNibbles(key)

	proof := &StateProof{Key: key, RootHash: root}
	id := root
	for {
		n, err := t.storage.GetNode(id)
		if err != nil {
			return nil, err
		}
		proof.Nodes = append(proof.Nodes, n)

		switch n.Kind {
		case KindEmpty:
			return proof, nil

		case KindLeaf:
			if nibblesEqual(n.Path, nibbles) {
				proof.Value = n.Value
				proof.HasValue = true
			}
			return proof, nil

		case KindExtension:
			if len(nibbles) < len(n.Path) || !nibblesEqual(n.Path, nibbles[:len(n.Path)]) {
				return proof, nil
			}
			nibbles = nibbles[len(n.Path):]
			id = n.Child

		case KindBranch:
			if len(nibbles) == 0 {
				if n.HasValue {
					proof.Value = n.Value
					proof.HasValue = true
				}
				return proof, nil
			}
			idx := nibbles[0]
			if !n.HasChild[idx] {
				return proof, nil
			}
			nibbles = nibbles[1:]
			id = n.Children[idx]

		default:
			return proof, nil
		}
	}
}

// VerifyProof re-hashes every node in the chain, checks each links to the
// next, checks the top hash matches RootHash, and checks the terminal
// node actually witnesses the claimed value. An absent-key proof (no
// witnessing leaf/branch value) always verifies false, per spec: this
// scheme proves inclusion, not exclusion.
func VerifyProof(proof *StateProof) bool {
	if len(proof.Nodes) == 0 {
		return proof.RootHash.IsEmpty() && !proof.HasValue
	}
	if HashNode(proof.Nodes[0]) != proof.RootHash {
		return false
	}

	nibbles := BytesToNibbles(proof.Key)
	for i, n := range proof.Nodes {
		isLast := i == len(proof.Nodes)-1
		if !isLast {
			next := proof.Nodes[i+1]
			nextID := HashNode(next)
			if !linksTo(n, nibbles, nextID, &nibbles) {
				return false
			}
			continue
		}

		switch n.Kind {
		case KindLeaf:
			if !proof.HasValue {
				return false
			}
			if !nibblesEqual(n.Path, nibbles) {
				return false
			}
			return bytes.Equal(n.Value, proof.Value)
		case KindBranch:
			if !proof.HasValue {
				return false
			}
			if len(nibbles) != 0 || !n.HasValue {
				return false
			}
			return bytes.Equal(n.Value, proof.Value)
		default:
			return false
		}
	}
	return false
}

// linksTo checks that n, given the remaining nibbles at n, refers to
// childID as its next step, and advances nibbles past the consumed
// portion for the next iteration.
func linksTo(n *Node, nibbles Nibbles, childID NodeId, rest *Nibbles) bool {
	switch n.Kind {
	case KindExtension:
		if len(nibbles) < len(n.Path) || !nibblesEqual(n.Path, nibbles[:len(n.Path)]) {
			return false
		}
		if n.Child != childID {
			return false
		}
		*rest = nibbles[len(n.Path):]
		return true
	case KindBranch:
		if len(nibbles) == 0 {
			return false
		}
		idx := nibbles[0]
		if !n.HasChild[idx] || n.Children[idx] != childID {
			return false
		}
		*rest = nibbles[1:]
		return true
	default:
		return false
	}
}
