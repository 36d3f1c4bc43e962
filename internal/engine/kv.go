package engine

import "github.com/synerthink/dotdb/internal/stateversion"

// Put writes key/value into the MPT and records the resulting root as a
// new state version. This is the simplest coherent write path the engine
// exposes directly; callers needing page-level transactional semantics
// (multiple related page writes atomically) should use Txn/MVCC directly
// via e.Txn.Begin/.../Commit instead.
func (e *Engine) Put(key, value []byte) (stateversion.StateVersionId, error) {
	if _, err := e.Trie.Put(key, value); err != nil {
		return stateversion.StateVersionId{}, err
	}
	return e.CommitStateVersion("put")
}

// Get reads key from the trie's current root.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	return e.Trie.Get(key)
}

// Delete removes key from the MPT and records the resulting root as a new
// state version.
func (e *Engine) Delete(key []byte) (stateversion.StateVersionId, bool, error) {
	_, existed, err := e.Trie.Delete(key)
	if err != nil {
		return stateversion.StateVersionId{}, false, err
	}
	if !existed {
		return stateversion.StateVersionId{}, false, nil
	}
	id, err := e.CommitStateVersion("delete")
	return id, true, err
}
