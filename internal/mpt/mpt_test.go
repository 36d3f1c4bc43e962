package mpt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	trie := NewTrie(NewMemStorage())

	_, err := trie.Put([]byte("key1"), []byte("v1"))
	require.NoError(t, err)
	_, err = trie.Put([]byte("key2"), []byte("v2"))
	require.NoError(t, err)

	got, ok, err := trie.Get([]byte("key1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", string(got))

	got, ok, err = trie.Get([]byte("key2"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", string(got))

	_, ok, err = trie.Get([]byte("absent"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutReplaceValue(t *testing.T) {
	trie := NewTrie(NewMemStorage())
	_, err := trie.Put([]byte("key1"), []byte("v1"))
	require.NoError(t, err)
	_, err = trie.Put([]byte("key1"), []byte("v1-updated"))
	require.NoError(t, err)

	got, ok, err := trie.Get([]byte("key1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1-updated", string(got))
}

// TestRootDeterminismAndProofs exercises spec.md scenario B: inserting the
// same multiset of pairs in any order yields the same root hash, and
// get_proof/verify_proof behave per spec for present and absent keys.
func TestRootDeterminismAndProofs(t *testing.T) {
	trieA := NewTrie(NewMemStorage())
	for _, kv := range [][2]string{{"key1", "v1"}, {"key2", "v2"}, {"key3", "v3"}} {
		_, err := trieA.Put([]byte(kv[0]), []byte(kv[1]))
		require.NoError(t, err)
	}

	trieB := NewTrie(NewMemStorage())
	for _, kv := range [][2]string{{"key3", "v3"}, {"key1", "v1"}, {"key2", "v2"}} {
		_, err := trieB.Put([]byte(kv[0]), []byte(kv[1]))
		require.NoError(t, err)
	}

	require.Equal(t, trieA.Root(), trieB.Root())

	proof, err := trieA.GetProof([]byte("key2"))
	require.NoError(t, err)
	require.True(t, VerifyProof(proof))
	require.Equal(t, "v2", string(proof.Value))

	absentProof, err := trieA.GetProof([]byte("absent"))
	require.NoError(t, err)
	require.False(t, absentProof.HasValue)
	require.False(t, VerifyProof(absentProof))
}

func TestDeleteRemovesKey(t *testing.T) {
	trie := NewTrie(NewMemStorage())
	_, err := trie.Put([]byte("alpha"), []byte("1"))
	require.NoError(t, err)
	_, err = trie.Put([]byte("alphabet"), []byte("2"))
	require.NoError(t, err)
	_, err = trie.Put([]byte("beta"), []byte("3"))
	require.NoError(t, err)

	_, existed, err := trie.Delete([]byte("alphabet"))
	require.NoError(t, err)
	require.True(t, existed)

	_, ok, err := trie.Get([]byte("alphabet"))
	require.NoError(t, err)
	require.False(t, ok)

	got, ok, err := trie.Get([]byte("alpha"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(got))

	got, ok, err = trie.Get([]byte("beta"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "3", string(got))
}

func TestDeleteMissingKeyReportsNotExisted(t *testing.T) {
	trie := NewTrie(NewMemStorage())
	_, err := trie.Put([]byte("alpha"), []byte("1"))
	require.NoError(t, err)

	_, existed, err := trie.Delete([]byte("nope"))
	require.NoError(t, err)
	require.False(t, existed)
}

// TestDeleteThenReinsertMatchesFreshTrie checks that deleting down to a
// smaller key set and then reinserting the same pairs from scratch
// produces identical root hashes — i.e. collapse normalization is
// canonical, not just internally consistent.
func TestDeleteThenReinsertMatchesFreshTrie(t *testing.T) {
	trie := NewTrie(NewMemStorage())
	pairs := [][2]string{{"aaa", "1"}, {"aab", "2"}, {"abc", "3"}, {"xyz", "4"}}
	for _, kv := range pairs {
		_, err := trie.Put([]byte(kv[0]), []byte(kv[1]))
		require.NoError(t, err)
	}
	_, existed, err := trie.Delete([]byte("aab"))
	require.NoError(t, err)
	require.True(t, existed)
	_, existed, err = trie.Delete([]byte("xyz"))
	require.NoError(t, err)
	require.True(t, existed)

	fresh := NewTrie(NewMemStorage())
	_, err = fresh.Put([]byte("aaa"), []byte("1"))
	require.NoError(t, err)
	_, err = fresh.Put([]byte("abc"), []byte("3"))
	require.NoError(t, err)

	require.Equal(t, fresh.Root(), trie.Root())
}

func TestWalkVisitsAllReachableNodesOnce(t *testing.T) {
	storage := NewMemStorage()
	trie := NewTrie(storage)
	for _, kv := range [][2]string{{"key1", "v1"}, {"key2", "v2"}, {"key3", "v3"}} {
		_, err := trie.Put([]byte(kv[0]), []byte(kv[1]))
		require.NoError(t, err)
	}

	visited := make(map[NodeId]bool)
	err := Walk(storage, trie.Root(), func(id NodeId, n *Node) error {
		require.False(t, visited[id], "node visited twice")
		visited[id] = true
		return nil
	})
	require.NoError(t, err)
	require.Greater(t, len(visited), 0)
}

func TestEmptyTrieGetMisses(t *testing.T) {
	trie := NewTrie(NewMemStorage())
	_, ok, err := trie.Get([]byte("anything"))
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, trie.Root().IsEmpty())
}
