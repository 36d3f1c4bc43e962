package mpt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoltStoragePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.db")

	storage, err := OpenBoltStorage(path)
	require.NoError(t, err)

	trie := NewTrie(storage)
	_, err = trie.Put([]byte("key1"), []byte("v1"))
	require.NoError(t, err)
	_, err = trie.Put([]byte("key2"), []byte("v2"))
	require.NoError(t, err)
	root := trie.Root()

	require.NoError(t, storage.Close())

	reopened, err := OpenBoltStorage(path)
	require.NoError(t, err)
	defer reopened.Close()

	resumed := OpenTrie(reopened, root)
	got, ok, err := resumed.Get([]byte("key1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", string(got))

	contains, err := reopened.ContainsNode(root)
	require.NoError(t, err)
	require.True(t, contains)
}

func TestBoltStorageGetMissingNodeReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	storage, err := OpenBoltStorage(filepath.Join(dir, "nodes.db"))
	require.NoError(t, err)
	defer storage.Close()

	_, err = storage.GetNode(NodeId{1, 2, 3})
	require.Error(t, err)
}
