package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenPutGetCloseReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)

	e, err := Open(cfg)
	require.NoError(t, err)

	_, err = e.Put([]byte("hello"), []byte("world"))
	require.NoError(t, err)

	v, ok, err := e.Get([]byte("hello"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "world", string(v))

	require.NoError(t, e.Close())

	e2, err := Open(cfg)
	require.NoError(t, err)
	defer e2.Close()

	v, ok, err = e2.Get([]byte("hello"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "world", string(v))

	current, err := e2.Versions.GetCurrent(e2.dot)
	require.NoError(t, err)
	require.Equal(t, [32]byte(e2.Trie.Root()), current.MPTRootHash)
}
