package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func testHashAlgorithms() []Algorithm {
	return []Algorithm{AlgorithmChained, AlgorithmRobinHood, AlgorithmCuckoo}
}

func TestHashIndexInsertGetDeleteAllAlgorithms(t *testing.T) {
	for _, algo := range testHashAlgorithms() {
		t.Run(string(algo), func(t *testing.T) {
			h := NewHashIndex(algo, 8)
			require.NoError(t, h.Insert([]byte("a"), []byte("1")))
			require.NoError(t, h.Insert([]byte("b"), []byte("2")))

			v, ok, err := h.Get([]byte("a"))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "1", string(v))

			require.NoError(t, h.Delete([]byte("a")))
			_, ok, err = h.Get([]byte("a"))
			require.NoError(t, err)
			require.False(t, ok)

			v, ok, err = h.Get([]byte("b"))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "2", string(v))
		})
	}
}

func TestHashIndexDuplicateInsertRejected(t *testing.T) {
	for _, algo := range testHashAlgorithms() {
		h := NewHashIndex(algo, 8)
		require.NoError(t, h.Insert([]byte("k"), []byte("1")))
		err := h.Insert([]byte("k"), []byte("2"))
		require.Error(t, err)
	}
}

func TestHashIndexUpdateAndMissingDelete(t *testing.T) {
	for _, algo := range testHashAlgorithms() {
		h := NewHashIndex(algo, 8)
		err := h.Update([]byte("missing"), []byte("v"))
		require.Error(t, err)

		err = h.Delete([]byte("missing"))
		require.Error(t, err)

		require.NoError(t, h.Insert([]byte("k"), []byte("1")))
		require.NoError(t, h.Update([]byte("k"), []byte("2")))
		v, _, _ := h.Get([]byte("k"))
		require.Equal(t, "2", string(v))
	}
}

func TestHashIndexResizesUnderLoad(t *testing.T) {
	for _, algo := range testHashAlgorithms() {
		h := NewHashIndex(algo, 8)
		const n = 200
		for i := 0; i < n; i++ {
			key := []byte(fmt.Sprintf("key-%d", i))
			require.NoError(t, h.Insert(key, []byte(fmt.Sprintf("v%d", i))))
		}
		require.Equal(t, n, h.Len())
		for i := 0; i < n; i++ {
			key := []byte(fmt.Sprintf("key-%d", i))
			v, ok, err := h.Get(key)
			require.NoError(t, err)
			require.True(t, ok, "key %s missing after resize", key)
			require.Equal(t, fmt.Sprintf("v%d", i), string(v))
		}
	}
}

func TestHashIndexSetAlgorithmPreservesEntries(t *testing.T) {
	h := NewHashIndex(AlgorithmChained, 8)
	for i := 0; i < 30; i++ {
		require.NoError(t, h.Insert([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i))))
	}
	h.SetAlgorithm(AlgorithmRobinHood)
	require.Equal(t, 30, h.Len())
	for i := 0; i < 30; i++ {
		v, ok, err := h.Get([]byte(fmt.Sprintf("k%d", i)))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("v%d", i), string(v))
	}
}

func TestHashIndexCompactPreservesEntriesAfterDeletes(t *testing.T) {
	for _, algo := range testHashAlgorithms() {
		t.Run(string(algo), func(t *testing.T) {
			h := NewHashIndex(algo, 8)
			for i := 0; i < 20; i++ {
				require.NoError(t, h.Insert([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i))))
			}
			for i := 0; i < 20; i += 2 {
				require.NoError(t, h.Delete([]byte(fmt.Sprintf("k%d", i))))
			}
			require.NoError(t, h.Compact())
			require.Equal(t, 10, h.Len())
			for i := 1; i < 20; i += 2 {
				v, ok, err := h.Get([]byte(fmt.Sprintf("k%d", i)))
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, fmt.Sprintf("v%d", i), string(v))
			}
		})
	}
}

func TestHashIndexPersistenceRoundTrip(t *testing.T) {
	for _, algo := range testHashAlgorithms() {
		h := NewHashIndex(algo, 8)
		for i := 0; i < 40; i++ {
			require.NoError(t, h.Insert([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i))))
		}
		data, err := h.Serialize()
		require.NoError(t, err)

		fresh := NewHashIndex(AlgorithmChained, 8)
		require.NoError(t, fresh.Deserialize(data))
		require.Equal(t, h.Len(), fresh.Len())
		for i := 0; i < 40; i++ {
			v, ok, err := fresh.Get([]byte(fmt.Sprintf("k%d", i)))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, fmt.Sprintf("v%d", i), string(v))
		}
	}
}

func TestCompositeIndexOrderingAndPrefixLength(t *testing.T) {
	c := NewCompositeIndex(4)
	k1 := CompositeKey{[]byte("acct"), []byte("1")}
	k2 := CompositeKey{[]byte("ac"), []byte("ct1")}
	require.NoError(t, c.InsertComposite(k1, []byte("v1")))
	require.NoError(t, c.InsertComposite(k2, []byte("v2")))

	v, ok, err := c.GetComposite(k1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", string(v))

	v, ok, err = c.GetComposite(k2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", string(v))

	shorter := CompositeKey{[]byte("acct")}
	longer := CompositeKey{[]byte("acct"), []byte("1")}
	require.Equal(t, -1, shorter.Compare(longer))
	require.Equal(t, 1, longer.Compare(shorter))
}
