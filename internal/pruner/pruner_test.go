package pruner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synerthink/dotdb/internal/mpt"
)

func clockAt(seconds uint64) func() uint64 {
	return func() uint64 { return seconds }
}

// TestPruningSafetyScenarioE exercises spec.md scenario E: register S1
// (root R1) and S2 (root R2) where R2 shares nodes with R1, policy
// KeepLast(1), S2 marked snapshot_root. After prune(), every node
// reachable from R2 must remain in storage; S1's exclusive nodes may be
// gone.
func TestPruningSafetyScenarioE(t *testing.T) {
	storage := mpt.NewMemStorage()
	trie := mpt.NewTrie(storage)

	_, err := trie.Put([]byte("shared"), []byte("v1"))
	require.NoError(t, err)
	r1 := trie.Root()

	_, err = trie.Put([]byte("only-in-s1"), []byte("exclusive"))
	require.NoError(t, err)
	s1ExclusiveRoot := trie.Root()
	_ = s1ExclusiveRoot

	// Build R2 sharing the "shared" node by branching off r1 via a fresh trie
	// resumed at r1, adding a second key.
	trie2 := mpt.OpenTrie(storage, r1)
	_, err = trie2.Put([]byte("only-in-s2"), []byte("s2-value"))
	require.NoError(t, err)
	r2 := trie2.Root()

	p := New(storage, Policy{
		Strategy:              KeepLastStrategy(1),
		Enabled:               true,
		PreserveSnapshotRoots: true,
		MinConfirmations:      0,
	}, clockAt(1000))

	p.RegisterState(r1, 1, 0, false)
	p.RegisterState(r2, 2, 0, true)
	p.UpdateConfirmations(100)

	result, err := p.Prune()
	require.NoError(t, err)
	require.Equal(t, 1, result.PrunedCount)
	require.Equal(t, r1, result.PrunedRoots[0])

	reachableFromR2, err := mpt.ReachableSet(storage, mpt.NodeId(r2))
	require.NoError(t, err)
	for id := range reachableFromR2 {
		contains, err := storage.ContainsNode(id)
		require.NoError(t, err)
		require.True(t, contains, "node reachable from retained root R2 must survive pruning")
	}

	got, ok, err := trie2.Get([]byte("shared"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", string(got))
}

func TestKeepLastPrunesOldest(t *testing.T) {
	storage := mpt.NewMemStorage()
	p := New(storage, Policy{Strategy: KeepLastStrategy(1), Enabled: true}, clockAt(1000))

	trie := mpt.NewTrie(storage)
	_, err := trie.Put([]byte("a"), []byte("1"))
	require.NoError(t, err)
	root1 := trie.Root()
	_, err = trie.Put([]byte("b"), []byte("2"))
	require.NoError(t, err)
	root2 := trie.Root()

	p.RegisterState(root1, 1, 0, false)
	p.RegisterState(root2, 2, 0, false)
	p.UpdateConfirmations(10)

	result, err := p.Prune()
	require.NoError(t, err)
	require.Equal(t, 1, result.PrunedCount)
	require.Equal(t, root1, result.PrunedRoots[0])
}

func TestDisabledPolicyPrunesNothing(t *testing.T) {
	storage := mpt.NewMemStorage()
	p := New(storage, Policy{Strategy: KeepLastStrategy(0), Enabled: false}, clockAt(1000))

	trie := mpt.NewTrie(storage)
	_, err := trie.Put([]byte("a"), []byte("1"))
	require.NoError(t, err)
	root := trie.Root()
	p.RegisterState(root, 1, 0, false)
	p.UpdateConfirmations(10)

	result, err := p.Prune()
	require.NoError(t, err)
	require.Equal(t, 0, result.PrunedCount)
}

func TestForcePruneHonorsSnapshotRootGuard(t *testing.T) {
	storage := mpt.NewMemStorage()
	p := New(storage, Policy{PreserveSnapshotRoots: true}, clockAt(1000))

	trie := mpt.NewTrie(storage)
	_, err := trie.Put([]byte("a"), []byte("1"))
	require.NoError(t, err)
	root := trie.Root()
	p.RegisterState(root, 1, 0, true)

	result, err := p.ForcePrune()
	require.NoError(t, err)
	require.Equal(t, 0, result.PrunedCount)
	require.Len(t, result.PreservedStates, 1)
}

func TestStatsRecordPruneRun(t *testing.T) {
	storage := mpt.NewMemStorage()
	p := New(storage, Policy{Strategy: KeepLastStrategy(0), Enabled: true}, clockAt(1000))

	trie := mpt.NewTrie(storage)
	_, err := trie.Put([]byte("a"), []byte("1"))
	require.NoError(t, err)
	root := trie.Root()
	p.RegisterState(root, 1, 0, false)
	p.UpdateConfirmations(10)

	_, err = p.Prune()
	require.NoError(t, err)

	stats := p.Stats()
	require.Equal(t, uint64(1), stats.TotalPruneOperations)
	require.Equal(t, uint64(1), stats.TotalStatesPruned)
}
