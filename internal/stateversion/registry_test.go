package stateversion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testDot() DotAddress {
	var a DotAddress
	for i := range a {
		a[i] = 1
	}
	return a
}

func clockFrom(start uint64) func() Timestamp {
	t := start
	return func() Timestamp {
		t++
		return Timestamp(t)
	}
}

func TestCreateVersionSetsCurrentAndParent(t *testing.T) {
	reg := NewRegistry(NewMemStorage(), 10, clockFrom(1000))
	dot := testDot()
	root1 := [32]byte{42}

	v1, err := reg.CreateVersion(dot, root1, "initial version")
	require.NoError(t, err)

	current, err := reg.GetCurrent(dot)
	require.NoError(t, err)
	require.Equal(t, v1, current.VersionID)
	require.Nil(t, current.ParentVersion)

	v2, err := reg.CreateVersion(dot, root1, "second version")
	require.NoError(t, err)

	current, err = reg.GetCurrent(dot)
	require.NoError(t, err)
	require.Equal(t, v2, current.VersionID)
	require.NotNil(t, current.ParentVersion)
	require.Equal(t, v1, *current.ParentVersion)
}

func TestCreateUpgradeVersionRequiresCurrent(t *testing.T) {
	reg := NewRegistry(NewMemStorage(), 10, clockFrom(1000))
	dot := testDot()

	_, err := reg.CreateUpgradeVersion(dot, [32]byte{1}, &DotUpgradeInfo{UpgradeType: UpgradeMinor}, "no base")
	require.Error(t, err)

	base, err := reg.CreateVersion(dot, [32]byte{1}, "base")
	require.NoError(t, err)

	upgradeID, err := reg.CreateUpgradeVersion(dot, [32]byte{2}, &DotUpgradeInfo{UpgradeType: UpgradeMajor}, "upgrade")
	require.NoError(t, err)

	v, err := reg.GetVersion(dot, upgradeID)
	require.NoError(t, err)
	require.True(t, v.IsUpgrade())
	require.Equal(t, base, *v.ParentVersion)
}

func TestQueryHistoricalStateByRoot(t *testing.T) {
	reg := NewRegistry(NewMemStorage(), 10, clockFrom(1000))
	dot := testDot()
	root1 := [32]byte{1}
	root2 := [32]byte{2}

	_, err := reg.CreateVersion(dot, root1, "v1")
	require.NoError(t, err)
	_, err = reg.CreateVersion(dot, root2, "v2")
	require.NoError(t, err)

	v, err := reg.QueryHistoricalState(dot, root1)
	require.NoError(t, err)
	require.Equal(t, "v1", v.Description)
}

func TestSnapshotReferenceCounting(t *testing.T) {
	reg := NewRegistry(NewMemStorage(), 10, clockFrom(1000))
	dot := testDot()
	id, err := reg.CreateVersion(dot, [32]byte{1}, "v")
	require.NoError(t, err)

	require.False(t, reg.IsVersionActive(dot, id))
	reg.AcquireSnapshot(dot, id)
	require.True(t, reg.IsVersionActive(dot, id))
	reg.ReleaseSnapshot(dot, id)
	require.False(t, reg.IsVersionActive(dot, id))
}

func TestRetentionLimitEvictsOldestUnreferenced(t *testing.T) {
	reg := NewRegistry(NewMemStorage(), 2, clockFrom(1000))
	dot := testDot()

	var ids []StateVersionId
	for i := 0; i < 4; i++ {
		id, err := reg.CreateVersion(dot, [32]byte{byte(i)}, "v")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all := reg.GetAll(dot)
	require.LessOrEqual(t, len(all), 2)

	_, err := reg.GetVersion(dot, ids[len(ids)-1])
	require.NoError(t, err)
}

func TestRetentionLimitSparesFinalizedAndReferenced(t *testing.T) {
	reg := NewRegistry(NewMemStorage(), 2, clockFrom(1000))
	dot := testDot()

	first, err := reg.CreateVersion(dot, [32]byte{1}, "v1")
	require.NoError(t, err)
	require.NoError(t, reg.FinalizeVersion(dot, first))

	for i := 0; i < 4; i++ {
		_, err := reg.CreateVersion(dot, [32]byte{byte(i)}, "v")
		require.NoError(t, err)
	}

	_, err = reg.GetVersion(dot, first)
	require.NoError(t, err)
}

func TestUpdateTransactionInfoAndStats(t *testing.T) {
	reg := NewRegistry(NewMemStorage(), 10, clockFrom(1000))
	dot := testDot()
	id, err := reg.CreateVersion(dot, [32]byte{1}, "v")
	require.NoError(t, err)

	require.NoError(t, reg.UpdateTransactionInfo(dot, id, TransactionHash{9}, BlockHeight(42)))
	require.NoError(t, reg.UpdateStats(dot, id, 1024, 7))

	v, err := reg.GetVersion(dot, id)
	require.NoError(t, err)
	require.Equal(t, BlockHeight(42), *v.BlockHeight)
	require.Equal(t, uint64(1024), v.StateSize)
	require.Equal(t, uint64(7), v.StorageSlotsCount)
}

func TestGetVersionAtBlockPicksHighestAtOrBefore(t *testing.T) {
	reg := NewRegistry(NewMemStorage(), 10, clockFrom(1000))
	dot := testDot()

	v1, _ := reg.CreateVersion(dot, [32]byte{1}, "v1")
	v2, _ := reg.CreateVersion(dot, [32]byte{2}, "v2")

	require.NoError(t, reg.UpdateTransactionInfo(dot, v1, TransactionHash{}, 10))
	require.NoError(t, reg.UpdateTransactionInfo(dot, v2, TransactionHash{}, 20))

	found, err := reg.GetVersionAtBlock(dot, 15)
	require.NoError(t, err)
	require.Equal(t, v1, found.VersionID)

	found, err = reg.GetVersionAtBlock(dot, 25)
	require.NoError(t, err)
	require.Equal(t, v2, found.VersionID)
}

func TestIsUpgradeCompatible(t *testing.T) {
	require.True(t, IsUpgradeCompatible(&StateVersion{}))
	require.True(t, IsUpgradeCompatible(&StateVersion{UpgradeInfo: &DotUpgradeInfo{UpgradeType: UpgradeMinor}}))
	require.True(t, IsUpgradeCompatible(&StateVersion{UpgradeInfo: &DotUpgradeInfo{UpgradeType: UpgradeSecurityPatch}}))

	majorSafe := &StateVersion{UpgradeInfo: &DotUpgradeInfo{
		UpgradeType:   UpgradeMajor,
		LayoutChanges: []LayoutChange{{Kind: LayoutAdded}, {Kind: LayoutRenamed}},
	}}
	require.True(t, IsUpgradeCompatible(majorSafe))

	majorBreaking := &StateVersion{UpgradeInfo: &DotUpgradeInfo{
		UpgradeType:   UpgradeMajor,
		LayoutChanges: []LayoutChange{{Kind: LayoutRemoved}},
	}}
	require.False(t, IsUpgradeCompatible(majorBreaking))

	require.False(t, IsUpgradeCompatible(&StateVersion{UpgradeInfo: &DotUpgradeInfo{UpgradeType: UpgradeStorageMigration}}))
	require.False(t, IsUpgradeCompatible(&StateVersion{UpgradeInfo: &DotUpgradeInfo{UpgradeType: UpgradeReplacement}}))
}

func TestRegistryPersistsAcrossLoad(t *testing.T) {
	backend := NewMemStorage()
	reg := NewRegistry(backend, 10, clockFrom(1000))
	dot := testDot()
	id, err := reg.CreateVersion(dot, [32]byte{7}, "persisted")
	require.NoError(t, err)

	reloaded := NewRegistry(backend, 10, clockFrom(2000))
	require.NoError(t, reloaded.Load())

	v, err := reloaded.GetVersion(dot, id)
	require.NoError(t, err)
	require.Equal(t, "persisted", v.Description)
}
