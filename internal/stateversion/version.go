// Package stateversion implements state versioning (C6): named, ordered
// state snapshots addressed by an MPT root hash, with upgrade records
// tracking storage-layout deltas across contract upgrades.
//
// Grounded on original_source's crates/dotdb/core/src/state/versioning.rs
// (DotVersionManager / DotStateVersion / DotUpgradeInfo), generalized from
// the reference's in-memory-only RwLock maps to a Registry backed by an
// injectable durability layer, following the teacher's bbolt-as-durable-map
// idiom (internal/storage_src_ref / cuemby-warren's pkg/storage/boltdb.go).
package stateversion

import "fmt"

// DotAddress identifies the logical namespace ("dot") a state version
// belongs to: a 20-byte address, mirroring the reference's DotAddress.
type DotAddress [20]byte

func (a DotAddress) String() string {
	return fmt.Sprintf("%x", a[:])
}

// Timestamp is nanoseconds since the Unix epoch.
type Timestamp uint64

// TransactionHash identifies the transaction that produced a version.
type TransactionHash [32]byte

// BlockHeight is the chain height at which a version was recorded.
type BlockHeight uint64

// StateVersionId is a pair (logical_version, timestamp_ns), ordered
// lexicographically: logical_version first, timestamp_ns as a tiebreaker.
type StateVersionId struct {
	LogicalVersion uint64
	TimestampNs    Timestamp
}

// Less reports whether id sorts before other.
func (id StateVersionId) Less(other StateVersionId) bool {
	if id.LogicalVersion != other.LogicalVersion {
		return id.LogicalVersion < other.LogicalVersion
	}
	return id.TimestampNs < other.TimestampNs
}

func (id StateVersionId) String() string {
	return fmt.Sprintf("%d@%d", id.LogicalVersion, id.TimestampNs)
}

// UpgradeType classifies the compatibility impact of an upgrade.
type UpgradeType string

const (
	UpgradeMinor            UpgradeType = "minor"
	UpgradeMajor            UpgradeType = "major"
	UpgradeStorageMigration UpgradeType = "storage_migration"
	UpgradeSecurityPatch    UpgradeType = "security_patch"
	UpgradeReplacement      UpgradeType = "replacement"
)

// LayoutChangeKind classifies a single storage-slot delta in an upgrade.
type LayoutChangeKind string

const (
	LayoutAdded      LayoutChangeKind = "added"
	LayoutRemoved    LayoutChangeKind = "removed"
	LayoutTypeChange LayoutChangeKind = "type_changed"
	LayoutSlotChange LayoutChangeKind = "slot_changed"
	LayoutRenamed    LayoutChangeKind = "renamed"
)

// LayoutChange records one storage-layout delta introduced by an upgrade.
type LayoutChange struct {
	Kind              LayoutChangeKind
	VariableName      string
	OldSlot           *uint32
	NewSlot           *uint32
	MigrationStrategy string
}

// DotUpgradeInfo carries the upgrade metadata attached to an upgrade
// version: what kind of upgrade it was and every layout change it made.
type DotUpgradeInfo struct {
	PreviousVersion      StateVersionId
	UpgradeType          UpgradeType
	MigrationDescription string
	LayoutChanges        []LayoutChange
	UpgradeTimestamp     Timestamp
}

// StateVersion is one named state snapshot for a dot.
type StateVersion struct {
	VersionID         StateVersionId
	MPTRootHash       [32]byte
	DotAddress        DotAddress
	ParentVersion     *StateVersionId
	TransactionHash   *TransactionHash
	BlockHeight       *BlockHeight
	UpgradeInfo       *DotUpgradeInfo
	CreatedAt         Timestamp
	Description       string
	IsFinalized       bool
	StateSize         uint64
	StorageSlotsCount uint64
}

// IsUpgrade reports whether this version carries upgrade metadata.
func (v *StateVersion) IsUpgrade() bool {
	return v.UpgradeInfo != nil
}

// IsUpgradeCompatible implements spec.md §4.6's compatibility rule,
// exported standalone (not just a Registry method) so callers and the
// pruner can evaluate it without constructing a full Registry, matching
// the reference's free-function dot_version_utils::is_upgrade_compatible.
//
// Minor and SecurityPatch upgrades are always compatible. Major is
// compatible iff none of its layout changes are Removed or TypeChanged.
// StorageMigration and Replacement are never compatible. A version with
// no upgrade info at all is trivially compatible.
func IsUpgradeCompatible(to *StateVersion) bool {
	if to.UpgradeInfo == nil {
		return true
	}
	switch to.UpgradeInfo.UpgradeType {
	case UpgradeMinor, UpgradeSecurityPatch:
		return true
	case UpgradeMajor:
		for _, change := range to.UpgradeInfo.LayoutChanges {
			if change.Kind == LayoutRemoved || change.Kind == LayoutTypeChange {
				return false
			}
		}
		return true
	case UpgradeStorageMigration, UpgradeReplacement:
		return false
	default:
		return false
	}
}
