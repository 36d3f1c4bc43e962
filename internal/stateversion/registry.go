package stateversion

import (
	"fmt"
	"sort"
	"sync"

	"github.com/synerthink/dotdb/internal/dberrors"
)

// DefaultMaxVersionsPerDot mirrors the reference's DotVersionManager default.
const DefaultMaxVersionsPerDot = 100

type dotState struct {
	versions map[StateVersionId]*StateVersion
	current  *StateVersionId
}

// Registry is the per-dot ordered StateVersion store: create_version,
// create_upgrade_version, lookups, finalize, and snapshot reference
// counting, backed by an injectable Storage for durability.
type Registry struct {
	mu sync.RWMutex

	dots    map[DotAddress]*dotState
	backend Storage

	counter uint64
	nowFn   func() Timestamp

	maxVersionsPerDot int
	snapshotRefs      map[string]int // "{dot}:{version_id}" -> refcount
}

// NewRegistry creates a Registry backed by storage, retaining at most
// maxVersionsPerDot non-finalized, non-referenced versions per dot.
// nowFn supplies the current timestamp (nanoseconds); tests can inject a
// deterministic clock.
func NewRegistry(storage Storage, maxVersionsPerDot int, nowFn func() Timestamp) *Registry {
	if maxVersionsPerDot <= 0 {
		maxVersionsPerDot = DefaultMaxVersionsPerDot
	}
	r := &Registry{
		dots:              make(map[DotAddress]*dotState),
		backend:           storage,
		nowFn:             nowFn,
		maxVersionsPerDot: maxVersionsPerDot,
		snapshotRefs:      make(map[string]int),
	}
	return r
}

// Load repopulates the Registry's in-memory index from the durable
// backend, e.g. on process restart.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.ForEach(func(_ string, data []byte) error {
		v, err := decodeVersion(data)
		if err != nil {
			return err
		}
		ds := r.dotStateLocked(v.DotAddress)
		ds.versions[v.VersionID] = v
		if ds.current == nil || ds.current.Less(v.VersionID) {
			id := v.VersionID
			ds.current = &id
		}
		return nil
	})
}

func (r *Registry) dotStateLocked(dot DotAddress) *dotState {
	ds, ok := r.dots[dot]
	if !ok {
		ds = &dotState{versions: make(map[StateVersionId]*StateVersion)}
		r.dots[dot] = ds
	}
	return ds
}

func storageKey(dot DotAddress, id StateVersionId) string {
	return fmt.Sprintf("%s:%s", dot, id)
}

func (r *Registry) persist(v *StateVersion) error {
	data, err := encodeVersion(v)
	if err != nil {
		return err
	}
	return r.backend.Put(storageKey(v.DotAddress, v.VersionID), data)
}

// CreateVersion assigns a new StateVersionId, chains it to dot's current
// version as parent, persists it, advances current(dot), and enforces the
// per-dot retention limit.
func (r *Registry) CreateVersion(dot DotAddress, mptRoot [32]byte, description string) (StateVersionId, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counter++
	id := StateVersionId{LogicalVersion: r.counter, TimestampNs: r.nowFn()}

	ds := r.dotStateLocked(dot)
	var parent *StateVersionId
	if ds.current != nil {
		p := *ds.current
		parent = &p
	}

	v := &StateVersion{
		VersionID:     id,
		MPTRootHash:   mptRoot,
		DotAddress:    dot,
		ParentVersion: parent,
		CreatedAt:     id.TimestampNs,
		Description:   description,
	}
	if err := r.persist(v); err != nil {
		return StateVersionId{}, err
	}
	ds.versions[id] = v
	ds.current = &id

	r.evictLocked(dot, ds)
	return id, nil
}

// CreateUpgradeVersion is CreateVersion with required upgrade metadata:
// the parent is dot's current version (an error if dot has none yet).
func (r *Registry) CreateUpgradeVersion(dot DotAddress, mptRoot [32]byte, upgrade *DotUpgradeInfo, description string) (StateVersionId, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ds := r.dotStateLocked(dot)
	if ds.current == nil {
		return StateVersionId{}, dberrors.New(dberrors.NotFound, "stateversion", dot.String(), "dot has no current version to upgrade from")
	}
	parent := *ds.current

	r.counter++
	id := StateVersionId{LogicalVersion: r.counter, TimestampNs: r.nowFn()}

	v := &StateVersion{
		VersionID:     id,
		MPTRootHash:   mptRoot,
		DotAddress:    dot,
		ParentVersion: &parent,
		UpgradeInfo:   upgrade,
		CreatedAt:     id.TimestampNs,
		Description:   description,
	}
	if err := r.persist(v); err != nil {
		return StateVersionId{}, err
	}
	ds.versions[id] = v
	ds.current = &id

	r.evictLocked(dot, ds)
	return id, nil
}

// GetVersion returns the version record for (dot, id).
func (r *Registry) GetVersion(dot DotAddress, id StateVersionId) (*StateVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.dots[dot]
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "stateversion", dot.String(), "dot not found")
	}
	v, ok := ds.versions[id]
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "stateversion", id.String(), "version not found")
	}
	return v, nil
}

// GetCurrent returns dot's current version.
func (r *Registry) GetCurrent(dot DotAddress) (*StateVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.dots[dot]
	if !ok || ds.current == nil {
		return nil, dberrors.New(dberrors.NotFound, "stateversion", dot.String(), "dot has no current version")
	}
	return ds.versions[*ds.current], nil
}

// GetAll returns every version for dot, ordered by StateVersionId.
func (r *Registry) GetAll(dot DotAddress) []*StateVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.dots[dot]
	if !ok {
		return nil
	}
	out := make([]*StateVersion, 0, len(ds.versions))
	for _, v := range ds.versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionID.Less(out[j].VersionID) })
	return out
}

// GetVersionsInRange returns dot's versions created within [start, end].
func (r *Registry) GetVersionsInRange(dot DotAddress, start, end Timestamp) []*StateVersion {
	all := r.GetAll(dot)
	out := make([]*StateVersion, 0)
	for _, v := range all {
		if v.CreatedAt >= start && v.CreatedAt <= end {
			out = append(out, v)
		}
	}
	return out
}

// GetVersionAtBlock returns the highest-block-height version at or before height.
func (r *Registry) GetVersionAtBlock(dot DotAddress, height BlockHeight) (*StateVersion, error) {
	all := r.GetAll(dot)
	var best *StateVersion
	for _, v := range all {
		if v.BlockHeight == nil || *v.BlockHeight > height {
			continue
		}
		if best == nil || *v.BlockHeight > *best.BlockHeight {
			best = v
		}
	}
	if best == nil {
		return nil, dberrors.New(dberrors.NotFound, "stateversion", dot.String(), "no version at or before given block height")
	}
	return best, nil
}

// QueryHistoricalState finds the version whose MPT root equals mptRoot.
func (r *Registry) QueryHistoricalState(dot DotAddress, mptRoot [32]byte) (*StateVersion, error) {
	all := r.GetAll(dot)
	for _, v := range all {
		if v.MPTRootHash == mptRoot {
			return v, nil
		}
	}
	return nil, dberrors.New(dberrors.NotFound, "stateversion", dot.String(), "no version with given MPT root")
}

// FinalizeVersion marks (dot, id) finalized, protecting it from retention eviction.
func (r *Registry) FinalizeVersion(dot DotAddress, id StateVersionId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.mustVersionLocked(dot, id)
	if err != nil {
		return err
	}
	v.IsFinalized = true
	return r.persist(v)
}

// UpdateTransactionInfo records the transaction hash and block height that produced id.
func (r *Registry) UpdateTransactionInfo(dot DotAddress, id StateVersionId, txHash TransactionHash, height BlockHeight) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.mustVersionLocked(dot, id)
	if err != nil {
		return err
	}
	v.TransactionHash = &txHash
	v.BlockHeight = &height
	return r.persist(v)
}

// UpdateStats records state size and storage slot count for id.
func (r *Registry) UpdateStats(dot DotAddress, id StateVersionId, stateSize, storageSlotsCount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.mustVersionLocked(dot, id)
	if err != nil {
		return err
	}
	v.StateSize = stateSize
	v.StorageSlotsCount = storageSlotsCount
	return r.persist(v)
}

func (r *Registry) mustVersionLocked(dot DotAddress, id StateVersionId) (*StateVersion, error) {
	ds, ok := r.dots[dot]
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "stateversion", dot.String(), "dot not found")
	}
	v, ok := ds.versions[id]
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "stateversion", id.String(), "version not found")
	}
	return v, nil
}

// AcquireSnapshot pins (dot, id) against retention eviction while the
// reference count is positive.
func (r *Registry) AcquireSnapshot(dot DotAddress, id StateVersionId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshotRefs[storageKey(dot, id)]++
}

// ReleaseSnapshot drops one reference acquired by AcquireSnapshot.
func (r *Registry) ReleaseSnapshot(dot DotAddress, id StateVersionId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := storageKey(dot, id)
	if n, ok := r.snapshotRefs[key]; ok {
		if n <= 1 {
			delete(r.snapshotRefs, key)
		} else {
			r.snapshotRefs[key] = n - 1
		}
	}
}

// IsVersionActive reports whether (dot, id) currently has a live snapshot reference.
func (r *Registry) IsVersionActive(dot DotAddress, id StateVersionId) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotRefs[storageKey(dot, id)] > 0
}

// evictLocked enforces the per-dot retention limit by dropping the
// oldest non-finalized, non-referenced versions once the dot exceeds
// maxVersionsPerDot.
func (r *Registry) evictLocked(dot DotAddress, ds *dotState) {
	if len(ds.versions) <= r.maxVersionsPerDot {
		return
	}
	ordered := make([]*StateVersion, 0, len(ds.versions))
	for _, v := range ds.versions {
		ordered = append(ordered, v)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].CreatedAt < ordered[j].CreatedAt })

	overflow := len(ds.versions) - r.maxVersionsPerDot
	removed := 0
	for _, v := range ordered {
		if removed >= overflow {
			break
		}
		if v.IsFinalized || r.snapshotRefs[storageKey(dot, v.VersionID)] > 0 {
			continue
		}
		delete(ds.versions, v.VersionID)
		_ = r.backend.Delete(storageKey(dot, v.VersionID))
		removed++
	}
}
