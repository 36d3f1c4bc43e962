package pruner

import (
	"sync"

	"github.com/synerthink/dotdb/internal/compaction"
	"github.com/synerthink/dotdb/internal/dberrors"
	"github.com/synerthink/dotdb/internal/dotmetrics"
	"github.com/synerthink/dotdb/internal/mpt"
)

// SnapshotChecker reports whether a root has a live external reference
// (e.g. stateversion.Registry.IsVersionActive), keeping the pruner
// decoupled from C6 while still letting callers pin roots beyond the
// is_snapshot_root flag recorded at registration.
type SnapshotChecker interface {
	IsReferenced(root [32]byte) bool
}

// Stats mirrors the reference's PruningStats.
type Stats struct {
	TotalPruneOperations uint64
	TotalStatesPruned    uint64
	TotalBytesReclaimed  uint64
	LastPruneTimestamp   uint64
}

// Result reports the outcome of one Prune/ForcePrune call.
type Result struct {
	PrunedCount     int
	BytesReclaimed  uint64
	PrunedRoots     [][32]byte
	PreservedStates []PreservedState
	Errors          []string
}

// PreservedState names a candidate that was not pruned, and why.
type PreservedState struct {
	RootHash [32]byte
	Reason   string
}

// Pruner tracks registered PrunableStates and executes policy-driven
// deletion of their MPT subgraphs from a shared node Storage.
type Pruner struct {
	mu sync.Mutex

	policy  Policy
	states  map[[32]byte]*PrunableState
	storage   mpt.Storage
	checker   SnapshotChecker
	compactor compaction.Strategy

	nowFn func() uint64 // unix seconds, injectable for deterministic tests

	lastPruneTime uint64
	stats         Stats
}

// New creates a Pruner over storage with the given policy. nowFn supplies
// the current time in Unix seconds.
func New(storage mpt.Storage, policy Policy, nowFn func() uint64) *Pruner {
	return &Pruner{
		policy:  policy,
		states:  make(map[[32]byte]*PrunableState),
		storage: storage,
		nowFn:   nowFn,
	}
}

// SetSnapshotChecker installs an external live-reference predicate.
func (p *Pruner) SetSnapshotChecker(checker SnapshotChecker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checker = checker
}

// SetCompactionStrategy installs the post-sweep compaction hook.
func (p *Pruner) SetCompactionStrategy(strategy compaction.Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.compactor = strategy
}

// RegisterState records a state as a pruning candidate.
func (p *Pruner) RegisterState(root [32]byte, height uint64, sizeBytes uint64, isSnapshotRoot bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[root] = &PrunableState{
		RootHash:       root,
		Height:         height,
		TimestampSecs:  p.nowFn(),
		SizeBytes:      sizeBytes,
		IsSnapshotRoot: isSnapshotRoot,
	}
}

// UpdateConfirmations marks states with enough confirmations behind
// currentHeight as eligible for pruning consideration.
func (p *Pruner) UpdateConfirmations(currentHeight uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.states {
		s.HasConfirmations = saturatingSub(currentHeight, s.Height) >= p.policy.MinConfirmations
	}
}

// StateInfo returns every tracked state.
func (p *Pruner) StateInfo() []*PrunableState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*PrunableState, 0, len(p.states))
	for _, s := range p.states {
		out = append(out, s)
	}
	return out
}

// Stats returns a copy of the pruner's cumulative statistics.
func (p *Pruner) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Prune executes one pruning pass under the current policy.
func (p *Pruner) Prune() (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.policy.Enabled {
		return &Result{}, nil
	}
	candidates := p.candidatesLocked()
	toPrune := p.applyStrategy(candidates, p.nowFn())
	return p.executeLocked(toPrune, false)
}

// ForcePrune bypasses the policy's strategy selection (every registered
// state is a candidate) but still honors the is_snapshot_root guard.
func (p *Pruner) ForcePrune() (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := make([]*PrunableState, 0, len(p.states))
	for _, s := range p.states {
		all = append(all, s)
	}
	return p.executeLocked(all, true)
}

// executeLocked performs the resolved mark-and-sweep: it first computes
// the full retained-root set (every registered state not in toPrune, plus
// every externally-referenced or is_snapshot_root-protected state), unions
// one reachability DFS per retained root, then only deletes a pruned
// state's subgraph nodes absent from that union.
func (p *Pruner) executeLocked(toPrune []*PrunableState, forced bool) (*Result, error) {
	result := &Result{}

	pruneSet := make(map[[32]byte]bool, len(toPrune))
	filteredPrune := toPrune[:0]
	for _, s := range toPrune {
		if s.IsSnapshotRoot && p.policy.PreserveSnapshotRoots {
			result.PreservedStates = append(result.PreservedStates, PreservedState{RootHash: s.RootHash, Reason: "is_snapshot_root"})
			continue
		}
		filteredPrune = append(filteredPrune, s)
		pruneSet[s.RootHash] = true
	}
	toPrune = filteredPrune

	retained := make(map[[32]byte]mpt.NodeId)
	for root := range p.states {
		referenced := p.checker != nil && p.checker.IsReferenced(root)
		if pruneSet[root] && !referenced {
			continue
		}
		retained[root] = mpt.NodeId(root)
	}

	retainedReachable := make(map[mpt.NodeId]bool)
	for _, rootID := range retained {
		set, err := mpt.ReachableSet(p.storage, rootID)
		if err != nil {
			return nil, err
		}
		for id := range set {
			retainedReachable[id] = true
		}
	}

	for _, s := range toPrune {
		reclaimed, err := p.pruneOneLocked(s, retainedReachable)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.PrunedCount++
		result.BytesReclaimed += reclaimed
		result.PrunedRoots = append(result.PrunedRoots, s.RootHash)
		delete(p.states, s.RootHash)
	}

	p.stats.TotalPruneOperations++
	p.stats.TotalStatesPruned += uint64(result.PrunedCount)
	p.stats.TotalBytesReclaimed += result.BytesReclaimed
	p.lastPruneTime = p.nowFn()
	p.stats.LastPruneTimestamp = p.lastPruneTime

	dotmetrics.PrunerStatesPruned.Add(float64(result.PrunedCount))
	dotmetrics.PrunerBytesReclaimed.Add(float64(result.BytesReclaimed))

	if p.compactor != nil && result.PrunedCount > 0 {
		if err := p.compactor.Compact(p.storage); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	return result, nil
}

// pruneOneLocked walks state's subgraph in traversal order, reverses it
// (child-before-parent, matching the reference's collect-then-reverse),
// and deletes every node absent from retainedReachable.
func (p *Pruner) pruneOneLocked(state *PrunableState, retainedReachable map[mpt.NodeId]bool) (uint64, error) {
	root := mpt.NodeId(state.RootHash)

	var order []mpt.NodeId
	var sizes = make(map[mpt.NodeId]int)
	err := mpt.Walk(p.storage, root, func(id mpt.NodeId, n *mpt.Node) error {
		order = append(order, id)
		sizes[id] = mpt.EncodedSize(n)
		return nil
	})
	if err != nil {
		return 0, dberrors.Wrap(dberrors.IO, "pruner", "", "walk state subgraph", err)
	}

	var bytesReclaimed uint64
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if retainedReachable[id] {
			continue
		}
		if err := p.storage.DeleteNode(id); err != nil {
			return bytesReclaimed, dberrors.Wrap(dberrors.IO, "pruner", "", "delete node", err)
		}
		bytesReclaimed += uint64(sizes[id])
	}
	return bytesReclaimed, nil
}
