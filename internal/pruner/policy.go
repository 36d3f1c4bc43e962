// Package pruner implements policy-driven deletion of unreachable MPT
// nodes and obsolete state versions (C7).
//
// Grounded on original_source's crates/dotdb/core/src/state/pruning.rs
// (StatePruner / PruningStrategy / PruningPolicy), adapted to the mark-
// and-sweep reachability rule spec.md's Open Question calls for: compute
// the full retained-root set first, union one DFS per retained root, then
// only sweep a pruned state's subgraph nodes absent from that union —
// rather than the reference's per-state "delete everything reachable"
// pass, which could delete a node still reachable from a sibling root.
package pruner

// StrategyKind tags which retention rule a Strategy applies.
type StrategyKind string

const (
	KeepLast        StrategyKind = "keep_last"
	KeepRecent      StrategyKind = "keep_recent"
	KeepAtIntervals StrategyKind = "keep_at_intervals"
	CustomStrategy  StrategyKind = "custom"
)

// Strategy selects which PrunableStates survive a Prune run.
type Strategy struct {
	Kind StrategyKind

	// KeepLast
	KeepLastN int

	// KeepRecent
	KeepRecentSeconds uint64

	// KeepAtIntervals
	KeepIntervalHeight uint64

	// Custom: each non-nil facet contributes its to_keep set; the final
	// to_keep set is their UNION, per spec.md §4.7.
	CustomKeepLastN          *int
	CustomKeepRecentSeconds  *uint64
	CustomKeepIntervalHeight *uint64
	CustomKeepSnapshots      bool
}

func KeepLastStrategy(n int) Strategy { return Strategy{Kind: KeepLast, KeepLastN: n} }

func KeepRecentStrategy(seconds uint64) Strategy {
	return Strategy{Kind: KeepRecent, KeepRecentSeconds: seconds}
}

func KeepAtIntervalsStrategy(heightInterval uint64) Strategy {
	return Strategy{Kind: KeepAtIntervals, KeepIntervalHeight: heightInterval}
}

// Policy configures a Pruner's behavior.
type Policy struct {
	Strategy              Strategy
	Enabled               bool
	AutoPruneIntervalSecs uint64 // 0 = disabled
	MinConfirmations      uint64
	PreserveSnapshotRoots bool
	MaxStorageSize        uint64 // 0 = unbounded
}

// DefaultPolicy mirrors the reference's PruningPolicy::default: a Custom
// strategy keeping the last 100 states, states newer than 7 days, and
// states at 1000-height intervals, plus snapshot preservation.
func DefaultPolicy() Policy {
	n := 100
	recent := uint64(86400 * 7)
	interval := uint64(1000)
	return Policy{
		Strategy: Strategy{
			Kind:                     CustomStrategy,
			CustomKeepLastN:          &n,
			CustomKeepRecentSeconds:  &recent,
			CustomKeepIntervalHeight: &interval,
			CustomKeepSnapshots:      true,
		},
		Enabled:               true,
		AutoPruneIntervalSecs: 3600,
		MinConfirmations:      6,
		PreserveSnapshotRoots: true,
		MaxStorageSize:        1024 * 1024 * 1024,
	}
}
