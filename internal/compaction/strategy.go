// Package compaction defines the plug point for post-prune node-storage
// compaction. No concrete policy ships here — spec.md's Non-goals
// explicitly exclude "compaction policy selection heuristics" — but the
// interface lets a caller supply one, grounded on original_source's
// crates/dotdb/core/src/compaction/strategy.rs (kept as an external
// collaborator contract, not a scheduler).
package compaction

import "github.com/synerthink/dotdb/internal/mpt"

// Strategy is invoked after a pruner sweep that pruned at least one state,
// with the pruner's node storage, so a caller can reclaim freed space (e.g.
// bbolt file compaction) on whatever schedule fits their deployment.
type Strategy interface {
	Compact(storage mpt.Storage) error
}
