package pruner

import "sort"

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// PrunableState tracks one registered MPT root's pruning metadata.
type PrunableState struct {
	RootHash         [32]byte
	Height           uint64
	TimestampSecs    uint64
	SizeBytes        uint64
	IsSnapshotRoot   bool
	HasConfirmations bool
}

// candidates returns registered states eligible for pruning consideration:
// has_confirmations=TRUE AND (NOT is_snapshot_root OR NOT
// preserve_snapshot_roots), ordered oldest first (lower height first among
// equal timestamps).
func (p *Pruner) candidatesLocked() []*PrunableState {
	out := make([]*PrunableState, 0, len(p.states))
	for _, s := range p.states {
		if !s.HasConfirmations {
			continue
		}
		if s.IsSnapshotRoot && p.policy.PreserveSnapshotRoots {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimestampSecs != out[j].TimestampSecs {
			return out[i].TimestampSecs < out[j].TimestampSecs
		}
		return out[i].Height < out[j].Height
	})
	return out
}

// applyStrategy computes the to_prune list from candidates under the
// Pruner's current strategy, matching spec.md §4.7's per-strategy rules.
func (p *Pruner) applyStrategy(candidates []*PrunableState, nowSecs uint64) []*PrunableState {
	toKeep := make(map[[32]byte]bool)
	var toPrune []*PrunableState

	switch p.policy.Strategy.Kind {
	case KeepLast:
		n := p.policy.Strategy.KeepLastN
		if len(candidates) > n {
			toPrune = append(toPrune, candidates[:len(candidates)-n]...)
		}

	case KeepRecent:
		seconds := p.policy.Strategy.KeepRecentSeconds
		for _, s := range candidates {
			if saturatingSub(nowSecs, s.TimestampSecs) > seconds {
				toPrune = append(toPrune, s)
			} else {
				toKeep[s.RootHash] = true
			}
		}

	case KeepAtIntervals:
		interval := p.policy.Strategy.KeepIntervalHeight
		var lastKeptHeight uint64
		for _, s := range candidates {
			if saturatingSub(s.Height, lastKeptHeight) >= interval {
				toKeep[s.RootHash] = true
				lastKeptHeight = s.Height
			} else {
				toPrune = append(toPrune, s)
			}
		}

	case CustomStrategy:
		strat := p.policy.Strategy
		if strat.CustomKeepLastN != nil {
			n := *strat.CustomKeepLastN
			if len(candidates) > n {
				toPrune = append(toPrune, candidates[:len(candidates)-n]...)
			}
		}
		if strat.CustomKeepRecentSeconds != nil {
			for _, s := range candidates {
				if saturatingSub(nowSecs, s.TimestampSecs) <= *strat.CustomKeepRecentSeconds {
					toKeep[s.RootHash] = true
				}
			}
		}
		if strat.CustomKeepIntervalHeight != nil {
			var lastKeptHeight uint64
			for _, s := range candidates {
				if saturatingSub(s.Height, lastKeptHeight) >= *strat.CustomKeepIntervalHeight {
					toKeep[s.RootHash] = true
					lastKeptHeight = s.Height
				}
			}
		}
		if strat.CustomKeepSnapshots {
			for _, s := range candidates {
				if s.IsSnapshotRoot {
					toKeep[s.RootHash] = true
				}
			}
		}
	}

	filtered := toPrune[:0]
	for _, s := range toPrune {
		if !toKeep[s.RootHash] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
