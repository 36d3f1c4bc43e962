// Package dotmetrics exposes the engine's Prometheus instrumentation.
// Components update these package-level collectors directly; nothing in
// the core blocks on metrics being scraped.
package dotmetrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PageCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dotdb_page_cache_hits_total",
		Help: "Page reads served from the in-process page cache.",
	})

	PageCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dotdb_page_cache_misses_total",
		Help: "Page reads that required a disk read.",
	})

	WALAppends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dotdb_wal_appends_total",
		Help: "WAL records appended, by record type.",
	}, []string{"record_type"})

	WALFlushes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dotdb_wal_flushes_total",
		Help: "WAL fsync calls.",
	})

	WALRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dotdb_wal_rotations_total",
		Help: "WAL segment file rotations.",
	})

	MVCCGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dotdb_mvcc_gc_runs_total",
		Help: "Per-page version-chain GC passes triggered by gc_threshold.",
	})

	MVCCVersionsCollected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dotdb_mvcc_versions_collected_total",
		Help: "Obsolete committed page versions removed by MVCC GC.",
	})

	TransactionsCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dotdb_transactions_committed_total",
		Help: "Transactions that reached commit_transaction successfully.",
	})

	TransactionsAborted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dotdb_transactions_aborted_total",
		Help: "Transactions rolled back.",
	})

	PrunerBytesReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dotdb_pruner_bytes_reclaimed_total",
		Help: "Bytes of MPT node storage reclaimed by pruning runs.",
	})

	PrunerStatesPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dotdb_pruner_states_pruned_total",
		Help: "State versions deleted by the pruner.",
	})
)

func init() {
	prometheus.MustRegister(
		PageCacheHits, PageCacheMisses,
		WALAppends, WALFlushes, WALRotations,
		MVCCGCRuns, MVCCVersionsCollected,
		TransactionsCommitted, TransactionsAborted,
		PrunerBytesReclaimed, PrunerStatesPruned,
	)
}
