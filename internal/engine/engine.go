package engine

import (
	"context"
	"os"

	"github.com/synerthink/dotdb/internal/batch"
	"github.com/synerthink/dotdb/internal/dotlog"
	"github.com/synerthink/dotdb/internal/mpt"
	"github.com/synerthink/dotdb/internal/mvcc"
	"github.com/synerthink/dotdb/internal/pageio"
	"github.com/synerthink/dotdb/internal/pruner"
	"github.com/synerthink/dotdb/internal/stateversion"
	"github.com/synerthink/dotdb/internal/txn"
	"github.com/synerthink/dotdb/internal/wal"
)

var log = dotlog.For("engine")

// Engine composes every component into one embeddable database. Every
// field is an explicit, independently lockable component — there is no
// process-wide singleton state.
type Engine struct {
	cfg Config

	Pages *pageio.Store
	WAL   *wal.Manager
	MVCC  *mvcc.Store
	Txn   *txn.Manager

	mptStorage mpt.Storage
	Trie       *mpt.Trie

	versionStorage stateversion.Storage
	Versions       *stateversion.Registry
	Pruner         *pruner.Pruner
	Indexes        *batch.IndexManager

	dot stateversion.DotAddress
}

// Open constructs every component described by cfg, creating DataDir's
// subdirectories and files as needed, replaying the WAL against the page
// store, and rehydrating the state-version registry from its backing
// store.
func Open(cfg Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o777); err != nil {
		return nil, err
	}

	pages, err := pageio.Init(pageio.Config{
		Path:      cfg.pageFilePath(),
		PageSize:  cfg.PageSize,
		CacheSize: cfg.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	walManager, err := wal.Open(wal.Config{
		Dir:            cfg.walDir(),
		MaxSegmentSize: cfg.WALMaxSegmentSize,
		ArchiveDir:     cfg.WALArchiveDir,
	})
	if err != nil {
		pages.Close()
		return nil, err
	}

	mvccStore := mvcc.New(cfg.MVCCGCThreshold)
	txnManager := txn.New(pages, walManager, mvccStore)

	if err := txnManager.Recover(context.Background()); err != nil {
		walManager.Close()
		pages.Close()
		return nil, err
	}

	mptStorage, err := mpt.OpenBoltStorage(cfg.mptPath())
	if err != nil {
		walManager.Close()
		pages.Close()
		return nil, err
	}

	versionStorage, err := stateversion.OpenBoltStorage(cfg.versionsPath())
	if err != nil {
		mptStorage.Close()
		walManager.Close()
		pages.Close()
		return nil, err
	}
	versions := stateversion.NewRegistry(versionStorage, cfg.MaxStateVersionsPerDot, nowUnixNanos)
	if err := versions.Load(); err != nil {
		versionStorage.Close()
		mptStorage.Close()
		walManager.Close()
		pages.Close()
		return nil, err
	}

	dot := stateversion.DotAddress{}

	// Resume the trie at whatever root the most recent state version
	// recorded, so a reopen doesn't silently reset to an empty trie.
	var trie *mpt.Trie
	if current, err := versions.GetCurrent(dot); err == nil {
		trie = mpt.OpenTrie(mptStorage, mpt.NodeId(current.MPTRootHash))
	} else {
		trie = mpt.NewTrie(mptStorage)
	}

	p := pruner.New(mptStorage, cfg.PrunerPolicy, nowUnixSeconds)
	p.SetSnapshotChecker(snapshotChecker{registry: versions, dot: dot})

	indexes := batch.NewIndexManager()
	indexes.SetPersistence(cfg.IndexDir)

	if _, err := versions.GetCurrent(dot); err != nil {
		if _, err := versions.CreateVersion(dot, trie.Root(), "genesis"); err != nil {
			versionStorage.Close()
			mptStorage.Close()
			walManager.Close()
			pages.Close()
			return nil, err
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("engine opened")

	return &Engine{
		cfg:            cfg,
		Pages:          pages,
		WAL:            walManager,
		MVCC:           mvccStore,
		Txn:            txnManager,
		mptStorage:     mptStorage,
		Trie:           trie,
		versionStorage: versionStorage,
		Versions:       versions,
		Pruner:         p,
		Indexes:        indexes,
		dot:            dot,
	}, nil
}

// DotAddress returns the engine's own state-version dot address.
func (e *Engine) DotAddress() stateversion.DotAddress { return e.dot }

// CommitStateVersion records the trie's current root as a new
// StateVersion for the engine's dot, chained to whatever version was
// previously current.
func (e *Engine) CommitStateVersion(description string) (stateversion.StateVersionId, error) {
	return e.Versions.CreateVersion(e.dot, e.Trie.Root(), description)
}

// Close releases every component's underlying resources, in reverse
// dependency order.
func (e *Engine) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if bs, ok := e.mptStorage.(*mpt.BoltStorage); ok {
		record(bs.Close())
	}
	if vs, ok := e.versionStorage.(*stateversion.BoltStorage); ok {
		record(vs.Close())
	}
	record(e.WAL.Close())
	record(e.Pages.Close())
	log.Info().Msg("engine closed")
	return firstErr
}
