// Package engine is the composition root wiring the paged store, WAL,
// MVCC store, transaction manager, Merkle Patricia Trie, state-version
// registry, pruner, and secondary-index manager into one embeddable
// database. It owns no process-wide singletons — every component is an
// explicit struct field, constructed once by Open and closed by Close.
package engine

import (
	"path/filepath"
	"time"

	"github.com/synerthink/dotdb/internal/pruner"
	"github.com/synerthink/dotdb/internal/stateversion"
)

// Config controls how Open constructs an Engine's components. The
// cmd/dotdb CLI assembles this from cobra flags and an optional yaml.v3
// config file.
type Config struct {
	// DataDir holds the page file, wal segments, MPT node store and
	// state-version registry.
	DataDir string

	PageSize  int
	CacheSize int

	WALMaxSegmentSize int64
	// WALArchiveDir, if set, makes wal.Manager gzip-archive rotated-out
	// segments here instead of discarding them on PurgeOldFiles.
	WALArchiveDir string

	MVCCGCThreshold int

	PrunerPolicy         pruner.Policy
	MaxStateVersionsPerDot int

	IndexDir string
}

// DefaultConfig returns a Config with sane defaults rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:                dataDir,
		PageSize:               4096,
		CacheSize:              256,
		WALMaxSegmentSize:      0, // wal.DefaultMaxSegmentSize
		MVCCGCThreshold:        1000,
		PrunerPolicy:           pruner.DefaultPolicy(),
		MaxStateVersionsPerDot: stateversion.DefaultMaxVersionsPerDot,
		IndexDir:               filepath.Join(dataDir, "indexes"),
	}
}

func (c Config) pageFilePath() string { return filepath.Join(c.DataDir, "data.db") }
func (c Config) walDir() string       { return filepath.Join(c.DataDir, "wal") }
func (c Config) mptPath() string      { return filepath.Join(c.DataDir, "mpt.db") }
func (c Config) versionsPath() string { return filepath.Join(c.DataDir, "versions.db") }

func nowUnixNanos() stateversion.Timestamp {
	return stateversion.Timestamp(time.Now().UnixNano())
}

func nowUnixSeconds() uint64 {
	return uint64(time.Now().Unix())
}

// snapshotChecker adapts stateversion.Registry to pruner.SnapshotChecker
// without pruner importing stateversion: a root is referenced if it backs
// some version of dot that currently has a live AcquireSnapshot reference.
type snapshotChecker struct {
	registry *stateversion.Registry
	dot      stateversion.DotAddress
}

func (c snapshotChecker) IsReferenced(root [32]byte) bool {
	v, err := c.registry.QueryHistoricalState(c.dot, root)
	if err != nil {
		return false
	}
	return c.registry.IsVersionActive(c.dot, v.VersionID)
}
