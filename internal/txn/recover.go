package txn

import (
	"context"

	"github.com/synerthink/dotdb/internal/mvcc"
	"github.com/synerthink/dotdb/internal/pageio"
	"github.com/synerthink/dotdb/internal/wal"
)

// Recover drives WAL replay on startup: wal.Manager.Replay already filters
// to Write/Allocate/Free records whose owning transaction committed, in
// log order; this applies those records to the page store and seeds the
// MVCC store with an already-committed version per page, so readers
// immediately after open see the post-recovery state without needing to
// replay the log themselves. This is the decision recorded for spec.md
// §9's open question on replay completeness.
func (m *Manager) Recover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	system := mvcc.TxnID(0)
	applied := false
	if err := m.log.Replay(func(rec *wal.Record) error {
		switch rec.Header.Type {
		case wal.RecordWrite:
			p, err := pageio.DecodeFromWAL(rec.Header.PageID, rec.Payload)
			if err != nil {
				return err
			}
			if err := m.pages.WritePage(p); err != nil {
				return err
			}
			m.mvcc.AddVersion(p.ID, p, system)
			applied = true
			return nil
		case wal.RecordAllocate:
			// The page body itself was captured by a subsequent Write
			// record (or is the zero page created by AllocatePage); no
			// direct page-store action is needed beyond what Write replays.
			return nil
		case wal.RecordFree:
			return m.pages.FreePage(rec.Header.PageID)
		}
		return nil
	}); err != nil {
		return err
	}

	if applied {
		m.mvcc.CommitTransaction(system)
	}
	return nil
}
