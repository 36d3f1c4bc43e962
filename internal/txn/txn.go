// Package txn implements the transaction manager (C4): begin/read/write/
// allocate/free/commit/abort, coordinating the page store (pageio), the
// write-ahead log (wal) and MVCC (mvcc) behind a single commit protocol.
//
// Grounded on the teacher's internal/transaction/transaction.go
// (TransactionManager: mutex-guarded active-transaction tracking,
// modified/original page maps, Commit writing to WAL before the main
// file), generalized from the teacher's single-active-transaction model
// to many concurrent transactions identified by mvcc.TxnID, each with its
// own read/write/allocation bookkeeping.
package txn

import (
	"context"
	"sync"

	"github.com/synerthink/dotdb/internal/dberrors"
	"github.com/synerthink/dotdb/internal/dotlog"
	"github.com/synerthink/dotdb/internal/mvcc"
	"github.com/synerthink/dotdb/internal/pageio"
	"github.com/synerthink/dotdb/internal/wal"
)

var log = dotlog.For("txn")

// State is a transaction's lifecycle stage.
type State uint8

const (
	StateActive State = iota
	StateCommitted
	StateAborted
)

// Transaction tracks the bookkeeping a single in-flight transaction needs:
// its isolation level, and the set of pages it allocated (so Abort can
// free them) per spec.md §4.4 abort protocol.
type Transaction struct {
	ID        mvcc.TxnID
	Isolation mvcc.IsolationLevel
	state     State
	allocated map[pageio.PageID]bool
	freed     map[pageio.PageID]bool
}

// Manager coordinates pageio.Store, wal.Manager and mvcc.Store into the
// Begin/Read/Write/Allocate/Free/Commit/Abort contract.
type Manager struct {
	mu     sync.Mutex
	pages  *pageio.Store
	log    *wal.Manager
	mvcc   *mvcc.Store
	nextID mvcc.TxnID
	active map[mvcc.TxnID]*Transaction
}

// New builds a transaction manager over an already-opened page store and
// WAL. Callers should call Recover before serving new transactions against
// a reopened engine.
func New(pages *pageio.Store, log *wal.Manager, store *mvcc.Store) *Manager {
	return &Manager{
		pages:  pages,
		log:    log,
		mvcc:   store,
		nextID: 1,
		active: make(map[mvcc.TxnID]*Transaction),
	}
}

// Begin starts a new transaction at the given isolation level and
// establishes its MVCC snapshot.
func (m *Manager) Begin(ctx context.Context, level mvcc.IsolationLevel) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	if _, err := m.log.AppendBegin(uint64(id)); err != nil {
		return nil, err
	}
	m.mvcc.CreateSnapshot(id, level)

	tx := &Transaction{ID: id, Isolation: level, state: StateActive, allocated: make(map[pageio.PageID]bool), freed: make(map[pageio.PageID]bool)}
	m.active[id] = tx
	return tx, nil
}

func (m *Manager) requireActive(tx *Transaction) error {
	if tx.state != StateActive {
		return dberrors.New(dberrors.InvalidOperation, "txn", idStr(uint64(tx.ID)), "transaction is not active")
	}
	return nil
}

// Read returns the page visible to tx for pageID, honoring
// read-your-writes and MVCC snapshot visibility. ReadCommitted
// transactions re-establish their snapshot on every read.
func (m *Manager) Read(ctx context.Context, tx *Transaction, pageID pageio.PageID) (*pageio.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.requireActive(tx); err != nil {
		return nil, err
	}

	if tx.Isolation == mvcc.ReadCommitted {
		if _, err := m.mvcc.ReestablishSnapshot(tx.ID); err != nil {
			return nil, err
		}
	}

	p, ok := m.mvcc.GetVisibleVersion(pageID, tx.ID)
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "txn", idStr(uint64(pageID)), "no visible version")
	}
	if _, err := m.log.AppendRead(uint64(tx.ID), pageID); err != nil {
		return nil, err
	}
	return p, nil
}

// Write records a new version of pageID for tx: the WAL record is
// appended before the MVCC version is added, per spec.md §4.2's ordering
// requirement that the Write record precede the page becoming durable.
func (m *Manager) Write(ctx context.Context, tx *Transaction, pageID pageio.PageID, newPage *pageio.Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.requireActive(tx); err != nil {
		return err
	}

	if m.mvcc.CheckWriteConflict(pageID, tx.ID) {
		return dberrors.New(dberrors.ConcurrencyConflict, "txn", idStr(uint64(pageID)), "write-write conflict")
	}

	buf, err := newPage.EncodeForWAL()
	if err != nil {
		return err
	}
	if _, err := m.log.AppendWrite(uint64(tx.ID), pageID, buf); err != nil {
		return err
	}
	m.mvcc.AddVersion(pageID, newPage, tx.ID)
	return nil
}

// Allocate logs and performs a page allocation on behalf of tx, tracking
// it so Abort can free it.
func (m *Manager) Allocate(ctx context.Context, tx *Transaction, pageType pageio.PageType, version pageio.VersionID) (*pageio.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.requireActive(tx); err != nil {
		return nil, err
	}

	p, err := m.pages.AllocatePage(pageType, version)
	if err != nil {
		return nil, err
	}
	if _, err := m.log.AppendAllocate(uint64(tx.ID), p.ID); err != nil {
		return nil, err
	}
	m.mvcc.AddVersion(p.ID, p, tx.ID)
	tx.allocated[p.ID] = true
	return p, nil
}

// Free logs a page free on behalf of tx and marks the page's current
// MVCC version deleted by tx. The actual pageio.FreePage call is deferred
// to Commit, tracked on tx, so an aborted free never touches the shared
// free list.
func (m *Manager) Free(ctx context.Context, tx *Transaction, pageID pageio.PageID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.requireActive(tx); err != nil {
		return err
	}
	if _, err := m.log.AppendFree(uint64(tx.ID), pageID); err != nil {
		return err
	}
	if err := m.mvcc.MarkDeleted(pageID, tx.ID); err != nil {
		return err
	}
	tx.freed[pageID] = true
	return nil
}

// Commit runs the happy-path protocol from spec.md §4.4: append Commit,
// flush up to and including it, call MVCC.CommitTransaction, then report
// success. A Serializable transaction whose read-set conflicts with a
// concurrently-committed write is rejected instead.
func (m *Manager) Commit(ctx context.Context, tx *Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.requireActive(tx); err != nil {
		return err
	}

	if tx.Isolation == mvcc.Serializable && m.mvcc.CheckSerializableConflict(tx.ID) {
		_ = m.Abort(ctx, tx)
		return dberrors.New(dberrors.ConcurrencyConflict, "txn", idStr(uint64(tx.ID)), "serializable read-set conflict")
	}

	if _, err := m.log.AppendCommit(uint64(tx.ID)); err != nil {
		return err
	}
	if err := m.log.Flush(); err != nil {
		return err
	}

	m.mvcc.CommitTransaction(tx.ID)
	tx.state = StateCommitted

	for pageID := range tx.freed {
		if err := m.pages.FreePage(pageID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	delete(m.active, tx.ID)
	m.mu.Unlock()

	log.Debug().Uint64("txn_id", uint64(tx.ID)).Msg("transaction committed")
	return nil
}

// Abort runs spec.md §4.4's abort protocol: append Abort, flush, roll back
// MVCC versions, and free any pages allocated solely for this transaction.
func (m *Manager) Abort(ctx context.Context, tx *Transaction) error {
	if tx.state != StateActive {
		return nil
	}

	if _, err := m.log.AppendAbort(uint64(tx.ID)); err != nil {
		return err
	}
	if err := m.log.Flush(); err != nil {
		return err
	}

	m.mvcc.AbortTransaction(tx.ID)
	for pageID := range tx.allocated {
		if err := m.pages.FreePage(pageID); err != nil {
			return err
		}
	}
	tx.state = StateAborted

	m.mu.Lock()
	delete(m.active, tx.ID)
	m.mu.Unlock()

	log.Debug().Uint64("txn_id", uint64(tx.ID)).Msg("transaction aborted")
	return nil
}
