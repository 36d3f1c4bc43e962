package wal

import "github.com/synerthink/dotdb/internal/pageio"

// AppendWrite logs a page-write-ahead record: the full post-image bytes of
// page at pageSize, so that replay can reconstruct the page verbatim
// without consulting the page store.
func (m *Manager) AppendWrite(txnID uint64, pageID pageio.PageID, pageBytes []byte) (LSN, error) {
	return m.Append(RecordWrite, txnID, pageID, pageBytes)
}

// AppendAllocate logs that pageID was allocated by txnID.
func (m *Manager) AppendAllocate(txnID uint64, pageID pageio.PageID) (LSN, error) {
	return m.Append(RecordAllocate, txnID, pageID, nil)
}

// AppendFree logs that pageID was freed by txnID.
func (m *Manager) AppendFree(txnID uint64, pageID pageio.PageID) (LSN, error) {
	return m.Append(RecordFree, txnID, pageID, nil)
}

// AppendRead logs that txnID observed pageID, for Serializable isolation's
// read-set tracking.
func (m *Manager) AppendRead(txnID uint64, pageID pageio.PageID) (LSN, error) {
	return m.Append(RecordRead, txnID, pageID, nil)
}

// AppendBegin logs the start of txnID.
func (m *Manager) AppendBegin(txnID uint64) (LSN, error) {
	return m.Append(RecordBegin, txnID, 0, nil)
}

// AppendCommit logs that txnID committed; Replay treats this as the
// watermark that makes all of txnID's Write/Allocate/Free records durable.
func (m *Manager) AppendCommit(txnID uint64) (LSN, error) {
	return m.Append(RecordCommit, txnID, 0, nil)
}

// AppendAbort logs that txnID was rolled back.
func (m *Manager) AppendAbort(txnID uint64) (LSN, error) {
	return m.Append(RecordAbort, txnID, 0, nil)
}

// DecodeCheckpointVersion extracts the page-store version a Checkpoint
// record was stamped with.
func DecodeCheckpointVersion(r *Record) (pageio.VersionID, error) {
	return decodeCheckpointPayload(r.Payload)
}
