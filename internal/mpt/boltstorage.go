package mpt

import (
	"go.etcd.io/bbolt"

	"github.com/synerthink/dotdb/internal/dberrors"
)

var nodesBucket = []byte("nodes")

// BoltStorage is a go.etcd.io/bbolt-backed Storage: one bucket keyed by
// NodeId, giving the pruner's reachability sweep and long-lived state
// versions a persistent node store that survives a process restart.
// Grounded on cuemby-warren's pkg/storage/boltdb.go (BoltStore: one bucket
// per entity, Update/View closures, Put/Get/Delete by key), generalized
// from warren's JSON-per-entity records to raw canonical node bytes keyed
// by content hash.
type BoltStorage struct {
	db *bbolt.DB
}

// OpenBoltStorage opens or creates a bbolt database file at path.
func OpenBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.IO, "mpt", path, "open bolt node store", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(nodesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, dberrors.Wrap(dberrors.IO, "mpt", path, "create nodes bucket", err)
	}
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) GetNode(id NodeId) (*Node, error) {
	if id.IsEmpty() {
		return &Node{Kind: KindEmpty}, nil
	}
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)
		data := b.Get(id[:])
		if data == nil {
			return dberrors.New(dberrors.NotFound, "mpt", idStr(id), "node not found")
		}
		raw = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeNode(raw)
}

func (s *BoltStorage) PutNode(n *Node) (NodeId, error) {
	id := HashNode(n)
	if id.IsEmpty() {
		return id, nil
	}
	raw := canonicalEncode(n)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)
		return b.Put(id[:], raw)
	})
	if err != nil {
		return NodeId{}, dberrors.Wrap(dberrors.IO, "mpt", idStr(id), "put node", err)
	}
	return id, nil
}

func (s *BoltStorage) DeleteNode(id NodeId) error {
	if id.IsEmpty() {
		return nil
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)
		return b.Delete(id[:])
	})
	if err != nil {
		return dberrors.Wrap(dberrors.IO, "mpt", idStr(id), "delete node", err)
	}
	return nil
}

func (s *BoltStorage) ContainsNode(id NodeId) (bool, error) {
	if id.IsEmpty() {
		return true, nil
	}
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)
		found = b.Get(id[:]) != nil
		return nil
	})
	return found, err
}

// Close closes the underlying bbolt database.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}
