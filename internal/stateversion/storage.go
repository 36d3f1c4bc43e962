package stateversion

import (
	"encoding/json"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/synerthink/dotdb/internal/dberrors"
)

// Storage is the Registry's injectable durability layer: a flat key→bytes
// map, shaped like mpt.Storage's get/put/delete (plus ForEach for Load,
// and no contains) but keyed by the "{dot}:{version_id}" strings the
// Registry assigns rather than content hashes, since version records are
// mutable (finalize, update_stats) and not content-addressed.
type Storage interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, bool, error)
	Delete(key string) error
	ForEach(fn func(key string, data []byte) error) error
}

// MemStorage is the default in-memory Storage.
type MemStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemStorage() *MemStorage {
	return &MemStorage{data: make(map[string][]byte)}
}

func (s *MemStorage) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), data...)
	s.data[key] = cp
	return nil
}

func (s *MemStorage) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemStorage) ForEach(fn func(key string, data []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

var versionsBucket = []byte("versions")

// BoltStorage persists StateVersion records so a process restart does not
// lose version history. Grounded on cuemby-warren's pkg/storage/boltdb.go:
// one bucket, Update/View closures, JSON-encoded values.
type BoltStorage struct {
	db *bbolt.DB
}

func OpenBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.IO, "stateversion", path, "open bolt version store", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(versionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, dberrors.Wrap(dberrors.IO, "stateversion", path, "create versions bucket", err)
	}
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Put(key string, data []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(versionsBucket).Put([]byte(key), data)
	})
	if err != nil {
		return dberrors.Wrap(dberrors.IO, "stateversion", key, "put version", err)
	}
	return nil
}

func (s *BoltStorage) Get(key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(versionsBucket).Get([]byte(key))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, dberrors.Wrap(dberrors.IO, "stateversion", key, "get version", err)
	}
	return data, data != nil, nil
}

func (s *BoltStorage) Delete(key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(versionsBucket).Delete([]byte(key))
	})
	if err != nil {
		return dberrors.Wrap(dberrors.IO, "stateversion", key, "delete version", err)
	}
	return nil
}

func (s *BoltStorage) ForEach(fn func(key string, data []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(versionsBucket).ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}

func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func encodeVersion(v *StateVersion) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.SerializationError, "stateversion", v.VersionID.String(), "encode version", err)
	}
	return data, nil
}

func decodeVersion(data []byte) (*StateVersion, error) {
	var v StateVersion
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, dberrors.Wrap(dberrors.SerializationError, "stateversion", "", "decode version", err)
	}
	return &v, nil
}
