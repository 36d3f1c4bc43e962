package mpt

import (
	"sync"

	"github.com/synerthink/dotdb/internal/dberrors"
)

// Storage is the abstract node-storage collaborator: content-addressed
// get/put/delete/contains over NodeId.
type Storage interface {
	GetNode(id NodeId) (*Node, error)
	PutNode(n *Node) (NodeId, error)
	DeleteNode(id NodeId) error
	ContainsNode(id NodeId) (bool, error)
}

// MemStorage is the default in-memory Storage: a map from NodeId to Node
// behind a RWMutex (readers shared, writers exclusive, per spec.md §5).
type MemStorage struct {
	mu    sync.RWMutex
	nodes map[NodeId]*Node
}

// NewMemStorage creates an empty in-memory node store.
func NewMemStorage() *MemStorage {
	return &MemStorage{nodes: make(map[NodeId]*Node)}
}

func (s *MemStorage) GetNode(id NodeId) (*Node, error) {
	if id.IsEmpty() {
		return &Node{Kind: KindEmpty}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "mpt", idStr(id), "node not found")
	}
	return n, nil
}

func (s *MemStorage) PutNode(n *Node) (NodeId, error) {
	id := HashNode(n)
	if id.IsEmpty() {
		return id, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[id] = n
	return id, nil
}

func (s *MemStorage) DeleteNode(id NodeId) error {
	if id.IsEmpty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	return nil
}

func (s *MemStorage) ContainsNode(id NodeId) (bool, error) {
	if id.IsEmpty() {
		return true, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok, nil
}

// Size reports the number of distinct nodes currently stored.
func (s *MemStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}
