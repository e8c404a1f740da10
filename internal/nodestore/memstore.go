package nodestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/opcua-go/uacore/internal/ua"
)

type attrKey struct {
	node ua.NodeId
	attr AttributeID
}

// Store is an in-memory NodeStore test double: a flat attribute table
// with no hierarchy, no references, no NodeSet import. It exists to
// give dispatch/subscription tests something real to read and write
// against without standing up an address space.
type Store struct {
	mu         sync.RWMutex
	attributes map[attrKey]ua.DataValue
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{attributes: make(map[attrKey]ua.DataValue)}
}

// Seed installs an initial value for (id, attr), overwriting any prior
// value; intended for test setup rather than runtime use.
func (s *Store) Seed(id ua.NodeId, attr AttributeID, value ua.DataValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[attrKey{id, attr}] = value
}

func (s *Store) Read(ctx context.Context, id ua.NodeId, attr AttributeID) (ua.DataValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.attributes[attrKey{id, attr}]
	if !ok {
		return ua.DataValue{}, ua.BadNodeIdUnknown
	}
	return v, nil
}

func (s *Store) Write(ctx context.Context, id ua.NodeId, attr AttributeID, value ua.DataValue) error {
	if attr != AttributeValue {
		return fmt.Errorf("nodestore: attribute %d is read-only", attr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[attrKey{id, attr}] = value
	return nil
}
