package content

import (
	"context"
	"sync"

	"github.com/formledger/formledger/internal/registry"
)

// MemStore is an in-memory content store. Used by tests and the client
// facade when no external store is configured.
type MemStore struct {
	mu   sync.RWMutex
	docs map[registry.Reference][]byte
}

// NewMemStore creates an empty in-memory content store.
func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[registry.Reference][]byte)}
}

// Put stores a document keyed by its content reference.
func (s *MemStore) Put(ctx context.Context, data []byte) (registry.Reference, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := Ref(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[ref]; !exists {
		stored := make([]byte, len(data))
		copy(stored, data)
		s.docs[ref] = stored
	}
	return ref, nil
}

// Get retrieves a document by reference.
func (s *MemStore) Get(ctx context.Context, ref registry.Reference) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := ParseRef(ref); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, exists := s.docs[ref]
	if !exists {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

var _ Store = (*MemStore)(nil)
