package docstore

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore es el fallback cuando MongoDB no está disponible
// (despliegue local y tests).
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]Document)}
}

func (s *InMemoryStore) Put(ctx context.Context, doc Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Key] = doc
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, key string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &doc, nil
}

// Verificación estática
var _ Store = (*InMemoryStore)(nil)
