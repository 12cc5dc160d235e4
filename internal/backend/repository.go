// internal/backend/repository.go
package backend

import (
	"context"
	"sync"

	"libradesk/internal/records"
)

// Repository persists the records of one entity in insertion order.
type Repository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Insert(ctx context.Context, r T) error
	Replace(ctx context.Context, r T) error
	Delete(ctx context.Context, id string) error
}

// MemoryRepository keeps records in a records.Store for the life of the process.
type MemoryRepository[T records.Entity[T]] struct {
	mu    sync.RWMutex
	store *records.Store[T]
}

func NewMemoryRepository[T records.Entity[T]](seed ...T) (*MemoryRepository[T], error) {
	store, err := records.Load(seed)
	if err != nil {
		return nil, err
	}
	return &MemoryRepository[T]{store: store}, nil
}

func (m *MemoryRepository[T]) List(context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.All(), nil
}

func (m *MemoryRepository[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Get(id)
}

func (m *MemoryRepository[T]) Insert(_ context.Context, r T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Insert(r)
}

func (m *MemoryRepository[T]) Replace(_ context.Context, r T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Replace(r)
}

func (m *MemoryRepository[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Remove(id)
}
