// Package stamps хранит кеш-метки сущностей, которыми клиент
// квалифицирует запросы свежих свойств.
package stamps

import (
	"errors"
	"sync"

	"github.com/annel0/aoi-client/internal/aoi"
)

// ErrNotFound для сущности нет сохранённых меток
var ErrNotFound = errors.New("stamps: not found")

// Store хранилище кеш-меток по id сущности
type Store interface {
	Get(id aoi.EntityID) ([]uint32, error)
	Put(id aoi.EntityID, stamps []uint32) error
	Delete(id aoi.EntityID) error
	Close() error
}

// MemoryStore хранит метки в памяти процесса
type MemoryStore struct {
	mu     sync.RWMutex
	stamps map[aoi.EntityID][]uint32
}

// NewMemoryStore создаёт пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stamps: make(map[aoi.EntityID][]uint32)}
}

func (m *MemoryStore) Get(id aoi.EntityID) ([]uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stamps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]uint32(nil), s...), nil
}

func (m *MemoryStore) Put(id aoi.EntityID, stamps []uint32) error {
	m.mu.Lock()
	m.stamps[id] = append([]uint32(nil), stamps...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(id aoi.EntityID) error {
	m.mu.Lock()
	delete(m.stamps, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
