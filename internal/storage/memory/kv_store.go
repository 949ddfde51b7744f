package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// kvStoreInMemory — in-memory реализация KeyValueStore для локальной разработки и тестов.
type kvStoreInMemory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

var _ domain.KeyValueStore = (*kvStoreInMemory)(nil)

// NewKeyValueStore возвращает пустое in-memory хранилище.
func NewKeyValueStore() *kvStoreInMemory {
	return &kvStoreInMemory{items: make(map[string][]byte)}
}

// Get возвращает копию значения или ErrKeyNotFound.
func (s *kvStoreInMemory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set сохраняет копию значения, чтобы внешние мутации не влияли на хранилище.
func (s *kvStoreInMemory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = append([]byte(nil), value...)
	return nil
}

// Delete удаляет ключ; отсутствие ключа не считается ошибкой.
func (s *kvStoreInMemory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Ping всегда успешен.
func (s *kvStoreInMemory) Ping(context.Context) error {
	return nil
}

// Keys возвращает отсортированный список ключей.
func (s *kvStoreInMemory) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
