package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/grexie/estorage/pkg/storage/interfaces"
)

// memoryStorageBackend keeps items in process. Nothing survives a restart.
type memoryStorageBackend struct {
	mu    sync.RWMutex
	items map[interfaces.ID]interfaces.Item
}

var _ interfaces.IStorageBackend = &memoryStorageBackend{}

func NewMemoryStorageBackend() (interfaces.IStorageBackend, error) {
	return &memoryStorageBackend{items: map[interfaces.ID]interfaces.Item{}}, nil
}

// Find returns matches ordered by ID.
func (m *memoryStorageBackend) Find(ctx context.Context, pattern string) ([]interfaces.Item, error) {
	re, err := interfaces.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	out := []interfaces.Item{}
	for id, item := range m.items {
		if re.MatchString(id) {
			out = append(out, item)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (m *memoryStorageBackend) Save(ctx context.Context, item interfaces.Item) error {
	stored := interfaces.NewItem(item.ID(), item.Hash(), item.Data())

	m.mu.Lock()
	m.items[item.ID()] = stored
	m.mu.Unlock()
	return nil
}

func (m *memoryStorageBackend) Close(ctx context.Context) error {
	return nil
}
