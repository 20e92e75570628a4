package ingest

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]map[string]Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]Item)}
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, table string, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		t = make(map[string]Item)
		s.tables[table] = t
	}
	key := item.Worker + "\x00" + item.Sequence
	if _, exists := t[key]; exists {
		return ErrItemExists
	}
	t[key] = item
	return nil
}

// Items returns the items stored in a table
func (s *MemoryStore) Items(table string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, 0, len(s.tables[table]))
	for _, it := range s.tables[table] {
		items = append(items, it)
	}
	return items
}
