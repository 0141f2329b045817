package enumeration

import (
	"context"
	"fmt"
	"sync"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
)

// MemoryStore keeps items in process memory. It is the default store and
// the one used in tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	items  []*model.EnumerationItem
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FindExistingOrCreate returns the stored item matching item, creating it
// when none exists.
func (s *MemoryStore) FindExistingOrCreate(_ context.Context, item *model.EnumerationItem, idKeys []string) (*model.EnumerationItem, error) {
	if item == nil {
		return nil, fmt.Errorf("enumeration item is nil")
	}
	candidate := item.Clone()
	candidate.EnsureName()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stored := range s.items {
		if !matches(stored, candidate, idKeys) {
			continue
		}
		if len(idKeys) > 0 && needsUpdate(stored, candidate) {
			stored.Name = candidate.Name
			stored.Description = candidate.Description
			stored.Params = model.CloneMap(candidate.Params)
		}
		return stored.Clone(), nil
	}

	s.nextID++
	candidate.ID = s.nextID
	s.items = append(s.items, candidate)
	return candidate.Clone(), nil
}

// List returns the items stored for alertID, in creation order.
func (s *MemoryStore) List(_ context.Context, alertID *int64) ([]*model.EnumerationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.EnumerationItem
	for _, stored := range s.items {
		if sameAlert(stored.AlertID, alertID) {
			out = append(out, stored.Clone())
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
