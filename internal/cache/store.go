// Package cache holds the in-memory work order store used for optimistic
// status updates. Instead of several denormalized copies patched in
// parallel, there is one normalized map keyed by entity ID; the list,
// single-record, and organization-scoped views are all derived from it, so a
// single Snapshot/Restore pair rolls every view back uniformly.
package cache

import (
	"sort"
	"sync"

	"github.com/fieldserve/workorder/internal/domain/entity"
)

// WorkOrderStore is a concurrency-safe normalized store of work orders
type WorkOrderStore struct {
	mu     sync.RWMutex
	orders map[int64]entity.WorkOrder
}

// Snapshot is an opaque copy of the store contents at a point in time
type Snapshot struct {
	orders map[int64]entity.WorkOrder
}

// NewWorkOrderStore creates an empty store
func NewWorkOrderStore() *WorkOrderStore {
	return &WorkOrderStore{
		orders: make(map[int64]entity.WorkOrder),
	}
}

// Put inserts or replaces a work order
func (s *WorkOrderStore) Put(order *entity.WorkOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = *order
}

// Prime replaces the store contents with the given rows
func (s *WorkOrderStore) Prime(orders []*entity.WorkOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[int64]entity.WorkOrder, len(orders))
	for _, o := range orders {
		s.orders[o.ID] = *o
	}
}

// Get returns a copy of the work order with the given ID
func (s *WorkOrderStore) Get(id int64) (*entity.WorkOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	return &o, true
}

// List returns all cached work orders ordered by ID
func (s *WorkOrderStore) List() []*entity.WorkOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.WorkOrder, 0, len(s.orders))
	for _, o := range s.orders {
		c := o
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByOrganization returns cached work orders scoped to one organization
func (s *WorkOrderStore) ListByOrganization(orgID int64) []*entity.WorkOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.WorkOrder
	for _, o := range s.orders {
		if o.OrganizationID == orgID {
			c := o
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PatchStatus applies an optimistic status change. All derived views reflect
// the patch immediately; callers take a Snapshot first and Restore on
// persistence failure.
func (s *WorkOrderStore) PatchStatus(order *entity.WorkOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = *order
}

// Drop removes a work order from the store
func (s *WorkOrderStore) Drop(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
}

// Snapshot copies the current contents for a later Restore
func (s *WorkOrderStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make(map[int64]entity.WorkOrder, len(s.orders))
	for id, o := range s.orders {
		copied[id] = o
	}
	return Snapshot{orders: copied}
}

// Restore rolls the store back to a previously taken snapshot
func (s *WorkOrderStore) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := make(map[int64]entity.WorkOrder, len(snap.orders))
	for id, o := range snap.orders {
		restored[id] = o
	}
	s.orders = restored
}

// Len returns the number of cached work orders
func (s *WorkOrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
