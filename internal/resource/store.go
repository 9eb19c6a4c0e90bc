package resource

import (
	"fmt"
	"sort"
)

// Store maps resource identity to resource records and tracks consumption.
//
// The store is the kernel's only shared mutable state. It is not locked:
// all mutation is serialized through the engine's single executor
// goroutine, so no interleaving of Consume between two tasks can violate
// the linearity invariant.
//
// Consume is the sole state transition. Release exists only to roll back a
// pre-consume when a handler rejects a call; it is internal to the
// interpreter's effect pipeline and never observable in a sealed trace.
type Store struct {
	records map[ID]*Resource
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[ID]*Resource)}
}

// Put inserts a resource and returns its content-addressed ID.
// Idempotent: putting a structurally equal resource returns the existing
// ID and leaves the stored record (including its state) untouched.
func (s *Store) Put(r Resource) ID {
	id := r.ComputeID()
	if _, ok := s.records[id]; ok {
		return id
	}
	stored := r
	if stored.Metadata == nil {
		stored.Metadata = map[string]string{}
	}
	s.records[id] = &stored
	return id
}

// Get returns a copy of the resource record, or false if absent.
// Never mutates state.
func (s *Store) Get(id ID) (Resource, bool) {
	r, ok := s.records[id]
	if !ok {
		return Resource{}, false
	}
	return *r, true
}

// Consume transitions a resource Available -> Consumed.
// Fails if the resource is absent or not Available. This is the only
// state transition the store performs.
func (s *Store) Consume(id ID) error {
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("consume %s: unknown resource", id.Short())
	}
	if r.State != Available {
		return fmt.Errorf("consume %s: resource is %s", id.Short(), r.State)
	}
	r.State = Consumed
	return nil
}

// Release rolls back a pre-consume after a handler rejection.
// Only valid on a Consumed resource; the interpreter calls it exclusively
// for resources it consumed itself within the current effect call.
func (s *Store) Release(id ID) error {
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("release %s: unknown resource", id.Short())
	}
	if r.State != Consumed {
		return fmt.Errorf("release %s: resource is %s, not consumed", id.Short(), r.State)
	}
	r.State = Available
	return nil
}

// Snapshot returns the state of every resource the store has observed,
// for trace finalization.
func (s *Store) Snapshot() map[ID]State {
	out := make(map[ID]State, len(s.records))
	for id, r := range s.records {
		out[id] = r.State
	}
	return out
}

// IDs returns all known resource IDs in ascending byte order.
// Deterministic iteration for logs and tests.
func (s *Store) IDs() []ID {
	ids := make([]ID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids
}

// Len returns the number of records (available and consumed).
func (s *Store) Len() int {
	return len(s.records)
}
