// Package entitystore implements the per-collection identity map (spec
// §4.5): an atomically swappable snapshot of records plus unique and
// secondary indexes. It is adapted from GoKitt's
// pkg/docstore/store.go (mutex-guarded map of documents) generalized
// from a fixed {ID, Text, Version} document to an arbitrary
// docval.Map record. Writers build a fresh copy-on-write snapshot under
// the store's mutex; readers take the same mutex only to fetch the
// current snapshot pointer, then read it without holding any lock.
package entitystore

import (
	"fmt"
	"sync"

	"github.com/proseql/proseql/internal/docval"
)

// DuplicateKeyError is raised when an insert/replace would collide on an
// id or a declared unique-field tuple.
type DuplicateKeyError struct {
	Fields []string
	Value  []any
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key on %v = %v", e.Fields, e.Value)
}

// Snapshot is an immutable view of one collection's entities and
// indexes. Callers must never mutate the maps inside a Snapshot; every
// write produces a fresh one via copy-on-write.
type Snapshot struct {
	Data   map[string]docval.Map
	unique map[string]map[string]string   // unique field name -> value key -> id
	index  map[string]map[string][]string // secondary field name -> value key -> ids
	prefix map[string]*prefixIndex        // secondary field name -> trie-backed prefix index
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Data:   make(map[string]docval.Map),
		unique: make(map[string]map[string]string),
		index:  make(map[string]map[string][]string),
		prefix: make(map[string]*prefixIndex),
	}
}

// Get returns the record for id, if any.
func (s *Snapshot) Get(id string) (docval.Map, bool) {
	r, ok := s.Data[id]
	return r, ok
}

// Len reports the number of live records.
func (s *Snapshot) Len() int { return len(s.Data) }

// IDs returns every id in the snapshot, order unspecified.
func (s *Snapshot) IDs() []string {
	out := make([]string, 0, len(s.Data))
	for id := range s.Data {
		out = append(out, id)
	}
	return out
}

// Values returns every record in the snapshot, order unspecified.
func (s *Snapshot) Values() []docval.Map {
	out := make([]docval.Map, 0, len(s.Data))
	for _, r := range s.Data {
		out = append(out, r)
	}
	return out
}

// ByUnique looks up the id bound to a unique field's value, if any.
func (s *Snapshot) ByUnique(field string, value any) (string, bool) {
	m, ok := s.unique[field]
	if !ok {
		return "", false
	}
	id, ok := m[docval.ToString(value)]
	return id, ok
}

// ByIndex looks up every id whose secondary-indexed field equals value.
func (s *Snapshot) ByIndex(field string, value any) []string {
	m, ok := s.index[field]
	if !ok {
		return nil
	}
	return append([]string(nil), m[docval.ToString(value)]...)
}

// ByPrefix looks up every id whose secondary-indexed field begins with
// prefix, via the field's trie-backed prefix index. ok is false when
// field carries no secondary index (the caller should fall back to a
// full scan).
func (s *Snapshot) ByPrefix(field, prefix string) (ids []string, ok bool) {
	p, ok := s.prefix[field]
	if !ok {
		return nil, false
	}
	return p.prefixMatch(prefix), true
}

func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		Data:   make(map[string]docval.Map, len(s.Data)),
		unique: make(map[string]map[string]string, len(s.unique)),
		index:  make(map[string]map[string][]string, len(s.index)),
		prefix: make(map[string]*prefixIndex, len(s.prefix)),
	}
	for id, rec := range s.Data {
		next.Data[id] = rec
	}
	for field, m := range s.unique {
		cp := make(map[string]string, len(m))
		for k, v := range m {
			cp[k] = v
		}
		next.unique[field] = cp
	}
	for field, m := range s.index {
		cp := make(map[string][]string, len(m))
		for k, ids := range m {
			cp[k] = append([]string(nil), ids...)
		}
		next.index[field] = cp
	}
	for field, p := range s.prefix {
		next.prefix[field] = p.clone()
	}
	return next
}

// Store holds one collection's atomically swappable Snapshot plus the
// field configuration used to maintain its indexes.
type Store struct {
	mu            sync.Mutex // serializes writers and guards snap
	snap          *Snapshot
	uniqueFields  []string
	indexedFields []string
	// deletedAtField, if set, scopes unique-constraint enforcement to
	// non-deleted entities (spec §3 invariant 2): a soft-deleted
	// record's unique values are not claimed in the unique index, so a
	// later insert/replace may reuse them.
	deletedAtField string
}

// New builds an empty Store configured with the collection's unique and
// secondary-indexed fields (spec's uniqueFields / indexes config).
func New(uniqueFields, indexedFields []string) *Store {
	s := newSnapshot()
	for _, f := range uniqueFields {
		s.unique[f] = make(map[string]string)
	}
	for _, f := range indexedFields {
		s.index[f] = make(map[string][]string)
		s.prefix[f] = newPrefixIndex()
	}
	st := &Store{snap: s, uniqueFields: uniqueFields, indexedFields: indexedFields}
	return st
}

// SetDeletedAtField configures the field name that scopes unique
// constraints to non-deleted entities. Called once at construction,
// before any mutation, by the collection opening this store.
func (st *Store) SetDeletedAtField(field string) {
	st.deletedAtField = field
}

func (st *Store) isDeleted(rec docval.Map) bool {
	return st.deletedAtField != "" && !docval.IsNull(rec[st.deletedAtField])
}

// Snapshot returns the current snapshot. It takes the store's mutex, so
// it waits for a write in progress to finish.
func (st *Store) Snapshot() *Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snap
}

// Load bulk-populates the store from a decoded collection (called once
// at open, per spec §4.11 step 3). Records are assumed already
// schema-validated; Load fails on an internal unique collision (a
// malformed on-disk file).
func (st *Store) Load(records map[string]docval.Map) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := newSnapshot()
	for _, f := range st.uniqueFields {
		next.unique[f] = make(map[string]string)
	}
	for _, f := range st.indexedFields {
		next.index[f] = make(map[string][]string)
		next.prefix[f] = newPrefixIndex()
	}
	for id, rec := range records {
		if err := st.insertInto(next, id, rec); err != nil {
			return err
		}
	}
	st.snap = next
	return nil
}

// Insert adds a new record under id, failing with DuplicateKeyError if
// the id or any unique field already has a claim.
func (st *Store) Insert(id string, rec docval.Map) (*Snapshot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.snap.Data[id]; exists {
		return nil, &DuplicateKeyError{Fields: []string{"id"}, Value: []any{id}}
	}
	next := st.snap.clone()
	if err := st.insertInto(next, id, rec); err != nil {
		return nil, err
	}
	st.snap = next
	return next, nil
}

// insertInto adds id/rec to snap (already a private working copy),
// checking unique-field collisions and maintaining indexes. A
// soft-deleted rec neither claims a unique slot nor is blocked by one
// held by a soft-deleted owner (spec §3 invariant 2 scopes uniqueness
// to non-deleted entities).
func (st *Store) insertInto(snap *Snapshot, id string, rec docval.Map) error {
	deleted := st.isDeleted(rec)
	if !deleted {
		for _, f := range st.uniqueFields {
			key := docval.ToString(rec[f])
			if owner, taken := snap.unique[f][key]; taken {
				if ownerRec, ok := snap.Data[owner]; !ok || !st.isDeleted(ownerRec) {
					return &DuplicateKeyError{Fields: []string{f}, Value: []any{rec[f]}}
				}
			}
		}
	}
	snap.Data[id] = rec
	if !deleted {
		for _, f := range st.uniqueFields {
			snap.unique[f][docval.ToString(rec[f])] = id
		}
	}
	for _, f := range st.indexedFields {
		key := docval.ToString(rec[f])
		snap.index[f][key] = append(snap.index[f][key], id)
		if p, ok := snap.prefix[f]; ok {
			p.add(key, id)
		}
	}
	return nil
}

// Replace overwrites the record at id (id must already exist), failing
// with DuplicateKeyError if a unique field's new value collides with a
// different existing record. A record's unique-index claim is released
// when it is soft-deleted and withheld when its replacement already is
// one, scoping uniqueness to non-deleted entities (spec §3 invariant 2).
func (st *Store) Replace(id string, rec docval.Map) (*Snapshot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	old, exists := st.snap.Data[id]
	if !exists {
		return nil, fmt.Errorf("entitystore: replace of unknown id %q", id)
	}
	next := st.snap.clone()
	deleted := st.isDeleted(rec)
	if !deleted {
		for _, f := range st.uniqueFields {
			newKey := docval.ToString(rec[f])
			if owner, taken := next.unique[f][newKey]; taken && owner != id {
				if ownerRec, ok := next.Data[owner]; !ok || !st.isDeleted(ownerRec) {
					return nil, &DuplicateKeyError{Fields: []string{f}, Value: []any{rec[f]}}
				}
			}
		}
	}
	for _, f := range st.uniqueFields {
		if !st.isDeleted(old) {
			delete(next.unique[f], docval.ToString(old[f]))
		}
		if !deleted {
			next.unique[f][docval.ToString(rec[f])] = id
		}
	}
	for _, f := range st.indexedFields {
		oldKey := docval.ToString(old[f])
		removeID(next.index[f], oldKey, id)
		key := docval.ToString(rec[f])
		next.index[f][key] = append(next.index[f][key], id)
		if p, ok := next.prefix[f]; ok {
			p.remove(oldKey, id)
			p.add(key, id)
		}
	}
	next.Data[id] = rec
	st.snap = next
	return next, nil
}

// Delete removes id, returning its last value. A no-op (ok=false) if the
// id was never present.
func (st *Store) Delete(id string) (rec docval.Map, ok bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	old, exists := st.snap.Data[id]
	if !exists {
		return nil, false
	}
	next := st.snap.clone()
	delete(next.Data, id)
	for _, f := range st.uniqueFields {
		key := docval.ToString(old[f])
		if next.unique[f][key] == id {
			delete(next.unique[f], key)
		}
	}
	for _, f := range st.indexedFields {
		key := docval.ToString(old[f])
		removeID(next.index[f], key, id)
		if p, ok := next.prefix[f]; ok {
			p.remove(key, id)
		}
	}
	st.snap = next
	return old, true
}

func removeID(byValue map[string][]string, key, id string) {
	ids := byValue[key]
	for i, existing := range ids {
		if existing == id {
			byValue[key] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}
