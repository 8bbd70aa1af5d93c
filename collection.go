package proseql

import (
	"time"

	"github.com/proseql/proseql/internal/docval"
	"github.com/proseql/proseql/internal/entitystore"
	"github.com/proseql/proseql/internal/query"
	"github.com/proseql/proseql/internal/schema"
	"github.com/rs/zerolog"
)

// Collection is the per-collection handle returned by Database.Collection
// (spec §4.11 step 4): CRUD, query, aggregate, and findById.
type Collection struct {
	name          string
	config        CollectionConfig
	store         *entitystore.Store
	relationships map[string]query.Relationship
	db            *Database
	logger        zerolog.Logger
}

// Name returns the collection's configured name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) scheduleSave() {
	c.db.afterMutation(c.name)
}

// FindByID is an O(1) identity-map lookup.
func (c *Collection) FindByID(id string) (Record, error) {
	rec, ok := c.store.Snapshot().Get(id)
	if !ok {
		return nil, &NotFoundError{Collection: c.name, ID: id}
	}
	return docval.CloneMap(rec), nil
}

// FindByIDPromise is FindByID's cached accessor form.
func (c *Collection) FindByIDPromise(id string) *Promise[Record] {
	return NewPromise(func() (Record, error) { return c.FindByID(id) })
}

func (c *Collection) getByID(collection, id string) (docval.Map, bool) {
	target := c.db.Collection(collection)
	if target == nil {
		return nil, false
	}
	return target.store.Snapshot().Get(id)
}

func (c *Collection) getInverse(collection, fkField, id string) []docval.Map {
	target := c.db.Collection(collection)
	if target == nil {
		return nil
	}
	deletedAtField := ""
	if target.config.Schema != nil {
		deletedAtField = target.config.Schema.DeletedAtField
	}
	live := func(v docval.Map) bool {
		return deletedAtField == "" || docval.IsNull(v[deletedAtField])
	}

	snap := target.store.Snapshot()
	ids := snap.ByIndex(fkField, id)
	if ids == nil {
		// Fall back to a full scan when fkField isn't a declared index.
		var out []docval.Map
		for _, v := range snap.Values() {
			if docval.Equal(v[fkField], id) && live(v) {
				out = append(out, v)
			}
		}
		return out
	}
	out := make([]docval.Map, 0, len(ids))
	for _, refID := range ids {
		if v, ok := snap.Get(refID); ok && live(v) {
			out = append(out, v)
		}
	}
	return out
}

// pipeline builds the query pipeline against snap, the same snapshot
// the caller is about to read Values() from, so the prefix-index
// candidates it narrows against can never drift from the source rows
// being filtered.
func (c *Collection) pipeline(snap *entitystore.Snapshot) *query.Pipeline {
	deletedAtField := ""
	if c.config.Schema != nil {
		deletedAtField = c.config.Schema.DeletedAtField
	}
	return &query.Pipeline{
		Relationships:       c.relationships,
		SearchIndex:         c.db.searchIndex(),
		DefaultSearchFields: c.config.SearchFields,
		GetByID:             c.getByID,
		GetInverse:          c.getInverse,
		GetRelationships:    c.relationshipsFor,
		DeletedAtField:      deletedAtField,
		PrefixIDs:           snap.ByPrefix,
	}
}

// relationshipsFor resolves another collection's declared relationships
// by name, for the query pipeline's nested-populate recursion.
func (c *Collection) relationshipsFor(collection string) map[string]query.Relationship {
	target := c.db.Collection(collection)
	if target == nil {
		return nil
	}
	return target.relationships
}

// Query runs the filter/populate/sort/paginate/project pipeline (spec
// §4.6) against the collection's current snapshot.
func (c *Collection) Query(opts query.Options) (*query.Result, error) {
	snap := c.store.Snapshot()
	return c.pipeline(snap).Run(snap.Values(), opts)
}

// QueryPromise returns a cached accessor over Query(opts): the pipeline
// runs on the first RunPromise call and every later call on the same
// Promise returns that run's result (spec §4.11's runPromise contract).
func (c *Collection) QueryPromise(opts query.Options) *Promise[*query.Result] {
	return NewPromise(func() (*query.Result, error) { return c.Query(opts) })
}

// Create assigns an id if omitted, stamps createdAt/updatedAt if
// declared, validates, and inserts (spec §4.7).
func (c *Collection) Create(input Record) (Record, error) {
	rec := docval.CloneMap(input)
	id, _ := rec["id"].(string)
	if id == "" {
		id = newID()
		rec["id"] = id
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if c.config.Schema != nil {
		if f := c.config.Schema.CreatedAtField; f != "" {
			rec[f] = now
		}
		if f := c.config.Schema.UpdatedAtField; f != "" {
			rec[f] = now
		}
	}

	if err := c.validate(&rec); err != nil {
		return nil, err
	}
	if err := c.checkForeignKeys(rec); err != nil {
		return nil, err
	}

	if _, err := c.store.Insert(id, rec); err != nil {
		return nil, toDuplicateKeyError(c.name, err)
	}
	c.scheduleSave()
	return docval.CloneMap(rec), nil
}

// CreatePromise is Create's cached accessor form.
func (c *Collection) CreatePromise(input Record) *Promise[Record] {
	return NewPromise(func() (Record, error) { return c.Create(input) })
}

// CreateManyOptions configures createMany (spec §4.7).
type CreateManyOptions struct {
	SkipDuplicates bool
}

// CreateManyResult is createMany's outcome.
type CreateManyResult struct {
	Created []Record
	Count   int
}

// CreateMany is all-or-nothing unless opts.SkipDuplicates drops
// colliding inputs and continues.
func (c *Collection) CreateMany(inputs []Record, opts CreateManyOptions) (CreateManyResult, error) {
	var created []Record
	for _, input := range inputs {
		rec, err := c.Create(input)
		if err != nil {
			if opts.SkipDuplicates {
				if _, ok := err.(*DuplicateKeyError); ok {
					continue
				}
			}
			for _, done := range created {
				doneID, _ := done["id"].(string)
				c.store.Delete(doneID)
			}
			return CreateManyResult{}, err
		}
		created = append(created, rec)
	}
	return CreateManyResult{Created: created, Count: len(created)}, nil
}

// Update applies a field->value (or operator-form) update mapping to
// id, failing with NotFoundError if id is unknown (spec §4.7).
func (c *Collection) Update(id string, updates Record) (Record, error) {
	snap := c.store.Snapshot()
	existing, ok := snap.Get(id)
	if !ok {
		return nil, &NotFoundError{Collection: c.name, ID: id}
	}

	next, err := applyUpdates(existing, updates)
	if err != nil {
		return nil, err
	}
	if c.config.Schema != nil {
		if f := c.config.Schema.UpdatedAtField; f != "" {
			next[f] = time.Now().UTC().Format(time.RFC3339Nano)
		}
	}

	if err := c.validate(&next); err != nil {
		return nil, err
	}
	if err := c.checkForeignKeys(next); err != nil {
		return nil, err
	}

	if _, err := c.store.Replace(id, next); err != nil {
		return nil, toDuplicateKeyError(c.name, err)
	}
	c.scheduleSave()
	return docval.CloneMap(next), nil
}

// UpdatePromise is Update's cached accessor form.
func (c *Collection) UpdatePromise(id string, updates Record) *Promise[Record] {
	return NewPromise(func() (Record, error) { return c.Update(id, updates) })
}

// UpdateMany applies updates to every record matching predicate,
// atomically: either every match is updated or none are.
func (c *Collection) UpdateMany(predicate map[string]any, updates Record) (int, error) {
	snap := c.store.Snapshot()
	expr, err := query.Compile(predicate)
	if err != nil {
		return 0, err
	}

	var ids []string
	nexts := make(map[string]docval.Map)
	for _, id := range snap.IDs() {
		rec, _ := snap.Get(id)
		if !query.Eval(expr, rec, c.db.searchIndex(), c.config.SearchFields) {
			continue
		}
		next, err := applyUpdates(rec, updates)
		if err != nil {
			return 0, err
		}
		if c.config.Schema != nil {
			if f := c.config.Schema.UpdatedAtField; f != "" {
				next[f] = time.Now().UTC().Format(time.RFC3339Nano)
			}
		}
		if err := c.validate(&next); err != nil {
			return 0, err
		}
		ids = append(ids, id)
		nexts[id] = next
	}

	for i, id := range ids {
		if _, err := c.store.Replace(id, nexts[id]); err != nil {
			for j := i - 1; j >= 0; j-- {
				prev, _ := snap.Get(ids[j])
				_, _ = c.store.Replace(ids[j], prev)
			}
			return 0, toDuplicateKeyError(c.name, err)
		}
	}
	if len(ids) > 0 {
		c.scheduleSave()
	}
	return len(ids), nil
}

// DeleteOptions configures delete (spec §4.7).
type DeleteOptions struct {
	Soft bool
}

// CascadeCount reports how many entities of one collection a delete
// cascaded into, and their ids.
type CascadeCount struct {
	Count int
	IDs   []string
}

// DeleteResult is Delete's outcome: for a hard delete that triggered a
// cascade, Cascaded carries every other collection's deletions keyed by
// collection name (spec §8 S2). A soft delete or a cascade-free hard
// delete returns a zero-value DeleteResult.
type DeleteResult struct {
	Cascaded map[string]CascadeCount
}

// Delete removes id, honoring cascade rules declared by inbound ref
// relationships from other collections, unless opts.Soft is set and the
// schema declares a deletedAt field.
func (c *Collection) Delete(id string, opts DeleteOptions) (DeleteResult, error) {
	if opts.Soft && c.config.Schema != nil && c.config.Schema.HasSoftDelete() {
		rec, ok := c.store.Snapshot().Get(id)
		if !ok {
			return DeleteResult{}, &NotFoundError{Collection: c.name, ID: id}
		}
		next := docval.CloneMap(rec)
		next[c.config.Schema.DeletedAtField] = time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := c.store.Replace(id, next); err != nil {
			return DeleteResult{}, toDuplicateKeyError(c.name, err)
		}
		c.scheduleSave()
		return DeleteResult{}, nil
	}

	if _, ok := c.store.Snapshot().Get(id); !ok {
		return DeleteResult{}, &NotFoundError{Collection: c.name, ID: id}
	}
	plan, err := c.db.planCascade(c.name, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := c.db.applyCascade(plan); err != nil {
		return DeleteResult{}, err
	}
	return deleteResultFromPlan(plan, c.name, id), nil
}

// DeletePromise is Delete's cached accessor form.
func (c *Collection) DeletePromise(id string, opts DeleteOptions) *Promise[DeleteResult] {
	return NewPromise(func() (DeleteResult, error) { return c.Delete(id, opts) })
}

// DeleteMany applies the same cascade rules as Delete to every record
// matching predicate; opts.Limit, if positive, caps the number of
// top-level deletions attempted.
type DeleteManyOptions struct {
	Limit int
}

func (c *Collection) DeleteMany(predicate map[string]any, opts DeleteManyOptions) (int, error) {
	snap := c.store.Snapshot()
	expr, err := query.Compile(predicate)
	if err != nil {
		return 0, err
	}
	var ids []string
	for _, id := range snap.IDs() {
		rec, _ := snap.Get(id)
		if query.Eval(expr, rec, c.db.searchIndex(), c.config.SearchFields) {
			ids = append(ids, id)
		}
		if opts.Limit > 0 && len(ids) >= opts.Limit {
			break
		}
	}

	count := 0
	for _, id := range ids {
		if _, err := c.Delete(id, DeleteOptions{}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// UpsertResult reports whether Upsert created or updated the entity.
type UpsertResult struct {
	Operation string // "created" or "updated"
	Entity    Record
}

// Upsert is keyed by id: it creates if absent, updates otherwise.
func (c *Collection) Upsert(input Record) (UpsertResult, error) {
	id, _ := input["id"].(string)
	if id != "" {
		if _, ok := c.store.Snapshot().Get(id); ok {
			rec, err := c.Update(id, input)
			if err != nil {
				return UpsertResult{}, err
			}
			return UpsertResult{Operation: "updated", Entity: rec}, nil
		}
	}
	rec, err := c.Create(input)
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Operation: "created", Entity: rec}, nil
}

// UpsertManyResult is upsertMany's outcome.
type UpsertManyResult struct {
	Created []Record
	Updated []Record
}

// UpsertMany applies Upsert to every input in order.
func (c *Collection) UpsertMany(inputs []Record) (UpsertManyResult, error) {
	var out UpsertManyResult
	for _, input := range inputs {
		res, err := c.Upsert(input)
		if err != nil {
			return UpsertManyResult{}, err
		}
		if res.Operation == "created" {
			out.Created = append(out.Created, res.Entity)
		} else {
			out.Updated = append(out.Updated, res.Entity)
		}
	}
	return out, nil
}

func (c *Collection) validate(rec *docval.Map) error {
	if c.config.Schema == nil {
		return nil
	}
	normalized, issues := schema.Validate(c.config.Schema, *rec)
	if len(issues) > 0 {
		return toValidationError(issues)
	}
	*rec = normalized
	return nil
}

// checkForeignKeys ensures every declared ref relationship's foreign key
// resolves to an existing record in its target collection, per spec
// §4.7's create/update contract ("every ref foreign key in input must
// resolve").
func (c *Collection) checkForeignKeys(rec docval.Map) error {
	for _, rel := range c.relationships {
		if rel.Kind != query.RelRef {
			continue
		}
		fkVal := rec[rel.ForeignKey]
		if docval.IsNull(fkVal) {
			continue
		}
		id := docval.ToString(fkVal)
		if _, ok := c.getByID(rel.Collection, id); !ok {
			return &ForeignKeyError{Collection: c.name, Relation: rel.Name, ID: id}
		}
	}
	return nil
}

// applyUpdates merges an update mapping into existing, honoring the
// $inc/$mul (numeric), $push/$pull (list), and $unset operator forms
// alongside plain field replacement (spec §4.7).
func applyUpdates(existing docval.Map, updates docval.Map) (docval.Map, error) {
	next := docval.CloneMap(existing)
	for key, value := range updates {
		switch key {
		case "$inc":
			if err := applyNumericOp(next, value, func(cur, delta float64) float64 { return cur + delta }); err != nil {
				return nil, err
			}
		case "$mul":
			if err := applyNumericOp(next, value, func(cur, factor float64) float64 { return cur * factor }); err != nil {
				return nil, err
			}
		case "$push":
			ops, ok := value.(docval.Map)
			if !ok {
				return nil, &ValidationError{Issues: []schema.Issue{{Message: "$push requires an object of field->value"}}}
			}
			for field, v := range ops {
				list, _ := next[field].([]any)
				next[field] = append(append([]any(nil), list...), v)
			}
		case "$pull":
			ops, ok := value.(docval.Map)
			if !ok {
				return nil, &ValidationError{Issues: []schema.Issue{{Message: "$pull requires an object of field->value"}}}
			}
			for field, v := range ops {
				list, _ := next[field].([]any)
				filtered := make([]any, 0, len(list))
				for _, el := range list {
					if !docval.Equal(el, v) {
						filtered = append(filtered, el)
					}
				}
				next[field] = filtered
			}
		case "$unset":
			fields, ok := value.([]any)
			if !ok {
				return nil, &ValidationError{Issues: []schema.Issue{{Message: "$unset requires a list of field names"}}}
			}
			for _, f := range fields {
				if name, ok := f.(string); ok {
					delete(next, name)
				}
			}
		default:
			next[key] = value
		}
	}
	return next, nil
}

func applyNumericOp(rec docval.Map, value any, combine func(cur, operand float64) float64) error {
	ops, ok := value.(docval.Map)
	if !ok {
		return &ValidationError{Issues: []schema.Issue{{Message: "$inc/$mul requires an object of field->amount"}}}
	}
	for field, v := range ops {
		operand, ok := docval.ToFloat(v)
		if !ok {
			return &ValidationError{Issues: []schema.Issue{{Field: field, Message: "$inc/$mul operand must be a number"}}}
		}
		cur, _ := docval.ToFloat(rec[field])
		rec[field] = combine(cur, operand)
	}
	return nil
}
