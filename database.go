package proseql

import (
	"time"

	"github.com/google/uuid"
	"github.com/proseql/proseql/internal/applog"
	"github.com/proseql/proseql/internal/coalesce"
	"github.com/proseql/proseql/internal/codec"
	"github.com/proseql/proseql/internal/docval"
	"github.com/proseql/proseql/internal/entitystore"
	"github.com/proseql/proseql/internal/migrate"
	"github.com/proseql/proseql/internal/persist"
	"github.com/proseql/proseql/internal/query"
	"github.com/proseql/proseql/internal/search"
	"github.com/proseql/proseql/internal/storage"
	"github.com/rs/zerolog"
)

// Database is the facade over a set of collections (spec §4.11). The
// zero value is never useful; build one with Open or OpenPersistent.
type Database struct {
	cfg         DatabaseConfig
	collections map[string]*Collection
	persist     *persist.Pipeline // nil for an in-memory, non-persistent database
	coalescer   *coalesce.Coalescer
	logger      zerolog.Logger
	search      *search.Index
}

// searchIndex lazily builds the shared $search tokenizer/matcher; every
// collection's pipeline shares one instance since tokenization carries
// no per-collection state.
func (db *Database) searchIndex() *search.Index {
	if db.search == nil {
		db.search = search.New()
	}
	return db.search
}

// Open builds a purely in-memory database: no storage adapter, no
// coalescer, no file I/O. Useful for tests and ephemeral scratch state.
func Open(cfg DatabaseConfig) (*Database, error) {
	return open(cfg, nil)
}

// OpenPersistent builds a database backed by adapter, reading each
// collection's file (or starting empty) and wiring the debounced write
// coalescer as the afterMutation hook, per spec §4.11 steps 2 and 5.
func OpenPersistent(cfg DatabaseConfig, adapter storage.Adapter) (*Database, error) {
	return open(cfg, adapter)
}

func open(cfg DatabaseConfig, adapter storage.Adapter) (*Database, error) {
	logger := applog.WithComponent("proseql")

	db := &Database{cfg: cfg, collections: make(map[string]*Collection, len(cfg.Collections)), logger: logger}

	if adapter != nil {
		db.persist = &persist.Pipeline{Storage: adapter, Codecs: codec.Default(logger)}
	}

	// Step 1: validate every migration registry before anything opens.
	for name, cc := range cfg.Collections {
		registry := migrate.Registry{Collection: name, Version: cc.Version, Migrations: cc.Migrations}
		if err := registry.Validate(); err != nil {
			return nil, err
		}
	}

	for name, cc := range cfg.Collections {
		col, err := db.openCollection(name, cc)
		if err != nil {
			return nil, err
		}
		db.collections[name] = col
	}

	if db.persist != nil {
		debounce := cfg.WriteDebounce
		if debounce <= 0 {
			debounce = 100 * time.Millisecond
		}
		db.coalescer = coalesce.New(debounce, db.saveCollection)
	}

	return db, nil
}

func (db *Database) openCollection(name string, cc CollectionConfig) (*Collection, error) {
	relationships := make(map[string]query.Relationship, len(cc.Relationships))
	for _, r := range cc.Relationships {
		relationships[r.Name] = query.Relationship{
			Name: r.Name, Kind: r.Kind, Collection: r.Collection,
			ForeignKey: r.ForeignKey, Optional: r.Optional, OnDelete: r.OnDelete,
		}
	}

	store := entitystore.New(cc.UniqueFields, cc.Indexes)
	if cc.Schema != nil && cc.Schema.DeletedAtField != "" {
		store.SetDeletedAtField(cc.Schema.DeletedAtField)
	}

	col := &Collection{
		name:          name,
		config:        cc,
		store:         store,
		relationships: relationships,
		db:            db,
		logger:        applog.WithCollection(name),
	}

	if db.persist != nil && cc.File != "" {
		spec := col.persistSpec()
		records, err := db.persist.Load(spec)
		if err != nil {
			return nil, err
		}
		if err := store.Load(records); err != nil {
			return nil, err
		}
	}

	return col, nil
}

// Collection returns the typed handle for name, or nil if undeclared.
func (db *Database) Collection(name string) *Collection {
	return db.collections[name]
}

// Flush executes every pending coalesced save immediately and returns
// when all complete, propagating the first error encountered.
func (db *Database) Flush() error {
	if db.coalescer == nil {
		return nil
	}
	return db.coalescer.Flush()
}

// PendingCount reports the number of collections with a pending
// debounced save.
func (db *Database) PendingCount() int {
	if db.coalescer == nil {
		return 0
	}
	return db.coalescer.PendingCount()
}

// Shutdown flushes pending saves (best-effort) and cancels timers, the
// scope finalizer from spec §4.4/§5.
func (db *Database) Shutdown() {
	if db.coalescer != nil {
		db.coalescer.Shutdown()
	}
}

func (db *Database) afterMutation(collection string) {
	if db.coalescer != nil {
		db.coalescer.Schedule(collection)
	}
}

func (db *Database) saveCollection(name string) error {
	col, ok := db.collections[name]
	if !ok {
		return nil
	}
	return col.save()
}

// cascadeDeletion is one (collection, id) pair the plan will remove.
type cascadeDeletion struct {
	collection string
	id         string
}

// cascadeSetNull is one (collection, id, field) whose foreign key the
// plan will clear rather than deleting the owning record.
type cascadeSetNull struct {
	collection string
	id         string
	field      string
}

// cascadePlan is the computed effect of deleting one root entity,
// walked out across every other collection's ref relationships.
type cascadePlan struct {
	deletions []cascadeDeletion
	setNulls  []cascadeSetNull
}

// planCascade walks the delete's effect across every collection with a
// ref relationship pointing at collection, applying each relationship's
// declared OnDelete policy (restrict/cascade/setNull), and visiting each
// (collection, id) pair at most once so cyclic references terminate
// (spec §4.7's cascade-delete fixpoint).
func (db *Database) planCascade(collection, id string) (*cascadePlan, error) {
	plan := &cascadePlan{}
	visited := make(map[string]bool)

	var visit func(coll, id string) error
	visit = func(coll, id string) error {
		key := coll + "\x00" + id
		if visited[key] {
			return nil
		}
		visited[key] = true

		target := db.Collection(coll)
		if target == nil {
			return nil
		}
		if _, ok := target.store.Snapshot().Get(id); !ok {
			return nil
		}

		for _, other := range db.collections {
			for _, rel := range other.relationships {
				if rel.Kind != query.RelRef || rel.Collection != coll {
					continue
				}
				for _, rec := range other.store.Snapshot().Values() {
					if !docval.Equal(rec[rel.ForeignKey], id) {
						continue
					}
					refID, _ := rec["id"].(string)
					switch rel.OnDelete {
					case query.OnDeleteCascade:
						if err := visit(other.name, refID); err != nil {
							return err
						}
					case query.OnDeleteSetNull:
						plan.setNulls = append(plan.setNulls, cascadeSetNull{
							collection: other.name, id: refID, field: rel.ForeignKey,
						})
					default: // "" and OnDeleteRestrict both restrict
						return &ForeignKeyError{Collection: other.name, Relation: rel.Name, ID: id}
					}
				}
			}
		}

		plan.deletions = append(plan.deletions, cascadeDeletion{collection: coll, id: id})
		return nil
	}

	if err := visit(collection, id); err != nil {
		return nil, err
	}
	return plan, nil
}

// applyCascade executes a computed plan: clears foreign keys first,
// then removes every planned entity.
func (db *Database) applyCascade(plan *cascadePlan) error {
	touched := make(map[string]bool)

	for _, sn := range plan.setNulls {
		col := db.Collection(sn.collection)
		if col == nil {
			continue
		}
		rec, ok := col.store.Snapshot().Get(sn.id)
		if !ok {
			continue
		}
		next := docval.CloneMap(rec)
		next[sn.field] = nil
		if _, err := col.store.Replace(sn.id, next); err != nil {
			return toDuplicateKeyError(col.name, err)
		}
		touched[col.name] = true
	}

	for _, d := range plan.deletions {
		col := db.Collection(d.collection)
		if col == nil {
			continue
		}
		if _, ok := col.store.Delete(d.id); ok {
			touched[col.name] = true
		}
	}

	for name := range touched {
		db.afterMutation(name)
	}
	return nil
}

// deleteResultFromPlan converts a cascade plan into the public
// DeleteResult, grouping every deletion other than the root entity
// itself by collection (spec §8 S2's cascaded.<collection> shape).
func deleteResultFromPlan(plan *cascadePlan, rootCollection, rootID string) DeleteResult {
	cascaded := make(map[string]CascadeCount)
	for _, d := range plan.deletions {
		if d.collection == rootCollection && d.id == rootID {
			continue
		}
		cc := cascaded[d.collection]
		cc.Count++
		cc.IDs = append(cc.IDs, d.id)
		cascaded[d.collection] = cc
	}
	if len(cascaded) == 0 {
		return DeleteResult{}
	}
	return DeleteResult{Cascaded: cascaded}
}

func (c *Collection) save() error {
	if c.db.persist == nil || c.config.File == "" {
		return nil
	}
	snap := c.store.Snapshot()
	records := make(map[string]docval.Map, snap.Len())
	for _, id := range snap.IDs() {
		rec, _ := snap.Get(id)
		records[id] = rec
	}
	return c.db.persist.Save(c.persistSpec(), records)
}

func (c *Collection) persistSpec() persist.Spec {
	spec := persist.Spec{
		Collection: c.name,
		Path:       c.config.File,
		Format:     c.config.Format,
		Version:    c.config.Version,
		Migrations: migrate.Registry{Collection: c.name, Version: c.config.Version, Migrations: c.config.Migrations},
		Schema:     c.config.Schema,
	}
	if spec.Format == "prose" || hasExt(spec.Path, "prose") {
		if pc, err := codec.NewProseCodec(c.config.ProseHeadline, c.config.ProseOverflow...); err == nil {
			spec.ProseCodec = pc
		}
	}
	return spec
}

func hasExt(path, ext string) bool {
	n := len(path)
	e := len(ext)
	return n > e+1 && path[n-e-1] == '.' && path[n-e:] == ext
}

// newID generates a collision-resistant unique string for an
// omitted-id create. UUIDv7 embeds a millisecond timestamp prefix, so
// generated ids also sort roughly in creation order.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
