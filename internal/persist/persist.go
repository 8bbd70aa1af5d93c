// Package persist ties the codec registry, storage adapter, migration
// runner, and schema validator into the collection save/load pipeline
// (spec §4.3). It is adapted from the RWMutex-guarded, all-at-once
// Export/Import pair in GoKitt/internal/store/sqlite_store.go,
// generalized from a fixed-table SQL export to an arbitrary,
// codec-pluggable document mapping.
package persist

import (
	"fmt"

	"github.com/proseql/proseql/internal/codec"
	"github.com/proseql/proseql/internal/docval"
	"github.com/proseql/proseql/internal/migrate"
	"github.com/proseql/proseql/internal/schema"
	"github.com/proseql/proseql/internal/storage"
)

// ValidationError is the ValidationError from spec §7, raised here when
// a loaded record fails schema validation.
type ValidationError struct {
	Collection string
	ID         string
	Issues     []schema.Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("proseql: validation failed for %s/%s: %v", e.Collection, e.ID, e.Issues)
}

// Spec is everything the pipeline needs to save or load one collection.
type Spec struct {
	Collection string
	Path       string
	Format     string // extension override; empty uses Path's extension
	Version    int
	Migrations migrate.Registry
	Schema     *schema.Schema

	// ProseCodec, when non-nil, is used instead of resolving Format/Path
	// through Codecs — the prose format needs a per-collection template
	// that only collection config can supply.
	ProseCodec codec.Codec
}

// Pipeline wires the shared storage adapter and codec registry a
// database uses for every collection.
type Pipeline struct {
	Storage storage.Adapter
	Codecs  *codec.Registry
}

func (p *Pipeline) resolveCodec(spec Spec) (codec.Codec, error) {
	if spec.ProseCodec != nil {
		return spec.ProseCodec, nil
	}
	return p.Codecs.Resolve(spec.Path, spec.Format)
}

// Save snapshots records (id -> entity fields) to the backing store,
// prefixing a _version entry when the collection is versioned (spec
// §4.3 steps 1-3).
func (p *Pipeline) Save(spec Spec, records map[string]docval.Map) error {
	c, err := p.resolveCodec(spec)
	if err != nil {
		return err
	}

	mapping := make(map[string]any, len(records)+1)
	if spec.Version > 0 {
		mapping["_version"] = float64(spec.Version)
	}
	for id, rec := range records {
		mapping[id] = rec
	}

	text, err := c.Encode(mapping)
	if err != nil {
		return err
	}
	return p.Storage.Write(spec.Path, text)
}

// Load reads and decodes a collection file, runs any pending migrations,
// validates every remaining record against the schema, and returns the
// resulting id -> entity-fields mapping (spec §4.3 steps 1-5). A
// collection whose file does not yet exist loads as empty, per §4.11.
func (p *Pipeline) Load(spec Spec) (map[string]docval.Map, error) {
	exists, err := p.Storage.Exists(spec.Path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return map[string]docval.Map{}, nil
	}

	c, err := p.resolveCodec(spec)
	if err != nil {
		return nil, err
	}
	text, err := p.Storage.Read(spec.Path)
	if err != nil {
		return nil, err
	}
	decoded, err := c.Decode(text)
	if err != nil {
		return nil, err
	}
	raw, ok := docval.Normalize(decoded).(docval.Map)
	if !ok {
		return nil, fmt.Errorf("proseql: collection %q did not decode to a mapping", spec.Collection)
	}

	fileVersion := 0
	if v, ok := raw["_version"]; ok {
		if f, ok := docval.ToFloat(v); ok {
			fileVersion = int(f)
		}
		delete(raw, "_version")
	}

	// migrate.Registry.Apply is contracted to transform one entity's raw
	// map at a time (spec §4.9: "each transform operates on the raw
	// mapping" of a record, enabling field renames per entity); run the
	// chain per id rather than handing it the whole id->entity mapping.
	registry := spec.Migrations
	registry.Version = spec.Version
	out := make(map[string]docval.Map, len(raw))
	for id, v := range raw {
		entity, ok := v.(docval.Map)
		if !ok {
			return nil, &ValidationError{Collection: spec.Collection, ID: id,
				Issues: []schema.Issue{{Message: "entity value is not an object"}}}
		}
		migrated, err := registry.Apply(entity, fileVersion)
		if err != nil {
			return nil, err
		}
		if spec.Schema != nil {
			normalized, issues := schema.Validate(spec.Schema, migrated)
			if len(issues) > 0 {
				return nil, &ValidationError{Collection: spec.Collection, ID: id, Issues: issues}
			}
			migrated = normalized
		}
		out[id] = migrated
	}
	return out, nil
}
