package proseql

import (
	"time"

	"github.com/proseql/proseql/internal/migrate"
	"github.com/proseql/proseql/internal/query"
	"github.com/proseql/proseql/internal/schema"
)

// RelationshipConfig declares one relationship a collection exposes to
// the query pipeline's populate stage (spec §4.6(c)/§4.7).
type RelationshipConfig struct {
	Name       string
	Kind       query.RelationKind
	Collection string
	ForeignKey string
	Optional   bool
	OnDelete   query.OnDelete // ref relationships only; default is restrict
}

// CollectionConfig is one collection's full declared configuration
// (spec §6 "Configuration recognized options").
type CollectionConfig struct {
	Schema *schema.Schema

	// File/Format are only meaningful for the persistent variant; an
	// empty File keeps the collection in-memory only.
	File   string
	Format string // extension override; "" resolves from File's extension

	// ProseHeadline/ProseOverflow configure the prose codec when
	// Format == "prose" (or File ends in .prose); ignored otherwise.
	ProseHeadline string
	ProseOverflow []string

	Indexes       []string // secondary-indexed fields
	UniqueFields  []string
	SearchFields  []string // fields $search without an explicit fields list scans
	Version       int
	Migrations    []migrate.Migration
	AppendOnly    bool
	Relationships []RelationshipConfig
}

// DatabaseConfig maps collection name to its configuration.
type DatabaseConfig struct {
	Collections map[string]CollectionConfig

	// WriteDebounce is the coalescer's debounce interval (default 100ms).
	WriteDebounce time.Duration

	// ThrowOnError mirrors the host-language "throwOnError" toggle from
	// spec §6. It is accepted for config-shape parity and otherwise
	// unused by the core: CRUD and query methods always return a Go
	// error, whatever its value.
	ThrowOnError bool
}
