// Package migrate validates a collection's declared migration chain and
// applies it to raw decoded maps on load, per spec §4.9/§4.3.
package migrate

import (
	"fmt"
	"sort"

	"github.com/proseql/proseql/internal/docval"
)

// Reason is the stable MigrationError tag from spec §7.
type Reason string

const (
	ReasonVersionAhead    Reason = "version-ahead"
	ReasonGapInChain      Reason = "gap-in-chain"
	ReasonMissingStart    Reason = "missing-start"
	ReasonVersionMismatch Reason = "version-mismatch"
	ReasonDuplicateFrom   Reason = "duplicate-from"
	ReasonInvalidIncr     Reason = "invalid-increment"
	ReasonEmptyRegistry   Reason = "empty-registry"
	ReasonTransformFailed Reason = "transform-failed"
)

// Error is the MigrationError from spec §7.
type Error struct {
	Reason     Reason
	Collection string
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("proseql: migration error in %q: %s", e.Collection, e.Reason)
	}
	return fmt.Sprintf("proseql: migration error in %q: %s: %s", e.Collection, e.Reason, e.Detail)
}

// Transform lifts a raw decoded map from one schema version to the next.
// It operates on the pre-validation mapping so field renames and
// structural changes are expressible.
type Transform func(raw docval.Map) (docval.Map, error)

// Migration is one step of a collection's migration chain.
type Migration struct {
	From        int
	To          int
	Description string
	Transform   Transform
}

// Registry is a collection's full declared version and migration chain.
type Registry struct {
	Collection string
	Version    int
	Migrations []Migration
}

// Validate checks the registry for internal consistency, per spec §4.9
// rules 1-6. It fails fast with the first violation found.
func (r Registry) Validate() error {
	if r.Version == 0 {
		if len(r.Migrations) != 0 {
			return &Error{Reason: ReasonEmptyRegistry, Collection: r.Collection,
				Detail: "version 0 must declare no migrations"}
		}
		return nil
	}
	if len(r.Migrations) == 0 {
		return &Error{Reason: ReasonEmptyRegistry, Collection: r.Collection,
			Detail: "version > 0 requires a non-empty migration chain"}
	}

	seen := make(map[int]Migration, len(r.Migrations))
	for _, m := range r.Migrations {
		if m.To != m.From+1 || m.From < 0 {
			return &Error{Reason: ReasonInvalidIncr, Collection: r.Collection,
				Detail: fmt.Sprintf("migration from=%d to=%d is not a single-step increment", m.From, m.To)}
		}
		if _, dup := seen[m.From]; dup {
			return &Error{Reason: ReasonDuplicateFrom, Collection: r.Collection,
				Detail: fmt.Sprintf("duplicate migration from=%d", m.From)}
		}
		seen[m.From] = m
	}

	sorted := make([]Migration, len(r.Migrations))
	copy(sorted, r.Migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })

	for from := 0; from < r.Version; from++ {
		if _, ok := seen[from]; !ok {
			return &Error{Reason: ReasonGapInChain, Collection: r.Collection,
				Detail: fmt.Sprintf("no migration covers from=%d", from)}
		}
	}
	if sorted[0].From != 0 {
		return &Error{Reason: ReasonMissingStart, Collection: r.Collection,
			Detail: "migration chain does not start at 0"}
	}
	if last := sorted[len(sorted)-1]; last.To != r.Version {
		return &Error{Reason: ReasonVersionMismatch, Collection: r.Collection,
			Detail: fmt.Sprintf("chain ends at %d, declared version is %d", last.To, r.Version)}
	}
	return nil
}

// Apply runs the migration chain from fileVersion up to r.Version,
// feeding each transform the output of the previous one.
func (r Registry) Apply(raw docval.Map, fileVersion int) (docval.Map, error) {
	if fileVersion > r.Version {
		return nil, &Error{Reason: ReasonVersionAhead, Collection: r.Collection,
			Detail: fmt.Sprintf("file version %d exceeds declared version %d", fileVersion, r.Version)}
	}
	if fileVersion == r.Version {
		return raw, nil
	}

	byFrom := make(map[int]Migration, len(r.Migrations))
	for _, m := range r.Migrations {
		byFrom[m.From] = m
	}

	cur := raw
	for v := fileVersion; v < r.Version; v++ {
		m, ok := byFrom[v]
		if !ok {
			return nil, &Error{Reason: ReasonGapInChain, Collection: r.Collection,
				Detail: fmt.Sprintf("no migration covers from=%d", v)}
		}
		next, err := m.Transform(cur)
		if err != nil {
			return nil, &Error{Reason: ReasonTransformFailed, Collection: r.Collection,
				Detail: fmt.Sprintf("migration %d->%d: %v", m.From, m.To, err)}
		}
		cur = next
	}
	return cur, nil
}

// PendingRange reports [fileVersion, Version), the versions a load from
// fileVersion would migrate through, without applying anything.
func (r Registry) PendingRange(fileVersion int) (from, to int) {
	return fileVersion, r.Version
}
