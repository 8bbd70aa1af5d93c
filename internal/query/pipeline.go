package query

import (
	"github.com/proseql/proseql/internal/docval"
	"github.com/proseql/proseql/internal/search"
)

// CursorOption configures cursor pagination (mutually exclusive with
// Offset/Limit).
type CursorOption struct {
	Key      string
	After    string
	PageSize int
}

// Options is a compiled query options object (spec's `{ where?,
// populate?, sort?, select?, limit?, offset?, cursor? }`).
type Options struct {
	Where    map[string]any
	Populate map[string]*PopulateOption
	Sort     []SortKey
	Select   *SelectSpec

	HasOffset bool
	Offset    int
	HasLimit  bool
	Limit     int

	Cursor *CursorOption

	// IncludeDeleted opts into seeing soft-deleted entities (those
	// whose DeletedAtField is non-null). Default queries exclude them
	// (spec §3: "filtered from default query results").
	IncludeDeleted bool
}

// Result is the pipeline's output: a flat item list, or a cursor page
// when Options.Cursor was set.
type Result struct {
	Items []docval.Map
	Page  *Page
}

// Pipeline runs the query stages for one collection against a snapshot
// of its own and related collections' current state.
type Pipeline struct {
	Relationships       map[string]Relationship
	SearchIndex         *search.Index
	DefaultSearchFields []string
	GetByID             GetByID
	GetInverse          GetInverse
	// GetRelationships resolves another collection's declared
	// relationships, used to recurse into a nested populate's own
	// populate option.
	GetRelationships func(collection string) map[string]Relationship

	// DeletedAtField names the collection's soft-delete field, if its
	// schema declares one; empty means the collection has no soft
	// delete and every record is live.
	DeletedAtField string

	// PrefixIDs resolves every id whose named field begins with a
	// prefix via the collection's trie-backed secondary index; ok is
	// false when the field carries no such index, in which case the
	// filter stage falls back to a full scan. Used to accelerate a
	// top-level $startsWith clause (spec §4.6(b)).
	PrefixIDs func(field, prefix string) (ids []string, ok bool)
}

// Run executes the fixed-order pipeline from spec §4.6: filter,
// populate, sort, pagination (offset/limit or cursor), then projection.
func (p *Pipeline) Run(source []docval.Map, opts Options) (*Result, error) {
	if opts.HasOffset || opts.HasLimit {
		if opts.Cursor != nil {
			return nil, &ValidationError{Issues: []string{"offset/limit and cursor are mutually exclusive"}}
		}
	}

	expr, err := Compile(opts.Where)
	if err != nil {
		return nil, err
	}

	// A bare top-level `{field: {$startsWith: prefix}}` clause narrows
	// the scan to the field's trie-backed prefix index, when one is
	// declared; Eval below still re-checks every candidate, so an
	// unindexed or mismatched field simply falls back to the full scan
	// (source is left untouched whenever PrefixIDs reports !ok).
	scan := source
	if p.PrefixIDs != nil {
		if cmp, ok := expr.(Cmp); ok && cmp.Op == "$startsWith" {
			if prefix, ok := cmp.Value.(string); ok {
				if ids, ok := p.PrefixIDs(cmp.Field, prefix); ok {
					wanted := make(map[string]bool, len(ids))
					for _, id := range ids {
						wanted[id] = true
					}
					narrowed := make([]docval.Map, 0, len(ids))
					for _, rec := range source {
						if id, _ := rec["id"].(string); wanted[id] {
							narrowed = append(narrowed, rec)
						}
					}
					scan = narrowed
				}
			}
		}
	}

	filtered := make([]docval.Map, 0, len(scan))
	for _, rec := range scan {
		if p.DeletedAtField != "" && !opts.IncludeDeleted && !docval.IsNull(rec[p.DeletedAtField]) {
			continue
		}
		if Eval(expr, rec, p.SearchIndex, p.DefaultSearchFields) {
			filtered = append(filtered, docval.CloneMap(rec))
		}
	}

	effectivePopulate := make(map[string]*PopulateOption, len(opts.Populate))
	for name, opt := range opts.Populate {
		effectivePopulate[name] = opt
	}
	if opts.Select != nil {
		for name, opt := range opts.Select.Populate {
			if _, exists := effectivePopulate[name]; !exists {
				effectivePopulate[name] = opt
			}
		}
	}
	for name, opt := range effectivePopulate {
		rel, ok := p.Relationships[name]
		if !ok {
			return nil, &ValidationError{Issues: []string{"populate names unknown relationship " + name}}
		}
		if err := Populate(filtered, name, rel, opt, p.GetByID, p.GetInverse, p.GetRelationships); err != nil {
			return nil, err
		}
	}

	sortKeys := opts.Sort
	if opts.Cursor != nil {
		if len(sortKeys) == 0 {
			sortKeys = []SortKey{{Field: opts.Cursor.Key, Desc: false}}
		} else if sortKeys[0].Field != opts.Cursor.Key {
			return nil, &ValidationError{Issues: []string{"cursor pagination requires its sort key as the primary sort"}}
		}
	}
	Sort(filtered, sortKeys)

	result := &Result{}
	if opts.Cursor != nil {
		page, err := CursorPaginate(filtered, opts.Cursor.Key, opts.Cursor.After, opts.Cursor.PageSize)
		if err != nil {
			return nil, err
		}
		page.Items = projectAll(page.Items, opts.Select)
		result.Page = &page
		return result, nil
	}

	items, err := Paginate(filtered, opts.Offset, opts.Limit, opts.HasLimit)
	if err != nil {
		return nil, err
	}
	result.Items = projectAll(items, opts.Select)
	return result, nil
}

func projectAll(records []docval.Map, sel *SelectSpec) []docval.Map {
	if sel == nil || (len(sel.Fields) == 0 && len(sel.Populate) == 0) {
		return records
	}
	fields := sel.Fields
	if len(sel.Populate) > 0 {
		fields = append(append([]string(nil), fields...), keysOf(sel.Populate)...)
	}
	out := make([]docval.Map, len(records))
	for i, r := range records {
		out[i] = Project(r, fields)
	}
	return out
}

func keysOf(m map[string]*PopulateOption) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
