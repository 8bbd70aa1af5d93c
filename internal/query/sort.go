package query

import (
	"sort"

	"github.com/proseql/proseql/internal/docval"
)

// SortKey is one entry of the ordered `{ field: "asc"|"desc", … }` sort
// mapping, per spec §4.6(d).
type SortKey struct {
	Field string
	Desc  bool
}

// CompileSort converts the ordered sort option (represented as parallel
// field/direction slices so caller-side insertion order survives through
// a plain map) into SortKeys.
func CompileSort(fields []string, dirs []string) ([]SortKey, error) {
	keys := make([]SortKey, len(fields))
	for i, f := range fields {
		desc := false
		if i < len(dirs) {
			switch dirs[i] {
			case "desc":
				desc = true
			case "asc", "":
			default:
				return nil, &ValidationError{Issues: []string{"sort direction must be \"asc\" or \"desc\", got " + dirs[i]}}
			}
		}
		keys[i] = SortKey{Field: f, Desc: desc}
	}
	return keys, nil
}

// Sort orders records by the given keys, applied lexicographically in
// insertion order, stably.
func Sort(records []docval.Map, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, k := range keys {
			c := docval.Compare(records[i][k.Field], records[j][k.Field])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
