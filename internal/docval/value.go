// Package docval implements the document value grammar shared by every
// collection: null, boolean, finite number, string, ordered list, and
// string-keyed mapping. Codecs decode into this tree; the query and
// aggregation pipelines compare and sort it.
package docval

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Map is a string-keyed document node. A Record (one entity) is always a
// Map at the top level.
type Map = map[string]any

// Normalize walks a decoded tree and coerces it into the canonical shape:
// maps become Map, lists become []any, and every numeric kind becomes
// float64. Format codecs hand back assorted concrete types (int, int64,
// json.Number, map[any]any from some YAML decoders, etc); normalizing once
// on load means every later comparison is type-uniform.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Map:
		out := make(Map, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(Map, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case string, bool:
		return t
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

// CloneMap shallow-copies a record's top-level fields. Values themselves
// are treated as immutable once normalized, matching the spec's "entities
// are immutable values" rule.
func CloneMap(m Map) Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IsNull reports whether v represents the document null/absent value.
func IsNull(v any) bool {
	return v == nil
}

// Equal implements document-tree equality used by $eq/$ne and $in/$nin.
// null is equal only to null.
func Equal(a, b any) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !Equal(v, bvv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// typeRank gives every kind an ordering bucket. Compare consults it only
// for two values of different concrete types, and both of its outcomes
// there fall back to lexicographic string form (spec 4.6(d)); nulls are
// placed last by Compare's own null checks before typeRank is reached.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 4
	case bool:
		return 1
	case float64:
		return 0
	case string:
		return 2
	default:
		return 3
	}
}

// Compare implements the three-way ordering used by sort keys and group-key
// tuples: null/undefined sorts after all non-null values; same-typed
// strings compare by locale collation (approximated here with a simple
// case-sensitive byte comparison, which coincides with locale order for
// the ASCII-dominant field names this database expects); numbers and
// booleans compare by natural order; cross-type comparisons fall back to
// the values' string form.
func Compare(a, b any) int {
	if IsNull(a) && IsNull(b) {
		return 0
	}
	if IsNull(a) {
		return 1
	}
	if IsNull(b) {
		return -1
	}

	af, aIsNum := a.(float64)
	bf, bIsNum := b.(float64)
	if aIsNum && bIsNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(as, bs)
	}

	ab, aIsBool := a.(bool)
	bb, bIsBool := b.(bool)
	if aIsBool && bIsBool {
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	}

	if typeRank(a) != typeRank(b) {
		return strings.Compare(ToString(a), ToString(b))
	}
	return strings.Compare(ToString(a), ToString(b))
}

// Less reports a < b under Compare's ordering.
func Less(a, b any) bool { return Compare(a, b) < 0 }

// ToString renders any document value as text, used for cross-type
// comparisons, $search tokenization, and $contains/$startsWith/$endsWith
// on non-string fields.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = ToString(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}

// ToFloat coerces a document value to a number, reporting false for
// non-numeric values (used by aggregation, which ignores non-numeric
// field values rather than failing).
func ToFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// CompareTuples compares two group-key tuples element-wise, used for
// deterministic aggregate-by-group ordering.
func CompareTuples(a, b []any) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// SortIndexesByTuple returns a permutation of [0, len(keys)) sorted by
// CompareTuples, used by the aggregation engine to produce deterministic
// groupBy output ordering without disturbing the caller's parallel slices.
func SortIndexesByTuple(keys [][]any) []int {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return CompareTuples(keys[idx[i]], keys[idx[j]]) < 0
	})
	return idx
}
