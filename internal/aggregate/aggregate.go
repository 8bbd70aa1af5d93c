// Package aggregate implements ungrouped and grouped count/sum/avg/min/max
// (spec §4.7/§8 property 6). It operates on the same filtered record set
// the query pipeline would produce for an equivalent where clause, so
// aggregation and querying stay consistent by construction.
package aggregate

import "github.com/proseql/proseql/internal/docval"

// Config is an aggregate request: which reducers to compute, over which
// fields, optionally grouped by a tuple of field names.
type Config struct {
	Count   bool
	Sum     []string
	Avg     []string
	Min     []string
	Max     []string
	GroupBy []string
}

// Result is the ungrouped aggregate outcome.
type Result struct {
	Count int
	Sum   map[string]float64
	Avg   map[string]float64
	Min   map[string]float64
	Max   map[string]float64
}

// Group is one bucket of a grouped aggregate outcome.
type Group struct {
	Key    []any
	Result Result
}

// Run computes an ungrouped aggregate over records.
func Run(records []docval.Map, cfg Config) Result {
	return compute(records, cfg)
}

// RunGrouped partitions records by cfg.GroupBy and computes the
// aggregate within each group, returning groups in deterministic
// (sorted-by-key-tuple) order.
func RunGrouped(records []docval.Map, cfg Config) []Group {
	buckets := make(map[string][]docval.Map)
	keys := make(map[string][]any)
	order := make([][]any, 0)

	for _, rec := range records {
		keyTuple := make([]any, len(cfg.GroupBy))
		for i, f := range cfg.GroupBy {
			keyTuple[i] = rec[f]
		}
		sk := tupleKey(keyTuple)
		if _, exists := buckets[sk]; !exists {
			order = append(order, keyTuple)
			keys[sk] = keyTuple
		}
		buckets[sk] = append(buckets[sk], rec)
	}

	idxs := docval.SortIndexesByTuple(order)
	out := make([]Group, len(order))
	for i, idx := range idxs {
		keyTuple := order[idx]
		sk := tupleKey(keyTuple)
		out[i] = Group{Key: keyTuple, Result: compute(buckets[sk], cfg)}
	}
	return out
}

func tupleKey(tuple []any) string {
	s := ""
	for _, v := range tuple {
		s += docval.ToString(v) + "\x00"
	}
	return s
}

func compute(records []docval.Map, cfg Config) Result {
	res := Result{
		Sum: make(map[string]float64),
		Avg: make(map[string]float64),
		Min: make(map[string]float64),
		Max: make(map[string]float64),
	}
	if cfg.Count {
		res.Count = len(records)
	}

	for _, field := range cfg.Sum {
		res.Sum[field] = sumField(records, field)
	}
	for _, field := range cfg.Avg {
		sum := sumField(records, field)
		n := countNumeric(records, field)
		if n > 0 {
			res.Avg[field] = sum / float64(n)
		}
	}
	for _, field := range cfg.Min {
		if v, ok := minField(records, field); ok {
			res.Min[field] = v
		}
	}
	for _, field := range cfg.Max {
		if v, ok := maxField(records, field); ok {
			res.Max[field] = v
		}
	}
	return res
}

func sumField(records []docval.Map, field string) float64 {
	var total float64
	for _, r := range records {
		if f, ok := docval.ToFloat(r[field]); ok {
			total += f
		}
	}
	return total
}

func countNumeric(records []docval.Map, field string) int {
	n := 0
	for _, r := range records {
		if _, ok := docval.ToFloat(r[field]); ok {
			n++
		}
	}
	return n
}

func minField(records []docval.Map, field string) (float64, bool) {
	first := true
	var best float64
	for _, r := range records {
		if f, ok := docval.ToFloat(r[field]); ok {
			if first || f < best {
				best, first = f, false
			}
		}
	}
	return best, !first
}

func maxField(records []docval.Map, field string) (float64, bool) {
	first := true
	var best float64
	for _, r := range records {
		if f, ok := docval.ToFloat(r[field]); ok {
			if first || f > best {
				best, first = f, false
			}
		}
	}
	return best, !first
}
