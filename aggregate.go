package proseql

import (
	"github.com/proseql/proseql/internal/aggregate"
	"github.com/proseql/proseql/internal/docval"
	"github.com/proseql/proseql/internal/query"
)

// AggregateConfig is an aggregate request (spec §4.8): a where filter
// plus which reducers to compute, optionally partitioned by groupBy.
type AggregateConfig struct {
	Where   map[string]any
	Count   bool
	Sum     []string
	Avg     []string
	Min     []string
	Max     []string
	GroupBy []string

	// IncludeDeleted opts into counting soft-deleted entities; by
	// default they are excluded, matching Query's default (spec §3).
	IncludeDeleted bool
}

// AggregateResult is the ungrouped outcome.
type AggregateResult = aggregate.Result

// AggregateGroup is one bucket of a grouped outcome.
type AggregateGroup = aggregate.Group

// Aggregate reads the collection's current snapshot, applies cfg.Where
// through the filter stage, and computes count/sum/avg/min/max, grouped
// by cfg.GroupBy when non-empty.
func (c *Collection) Aggregate(cfg AggregateConfig) (*AggregateResult, []AggregateGroup, error) {
	expr, err := query.Compile(cfg.Where)
	if err != nil {
		return nil, nil, err
	}

	deletedAtField := ""
	if c.config.Schema != nil {
		deletedAtField = c.config.Schema.DeletedAtField
	}

	snap := c.store.Snapshot()
	matched := make([]map[string]any, 0, snap.Len())
	for _, rec := range snap.Values() {
		if deletedAtField != "" && !cfg.IncludeDeleted && !docval.IsNull(rec[deletedAtField]) {
			continue
		}
		if query.Eval(expr, rec, c.db.searchIndex(), c.config.SearchFields) {
			matched = append(matched, rec)
		}
	}

	aggCfg := aggregate.Config{
		Count: cfg.Count, Sum: cfg.Sum, Avg: cfg.Avg, Min: cfg.Min, Max: cfg.Max, GroupBy: cfg.GroupBy,
	}

	if len(cfg.GroupBy) > 0 {
		return nil, aggregate.RunGrouped(matched, aggCfg), nil
	}
	result := aggregate.Run(matched, aggCfg)
	return &result, nil, nil
}

// AggregateOutcome bundles Aggregate's two result shapes for the
// promise accessor, which can only carry a single cached value.
type AggregateOutcome struct {
	Result *AggregateResult
	Groups []AggregateGroup
}

// AggregatePromise is Aggregate's cached accessor form.
func (c *Collection) AggregatePromise(cfg AggregateConfig) *Promise[AggregateOutcome] {
	return NewPromise(func() (AggregateOutcome, error) {
		result, groups, err := c.Aggregate(cfg)
		return AggregateOutcome{Result: result, Groups: groups}, err
	})
}
