// Package query implements the query pipeline (spec §4.6): filter
// compilation and evaluation, relationship population, sort, pagination
// (offset/limit and cursor), and projection. It is new code — the
// teacher repo has no query-language analog — written in the plain
// variant-tree style the corpus uses for other small ASTs (compare
// GoKitt/pkg/implicit-matcher's token-kind enums).
package query

import "fmt"

// Expr is the compiled form of a `where` clause: a variant tree of
// comparisons and logical combinators.
type Expr interface{ isExpr() }

// Cmp is a single field comparison.
type Cmp struct {
	Field string
	Op    string // $eq,$ne,$gt,$gte,$lt,$lte,$in,$nin,$contains,$startsWith,$endsWith,$regex
	Value any
}

// And requires every sub-expression to hold.
type And struct{ Exprs []Expr }

// Or requires at least one sub-expression to hold; an Or with no
// sub-expressions matches every record.
type Or struct{ Exprs []Expr }

// Not negates a sub-expression.
type Not struct{ Expr Expr }

// SearchExpr is the top-level $search operator.
type SearchExpr struct {
	Query  string
	Fields []string // empty means "every declared search field"
}

// True always matches; used for an empty where clause.
type True struct{}

func (Cmp) isExpr()        {}
func (And) isExpr()        {}
func (Or) isExpr()         {}
func (Not) isExpr()        {}
func (SearchExpr) isExpr() {}
func (True) isExpr()       {}

var comparisonOps = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$contains": true, "$startsWith": true,
	"$endsWith": true, "$regex": true,
}

// Compile parses a raw where-clause (as decoded from a query options
// object) into an Expr tree, per spec §4.6(b).
func Compile(where map[string]any) (Expr, error) {
	if len(where) == 0 {
		return True{}, nil
	}

	var clauses []Expr
	for key, value := range where {
		switch key {
		case "$and":
			sub, err := compileList(value)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, And{Exprs: sub})
		case "$or":
			sub, err := compileList(value)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, Or{Exprs: sub})
		case "$not":
			m, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("query: $not requires a where object, got %T", value)
			}
			sub, err := Compile(m)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, Not{Expr: sub})
		case "$search":
			m, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("query: $search requires an object with a query key, got %T", value)
			}
			q, _ := m["query"].(string)
			var fields []string
			if raw, ok := m["fields"].([]any); ok {
				for _, f := range raw {
					if s, ok := f.(string); ok {
						fields = append(fields, s)
					}
				}
			}
			clauses = append(clauses, SearchExpr{Query: q, Fields: fields})
		default:
			fieldClauses, err := compileField(key, value)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, fieldClauses...)
		}
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return And{Exprs: clauses}, nil
}

func compileList(value any) ([]Expr, error) {
	raw, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("query: $and/$or requires a list of where objects, got %T", value)
	}
	out := make([]Expr, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("query: $and/$or element must be a where object, got %T", v)
		}
		e, err := Compile(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// compileField interprets a leaf clause: either a bare value (equality)
// or an operator mapping, possibly naming several operators on the same
// field (each becomes its own Cmp, ANDed together by the caller).
func compileField(field string, value any) ([]Expr, error) {
	ops, ok := value.(map[string]any)
	if !ok {
		return []Expr{Cmp{Field: field, Op: "$eq", Value: value}}, nil
	}

	isOperatorMap := false
	for k := range ops {
		if len(k) > 0 && k[0] == '$' {
			isOperatorMap = true
			break
		}
	}
	if !isOperatorMap {
		return []Expr{Cmp{Field: field, Op: "$eq", Value: value}}, nil
	}

	out := make([]Expr, 0, len(ops))
	for op, v := range ops {
		if !comparisonOps[op] {
			return nil, fmt.Errorf("query: unknown comparison operator %q on field %q", op, field)
		}
		out = append(out, Cmp{Field: field, Op: op, Value: v})
	}
	return out, nil
}
