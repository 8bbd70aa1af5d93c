package query

import (
	"regexp"
	"strings"

	"github.com/proseql/proseql/internal/docval"
	"github.com/proseql/proseql/internal/search"
)

// Eval reports whether record satisfies expr. searchIndex and
// searchFields supply the default $search behavior (tokenizer and the
// collection's declared search fields, used when $search omits an
// explicit fields list).
func Eval(expr Expr, record docval.Map, searchIndex *search.Index, defaultSearchFields []string) bool {
	switch e := expr.(type) {
	case True:
		return true
	case And:
		for _, sub := range e.Exprs {
			if !Eval(sub, record, searchIndex, defaultSearchFields) {
				return false
			}
		}
		return true
	case Or:
		if len(e.Exprs) == 0 {
			return true
		}
		for _, sub := range e.Exprs {
			if Eval(sub, record, searchIndex, defaultSearchFields) {
				return true
			}
		}
		return false
	case Not:
		return !Eval(e.Expr, record, searchIndex, defaultSearchFields)
	case Cmp:
		return evalCmp(e, record)
	case SearchExpr:
		return evalSearch(e, record, searchIndex, defaultSearchFields)
	default:
		return false
	}
}

func evalCmp(c Cmp, record docval.Map) bool {
	actual := record[c.Field] // absent fields are treated as null

	switch c.Op {
	case "$eq":
		return docval.Equal(actual, c.Value)
	case "$ne":
		return !docval.Equal(actual, c.Value)
	case "$gt":
		return !docval.IsNull(actual) && !docval.IsNull(c.Value) && docval.Compare(actual, c.Value) > 0
	case "$gte":
		return !docval.IsNull(actual) && !docval.IsNull(c.Value) && docval.Compare(actual, c.Value) >= 0
	case "$lt":
		return !docval.IsNull(actual) && !docval.IsNull(c.Value) && docval.Compare(actual, c.Value) < 0
	case "$lte":
		return !docval.IsNull(actual) && !docval.IsNull(c.Value) && docval.Compare(actual, c.Value) <= 0
	case "$in":
		return inList(actual, c.Value)
	case "$nin":
		return !inList(actual, c.Value)
	case "$contains":
		return evalContains(actual, c.Value)
	case "$startsWith":
		s, ok := c.Value.(string)
		return ok && strings.HasPrefix(docval.ToString(actual), s)
	case "$endsWith":
		s, ok := c.Value.(string)
		return ok && strings.HasSuffix(docval.ToString(actual), s)
	case "$regex":
		pattern, ok := c.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(docval.ToString(actual))
	default:
		return false
	}
}

func inList(actual, listValue any) bool {
	list, ok := listValue.([]any)
	if !ok {
		return false
	}
	for _, v := range list {
		if docval.Equal(actual, v) {
			return true
		}
	}
	return false
}

func evalContains(actual, needle any) bool {
	switch a := actual.(type) {
	case []any:
		for _, v := range a {
			if docval.Equal(v, needle) {
				return true
			}
		}
		return false
	default:
		s, ok := needle.(string)
		if !ok {
			return false
		}
		return strings.Contains(docval.ToString(actual), s)
	}
}

func evalSearch(e SearchExpr, record docval.Map, idx *search.Index, defaultFields []string) bool {
	if idx == nil {
		return false
	}
	fields := e.Fields
	if len(fields) == 0 {
		fields = defaultFields
	}
	texts := make([]string, 0, len(fields))
	for _, f := range fields {
		texts = append(texts, docval.ToString(record[f]))
	}
	query := idx.Tokenize(e.Query)
	return idx.Matches(query, texts...)
}
