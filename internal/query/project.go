package query

import "github.com/proseql/proseql/internal/docval"

// Project returns the subset of rec named by fields. A nil/empty fields
// list is a no-op (keeps every field) — used when select is omitted.
func Project(rec docval.Map, fields []string) docval.Map {
	if len(fields) == 0 {
		return rec
	}
	out := make(docval.Map, len(fields))
	for _, f := range fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out
}

// SelectSpec is the compiled `select` option: either an ordered list of
// bare field names, or an object-form select whose relationship keys
// implicitly introduce a populate stage (spec §4.6(g)).
type SelectSpec struct {
	Fields   []string // bare fields to keep; nil/empty with no Populate keys means "every field"
	Populate map[string]*PopulateOption
}
