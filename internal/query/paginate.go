package query

import "github.com/proseql/proseql/internal/docval"

// Paginate drops offset records then truncates to limit, per spec
// §4.6(e). A negative offset is a ValidationError, and so is a negative
// limit when hasLimit is set. With hasLimit false, limit is ignored
// whatever its value.
func Paginate(records []docval.Map, offset int, limit int, hasLimit bool) ([]docval.Map, error) {
	if offset < 0 {
		return nil, &ValidationError{Issues: []string{"offset must not be negative"}}
	}
	if hasLimit && limit < 0 {
		return nil, &ValidationError{Issues: []string{"limit must not be negative"}}
	}

	if offset >= len(records) {
		return []docval.Map{}, nil
	}
	out := records[offset:]
	if hasLimit && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
