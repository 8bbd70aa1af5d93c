package schema

import (
	"fmt"

	"github.com/proseql/proseql/internal/docval"
)

// Issue is one structural validation failure, collected rather than
// returned as the first error so callers can report everything wrong
// with an input at once (spec §7: ValidationError(issues[])).
type Issue struct {
	Field   string
	Message string
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Validate checks rec's shape against s and returns the normalized record
// (unknown fields are passed through unchanged) plus any issues found.
// An id field is not inspected here; the entity store is responsible for
// id presence/uniqueness.
func Validate(s *Schema, rec docval.Map) (docval.Map, []Issue) {
	var issues []Issue
	out := docval.CloneMap(rec)

	for name, f := range s.Fields {
		if name == "id" {
			continue
		}
		v, present := rec[name]
		if !present || docval.IsNull(v) {
			if !f.Optional && name != s.CreatedAtField && name != s.UpdatedAtField && name != s.DeletedAtField {
				issues = append(issues, Issue{Field: name, Message: "required field missing"})
			}
			continue
		}
		if msg, ok := checkType(f, v); !ok {
			issues = append(issues, Issue{Field: name, Message: msg})
			continue
		}
		out[name] = v
	}
	return out, issues
}

func checkType(f *Field, v any) (string, bool) {
	switch f.Type {
	case KindAny:
		// fall through to enum check
	case KindString:
		if _, ok := v.(string); !ok {
			return "expected string", false
		}
	case KindNumber:
		if _, ok := v.(float64); !ok {
			return "expected number", false
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return "expected bool", false
		}
	case KindList:
		list, ok := v.([]any)
		if !ok {
			return "expected list", false
		}
		if f.Items != nil {
			for i, el := range list {
				if msg, ok := checkType(f.Items, el); !ok {
					return fmt.Sprintf("element %d: %s", i, msg), false
				}
			}
		}
	case KindObject:
		obj, ok := v.(docval.Map)
		if !ok {
			return "expected object", false
		}
		if f.Fields != nil {
			for name, nested := range f.Fields {
				nv, present := obj[name]
				if !present || docval.IsNull(nv) {
					if !nested.Optional {
						return fmt.Sprintf("%s: required field missing", name), false
					}
					continue
				}
				if msg, ok := checkType(nested, nv); !ok {
					return fmt.Sprintf("%s: %s", name, msg), false
				}
			}
		}
	}

	if len(f.Enum) > 0 {
		matched := false
		for _, allowed := range f.Enum {
			if docval.Equal(allowed, v) {
				matched = true
				break
			}
		}
		if !matched {
			return "value not in declared enum", false
		}
	}
	return "", true
}
