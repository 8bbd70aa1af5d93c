// Package schema compiles a collection's declared field shape into a
// validator, generalizing the enum-set validation pattern from
// GoKitt's pkg/extraction/types.go (a map-backed IsValid check) to an
// arbitrary tree of field types.
package schema

// Kind is the primitive type a field is declared as.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindList
	KindObject
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "any"
	}
}

// Field describes one field of a collection's schema.
type Field struct {
	Name     string
	Type     Kind
	Optional bool
	// Enum, if non-empty, restricts the field to one of these literal
	// values (still subject to Type).
	Enum []any
	// Items describes the element type for a KindList field. Nil means
	// elements are unconstrained.
	Items *Field
	// Fields describes nested fields for a KindObject field. Nil means
	// the object's shape is unconstrained.
	Fields map[string]*Field
}

// Schema is a collection's full field declaration.
type Schema struct {
	Fields map[string]*Field
	// DeletedAtField, if non-empty, names the field used for soft
	// deletes (spec §3: "if the schema declares a deletedAt field").
	DeletedAtField string
	// CreatedAtField / UpdatedAtField name the timestamp fields stamped
	// by create/update when declared (spec §4.7).
	CreatedAtField string
	UpdatedAtField string
}

// New builds a Schema from an ordered field list. The special names
// "deletedAt", "createdAt", and "updatedAt" are recognized automatically
// when present; callers may override them by setting DeletedAtField,
// CreatedAtField and UpdatedAtField directly.
func New(fields ...*Field) *Schema {
	s := &Schema{Fields: make(map[string]*Field, len(fields))}
	for _, f := range fields {
		s.Fields[f.Name] = f
		switch f.Name {
		case "deletedAt":
			s.DeletedAtField = "deletedAt"
		case "createdAt":
			s.CreatedAtField = "createdAt"
		case "updatedAt":
			s.UpdatedAtField = "updatedAt"
		}
	}
	return s
}

// HasSoftDelete reports whether the schema declares a deletedAt field.
func (s *Schema) HasSoftDelete() bool { return s.DeletedAtField != "" }

// Field looks up a top-level field declaration by name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.Fields[name]
	return f, ok
}
