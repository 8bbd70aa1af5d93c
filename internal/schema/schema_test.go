package schema

import (
	"testing"

	"github.com/proseql/proseql/internal/docval"
)

func TestValidateRequiredField(t *testing.T) {
	s := New(
		&Field{Name: "title", Type: KindString},
		&Field{Name: "year", Type: KindNumber, Optional: true},
	)

	_, issues := Validate(s, docval.Map{"title": "Dune"})
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}

	_, issues = Validate(s, docval.Map{"year": float64(1965)})
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %v", issues)
	}
}

func TestValidateEnum(t *testing.T) {
	s := New(&Field{Name: "status", Type: KindString, Enum: []any{"open", "closed"}})
	_, issues := Validate(s, docval.Map{"status": "pending"})
	if len(issues) != 1 {
		t.Fatalf("expected enum violation, got %v", issues)
	}
	_, issues = Validate(s, docval.Map{"status": "open"})
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestValidateNestedObject(t *testing.T) {
	s := New(&Field{
		Name: "address",
		Type: KindObject,
		Fields: map[string]*Field{
			"city": {Name: "city", Type: KindString},
		},
	})
	_, issues := Validate(s, docval.Map{"address": docval.Map{"city": 5.0}})
	if len(issues) != 1 {
		t.Fatalf("expected type mismatch issue, got %v", issues)
	}
}

func TestHasSoftDelete(t *testing.T) {
	s := New(&Field{Name: "deletedAt", Type: KindString, Optional: true})
	if !s.HasSoftDelete() {
		t.Error("expected soft delete to be detected")
	}
}
