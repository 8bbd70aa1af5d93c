package query

import "fmt"

// ValidationError reports malformed query options, per spec §7. The root
// package's ValidationError is a separate type that carries schema
// issues.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("proseql: invalid query options: %v", e.Issues)
}

// DanglingReferenceError is raised when a populate stage cannot resolve a
// ref foreign key and the relation was not marked optional.
type DanglingReferenceError struct {
	Collection string
	Relation   string
	ID         string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("proseql: dangling reference: %s.%s -> %q not found", e.Collection, e.Relation, e.ID)
}
