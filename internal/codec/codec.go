// Package codec implements the format codec registry (spec §4.1): an
// encode/decode pair per text format, resolved by file extension. The
// registry shape is grounded on the map-backed, constructor-built
// registries in GoKitt/pkg/scanner/discovery/registry.go.
package codec

import "fmt"

// Error is the SerializationError from spec §7.
type Error struct {
	Format string
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("proseql: %s codec failed: %v", e.Format, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// UnsupportedFormatError is raised when no codec claims an extension.
type UnsupportedFormatError struct {
	Ext       string
	Supported []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("proseql: unsupported format %q (supported: %v)", e.Ext, e.Supported)
}

// Codec encodes and decodes arbitrary document trees to and from one text
// format.
type Codec interface {
	// Name identifies the format for error messages (e.g. "yaml").
	Name() string
	// Extensions lists the file extensions (lowercase, no leading dot)
	// this codec claims.
	Extensions() []string
	Encode(value any) (string, error)
	Decode(text string) (any, error)
}
