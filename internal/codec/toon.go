package codec

import (
	"github.com/proseql/proseql/internal/docval"
	toon "github.com/toon-format/toon-go"
)

// TOONCodec implements .toon (Token-Oriented Object Notation), a compact
// tabular-leaning format. Grounded in
// other_examples/manifests/madeindigio-remembrances-mcp/go.mod, which
// carries github.com/toon-format/toon-go in the retrieval pack.
type TOONCodec struct{}

func (TOONCodec) Name() string         { return "toon" }
func (TOONCodec) Extensions() []string { return []string{"toon"} }

func (TOONCodec) Encode(value any) (string, error) {
	data, err := toon.Marshal(value)
	if err != nil {
		return "", &Error{Format: "toon", Cause: err}
	}
	return string(data), nil
}

func (TOONCodec) Decode(text string) (any, error) {
	var v any
	if err := toon.Unmarshal([]byte(text), &v); err != nil {
		return nil, &Error{Format: "toon", Cause: err}
	}
	return docval.Normalize(v), nil
}
