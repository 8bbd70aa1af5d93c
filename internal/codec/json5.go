package codec

import (
	"github.com/proseql/proseql/internal/docval"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// JSON5Codec implements .json5 using yosuke-furukawa/json5, an ecosystem
// library (not carried by the teacher's own go.mod, named per SPEC_FULL's
// domain stack rather than grounded in a pack repo).
type JSON5Codec struct{}

func (JSON5Codec) Name() string         { return "json5" }
func (JSON5Codec) Extensions() []string { return []string{"json5"} }

func (JSON5Codec) Encode(value any) (string, error) {
	data, err := json5.Marshal(value)
	if err != nil {
		return "", &Error{Format: "json5", Cause: err}
	}
	return string(data), nil
}

func (JSON5Codec) Decode(text string) (any, error) {
	var v any
	if err := json5.Unmarshal([]byte(text), &v); err != nil {
		return nil, &Error{Format: "json5", Cause: err}
	}
	return docval.Normalize(v), nil
}
