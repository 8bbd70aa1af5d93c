package codec

import (
	"encoding/json"

	"github.com/proseql/proseql/internal/docval"
)

// JSONCodec implements the plain .json format using the standard library.
type JSONCodec struct{}

func (JSONCodec) Name() string         { return "json" }
func (JSONCodec) Extensions() []string { return []string{"json"} }

func (JSONCodec) Encode(value any) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", &Error{Format: "json", Cause: err}
	}
	return string(data), nil
}

func (JSONCodec) Decode(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, &Error{Format: "json", Cause: err}
	}
	return docval.Normalize(v), nil
}
