package codec

import (
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/proseql/proseql/internal/docval"
)

// HjsonCodec implements .hjson using hjson/hjson-go/v4, an ecosystem
// library (named per SPEC_FULL's domain stack, not grounded in the pack).
type HjsonCodec struct{}

func (HjsonCodec) Name() string         { return "hjson" }
func (HjsonCodec) Extensions() []string { return []string{"hjson"} }

func (HjsonCodec) Encode(value any) (string, error) {
	data, err := hjson.Marshal(value)
	if err != nil {
		return "", &Error{Format: "hjson", Cause: err}
	}
	return string(data), nil
}

func (HjsonCodec) Decode(text string) (any, error) {
	var v any
	if err := hjson.Unmarshal([]byte(text), &v); err != nil {
		return nil, &Error{Format: "hjson", Cause: err}
	}
	return docval.Normalize(v), nil
}
