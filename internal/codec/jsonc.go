package codec

import (
	"encoding/json"

	"github.com/muhammadmuzzammil1998/jsonc"
	"github.com/proseql/proseql/internal/docval"
)

// JSONCCodec implements .jsonc: standard JSON with // and /* */ comments.
// Comments are stripped by muhammadmuzzammil1998/jsonc, an ecosystem
// library (named per SPEC_FULL's domain stack, not grounded in the pack),
// and the result decoded as plain JSON. Comments do not survive a
// re-encode, matching the plain-JSON document model every other codec
// shares.
type JSONCCodec struct{}

func (JSONCCodec) Name() string         { return "jsonc" }
func (JSONCCodec) Extensions() []string { return []string{"jsonc"} }

func (JSONCCodec) Encode(value any) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", &Error{Format: "jsonc", Cause: err}
	}
	return string(data), nil
}

func (JSONCCodec) Decode(text string) (any, error) {
	stripped := jsonc.ToJSON([]byte(text))
	var v any
	if err := json.Unmarshal(stripped, &v); err != nil {
		return nil, &Error{Format: "jsonc", Cause: err}
	}
	return docval.Normalize(v), nil
}
