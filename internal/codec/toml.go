package codec

import (
	"github.com/pelletier/go-toml/v2"
	"github.com/proseql/proseql/internal/docval"
)

// TOMLCodec implements .toml using pelletier/go-toml/v2, grounded in
// AKJUS-bsc-erigon's and cuemby-warren's go.mod files. TOML requires a
// top-level table; the persistence pipeline always hands this codec a
// string-keyed mapping, so list-only collections are wrapped by the
// caller before reaching here (spec §6).
type TOMLCodec struct{}

func (TOMLCodec) Name() string         { return "toml" }
func (TOMLCodec) Extensions() []string { return []string{"toml"} }

func (TOMLCodec) Encode(value any) (string, error) {
	m, ok := asMap(value)
	if !ok {
		return "", &Error{Format: "toml", Cause: errNotAMapping}
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return "", &Error{Format: "toml", Cause: err}
	}
	return string(data), nil
}

func (TOMLCodec) Decode(text string) (any, error) {
	var v map[string]any
	if err := toml.Unmarshal([]byte(text), &v); err != nil {
		return nil, &Error{Format: "toml", Cause: err}
	}
	return docval.Normalize(docval.Map(v)), nil
}

func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case docval.Map:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}
