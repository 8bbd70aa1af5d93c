package codec

import (
	"github.com/proseql/proseql/internal/docval"
	"gopkg.in/yaml.v3"
)

// YAMLCodec implements .yaml/.yml using gopkg.in/yaml.v3, the format
// library carried by every example repo's go.mod (AKJUS-bsc-erigon,
// cuemby-warren, johnjansen-torua, and GoKitt itself as an indirect dep).
type YAMLCodec struct{}

func (YAMLCodec) Name() string         { return "yaml" }
func (YAMLCodec) Extensions() []string { return []string{"yaml", "yml"} }

func (YAMLCodec) Encode(value any) (string, error) {
	data, err := yaml.Marshal(value)
	if err != nil {
		return "", &Error{Format: "yaml", Cause: err}
	}
	return string(data), nil
}

func (YAMLCodec) Decode(text string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return nil, &Error{Format: "yaml", Cause: err}
	}
	return docval.Normalize(v), nil
}
