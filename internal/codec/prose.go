package codec

import "github.com/proseql/proseql/internal/codec/prose"

// ProseCodec adapts a compiled prose.Document (built from a collection's
// configured headline/overflow templates) to the Codec interface. Unlike
// the other eight codecs it cannot be constructed with zero arguments —
// the persistence pipeline builds one per collection from config and uses
// it directly rather than through Registry.Resolve. A bare ProseCodec
// registered with Default exists only so Extensions()/Resolve() know
// ".prose" is a claimed, not unsupported, extension.
type ProseCodec struct {
	doc *prose.Document
}

// NewProseCodec compiles the given headline and overflow template sources
// into a ready-to-use Codec.
func NewProseCodec(headlineSrc string, overflowSrcs ...string) (*ProseCodec, error) {
	doc, err := prose.New(headlineSrc, overflowSrcs...)
	if err != nil {
		return nil, err
	}
	return &ProseCodec{doc: doc}, nil
}

func (ProseCodec) Name() string         { return "prose" }
func (ProseCodec) Extensions() []string { return []string{"prose"} }

func (c *ProseCodec) Encode(value any) (string, error) {
	if c.doc == nil {
		return "", &Error{Format: "prose", Cause: errUnconfigured}
	}
	text, err := c.doc.Encode(value)
	if err != nil {
		return "", &Error{Format: "prose", Cause: err}
	}
	return text, nil
}

func (c *ProseCodec) Decode(text string) (any, error) {
	if c.doc == nil {
		return nil, &Error{Format: "prose", Cause: errUnconfigured}
	}
	v, err := c.doc.Decode(text)
	if err != nil {
		return nil, &Error{Format: "prose", Cause: err}
	}
	return v, nil
}

var errUnconfigured = errProseUnconfigured{}

type errProseUnconfigured struct{}

func (errProseUnconfigured) Error() string {
	return "prose codec used without a per-collection headline/overflow template configuration"
}
