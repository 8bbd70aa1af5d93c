// Package prose implements the bespoke "prose" template format (spec
// §4.10): a headline template plus optional overflow templates describing
// how to render/parse one entity per line (or per indented block) of a
// human-edited text file. There is no teacher analog for this format; it
// is new code written in the plain hand-rolled-parser style of
// GoKitt/pkg/extraction/parser.go (left-to-right scanning, no parser
// generator).
package prose

import (
	"fmt"
	"strings"
)

// PartKind distinguishes a template's literal segments from its
// placeholder segments.
type PartKind int

const (
	PartLiteral PartKind = iota
	PartField
)

// Part is one literal-or-placeholder segment of a compiled Template.
type Part struct {
	Kind  PartKind
	Text  string // literal text, when Kind == PartLiteral
	Field string // field name, when Kind == PartField
}

// Template is a compiled `{fieldName}`-interleaved-with-literals string.
type Template struct {
	Source string
	Parts  []Part
}

// Fields lists the field names referenced by the template, in order.
func (t *Template) Fields() []string {
	var out []string
	for _, p := range t.Parts {
		if p.Kind == PartField {
			out = append(out, p.Field)
		}
	}
	return out
}

// Compile parses a template string into literal/placeholder parts.
// Adjacent placeholders with no literal text between them are a
// compile-time error, per spec §4.10.
func Compile(src string) (*Template, error) {
	var parts []Part
	var lit strings.Builder

	flushLiteral := func() {
		if lit.Len() > 0 {
			parts = append(parts, Part{Kind: PartLiteral, Text: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(src) {
		c := src[i]
		if c == '{' {
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("prose: unterminated placeholder in template %q", src)
			}
			name := src[i+1 : i+end]
			if strings.IndexByte(name, '{') >= 0 {
				return nil, fmt.Errorf("prose: unterminated placeholder in template %q", src)
			}
			if name == "" {
				return nil, fmt.Errorf("prose: empty placeholder in template %q", src)
			}
			flushLiteral()
			parts = append(parts, Part{Kind: PartField, Field: name})
			i += end + 1
			continue
		}
		lit.WriteByte(c)
		i++
	}
	flushLiteral()

	for i := 1; i < len(parts); i++ {
		if parts[i].Kind == PartField && parts[i-1].Kind == PartField {
			return nil, fmt.Errorf(
				"prose: adjacent placeholders {%s}{%s} in template %q require a literal separator",
				parts[i-1].Field, parts[i].Field, src)
		}
	}

	return &Template{Source: src, Parts: parts}, nil
}
