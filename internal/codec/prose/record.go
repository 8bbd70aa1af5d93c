package prose

import "strings"

// Render serializes a record's fields through the template, substituting
// each {field} placeholder with RenderValue(record[field]). A scalar value
// that would collide with the literal text immediately following it is
// wrapped in quotes so Decode can recover the boundary.
func (t *Template) Render(record map[string]any) string {
	var b strings.Builder
	for i, p := range t.Parts {
		if p.Kind == PartLiteral {
			b.WriteString(p.Text)
			continue
		}
		rendered := RenderValue(record[p.Field])
		next := ""
		if i+1 < len(t.Parts) && t.Parts[i+1].Kind == PartLiteral {
			next = t.Parts[i+1].Text
		}
		if !strings.HasPrefix(rendered, "[") && needsScalarQuote(rendered, next) {
			rendered = quote(rendered)
		}
		b.WriteString(rendered)
	}
	return b.String()
}

// Decode matches line against the template's literal scaffolding and, on
// success, returns the extracted field values. The final placeholder (when
// not followed by a literal) captures the remainder of the line verbatim.
func (t *Template) Decode(line string) (map[string]any, bool) {
	out := make(map[string]any)
	pos := 0
	for i, p := range t.Parts {
		if p.Kind == PartLiteral {
			if !strings.HasPrefix(line[pos:], p.Text) {
				return nil, false
			}
			pos += len(p.Text)
			continue
		}

		// Determine the delimiter that ends this field: either the next
		// literal part, or end-of-line if this is the last part.
		var delim string
		if i+1 < len(t.Parts) && t.Parts[i+1].Kind == PartLiteral {
			delim = t.Parts[i+1].Text
		}

		rest := line[pos:]
		if len(rest) > 0 && rest[0] == '"' {
			content, consumed, ok := scanQuoted(rest)
			if !ok {
				return nil, false
			}
			out[p.Field] = ParseValue(content)
			pos += consumed
			continue
		}

		var raw string
		if delim == "" {
			raw = rest
			pos = len(line)
		} else {
			idx := strings.Index(rest, delim)
			if idx < 0 {
				return nil, false
			}
			raw = rest[:idx]
			pos += idx
		}
		out[p.Field] = ParseValue(strings.TrimSpace(raw))
	}
	if pos != len(line) {
		return nil, false
	}
	return out, true
}
