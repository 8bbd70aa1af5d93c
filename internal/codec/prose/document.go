package prose

import (
	"fmt"
	"sort"
	"strings"
)

const indentUnit = "  "

// Document is a compiled headline-plus-overflow template set, the unit
// that actually knows how to turn a collection's entity mapping into
// prose text and back.
type Document struct {
	Headline *Template
	Overflow []*Template
}

// New compiles the headline and overflow template sources declared by a
// collection's configuration.
func New(headlineSrc string, overflowSrcs ...string) (*Document, error) {
	headline, err := Compile(headlineSrc)
	if err != nil {
		return nil, err
	}
	overflow := make([]*Template, len(overflowSrcs))
	for i, src := range overflowSrcs {
		t, err := Compile(src)
		if err != nil {
			return nil, err
		}
		overflow[i] = t
	}
	return &Document{Headline: headline, Overflow: overflow}, nil
}

// Encode renders value (a string-keyed mapping of id to entity fields,
// as produced by the persistence pipeline) into prose text. Records are
// emitted in ascending id order for determinism; an overflow line is
// omitted when none of its fields carry a non-null value on that record.
func (d *Document) Encode(value any) (string, error) {
	records, ok := value.(map[string]any)
	if !ok {
		return "", fmt.Errorf("prose: encode expects a string-keyed mapping, got %T", value)
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("@prose ")
	b.WriteString(d.Headline.Source)
	b.WriteByte('\n')
	for _, t := range d.Overflow {
		b.WriteString(indentUnit)
		b.WriteString(t.Source)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	for _, id := range ids {
		fields, ok := records[id].(map[string]any)
		if !ok {
			continue
		}
		b.WriteString(d.Headline.Render(fields))
		b.WriteByte('\n')
		for _, t := range d.Overflow {
			if !anyFieldPresent(t, fields) {
				continue
			}
			b.WriteString(indentUnit)
			b.WriteString(t.Render(fields))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func anyFieldPresent(t *Template, fields map[string]any) bool {
	for _, name := range t.Fields() {
		if v, ok := fields[name]; ok && v != nil {
			return true
		}
	}
	return false
}

// Decode parses prose text back into the string-keyed id-to-fields
// mapping expected by the rest of the pipeline. Lines matching neither
// the headline nor an overflow template are dropped (pass-through lines
// do not survive a re-encode, per spec).
func (d *Document) Decode(text string) (any, error) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return map[string]any{}, nil
	}

	first := strings.TrimRight(lines[0], "\r")
	const prefix = "@prose "
	if !strings.HasPrefix(first, prefix) {
		return nil, fmt.Errorf("prose: missing @prose directive on first line")
	}
	headlineSrc := first[len(prefix):]
	if headlineSrc != d.Headline.Source {
		headline, err := Compile(headlineSrc)
		if err != nil {
			return nil, fmt.Errorf("prose: invalid @prose directive: %w", err)
		}
		d = &Document{Headline: headline, Overflow: d.Overflow}
	}

	i := 1
	for i < len(lines) {
		line := strings.TrimRight(lines[i], "\r")
		if !strings.HasPrefix(line, indentUnit) || strings.TrimSpace(line) == "" {
			break
		}
		i++
	}

	records := make(map[string]any)
	var curFields map[string]any
	var curOverflowIdx int
	var curLastField string

	for ; i < len(lines); i++ {
		raw := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		indentLevel := 0
		rest := raw
		for strings.HasPrefix(rest, indentUnit) {
			indentLevel++
			rest = rest[len(indentUnit):]
		}

		if indentLevel == 0 {
			if fields, ok := d.Headline.Decode(raw); ok {
				curFields = fields
				curOverflowIdx = -1
				curLastField = ""
				if id, ok := fields["id"]; ok {
					records[fmt.Sprint(id)] = fields
				}
				continue
			}
			curFields = nil
			continue
		}

		if curFields == nil {
			continue // pass-through, dropped
		}

		if indentLevel == 1 {
			matched := false
			for idx, t := range d.Overflow {
				if fields, ok := t.Decode(rest); ok {
					for k, v := range fields {
						curFields[k] = v
					}
					curOverflowIdx = idx
					if names := t.Fields(); len(names) > 0 {
						curLastField = names[len(names)-1]
					}
					matched = true
					break
				}
			}
			if !matched {
				// pass-through, dropped
			}
			continue
		}

		// indentLevel >= 2: continuation of the last matched overflow field.
		if curOverflowIdx >= 0 && curLastField != "" {
			existing, _ := curFields[curLastField].(string)
			if existing == "" {
				curFields[curLastField] = rest
			} else {
				curFields[curLastField] = existing + "\n" + rest
			}
		}
	}

	return records, nil
}
