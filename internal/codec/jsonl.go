package codec

import (
	"bufio"
	"encoding/json"
	"strings"

	"github.com/proseql/proseql/internal/docval"
)

// JSONLCodec implements the line-delimited .jsonl format: one JSON object
// per top-level key, each holding exactly one key/value pair. Splitting
// the top-level mapping this way keeps each line independently parseable
// (the point of a jsonl file) while round-tripping the same document tree
// every other codec works with.
type JSONLCodec struct{}

func (JSONLCodec) Name() string         { return "jsonl" }
func (JSONLCodec) Extensions() []string { return []string{"jsonl"} }

func (JSONLCodec) Encode(value any) (string, error) {
	m, ok := value.(docval.Map)
	if !ok {
		if mm, ok2 := value.(map[string]any); ok2 {
			m = mm
		} else {
			return "", &Error{Format: "jsonl", Cause: errNotAMapping}
		}
	}

	var b strings.Builder
	// _version, if present, is written first so readers that stop at the
	// first line still see the version marker.
	if v, ok := m["_version"]; ok {
		if err := writeLine(&b, "_version", v); err != nil {
			return "", err
		}
	}
	for k, v := range m {
		if k == "_version" {
			continue
		}
		if err := writeLine(&b, k, v); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func writeLine(b *strings.Builder, key string, value any) error {
	line, err := json.Marshal(map[string]any{key: value})
	if err != nil {
		return &Error{Format: "jsonl", Cause: err}
	}
	b.Write(line)
	b.WriteByte('\n')
	return nil
}

func (JSONLCodec) Decode(text string) (any, error) {
	out := make(docval.Map)
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, &Error{Format: "jsonl", Cause: err}
		}
		for k, v := range entry {
			out[k] = docval.Normalize(v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &Error{Format: "jsonl", Cause: err}
	}
	return out, nil
}

var errNotAMapping = jsonlMappingError{}

type jsonlMappingError struct{}

func (jsonlMappingError) Error() string { return "value is not a string-keyed mapping" }
