package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/proseql/proseql/internal/docval"
)

// PageInfo describes a cursor page's position relative to the full
// result set, per spec §4.6(f).
type PageInfo struct {
	StartCursor     string
	EndCursor       string
	HasNextPage     bool
	HasPreviousPage bool
}

// Page is the `{ items, pageInfo }` envelope returned by cursor
// pagination.
type Page struct {
	Items    []docval.Map
	PageInfo PageInfo
}

type cursorPayload struct {
	V any `json:"v"`
}

// EncodeCursor opaquely encodes the last-seen cursor-key value.
func EncodeCursor(value any) string {
	data, _ := json.Marshal(cursorPayload{V: value})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor reverses EncodeCursor, rejecting malformed tokens.
func DecodeCursor(token string) (any, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("query: malformed cursor token: %w", err)
	}
	var payload cursorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("query: malformed cursor token: %w", err)
	}
	return docval.Normalize(payload.V), nil
}

// CursorPaginate applies cursor pagination to records, which must already be
// sorted ascending by key (the pipeline is responsible for injecting
// that sort). after, if non-empty, is an opaque token from a previous
// page's endCursor.
func CursorPaginate(records []docval.Map, key string, after string, pageSize int) (Page, error) {
	if pageSize < 0 {
		return Page{}, &ValidationError{Issues: []string{"cursor page size must not be negative"}}
	}

	start := 0
	if after != "" {
		afterValue, err := DecodeCursor(after)
		if err != nil {
			return Page{}, err
		}
		for i, r := range records {
			if docval.Compare(r[key], afterValue) > 0 {
				start = i
				break
			}
			start = i + 1
		}
	}

	if start >= len(records) {
		return Page{Items: []docval.Map{}, PageInfo: PageInfo{HasPreviousPage: start > 0}}, nil
	}

	end := start + pageSize
	if pageSize == 0 || end > len(records) {
		end = len(records)
	}
	items := records[start:end]

	info := PageInfo{
		HasNextPage:     end < len(records),
		HasPreviousPage: start > 0,
	}
	if len(items) > 0 {
		info.StartCursor = EncodeCursor(items[0][key])
		info.EndCursor = EncodeCursor(items[len(items)-1][key])
	}
	return Page{Items: items, PageInfo: info}, nil
}
