package query

import (
	"testing"

	"github.com/proseql/proseql/internal/docval"
	"github.com/proseql/proseql/internal/search"
)

func sampleBooks() []docval.Map {
	return []docval.Map{
		{"id": "1", "title": "Dune", "year": float64(1965), "authorId": "a1"},
		{"id": "2", "title": "Emma", "year": float64(1815), "authorId": "a2"},
		{"id": "3", "title": "Foundation", "year": float64(1951), "authorId": "a1"},
	}
}

func TestCompileAndEvalEquality(t *testing.T) {
	expr, err := Compile(map[string]any{"title": "Dune"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	matches := 0
	for _, b := range sampleBooks() {
		if Eval(expr, b, nil, nil) {
			matches++
		}
	}
	if matches != 1 {
		t.Errorf("expected 1 match, got %d", matches)
	}
}

func TestCompileAndEvalComparisonOperators(t *testing.T) {
	expr, err := Compile(map[string]any{"year": map[string]any{"$gt": float64(1900)}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	matches := 0
	for _, b := range sampleBooks() {
		if Eval(expr, b, nil, nil) {
			matches++
		}
	}
	if matches != 2 {
		t.Errorf("expected 2 matches (Dune, Foundation), got %d", matches)
	}
}

func TestCompileRejectsUnknownOperator(t *testing.T) {
	_, err := Compile(map[string]any{"year": map[string]any{"$bogus": 1}})
	if err == nil {
		t.Fatal("expected an error for unknown operator")
	}
}

func TestEvalAndOr(t *testing.T) {
	expr, err := Compile(map[string]any{
		"$or": []any{
			map[string]any{"title": "Dune"},
			map[string]any{"title": "Emma"},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	matches := 0
	for _, b := range sampleBooks() {
		if Eval(expr, b, nil, nil) {
			matches++
		}
	}
	if matches != 2 {
		t.Errorf("expected 2 matches, got %d", matches)
	}
}

func TestEvalSearch(t *testing.T) {
	idx := search.New()
	expr := SearchExpr{Query: "dune", Fields: []string{"title"}}
	matches := 0
	for _, b := range sampleBooks() {
		if Eval(expr, b, idx, nil) {
			matches++
		}
	}
	if matches != 1 {
		t.Errorf("expected 1 match, got %d", matches)
	}
}

func TestSortStableAndMonotonic(t *testing.T) {
	books := sampleBooks()
	Sort(books, []SortKey{{Field: "year", Desc: false}})
	for i := 1; i < len(books); i++ {
		if docval.Compare(books[i-1]["year"], books[i]["year"]) > 0 {
			t.Fatalf("not sorted ascending: %v", books)
		}
	}
}

func TestPaginateDropAndTake(t *testing.T) {
	books := sampleBooks()
	page, err := Paginate(books, 1, 1, true)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(page) != 1 || page[0]["id"] != "2" {
		t.Errorf("expected [book 2], got %v", page)
	}
}

func TestPaginateRejectsNegative(t *testing.T) {
	_, err := Paginate(sampleBooks(), -1, 0, false)
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCursorPaginateRoundTrip(t *testing.T) {
	books := sampleBooks()
	Sort(books, []SortKey{{Field: "id", Desc: false}})

	page1, err := CursorPaginate(books, "id", "", 2)
	if err != nil {
		t.Fatalf("page1: %v", err)
	}
	if len(page1.Items) != 2 || !page1.PageInfo.HasNextPage {
		t.Fatalf("unexpected page1: %+v", page1)
	}

	page2, err := CursorPaginate(books, "id", page1.PageInfo.EndCursor, 2)
	if err != nil {
		t.Fatalf("page2: %v", err)
	}
	if len(page2.Items) != 1 || page2.PageInfo.HasNextPage {
		t.Fatalf("unexpected page2: %+v", page2)
	}
	if !page2.PageInfo.HasPreviousPage {
		t.Error("expected hasPreviousPage on page2")
	}
}

func TestCursorPaginateRejectsMalformedToken(t *testing.T) {
	_, err := CursorPaginate(sampleBooks(), "id", "not-a-valid-token!!", 2)
	if err == nil {
		t.Fatal("expected an error for a malformed cursor token")
	}
}

func TestPipelineFilterSortPaginateProject(t *testing.T) {
	p := &Pipeline{}
	opts := Options{
		Where:     map[string]any{"year": map[string]any{"$gt": float64(1900)}},
		Sort:      []SortKey{{Field: "year", Desc: false}},
		HasLimit:  true,
		Limit:     1,
		Select:    &SelectSpec{Fields: []string{"title"}},
	}
	result, err := p.Run(sampleBooks(), opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	if result.Items[0]["title"] != "Foundation" {
		t.Errorf("expected Foundation (earliest after 1900), got %v", result.Items[0])
	}
	if _, hasYear := result.Items[0]["year"]; hasYear {
		t.Error("expected projection to drop the year field")
	}
}

func TestPipelinePopulateRef(t *testing.T) {
	p := &Pipeline{
		Relationships: map[string]Relationship{
			"author": {Name: "author", Kind: RelRef, Collection: "authors", ForeignKey: "authorId"},
		},
		GetByID: func(collection, id string) (docval.Map, bool) {
			if collection == "authors" && id == "a1" {
				return docval.Map{"id": "a1", "name": "Herbert"}, true
			}
			return nil, false
		},
	}
	opts := Options{
		Where:    map[string]any{"id": "1"},
		Populate: map[string]*PopulateOption{"author": {}},
	}
	result, err := p.Run(sampleBooks(), opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	author, ok := result.Items[0]["author"].(docval.Map)
	if !ok || author["name"] != "Herbert" {
		t.Errorf("expected populated author, got %v", result.Items[0]["author"])
	}
}

func TestPipelineStartsWithUsesPrefixIndexWhenPresent(t *testing.T) {
	calls := 0
	p := &Pipeline{
		PrefixIDs: func(field, prefix string) ([]string, bool) {
			calls++
			if field != "title" || prefix != "Du" {
				t.Fatalf("unexpected PrefixIDs call: %q %q", field, prefix)
			}
			return []string{"1"}, true
		},
	}
	opts := Options{Where: map[string]any{"title": map[string]any{"$startsWith": "Du"}}}
	result, err := p.Run(sampleBooks(), opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected PrefixIDs to be consulted once, got %d", calls)
	}
	if len(result.Items) != 1 || result.Items[0]["id"] != "1" {
		t.Fatalf("expected only book 1 to match, got %v", result.Items)
	}
}

func TestPipelineStartsWithFallsBackWithoutIndex(t *testing.T) {
	p := &Pipeline{
		PrefixIDs: func(field, prefix string) ([]string, bool) { return nil, false },
	}
	opts := Options{Where: map[string]any{"title": map[string]any{"$startsWith": "Du"}}}
	result, err := p.Run(sampleBooks(), opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0]["id"] != "1" {
		t.Fatalf("expected only book 1 to match via full scan, got %v", result.Items)
	}
}

func TestPipelineDanglingReferenceFailsWithoutOptional(t *testing.T) {
	p := &Pipeline{
		Relationships: map[string]Relationship{
			"author": {Name: "author", Kind: RelRef, Collection: "authors", ForeignKey: "authorId"},
		},
		GetByID: func(collection, id string) (docval.Map, bool) { return nil, false },
	}
	opts := Options{Populate: map[string]*PopulateOption{"author": {}}}
	_, err := p.Run(sampleBooks(), opts)
	if _, ok := err.(*DanglingReferenceError); !ok {
		t.Fatalf("expected DanglingReferenceError, got %v", err)
	}
}
