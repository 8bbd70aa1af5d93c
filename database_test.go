package proseql

import (
	"sync"
	"testing"
	"time"

	"github.com/proseql/proseql/internal/migrate"
	"github.com/proseql/proseql/internal/query"
	"github.com/proseql/proseql/internal/schema"
	"github.com/proseql/proseql/internal/storage"
	"github.com/stretchr/testify/require"
)

// countingAdapter wraps storage.Memory and counts Write calls, for the
// coalescer contract test (spec §8 property 10 / scenario S4).
type countingAdapter struct {
	*storage.Memory
	mu     sync.Mutex
	writes int
}

func newCountingAdapter() *countingAdapter {
	return &countingAdapter{Memory: storage.NewMemory()}
}

func (c *countingAdapter) Write(path, text string) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Memory.Write(path, text)
}

func (c *countingAdapter) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func booksConfig() DatabaseConfig {
	return DatabaseConfig{
		Collections: map[string]CollectionConfig{
			"books": {
				Schema: schema.New(
					&schema.Field{Name: "title", Type: schema.KindString},
					&schema.Field{Name: "year", Type: schema.KindNumber},
				),
				File: "books.json",
			},
		},
	}
}

// S1 Round-trip, JSON.
func TestRoundTripJSON(t *testing.T) {
	adapter := storage.NewMemory()
	db, err := OpenPersistent(booksConfig(), adapter)
	require.NoError(t, err)

	books := db.Collection("books")
	_, err = books.Create(Record{"id": "1", "title": "Dune", "year": float64(1965)})
	require.NoError(t, err)
	_, err = books.Create(Record{"id": "2", "title": "Neuromancer", "year": float64(1984)})
	require.NoError(t, err)

	require.NoError(t, db.Flush())

	text, err := adapter.Read("books.json")
	require.NoError(t, err)
	require.Contains(t, text, `"Dune"`)
	require.Contains(t, text, `"Neuromancer"`)

	db2, err := OpenPersistent(booksConfig(), adapter)
	require.NoError(t, err)
	books2 := db2.Collection("books")

	rec, err := books2.FindByID("1")
	require.NoError(t, err)
	require.Equal(t, "Dune", rec["title"])

	res, err := books2.Query(query.Options{Sort: []query.SortKey{{Field: "year"}}})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.Equal(t, "1", res.Items[0]["id"])
	require.Equal(t, "2", res.Items[1]["id"])
}

func companiesUsersConfig() DatabaseConfig {
	return DatabaseConfig{
		Collections: map[string]CollectionConfig{
			"companies": {Schema: schema.New()},
			"users": {
				Schema: schema.New(&schema.Field{Name: "companyId", Type: schema.KindString, Optional: true}),
				Relationships: []RelationshipConfig{
					{Name: "company", Kind: query.RelRef, Collection: "companies", ForeignKey: "companyId", OnDelete: query.OnDeleteCascade},
				},
			},
		},
	}
}

// S2 Cascade delete.
func TestCascadeDelete(t *testing.T) {
	db, err := Open(companiesUsersConfig())
	require.NoError(t, err)

	companies := db.Collection("companies")
	users := db.Collection("users")

	_, err = companies.Create(Record{"id": "c1"})
	require.NoError(t, err)
	_, err = users.Create(Record{"id": "u1", "companyId": "c1"})
	require.NoError(t, err)
	_, err = users.Create(Record{"id": "u2", "companyId": "c1"})
	require.NoError(t, err)

	result, err := companies.Delete("c1", DeleteOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Cascaded["users"].Count)
	require.ElementsMatch(t, []string{"u1", "u2"}, result.Cascaded["users"].IDs)

	res, err := users.Query(query.Options{})
	require.NoError(t, err)
	require.Empty(t, res.Items)

	_, err = companies.FindByID("c1")
	require.Error(t, err)
	require.IsType(t, &NotFoundError{}, err)
}

// S2b restrict policy blocks the delete when a dependent still refers to it.
func TestRestrictDeleteBlocksWhenReferenced(t *testing.T) {
	cfg := companiesUsersConfig()
	rel := cfg.Collections["users"].Relationships[0]
	rel.OnDelete = query.OnDeleteRestrict
	uc := cfg.Collections["users"]
	uc.Relationships = []RelationshipConfig{rel}
	cfg.Collections["users"] = uc

	db, err := Open(cfg)
	require.NoError(t, err)
	companies := db.Collection("companies")
	users := db.Collection("users")

	_, err = companies.Create(Record{"id": "c1"})
	require.NoError(t, err)
	_, err = users.Create(Record{"id": "u1", "companyId": "c1"})
	require.NoError(t, err)

	_, err = companies.Delete("c1", DeleteOptions{})
	require.Error(t, err)
	require.IsType(t, &ForeignKeyError{}, err)

	_, err = companies.FindByID("c1")
	require.NoError(t, err)
}

// S2c setNull clears the foreign key instead of deleting the dependent.
func TestSetNullDeleteClearsForeignKey(t *testing.T) {
	cfg := companiesUsersConfig()
	rel := cfg.Collections["users"].Relationships[0]
	rel.OnDelete = query.OnDeleteSetNull
	uc := cfg.Collections["users"]
	uc.Relationships = []RelationshipConfig{rel}
	cfg.Collections["users"] = uc

	db, err := Open(cfg)
	require.NoError(t, err)
	companies := db.Collection("companies")
	users := db.Collection("users")

	_, err = companies.Create(Record{"id": "c1"})
	require.NoError(t, err)
	_, err = users.Create(Record{"id": "u1", "companyId": "c1"})
	require.NoError(t, err)

	_, err = companies.Delete("c1", DeleteOptions{})
	require.NoError(t, err)

	rec, err := users.FindByID("u1")
	require.NoError(t, err)
	require.Nil(t, rec["companyId"])
}

// S3 Migration 0->3.
func TestMigrationChain(t *testing.T) {
	adapter := storage.NewMemory()
	require.NoError(t, adapter.Write("users.json", `{"u1":{"id":"u1","name":"Alice Smith"}}`))

	splitName := func(raw map[string]any) (map[string]any, error) {
		name, _ := raw["name"].(string)
		first, last := name, ""
		for i, r := range name {
			if r == ' ' {
				first, last = name[:i], name[i+1:]
				break
			}
		}
		out := make(map[string]any, len(raw)+1)
		for k, v := range raw {
			out[k] = v
		}
		delete(out, "name")
		out["firstName"] = first
		out["lastName"] = last
		return out, nil
	}

	addEmail := func(raw map[string]any) (map[string]any, error) {
		name, _ := raw["name"].(string)
		lowered := make([]rune, 0, len(name))
		for _, r := range name {
			if r == ' ' {
				lowered = append(lowered, '.')
				continue
			}
			if r >= 'A' && r <= 'Z' {
				r = r - 'A' + 'a'
			}
			lowered = append(lowered, r)
		}
		out := make(map[string]any, len(raw)+1)
		for k, v := range raw {
			out[k] = v
		}
		out["email"] = string(lowered) + "@example.com"
		return out, nil
	}

	addAge := func(raw map[string]any) (map[string]any, error) {
		out := make(map[string]any, len(raw)+1)
		for k, v := range raw {
			out[k] = v
		}
		out["age"] = float64(0)
		return out, nil
	}

	cfg := DatabaseConfig{
		Collections: map[string]CollectionConfig{
			"users": {
				Schema: schema.New(
					&schema.Field{Name: "firstName", Type: schema.KindString},
					&schema.Field{Name: "lastName", Type: schema.KindString},
					&schema.Field{Name: "email", Type: schema.KindString},
					&schema.Field{Name: "age", Type: schema.KindNumber},
				),
				File:    "users.json",
				Version: 3,
				Migrations: []migrate.Migration{
					{From: 0, To: 1, Description: "add email", Transform: addEmail},
					{From: 1, To: 2, Description: "split name", Transform: splitName},
					{From: 2, To: 3, Description: "add age", Transform: addAge},
				},
			},
		},
	}

	db, err := OpenPersistent(cfg, adapter)
	require.NoError(t, err)
	users := db.Collection("users")

	rec, err := users.FindByID("u1")
	require.NoError(t, err)
	require.Equal(t, "Alice", rec["firstName"])
	require.Equal(t, "Smith", rec["lastName"])
	require.Equal(t, "alice.smith@example.com", rec["email"])
	require.Equal(t, float64(0), rec["age"])

	require.NoError(t, db.Flush())
	text, err := adapter.Read("users.json")
	require.NoError(t, err)
	require.Contains(t, text, `"_version": 3`)
}

// S4 Coalescing.
func TestCoalescing(t *testing.T) {
	adapter := newCountingAdapter()
	cfg := booksConfig()
	cc := cfg.Collections["books"]
	cfg.Collections["books"] = cc
	cfg.WriteDebounce = 50 * time.Millisecond

	db, err := OpenPersistent(cfg, adapter)
	require.NoError(t, err)
	books := db.Collection("books")

	for i := 0; i < 100; i++ {
		_, err := books.Create(Record{"title": "t", "year": float64(2000 + i)})
		require.NoError(t, err)
	}

	require.Equal(t, 0, adapter.writeCount())
	require.Equal(t, 1, db.PendingCount())

	require.NoError(t, db.Flush())
	require.Equal(t, 1, adapter.writeCount())
	require.Equal(t, 0, db.PendingCount())

	res, err := books.Query(query.Options{})
	require.NoError(t, err)
	require.Len(t, res.Items, 100)
}

// S5 Cursor pagination.
func TestCursorPagination(t *testing.T) {
	db, err := Open(DatabaseConfig{
		Collections: map[string]CollectionConfig{
			"items": {Schema: schema.New(&schema.Field{Name: "rank", Type: schema.KindNumber})},
		},
	})
	require.NoError(t, err)
	items := db.Collection("items")

	for i := 1; i <= 25; i++ {
		_, err := items.Create(Record{"id": itoa(i), "rank": float64(i)})
		require.NoError(t, err)
	}

	var allIDs []string
	var after string
	pageCount := 0
	for {
		res, err := items.Query(query.Options{
			Sort:   []query.SortKey{{Field: "rank"}},
			Cursor: &query.CursorOption{Key: "rank", After: after, PageSize: 10},
		})
		require.NoError(t, err)
		require.NotNil(t, res.Page)
		require.LessOrEqual(t, len(res.Page.Items), 10)
		for _, it := range res.Page.Items {
			allIDs = append(allIDs, it["id"].(string))
		}
		pageCount++
		if !res.Page.PageInfo.HasNextPage {
			require.False(t, res.Page.PageInfo.HasNextPage)
			break
		}
		after = res.Page.PageInfo.EndCursor
		require.LessOrEqual(t, pageCount, 10) // guard against infinite loop
	}

	require.Equal(t, 3, pageCount)
	require.Len(t, allIDs, 25)
	for i, id := range allIDs {
		require.Equal(t, itoa(i+1), id)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// S6 Unique-constraint enforcement.
func TestUniqueConstraint(t *testing.T) {
	db, err := Open(DatabaseConfig{
		Collections: map[string]CollectionConfig{
			"users": {
				Schema:       schema.New(&schema.Field{Name: "email", Type: schema.KindString}),
				UniqueFields: []string{"email"},
			},
		},
	})
	require.NoError(t, err)
	users := db.Collection("users")

	_, err = users.Create(Record{"email": "a@b"})
	require.NoError(t, err)

	_, err = users.Create(Record{"email": "a@b"})
	require.Error(t, err)
	dup, ok := err.(*DuplicateKeyError)
	require.True(t, ok)
	require.Equal(t, []string{"email"}, dup.Fields)

	res, err := users.Query(query.Options{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
}

// Property 1: findById returns the latest written entity, and fails
// with NotFoundError for ids never created.
func TestFindByIDLatestWrite(t *testing.T) {
	db, err := Open(booksConfig())
	require.NoError(t, err)
	books := db.Collection("books")

	created, err := books.Create(Record{"title": "Dune", "year": float64(1965)})
	require.NoError(t, err)
	id := created["id"].(string)

	_, err = books.Update(id, Record{"year": float64(1966)})
	require.NoError(t, err)

	rec, err := books.FindByID(id)
	require.NoError(t, err)
	require.Equal(t, float64(1966), rec["year"])

	_, err = books.FindByID("never-created")
	require.Error(t, err)
	require.IsType(t, &NotFoundError{}, err)
}

// Property 4: pagination composition.
func TestPaginationComposition(t *testing.T) {
	db, err := Open(DatabaseConfig{
		Collections: map[string]CollectionConfig{
			"items": {Schema: schema.New(&schema.Field{Name: "rank", Type: schema.KindNumber})},
		},
	})
	require.NoError(t, err)
	items := db.Collection("items")
	for i := 1; i <= 10; i++ {
		_, err := items.Create(Record{"id": itoa(i), "rank": float64(i)})
		require.NoError(t, err)
	}

	full, err := items.Query(query.Options{Sort: []query.SortKey{{Field: "rank"}}})
	require.NoError(t, err)

	paged, err := items.Query(query.Options{
		Sort: []query.SortKey{{Field: "rank"}}, HasOffset: true, Offset: 3, HasLimit: true, Limit: 4,
	})
	require.NoError(t, err)

	require.Equal(t, full.Items[3:7], paged.Items)
}

// Property 7: the cascade fixpoint visits each dependent once (two
// dependents of b1 give a cascaded count of 2) and leaves no dangling
// foreign keys.
func TestCascadeFixpointNoDuplicateVisits(t *testing.T) {
	cfg := DatabaseConfig{
		Collections: map[string]CollectionConfig{
			"a": {
				Schema: schema.New(&schema.Field{Name: "bId", Type: schema.KindString, Optional: true}),
				Relationships: []RelationshipConfig{
					{Name: "b", Kind: query.RelRef, Collection: "b", ForeignKey: "bId", OnDelete: query.OnDeleteCascade},
				},
			},
			"b": {Schema: schema.New()},
		},
	}
	db, err := Open(cfg)
	require.NoError(t, err)
	a := db.Collection("a")
	b := db.Collection("b")

	_, err = b.Create(Record{"id": "b1"})
	require.NoError(t, err)
	_, err = a.Create(Record{"id": "a1", "bId": "b1"})
	require.NoError(t, err)
	_, err = a.Create(Record{"id": "a2", "bId": "b1"})
	require.NoError(t, err)

	result, err := b.Delete("b1", DeleteOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Cascaded["a"].Count)

	res, err := a.Query(query.Options{})
	require.NoError(t, err)
	require.Empty(t, res.Items)
}

// Property 6: aggregation consistency.
func TestAggregateConsistency(t *testing.T) {
	db, err := Open(DatabaseConfig{
		Collections: map[string]CollectionConfig{
			"orders": {Schema: schema.New(&schema.Field{Name: "amount", Type: schema.KindNumber})},
		},
	})
	require.NoError(t, err)
	orders := db.Collection("orders")
	for i := 1; i <= 5; i++ {
		_, err := orders.Create(Record{"amount": float64(i * 10)})
		require.NoError(t, err)
	}

	result, _, err := orders.Aggregate(AggregateConfig{Count: true, Sum: []string{"amount"}})
	require.NoError(t, err)
	require.Equal(t, 5, result.Count)
	require.Equal(t, float64(150), result.Sum["amount"])

	queried, err := orders.Query(query.Options{})
	require.NoError(t, err)
	require.Equal(t, result.Count, len(queried.Items))
}

// Soft delete: a deletedAt-bearing schema filters soft-deleted entities
// from default query results but keeps them reachable via findById's
// underlying store.
func TestSoftDelete(t *testing.T) {
	db, err := Open(DatabaseConfig{
		Collections: map[string]CollectionConfig{
			"notes": {
				Schema: schema.New(
					&schema.Field{Name: "text", Type: schema.KindString},
					&schema.Field{Name: "deletedAt", Type: schema.KindString, Optional: true},
				),
			},
		},
	})
	require.NoError(t, err)
	notes := db.Collection("notes")

	_, err = notes.Create(Record{"text": "keep"})
	require.NoError(t, err)
	created, err := notes.Create(Record{"text": "hi"})
	require.NoError(t, err)
	id := created["id"].(string)

	_, err = notes.Delete(id, DeleteOptions{Soft: true})
	require.NoError(t, err)

	rec, err := notes.FindByID(id)
	require.NoError(t, err)
	require.NotNil(t, rec["deletedAt"])

	defaultRes, err := notes.Query(query.Options{})
	require.NoError(t, err)
	require.Len(t, defaultRes.Items, 1)
	require.Equal(t, "keep", defaultRes.Items[0]["text"])

	withDeleted, err := notes.Query(query.Options{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, withDeleted.Items, 2)
}

// Relationship-aware mutation: createWithRelationships binds a ref
// foreign key via connect.
func TestCreateWithRelationshipsConnect(t *testing.T) {
	db, err := Open(companiesUsersConfig())
	require.NoError(t, err)
	companies := db.Collection("companies")
	users := db.Collection("users")

	_, err = companies.Create(Record{"id": "c1"})
	require.NoError(t, err)

	rec, err := users.CreateWithRelationships(Record{"id": "u1"}, map[string]RelationDirective{
		"company": {Connect: &IDRef{ID: "c1"}},
	})
	require.NoError(t, err)
	require.Equal(t, "c1", rec["companyId"])
}
