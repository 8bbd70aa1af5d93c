package entitystore

import (
	"testing"

	"github.com/proseql/proseql/internal/docval"
)

func TestInsertAndGet(t *testing.T) {
	st := New(nil, nil)
	if _, err := st.Insert("a1", docval.Map{"title": "Dune"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	snap := st.Snapshot()
	rec, ok := snap.Get("a1")
	if !ok || rec["title"] != "Dune" {
		t.Fatalf("get returned %v, %v", rec, ok)
	}
}

func TestInsertDuplicateID(t *testing.T) {
	st := New(nil, nil)
	if _, err := st.Insert("a1", docval.Map{"title": "Dune"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := st.Insert("a1", docval.Map{"title": "Other"})
	if _, ok := err.(*DuplicateKeyError); !ok {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
}

func TestUniqueFieldCollision(t *testing.T) {
	st := New([]string{"isbn"}, nil)
	if _, err := st.Insert("a1", docval.Map{"isbn": "123"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := st.Insert("a2", docval.Map{"isbn": "123"})
	if _, ok := err.(*DuplicateKeyError); !ok {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
}

func TestReplaceUpdatesIndexes(t *testing.T) {
	st := New(nil, []string{"genre"})
	if _, err := st.Insert("a1", docval.Map{"genre": "fiction"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := st.Replace("a1", docval.Map{"genre": "nonfiction"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	snap := st.Snapshot()
	if ids := snap.ByIndex("genre", "fiction"); len(ids) != 0 {
		t.Errorf("expected no ids under stale index value, got %v", ids)
	}
	if ids := snap.ByIndex("genre", "nonfiction"); len(ids) != 1 || ids[0] != "a1" {
		t.Errorf("expected [a1] under new index value, got %v", ids)
	}
}

func TestDeleteRemovesFromUniqueIndex(t *testing.T) {
	st := New([]string{"isbn"}, nil)
	if _, err := st.Insert("a1", docval.Map{"isbn": "123"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, ok := st.Delete("a1"); !ok {
		t.Fatal("expected delete to report ok")
	}
	if _, err := st.Insert("a2", docval.Map{"isbn": "123"}); err != nil {
		t.Fatalf("expected isbn 123 to be free after delete: %v", err)
	}
}

func TestByPrefixMatchesAndTracksMutation(t *testing.T) {
	st := New(nil, []string{"title"})
	if _, err := st.Insert("a1", docval.Map{"title": "Dune"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := st.Insert("a2", docval.Map{"title": "Dune Messiah"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := st.Insert("a3", docval.Map{"title": "Foundation"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	snap := st.Snapshot()
	ids, ok := snap.ByPrefix("title", "Dune")
	if !ok {
		t.Fatal("expected title to carry a prefix index")
	}
	if len(ids) != 2 || !contains(ids, "a1") || !contains(ids, "a2") {
		t.Errorf("expected [a1 a2], got %v", ids)
	}

	if _, err := st.Replace("a2", docval.Map{"title": "Children of Dune"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	ids, _ = st.Snapshot().ByPrefix("title", "Dune")
	if len(ids) != 1 || ids[0] != "a1" {
		t.Errorf("expected only a1 after a2's title stopped matching, got %v", ids)
	}
	ids, _ = st.Snapshot().ByPrefix("title", "Children")
	if len(ids) != 1 || ids[0] != "a2" {
		t.Errorf("expected a2 under its new prefix, got %v", ids)
	}

	if _, ok := st.Delete("a1"); !ok {
		t.Fatal("expected delete to report ok")
	}
	ids, _ = st.Snapshot().ByPrefix("title", "Dune")
	if len(ids) != 0 {
		t.Errorf("expected no matches after a1's deletion, got %v", ids)
	}
}

func TestByPrefixUndeclaredFieldReportsNotOK(t *testing.T) {
	st := New(nil, nil)
	st.Insert("a1", docval.Map{"title": "Dune"})
	if _, ok := st.Snapshot().ByPrefix("title", "Dune"); ok {
		t.Error("expected ok=false for a field with no declared secondary index")
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestSnapshotIsolationAcrossMutation(t *testing.T) {
	st := New(nil, nil)
	st.Insert("a1", docval.Map{"v": float64(1)})
	snap1 := st.Snapshot()
	st.Insert("a2", docval.Map{"v": float64(2)})
	if snap1.Len() != 1 {
		t.Errorf("expected snapshot taken before mutation to stay at 1 record, got %d", snap1.Len())
	}
	if st.Snapshot().Len() != 2 {
		t.Errorf("expected current snapshot to reflect both inserts")
	}
}
