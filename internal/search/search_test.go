package search

import "testing"

func TestTokenizeDropsStopwordsAndPunctuation(t *testing.T) {
	ix := New()
	toks := ix.Tokenize("The Lord of the Rings!")
	want := map[string]bool{"lord": true, "rings": true}
	if len(toks) != len(want) {
		t.Fatalf("got %v, want tokens matching %v", toks, want)
	}
	for _, tok := range toks {
		if !want[tok] {
			t.Errorf("unexpected token %q", tok)
		}
	}
}

func TestMatchesRequiresEveryToken(t *testing.T) {
	ix := New()
	query := ix.Tokenize("tolkien rings")
	if !ix.Matches(query, "J.R.R. Tolkien wrote The Lord of the Rings") {
		t.Error("expected match when both tokens are present")
	}
	if ix.Matches(query, "J.R.R. Tolkien wrote The Hobbit") {
		t.Error("expected no match when only one token is present")
	}
}

func TestMatchesEmptyQueryAlwaysMatches(t *testing.T) {
	ix := New()
	if !ix.Matches(nil, "anything") {
		t.Error("expected empty query to match")
	}
}
