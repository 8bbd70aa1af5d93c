// Package search implements the $search query operator's tokenizer and
// multi-pattern matcher (spec §4.6(b)). It is adapted from two pieces of
// GoKitt: the stopword filtering in
// pkg/scanner/discovery/registry.go (orsinium-labs/stopwords), and the
// Aho-Corasick multi-pattern scan in
// pkg/implicit-matcher/dictionary.go (coregx/ahocorasick), repurposed
// from entity-mention extraction to query-token matching against
// document field text.
package search

import (
	"regexp"
	"strings"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
)

var wordSplit = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Index tokenizes and matches query text against field text, per the
// fixed English stopword list named in spec §4.6(b).
type Index struct {
	stop *stopwords.Stopwords
}

// New builds a search index using the standard English stopword list.
func New() *Index {
	return &Index{stop: stopwords.MustGet("en")}
}

// Tokenize lowercases text, splits on non-word characters, and drops
// stop words.
func (ix *Index) Tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := wordSplit.Split(lower, -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if tok == "" {
			continue
		}
		if ix.stop != nil && ix.stop.Contains(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Matches reports whether every token of the (already-tokenized) query
// appears as a substring somewhere across fieldTexts. An empty query
// matches everything. Matching is substring-based (via a single
// Aho-Corasick automaton over all query tokens) rather than exact-token
// equality, so a query token also matches inside a compound word.
func (ix *Index) Matches(queryTokens []string, fieldTexts ...string) bool {
	if len(queryTokens) == 0 {
		return true
	}
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(queryTokens).
		SetMatchKind(ahocorasick.LeftmostLongest).
		Build()
	if err != nil {
		return false
	}

	haystack := []byte(strings.ToLower(strings.Join(fieldTexts, " ")))
	found := make(map[int]bool, len(queryTokens))
	for _, m := range automaton.FindAllOverlapping(haystack) {
		found[m.PatternID] = true
	}
	return len(found) == len(queryTokens)
}
