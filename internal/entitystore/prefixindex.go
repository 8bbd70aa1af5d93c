package entitystore

import (
	trie "github.com/derekparker/trie/v3"
)

// prefixIndex is a trie-backed ordered index over one secondary-indexed
// field's string values. It is maintained alongside Snapshot's plain
// map-backed equality index (ByIndex) so that $startsWith/prefix lookups
// (spec §4.6(b)) can resolve via an ordered prefix scan instead of a
// full collection scan. Grounded as the prefix-ordered secondary index
// component SPEC_FULL.md's DOMAIN STACK assigns to
// github.com/derekparker/trie/v3.
type prefixIndex struct {
	t *trie.Trie
}

func newPrefixIndex() *prefixIndex {
	return &prefixIndex{t: trie.New()}
}

func (p *prefixIndex) ids(key string) []string {
	node, ok := p.t.Find(key)
	if !ok {
		return nil
	}
	ids, _ := node.Meta().([]string)
	return ids
}

// add binds id under key, appending to any ids already bound there.
func (p *prefixIndex) add(key, id string) {
	existing := p.ids(key)
	next := make([]string, len(existing), len(existing)+1)
	copy(next, existing)
	next = append(next, id)
	p.t.Add(key, next)
}

// remove unbinds id from key, dropping the trie entry entirely once
// empty.
func (p *prefixIndex) remove(key, id string) {
	existing := p.ids(key)
	if len(existing) == 0 {
		return
	}
	filtered := make([]string, 0, len(existing))
	for _, e := range existing {
		if e != id {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		p.t.Remove(key)
		return
	}
	p.t.Add(key, filtered)
}

// prefixMatch returns every id bound under a key that begins with
// prefix.
func (p *prefixIndex) prefixMatch(prefix string) []string {
	var out []string
	for _, key := range p.t.PrefixSearch(prefix) {
		out = append(out, p.ids(key)...)
	}
	return out
}

// clone deep-copies the index for Snapshot's copy-on-write swap.
func (p *prefixIndex) clone() *prefixIndex {
	next := newPrefixIndex()
	for _, key := range p.t.Keys() {
		next.t.Add(key, append([]string(nil), p.ids(key)...))
	}
	return next
}
