package codec

import (
	"testing"

	"github.com/rs/zerolog"
)

type fakeCodec struct {
	name string
	exts []string
}

func (f fakeCodec) Name() string         { return f.name }
func (f fakeCodec) Extensions() []string { return f.exts }
func (f fakeCodec) Encode(v any) (string, error) { return "", nil }
func (f fakeCodec) Decode(s string) (any, error) { return nil, nil }

func TestResolveByExtension(t *testing.T) {
	r := NewRegistry(zerolog.Nop(), fakeCodec{name: "json", exts: []string{"json"}})
	c, err := r.Resolve("books.json", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name() != "json" {
		t.Errorf("expected json codec, got %s", c.Name())
	}
}

func TestResolveUnsupported(t *testing.T) {
	r := NewRegistry(zerolog.Nop(), fakeCodec{name: "json", exts: []string{"json"}})
	_, err := r.Resolve("books.xyz", "")
	uf, ok := err.(*UnsupportedFormatError)
	if !ok {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	if uf.Ext != "xyz" {
		t.Errorf("expected ext xyz, got %s", uf.Ext)
	}
}

func TestLastRegisteredWins(t *testing.T) {
	r := NewRegistry(zerolog.Nop(),
		fakeCodec{name: "first", exts: []string{"x"}},
		fakeCodec{name: "second", exts: []string{"x"}},
	)
	c, _ := r.Resolve("file.x", "")
	if c.Name() != "second" {
		t.Errorf("expected second codec to win, got %s", c.Name())
	}
}

func TestResolveFormatOverride(t *testing.T) {
	r := NewRegistry(zerolog.Nop(), fakeCodec{name: "yaml", exts: []string{"yaml", "yml"}})
	c, err := r.Resolve("whatever.txt", "yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name() != "yaml" {
		t.Errorf("expected yaml codec, got %s", c.Name())
	}
}
