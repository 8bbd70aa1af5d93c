package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryReadWrite(t *testing.T) {
	m := NewMemory()
	if _, err := m.Read("a.json"); err == nil {
		t.Fatal("expected not-found error")
	}
	if err := m.Write("a.json", "hello"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := m.Read("a.json")
	if err != nil || got != "hello" {
		t.Fatalf("got %q, %v", got, err)
	}
	exists, _ := m.Exists("a.json")
	if !exists {
		t.Error("expected file to exist")
	}
	if err := m.Remove("a.json"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	exists, _ = m.Exists("a.json")
	if exists {
		t.Error("expected file to be gone")
	}
}

func TestFilesystemWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := NewFilesystem(dir)
	if err := fs.Write("books.json", `{"1":{"id":"1"}}`); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := fs.Read("books.json")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got != `{"1":{"id":"1"}}` {
		t.Errorf("unexpected contents: %q", got)
	}
	full := filepath.Join(dir, "books.json")
	if _, statErr := os.Stat(full); statErr != nil {
		t.Errorf("expected file on disk: %v", statErr)
	}
}

func TestFilesystemReadMissing(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	_, err := fs.Read("missing.json")
	var serr *Error
	if !errors.As(err, &serr) || serr.Operation != OpRead {
		t.Fatalf("expected read Error, got %v", err)
	}
	if !errors.Is(serr.Cause, ErrNotFound) {
		t.Errorf("expected ErrNotFound cause, got %v", serr.Cause)
	}
}
