package metadata

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseTypedValues(t *testing.T) {
	input := strings.Join([]string{
		"filtered=True",
		"max_users_requested=50",
		"n_users_actual=48",
		"kg_file_hash=0123456789",
		"legacy_note=42",
		"not a pair",
		"weird=a=b",
	}, "\n")

	m, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if b, ok := m.Bool(KeyFiltered); !ok || !b {
		t.Fatalf("expected filtered=true, got %v (ok=%v)", b, ok)
	}
	if n, ok := m.Int(KeyUsersActual); !ok || n != 48 {
		t.Fatalf("expected n_users_actual=48, got %d (ok=%v)", n, ok)
	}
	// declared string keys never turn into numbers
	if s, ok := m.Str(KeyKGFileHash); !ok || s != "0123456789" {
		t.Fatalf("expected hash string, got %q (ok=%v)", s, ok)
	}
	// unknown keys stay opaque strings
	v, ok := m.Get("legacy_note")
	if !ok || v.Kind() != KindString || v.String() != "42" {
		t.Fatalf("expected opaque string 42, got %v kind %s", v, v.Kind())
	}
	if v, _ := m.Get("weird"); v.String() != "a=b" {
		t.Fatalf("expected value split at first '=', got %q", v.String())
	}
	if m.Len() != 6 {
		t.Fatalf("expected 6 entries, got %d", m.Len())
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		kind Kind
	}{
		{"true", KindBool},
		{"FALSE", KindBool},
		{"-3", KindInt},
		{"3.5", KindString},
		{"", KindString},
	}
	for _, tt := range tests {
		if got := ParseValue(tt.raw).Kind(); got != tt.kind {
			t.Errorf("%q: expected %s, got %s", tt.raw, tt.kind, got)
		}
	}
}

func TestDeclaredKindMismatchKeepsRaw(t *testing.T) {
	m, err := Parse(strings.NewReader("n_entities=lots\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Int(KeyEntities); ok {
		t.Fatal("expected non-integer n_entities to not read as int")
	}
	if s, _ := m.Str(KeyEntities); s != "lots" {
		t.Fatalf("expected raw value kept, got %q", s)
	}
}

func TestWriteKeepsOrderAndSpelling(t *testing.T) {
	m := New()
	m.Set(KeyFiltered, Bool(false))
	m.Set(KeyUsersActual, Int(3))
	m.Set(KeyKGFileHash, String("abc"))
	m.Set(KeyUsersActual, Int(4))

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	want := "filtered=False\nn_users_actual=4\nkg_file_hash=abc\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestSaveLoadPreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	m, _ := Parse(strings.NewReader("filtered=false\ntype=full\nn_relations=4\n"))
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	entries := got.Entries()
	if len(entries) != 3 || entries[1].Key != "type" || entries[1].Value.String() != "full" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestSaveReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("type=small\nn_entities=99\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, _ := Parse(strings.NewReader("type=full\n"))
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "type=full\n" {
		t.Fatalf("expected %q, got %q", "type=full\n", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no temporary files left, got %v", entries)
	}
}

func TestExpectedEntities(t *testing.T) {
	m := New()
	if _, ok := m.ExpectedEntities(); ok {
		t.Fatal("expected no entity count for empty metadata")
	}
	m.Set(KeyArtistsActual, Int(10))
	m.Set(KeyUsersActual, Int(5))
	if n, ok := m.ExpectedEntities(); !ok || n != 15 {
		t.Fatalf("expected 15, got %d", n)
	}
	m.Set(KeyEntities, Int(16))
	if n, _ := m.ExpectedEntities(); n != 16 {
		t.Fatalf("expected n_entities to win, got %d", n)
	}

	var nilMeta *Metadata
	if _, ok := nilMeta.ExpectedEntities(); ok {
		t.Fatal("expected nil metadata to declare nothing")
	}
	if nilMeta.Filtered() {
		t.Fatal("expected nil metadata to be unfiltered")
	}
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if _, err := Load(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	m, err := LoadOptional(path)
	if err != nil || m != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", m, err)
	}
}
