// Package metadata reads and writes dataset_metadata.txt, the flat
// key=value file that describes how a dataset was preprocessed.
//
// Values are a tagged variant of bool, int or string. Known keys carry a
// declared kind; keys the package does not know are kept verbatim as
// strings so legacy files survive a read/write cycle unchanged.
package metadata

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
)

// FileName is the metadata file name inside a dataset directory.
const FileName = "dataset_metadata.txt"

// Key names a metadata field.
type Key string

const (
	KeyFiltered            Key = "filtered"
	KeyMaxUsersRequested   Key = "max_users_requested"
	KeyMaxArtistsRequested Key = "max_artists_requested"
	KeyUsersActual         Key = "n_users_actual"
	KeyArtistsActual       Key = "n_artists_actual"
	KeyEntities            Key = "n_entities"
	KeyRelations           Key = "n_relations"
	KeyKGTriples           Key = "n_kg_triples"
	KeyKGFileHash          Key = "kg_file_hash"
	KeyRatingsFileHash     Key = "ratings_file_hash"
)

// Kind is the type tag of a Value.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	default:
		return "string"
	}
}

var knownKinds = map[Key]Kind{
	KeyFiltered:            KindBool,
	KeyMaxUsersRequested:   KindInt,
	KeyMaxArtistsRequested: KindInt,
	KeyUsersActual:         KindInt,
	KeyArtistsActual:       KindInt,
	KeyEntities:            KindInt,
	KeyRelations:           KindInt,
	KeyKGTriples:           KindInt,
	KeyKGFileHash:          KindString,
	KeyRatingsFileHash:     KindString,
}

// Known reports whether k is one of the declared metadata fields.
func Known(k Key) bool {
	_, ok := knownKinds[k]
	return ok
}

// Value is a bool, int or string.
type Value struct {
	kind Kind
	b    bool
	i    int64
	s    string
}

func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func String(s string) Value { return Value{kind: KindString, s: s} }

func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean payload; ok is false for other kinds.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload; ok is false for other kinds.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsString returns the string payload; ok is false for other kinds.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// String renders the value the way it is written to disk. Booleans use
// the capitalized True/False spelling of the files produced so far.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	default:
		return v.s
	}
}

// ParseValue applies the generic rule: true/false (any case), else an
// integer, else the raw string.
func ParseValue(raw string) Value {
	switch strings.ToLower(raw) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Int(i)
	}
	return String(raw)
}

func parseFor(key Key, raw string) Value {
	kind, ok := knownKinds[key]
	if !ok {
		return String(raw)
	}
	switch kind {
	case KindString:
		return String(raw)
	case KindBool:
		if v := ParseValue(raw); v.kind == KindBool {
			return v
		}
	case KindInt:
		if v := ParseValue(raw); v.kind == KindInt {
			return v
		}
	}
	// declared kind did not match, keep what the file says
	return String(raw)
}

// Entry is one key=value pair.
type Entry struct {
	Key   Key
	Value Value
}

// Metadata is an ordered set of entries. The zero value is not usable;
// create one with New, Parse or Load.
type Metadata struct {
	entries []Entry
	index   map[Key]int
}

func New() *Metadata {
	return &Metadata{index: make(map[Key]int)}
}

// Set adds or replaces a value. New keys are appended, existing keys keep
// their position.
func (m *Metadata) Set(key Key, value Value) {
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

func (m *Metadata) Get(key Key) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	i, ok := m.index[key]
	if !ok {
		return Value{}, false
	}
	return m.entries[i].Value, true
}

// Int returns the integer stored under key.
func (m *Metadata) Int(key Key) (int64, bool) {
	v, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

// Bool returns the boolean stored under key.
func (m *Metadata) Bool(key Key) (bool, bool) {
	v, ok := m.Get(key)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// Str returns the string stored under key. Empty strings count as absent.
func (m *Metadata) Str(key Key) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.AsString()
	return s, ok && s != ""
}

// Entries returns a copy of all entries in file order.
func (m *Metadata) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Filtered reports whether the dataset was reduced before preprocessing.
// Legacy files without the key count as unfiltered.
func (m *Metadata) Filtered() bool {
	b, _ := m.Bool(KeyFiltered)
	return b
}

// ExpectedEntities returns the entity count the metadata declares:
// n_entities when present, else n_artists_actual + n_users_actual.
func (m *Metadata) ExpectedEntities() (int, bool) {
	if n, ok := m.Int(KeyEntities); ok {
		return int(n), true
	}
	artists, okA := m.Int(KeyArtistsActual)
	users, okU := m.Int(KeyUsersActual)
	if okA && okU {
		return int(artists + users), true
	}
	return 0, false
}

// Parse reads newline-delimited key=value pairs. Lines without '=' are
// ignored; only the first '=' separates key and value.
func Parse(r io.Reader) (*Metadata, error) {
	m := New()
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k := Key(key)
		m.Set(k, parseFor(k, value))
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads the metadata file at path. A missing file yields an error
// matching fs.ErrNotExist.
func Load(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// LoadOptional is Load that maps a missing file to (nil, nil), the state
// of datasets built before metadata existed.
func LoadOptional(path string) (*Metadata, error) {
	m, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return m, err
}

// WriteTo writes all entries in order.
func (m *Metadata) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range m.entries {
		n, err := fmt.Fprintf(w, "%s=%s\n", e.Key, e.Value)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Save writes the metadata to path, replacing any existing file only once
// the new content is complete.
func (m *Metadata) Save(path string) error {
	return common.WriteAtomic(path, func(w io.Writer) error {
		_, err := m.WriteTo(w)
		return err
	})
}
