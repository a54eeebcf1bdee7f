package pgx

import (
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
)

func TestTripleSourceWindow(t *testing.T) {
	m := common.Matrix{Cols: 3, Data: []int32{
		2, 0, 0,
		2, 0, 1,
		0, 1, 2,
	}}
	src := &tripleSource{dataset: "music", m: m, next: 1, end: 3}

	var got [][]any
	for src.Next() {
		v, err := src.Values()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
	}
	want := [][]any{
		{"music", int32(1), int32(2), int16(0), int32(1), int32(1)},
		{"music", int32(2), int32(0), int16(1), int32(2), int32(1)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if src.Err() != nil {
		t.Fatalf("expected nil error, got %v", src.Err())
	}
}

func TestNewGraphDBStorageOptions(t *testing.T) {
	s := NewGraphDBStorageWithConnection(nil, WithChunkSize(10), nil)
	if s.chunkSize != 10 {
		t.Fatalf("expected chunk size 10, got %d", s.chunkSize)
	}
	s = NewGraphDBStorageWithConnection(nil, WithChunkSize(-1))
	if s.chunkSize != 50_000 {
		t.Fatalf("expected default chunk size, got %d", s.chunkSize)
	}
}
