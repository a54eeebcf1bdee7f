package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/OFFIS-RIT/listenkg/pkg/cache"
	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/graph"
	"github.com/OFFIS-RIT/listenkg/pkg/loader"
	"github.com/OFFIS-RIT/listenkg/pkg/metadata"
)

// prepare runs the pipeline over a small raw dataset and returns the
// data root holding <root>/music.
func prepare(t *testing.T) string {
	t.Helper()
	raw := t.TempDir()
	root := t.TempDir()

	var cat, ua strings.Builder
	cat.WriteString("id\tname\n")
	for a := range 6 {
		fmt.Fprintf(&cat, "%d\tartist %d\n", a+1, a+1)
	}
	ua.WriteString("userID\tartistID\tweight\n")
	for u := range 5 {
		for k := range 3 {
			fmt.Fprintf(&ua, "%d\t%d\t%d\n", u+1, (u+k)%6+1, 10*(k+1)+u)
		}
	}
	if err := os.WriteFile(filepath.Join(raw, common.CatalogFile), []byte(cat.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(raw, common.InteractionsFile), []byte(ua.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	client := graph.NewGraphClient(graph.NewGraphClientParams{Seed: 555})
	if _, err := client.ProcessDataset(context.Background(), graph.ProcessParams{
		RawPath:    raw,
		OutputPath: filepath.Join(root, "music"),
	}); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestLoadKGIdempotent(t *testing.T) {
	root := prepare(t)
	ds := New(NewDatasetParams{Root: root})
	ctx := context.Background()

	first, err := ds.LoadKG(ctx)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if first.CacheState != cache.StateNoCache {
		t.Fatalf("expected %s, got %s", cache.StateNoCache, first.CacheState)
	}
	second, err := ds.LoadKG(ctx)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if second.CacheState != cache.StateFresh {
		t.Fatalf("expected %s, got %s", cache.StateFresh, second.CacheState)
	}
	if !first.Triples.Equal(second.Triples) {
		t.Fatal("expected identical triples from text and cache")
	}
	if !reflect.DeepEqual(first.Adjacency, second.Adjacency) {
		t.Fatal("expected identical adjacency from text and cache")
	}
	if first.Annotations.NEntity != 11 || first.Annotations.NRelation != 4 {
		t.Fatalf("unexpected annotations %+v", first.Annotations)
	}
	if first.Annotations.Type != "full" {
		t.Fatalf("expected type full, got %s", first.Annotations.Type)
	}
}

func TestLoadKGRebuildsOnNewerText(t *testing.T) {
	root := prepare(t)
	ds := New(NewDatasetParams{Root: root})
	ctx := context.Background()

	if _, err := ds.LoadKG(ctx); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ds.LoadRatings(ctx); err != nil {
		t.Fatal(err)
	}

	// append a sentinel triple and move the text past the cache
	f, err := os.OpenFile(ds.KGTextPath(), os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("0\t2\t1\t99\n1\t3\t0\t99\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()
	info, err := os.Stat(ds.KGCachePath())
	if err != nil {
		t.Fatal(err)
	}
	later := info.ModTime().Add(2 * time.Second)
	if err := os.Chtimes(ds.KGTextPath(), later, later); err != nil {
		t.Fatal(err)
	}

	kg, err := ds.LoadKG(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if kg.CacheState != cache.StateStaleByTime {
		t.Fatalf("expected %s, got %s", cache.StateStaleByTime, kg.CacheState)
	}
	last := kg.Triples.Triple(kg.Triples.Rows() - 1)
	if last.Weight != 99 {
		t.Fatalf("expected sentinel triple to be loaded, got %+v", last)
	}
	if _, err := os.Stat(ds.RatingsCachePath()); !os.IsNotExist(err) {
		t.Fatalf("expected ratings cache to be dropped with the kg cache, got %v", err)
	}
}

func TestLoadKGStaleByMetadata(t *testing.T) {
	root := prepare(t)
	ds := New(NewDatasetParams{Root: root})
	ctx := context.Background()

	if _, err := ds.LoadKG(ctx); err != nil {
		t.Fatal(err)
	}

	meta, err := ds.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	meta.Set(metadata.KeyEntities, metadata.Int(500))
	if err := meta.Save(ds.MetadataPath()); err != nil {
		t.Fatal(err)
	}

	kg, err := ds.LoadKG(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if kg.CacheState != cache.StateStaleByMetadata {
		t.Fatalf("expected %s, got %s", cache.StateStaleByMetadata, kg.CacheState)
	}
}

func TestLoadKGSkipsShortFirstLine(t *testing.T) {
	root := prepare(t)
	ds := New(NewDatasetParams{Root: root})
	ctx := context.Background()

	clean, err := ds.LoadKG(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(ds.KGCachePath()); err != nil {
		t.Fatal(err)
	}
	text, err := os.ReadFile(ds.KGTextPath())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ds.KGTextPath(), append([]byte("2\t0\n"), text...), 0o644); err != nil {
		t.Fatal(err)
	}

	kg, err := ds.LoadKG(ctx)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if kg.Triples.Cols != clean.Triples.Cols || kg.Triples.Rows() != clean.Triples.Rows() {
		t.Fatalf("expected %dx%d, got %dx%d", clean.Triples.Rows(), clean.Triples.Cols, kg.Triples.Rows(), kg.Triples.Cols)
	}
	if !kg.Triples.Equal(clean.Triples) {
		t.Fatal("expected the short line to be skipped and every triple kept")
	}
}

func TestLoadKGRebuildsNarrowCache(t *testing.T) {
	root := prepare(t)
	ds := New(NewDatasetParams{Root: root})

	narrow := common.Matrix{Cols: 2, Data: []int32{0, 1, 2, 3}}
	if err := cache.WriteFile(ds.KGCachePath(), narrow); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(ds.KGCachePath())
	if err != nil {
		t.Fatal(err)
	}
	earlier := info.ModTime().Add(-2 * time.Second)
	if err := os.Chtimes(ds.KGTextPath(), earlier, earlier); err != nil {
		t.Fatal(err)
	}

	kg, err := ds.LoadKG(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if kg.CacheState != cache.StateCorrupt {
		t.Fatalf("expected %s, got %s", cache.StateCorrupt, kg.CacheState)
	}
	if !common.ValidCols(kg.Triples.Cols) || kg.Triples.Rows() == 0 {
		t.Fatalf("expected triples rebuilt from text, got %dx%d", kg.Triples.Rows(), kg.Triples.Cols)
	}
}

func TestLoadKGWithoutMetadata(t *testing.T) {
	root := prepare(t)
	ds := New(NewDatasetParams{Root: root, VerifyOnLoad: true})
	if err := os.Remove(ds.MetadataPath()); err != nil {
		t.Fatal(err)
	}
	kg, err := ds.LoadKG(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if kg.Metadata != nil {
		t.Fatal("expected no metadata")
	}
	if kg.Integrity == nil || !kg.Integrity.Unknown() {
		t.Fatalf("expected unknown integrity, got %+v", kg.Integrity)
	}
}

func TestLoadKGMissing(t *testing.T) {
	ds := New(NewDatasetParams{Root: t.TempDir()})
	if _, err := ds.LoadKG(context.Background()); !errors.Is(err, loader.ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	root := prepare(t)
	ds := New(NewDatasetParams{Root: root})
	ctx := context.Background()

	report, err := ds.Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.AllValid {
		t.Fatalf("expected fresh dataset to verify, got %+v", report)
	}

	data, err := os.ReadFile(ds.RatingsTextPath())
	if err != nil {
		t.Fatal(err)
	}
	data[0] ^= 1
	if err := os.WriteFile(ds.RatingsTextPath(), data, 0o644); err != nil {
		t.Fatal(err)
	}

	report, err = ds.Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Violated() || report.AllValid {
		t.Fatalf("expected violation after one-byte change, got %+v", report)
	}
}

func TestSmallVariantPaths(t *testing.T) {
	ds := New(NewDatasetParams{Root: "/data", Name: "music", UseSmall: true})
	if got := ds.KGTextPath(); got != filepath.Join("/data", "music", "kg_final_small.txt") {
		t.Fatalf("unexpected kg path %s", got)
	}
	if got := ds.RatingsCachePath(); got != filepath.Join("/data", "music", "ratings_final_small.bin") {
		t.Fatalf("unexpected ratings cache path %s", got)
	}
	if got := ds.MetadataPath(); got != filepath.Join("/data", "music", metadata.FileName) {
		t.Fatalf("unexpected metadata path %s", got)
	}
}

func TestUserHistory(t *testing.T) {
	ratings := common.RatingsToMatrix([]common.Rating{
		{User: 0, Item: 3, Label: 1},
		{User: 0, Item: 4, Label: 0},
		{User: 1, Item: 2, Label: 1},
		{User: 0, Item: 1, Label: 1},
	})
	got := UserHistory(ratings)
	want := map[int][]int{0: {3, 1}, 1: {2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
