package storage

import (
	"testing"

	"github.com/OFFIS-RIT/listenkg/pkg/metadata"
)

func TestArtifactKey(t *testing.T) {
	a := NewArtifactStore(nil, "bucket", "datasets")
	if got := a.Key("music", "kg_final.txt"); got != "datasets/music/kg_final.txt" {
		t.Fatalf("unexpected key %s", got)
	}
	noPrefix := NewArtifactStore(nil, "bucket", "")
	if got := noPrefix.Key("music", "kg_final.txt"); got != "music/kg_final.txt" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestArtifactsMetadataLast(t *testing.T) {
	if Artifacts[len(Artifacts)-1] != metadata.FileName {
		t.Fatalf("expected metadata to be uploaded last, got %v", Artifacts)
	}
}
