package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mid "github.com/OFFIS-RIT/listenkg/internal/server/middleware"
	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/graph"

	"github.com/labstack/echo/v4"
)

// prepare builds dataset "music" from two artists and two users:
// user 1 listened to both artists with weight 5, user 2 to the first
// with weight 3.
func prepare(t *testing.T) string {
	t.Helper()
	raw := t.TempDir()
	data := t.TempDir()

	cat := "id\tname\n10\ta\n20\tb\n"
	ua := "userID\tartistID\tweight\n1\t10\t5\n1\t20\t5\n2\t10\t3\n"
	if err := os.WriteFile(filepath.Join(raw, common.CatalogFile), []byte(cat), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(raw, common.InteractionsFile), []byte(ua), 0o644); err != nil {
		t.Fatal(err)
	}

	client := graph.NewGraphClient(graph.NewGraphClientParams{Seed: 555})
	_, err := client.ProcessDataset(context.Background(), graph.ProcessParams{
		RawPath:    raw,
		OutputPath: filepath.Join(data, "music"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestServer(t *testing.T, app *mid.App) *echo.Echo {
	t.Helper()
	return NewEcho(app)
}

func do(e *echo.Echo, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, &mid.App{DataPath: t.TempDir()})
	rec := do(e, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("expected 200 OK, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestListLocalDatasets(t *testing.T) {
	data := prepare(t)
	if err := os.MkdirAll(filepath.Join(data, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	e := newTestServer(t, &mid.App{DataPath: data})

	rec := do(e, http.MethodGet, "/api/datasets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "music" {
		t.Fatalf("expected only music, got %+v", got)
	}
}

func TestStats(t *testing.T) {
	e := newTestServer(t, &mid.App{DataPath: prepare(t)})

	rec := do(e, http.MethodGet, "/api/datasets/music/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Annotations struct {
			NEntity   int    `json:"n_entity"`
			NRelation int    `json:"n_relation"`
			Type      string `json:"type"`
		} `json:"annotations"`
		Stats struct {
			Nodes int `json:"nodes"`
			Edges int `json:"edges"`
		} `json:"stats"`
		Triples int    `json:"triples"`
		Cache   string `json:"cache"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Annotations.NEntity != 4 || got.Annotations.NRelation != 2 || got.Annotations.Type != "full" {
		t.Fatalf("unexpected annotations %+v", got.Annotations)
	}
	if got.Triples != 6 || got.Stats.Edges != 6 || got.Stats.Nodes != 4 {
		t.Fatalf("unexpected counts %+v", got)
	}
	if got.Cache != "no_cache" {
		t.Fatalf("expected first load without cache, got %s", got.Cache)
	}

	rec = do(e, http.MethodGet, "/api/datasets/music/stats", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Cache != "fresh" {
		t.Fatalf("expected second load from cache, got %s", got.Cache)
	}
}

func TestVerify(t *testing.T) {
	data := prepare(t)
	e := newTestServer(t, &mid.App{DataPath: data})

	rec := do(e, http.MethodGet, "/api/datasets/music/verify", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"all_valid":true`) {
		t.Fatalf("expected valid report, got %d %s", rec.Code, rec.Body.String())
	}

	kg := filepath.Join(data, "music", common.KGFileBase+common.TextExt)
	f, err := os.OpenFile(kg, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("0\t2\t1\t1\n")
	f.Close()

	rec = do(e, http.MethodGet, "/api/datasets/music/verify", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"all_valid":false`) {
		t.Fatalf("expected invalid report, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetadata(t *testing.T) {
	e := newTestServer(t, &mid.App{DataPath: prepare(t)})

	rec := do(e, http.MethodGet, "/api/datasets/music/metadata", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []struct {
		Key   string `json:"key"`
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range got {
		if e.Key == "filtered" {
			found = true
			if e.Kind != "bool" || e.Value != "False" {
				t.Fatalf("unexpected filtered entry %+v", e)
			}
		}
	}
	if !found {
		t.Fatalf("expected filtered key, got %+v", got)
	}
}

func TestNeighborsFromLocalGraph(t *testing.T) {
	e := newTestServer(t, &mid.App{DataPath: prepare(t)})

	tests := []struct {
		target string
		want   int
	}{
		{"/api/datasets/music/entities/2/neighbors", 2},
		{"/api/datasets/music/entities/2/neighbors?limit=1", 1},
		{"/api/datasets/music/entities/0/neighbors?relation=listened_by", 2},
		{"/api/datasets/music/entities/0/neighbors?relation=similar_to", 0},
		{"/api/datasets/music/entities/9/neighbors", 0},
	}
	for _, tt := range tests {
		rec := do(e, http.MethodGet, tt.target, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.target, rec.Code)
		}
		var got []struct {
			Head     int    `json:"head"`
			Relation string `json:"relation"`
			Tail     int    `json:"tail"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != tt.want {
			t.Fatalf("%s: expected %d neighbors, got %d", tt.target, tt.want, len(got))
		}
	}
}

func TestUserHistory(t *testing.T) {
	e := newTestServer(t, &mid.App{DataPath: prepare(t)})

	rec := do(e, http.MethodGet, "/api/datasets/music/users/0/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		User    int   `json:"user"`
		Artists []int `json:"artists"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Artists) != 2 || got.Artists[0] != 0 || got.Artists[1] != 1 {
		t.Fatalf("expected artists [0 1], got %v", got.Artists)
	}

	// user 1 only has a below-median listen
	if rec := do(e, http.MethodGet, "/api/datasets/music/users/1/history", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestBadRequests(t *testing.T) {
	e := newTestServer(t, &mid.App{DataPath: prepare(t)})

	tests := []struct {
		target string
		code   int
	}{
		{"/api/datasets/missing/stats", http.StatusNotFound},
		{"/api/datasets/music/entities/abc/neighbors", http.StatusBadRequest},
		{"/api/datasets/music/entities/-1/neighbors", http.StatusBadRequest},
		{"/api/datasets/music/entities/0/neighbors?relation=likes", http.StatusBadRequest},
		{"/api/datasets/mu..sic/stats", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(e, http.MethodGet, tt.target, nil); rec.Code != tt.code {
			t.Fatalf("%s: expected %d, got %d", tt.target, tt.code, rec.Code)
		}
	}
}

func TestJobRoutesNeedKeyAndQueue(t *testing.T) {
	e := newTestServer(t, &mid.App{DataPath: t.TempDir(), APIKey: "secret"})

	if rec := do(e, http.MethodPost, "/api/datasets/music/rebuild", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/api/datasets/music", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
	rec := do(e, http.MethodPost, "/api/datasets/music/rebuild", map[string]string{"X-API-Key": "secret"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without queue, got %d", rec.Code)
	}
	rec = do(e, http.MethodGet, "/api/datasets/music/artifacts/kg_final.txt/link", map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without artifact storage, got %d", rec.Code)
	}
}
