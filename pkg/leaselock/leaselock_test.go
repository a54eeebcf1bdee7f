package leaselock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.key
	return nil
}

// fakeDB keeps one holder per key and ignores expiry.
type fakeDB struct {
	mu       sync.Mutex
	holders  map[string]string
	released []string
}

func newFakeDB() *fakeDB {
	return &fakeDB{holders: make(map[string]string)}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.Contains(sql, "DELETE FROM app_locks") {
		key, token := args[0].(string), args[1].(string)
		if f.holders[key] == token {
			delete(f.holders, key)
			f.released = append(f.released, key)
		}
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	holder, held := f.holders[key]
	switch {
	case strings.Contains(sql, "INSERT INTO app_locks"):
		if held && holder != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.holders[key] = token
		return fakeRow{key: key}
	case strings.Contains(sql, "UPDATE app_locks"):
		if !held || holder != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{key: key}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func TestWithDatasetRunsAndReleases(t *testing.T) {
	db := newFakeDB()
	c := &Client{db: db}

	ran := false
	err := c.WithDataset(context.Background(), "music", Options{}, func(ctx context.Context) error {
		ran = true
		if _, held := db.holders[DatasetKey("music")]; !held {
			t.Fatal("expected lock to be held inside fn")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !ran {
		t.Fatal("expected fn to run")
	}
	if len(db.released) != 1 || db.released[0] != DatasetKey("music") {
		t.Fatalf("expected lock to be released, got %v", db.released)
	}
}

func TestAcquireBusy(t *testing.T) {
	db := newFakeDB()
	db.holders[DatasetKey("music")] = "someone-else"
	c := &Client{db: db}

	_, err := c.Acquire(context.Background(), DatasetKey("music"), Options{})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestAcquireWaitHonorsContext(t *testing.T) {
	db := newFakeDB()
	db.holders[DatasetKey("music")] = "someone-else"
	c := &Client{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Acquire(ctx, DatasetKey("music"), Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLostLeaseCancelsContext(t *testing.T) {
	db := newFakeDB()
	c := &Client{db: db}

	lease, err := c.Acquire(context.Background(), "k", Options{TTL: 3 * time.Second, RenewEvery: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Release(context.Background())

	db.mu.Lock()
	db.holders["k"] = "thief"
	db.mu.Unlock()

	select {
	case <-lease.Context.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("expected lease context to be cancelled after losing the lock")
	}
	if cause := context.Cause(lease.Context); !errors.Is(cause, ErrLost) {
		t.Fatalf("expected ErrLost cause, got %v", cause)
	}
}

func TestEmptyKey(t *testing.T) {
	c := &Client{db: newFakeDB()}
	if _, err := c.Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestOptionsNormalized(t *testing.T) {
	o := Options{TTL: time.Minute, RenewEvery: 2 * time.Minute, WaitJitter: -1}.normalized()
	if o.RenewEvery != 30*time.Second {
		t.Fatalf("expected renew every 30s, got %s", o.RenewEvery)
	}
	if o.WaitJitter != 0 || o.WaitInterval != 250*time.Millisecond {
		t.Fatalf("unexpected wait settings %+v", o)
	}
}
