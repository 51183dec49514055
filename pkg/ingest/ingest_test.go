package ingest

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/japaniel/scrb/pkg/db"
	"github.com/japaniel/scrb/pkg/modifier"
	"github.com/japaniel/scrb/pkg/store"
)

// writeRaw places data at word's record path without going through the codec.
func writeRaw(t *testing.T, root, word, data string) string {
	t.Helper()
	p, err := store.NewDirStore(root).Path(word)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func seedTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	ctx := context.Background()
	ds := store.NewDirStore(root)
	if _, err := ds.Merge(ctx, "iron", []modifier.Modifier{modifier.NewRoughness(0.089), modifier.NewMetallic(1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := ds.Merge(ctx, "big", []modifier.Modifier{modifier.NewScale(2.25)}); err != nil {
		t.Fatal(err)
	}
	writeRaw(t, root, "red", `{"ColorModifier":"#ff0000"}`)
	writeRaw(t, root, "broken", `not json`)
	return root
}

func TestIngestCopiesTreeIntoDatabase(t *testing.T) {
	conn := openTestDB(t)
	root := seedTree(t)

	var logs bytes.Buffer
	ig := NewIngester(conn)
	ig.Logger = log.New(&logs, "", 0)
	var lastCurrent, lastTotal int
	ig.OnProgress = func(current, total int) { lastCurrent, lastTotal = current, total }

	res, err := ig.Ingest(context.Background(), root)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if res.Files != 4 || res.Records != 3 || res.Malformed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if lastCurrent != 4 || lastTotal != 4 {
		t.Fatalf("expected final progress 4/4, got %d/%d", lastCurrent, lastTotal)
	}
	if !strings.Contains(logs.String(), "malformed") {
		t.Fatalf("expected malformed record to be logged, got %q", logs.String())
	}

	got, err := db.GetModifiers(context.Background(), conn, "red")
	if err != nil {
		t.Fatalf("red not ingested: %v", err)
	}
	if len(got) != 1 || got[0].Color != (modifier.Color{R: 0xff}) {
		t.Fatalf("unexpected red record %v", got)
	}
	if _, err := db.GetModifiers(context.Background(), conn, "broken"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("malformed record should not be ingested, got %v", err)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	root := seedTree(t)
	ig := NewIngester(conn)

	for i := 0; i < 2; i++ {
		if _, err := ig.Ingest(context.Background(), root); err != nil {
			t.Fatalf("pass %d failed: %v", i, err)
		}
	}
	got, err := db.GetModifiers(context.Background(), conn, "iron")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 modifiers after two passes, got %v", got)
	}
}

func TestIngestEmptyTree(t *testing.T) {
	conn := openTestDB(t)
	res, err := NewIngester(conn).Ingest(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if res.Files != 0 || res.Records != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

// failingPool always returns an error on Submit to simulate producer error.
type failingPool struct{}

func (f *failingPool) Start(ctx context.Context) {}
func (f *failingPool) Submit(job Job) error      { return errors.New("submit failed") }
func (f *failingPool) SubmitCtx(ctx context.Context, job Job) error {
	return errors.New("submit failed")
}
func (f *failingPool) Close() {}

func TestIngestHandlesSubmitError(t *testing.T) {
	conn := openTestDB(t)
	root := seedTree(t)

	ig := NewIngester(conn)
	ig.PoolFactory = func(workers, queue int) WorkerPoolInterface { return &failingPool{} }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := ig.Ingest(ctx, root)
	if err == nil || !strings.Contains(err.Error(), "submit failed") {
		t.Fatalf("expected submit error, got %v", err)
	}
}

func TestIngestStopsOnCancel(t *testing.T) {
	conn := openTestDB(t)
	root := seedTree(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewIngester(conn).Ingest(ctx, root)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
