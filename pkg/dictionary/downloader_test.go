package dictionary

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sampleTable = `[{"name":"Red","hex":"#ff0000"},{"name":"Light Blue","hex":"#add8e6"}]`

func TestEnsureColorTable_LocalCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colornames.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}

	// An existing file is never refetched, so an unreachable URL is fine.
	if err := EnsureColorTable(context.Background(), path, "http://127.0.0.1:1/none"); err != nil {
		t.Fatalf("EnsureColorTable failed with local file: %v", err)
	}
}

func TestEnsureColorTable_Downloads(t *testing.T) {
	agents := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		w.Write([]byte(sampleTable))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "nested", "colornames.json")
	if err := EnsureColorTable(context.Background(), path, srv.URL+"/colornames.json"); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if agent := <-agents; agent != "scrb-cli" {
		t.Fatalf("unexpected User-Agent %q", agent)
	}
	names, err := LoadColorTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0].Name != "Red" {
		t.Fatalf("unexpected table %v", names)
	}
}

func TestEnsureColorTable_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(sampleTable))
	zw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "colornames.json")
	if err := EnsureColorTable(context.Background(), path, srv.URL+"/colornames.json.gz"); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	names, err := LoadColorTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 colors, got %d", len(names))
	}
}

func TestEnsureColorTable_FailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			w.Write([]byte("<html>not a table</html>"))
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "colornames.json")
	for _, p := range []string{"/missing", "/garbage"} {
		if err := EnsureColorTable(context.Background(), path, srv.URL+p); err == nil {
			t.Fatalf("%s: expected an error", p)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files after failed downloads, found %d", len(entries))
	}
}
