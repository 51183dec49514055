package main_test

import (
	"context"
	"database/sql"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func buildCLI(t *testing.T, dir string) string {
	t.Helper()
	bin := filepath.Join(dir, "scrb.bin")
	// Use the full import path so it builds correctly regardless of the current working directory
	build := exec.Command("go", "build", "-o", bin, "github.com/japaniel/scrb/cmd/scrb")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		t.Fatalf("failed to build CLI: %v", err)
	}
	return bin
}

func runCLI(t *testing.T, bin, dir string, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "SCRB_DICTIONARY_ROOT="+filepath.Join(dir, "dict"))
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		t.Fatalf("cli timed out, output:\n%s", out)
	}
	return string(out), err
}

func TestCLI_BuildLookupSync(t *testing.T) {
	tmp := t.TempDir()
	bin := buildCLI(t, tmp)
	dbPath := filepath.Join(tmp, "scrb.db")

	table := filepath.Join(tmp, "colornames.json")
	if err := os.WriteFile(table, []byte(`[{"name":"Red","hex":"#ff0000"},{"name":"Light Blue","hex":"#add8e6"},{"name":"Golden","hex":"#ffd700"}]`), 0o644); err != nil {
		t.Fatalf("failed to write color table: %v", err)
	}

	for _, args := range [][]string{
		{"build-scale", "-db", dbPath},
		{"build-roughness", "-db", dbPath},
		{"build-metallic", "-db", dbPath},
		{"build-colors", "-offline", "-table", table, "-db", dbPath},
	} {
		out, err := runCLI(t, bin, tmp, args...)
		if err != nil {
			t.Fatalf("%s failed: %v\noutput:\n%s", args[0], err, out)
		}
		if !strings.Contains(out, "merged") {
			t.Fatalf("%s: unexpected output:\n%s", args[0], out)
		}
	}

	out, err := runCLI(t, bin, tmp, "lookup", "iron", "medium", "golden")
	if err != nil {
		t.Fatalf("lookup failed: %v\noutput:\n%s", err, out)
	}
	for _, want := range []string{
		"iron: roughness(0.089) metallic(1) reflectance(0.5)",
		"medium: scale(2.25)",
		"golden: roughness(0.089) metallic(1) reflectance(0.5) color(#ffd700)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("lookup output missing %q:\n%s", want, out)
		}
	}

	// misses exit non-zero and suggest near words
	out, err = runCLI(t, bin, tmp, "lookup", "-suggest", "mediun")
	if err == nil {
		t.Fatalf("expected lookup of a missing word to fail, output:\n%s", out)
	}
	if !strings.Contains(out, "did you mean medium") {
		t.Fatalf("expected a suggestion, got:\n%s", out)
	}

	out, err = runCLI(t, bin, tmp, "describe", "big", "iron", "ball")
	if err != nil {
		t.Fatalf("describe failed: %v\noutput:\n%s", err, out)
	}
	if !strings.Contains(out, `"shape": "sphere"`) || !strings.Contains(out, `"metallic": 1`) {
		t.Fatalf("unexpected describe output:\n%s", out)
	}

	out, err = runCLI(t, bin, tmp, "migrate")
	if err != nil || !strings.Contains(out, "0 rewritten") {
		t.Fatalf("migrate: %v\noutput:\n%s", err, out)
	}

	out, err = runCLI(t, bin, tmp, "sync-sqlite", "-db", dbPath)
	if err != nil || !strings.Contains(out, "Sync complete") {
		t.Fatalf("sync-sqlite: %v\noutput:\n%s", err, out)
	}

	// an empty root proves the records come from the database
	emptyRoot := filepath.Join(tmp, "empty")
	out, err = runCLI(t, bin, tmp, "lookup", "-db", dbPath, "-root", emptyRoot, "iron", "medium")
	if err != nil {
		t.Fatalf("lookup -db failed: %v\noutput:\n%s", err, out)
	}
	for _, want := range []string{
		"iron: roughness(0.089) metallic(1) reflectance(0.5)",
		"medium: scale(2.25)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("lookup -db output missing %q:\n%s", want, out)
		}
	}
	out, err = runCLI(t, bin, tmp, "lookup", "-db", dbPath, "-root", emptyRoot, "-suggest", "mediun")
	if err == nil || !strings.Contains(out, "did you mean medium") {
		t.Fatalf("expected a suggestion from the database, got %v:\n%s", err, out)
	}
	out, err = runCLI(t, bin, tmp, "describe", "-db", dbPath, "-root", emptyRoot, "big", "iron", "ball")
	if err != nil || !strings.Contains(out, `"metallic": 1`) {
		t.Fatalf("describe -db: %v\noutput:\n%s", err, out)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer conn.Close()

	var records, builds int
	if err := conn.QueryRow("SELECT COUNT(*) FROM records").Scan(&records); err != nil {
		t.Fatalf("db query failed: %v", err)
	}
	if err := conn.QueryRow("SELECT COUNT(*) FROM builds").Scan(&builds); err != nil {
		t.Fatalf("db query failed: %v", err)
	}
	// 44 size words, 8 roughness words, 5 metals, red and golden (golden is also a metal)
	if records != 44+8+5+1 {
		t.Fatalf("expected 58 records, found %d", records)
	}
	if builds != 4 {
		t.Fatalf("expected 4 builds, found %d", builds)
	}
}

func TestCLI_UnknownCommand(t *testing.T) {
	tmp := t.TempDir()
	bin := buildCLI(t, tmp)
	out, err := runCLI(t, bin, tmp, "frobnicate")
	if err == nil || !strings.Contains(out, "unknown command") {
		t.Fatalf("expected unknown command error, got %v:\n%s", err, out)
	}
}
