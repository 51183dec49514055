package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// TestInitDBCreatesSchema verifies InitDB creates the records and builds
// tables with the columns the store queries.
func TestInitDBCreatesSchema(t *testing.T) {
	dbConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	if err := InitDB(dbConn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	// Running the migrations twice must be harmless.
	if err := InitDB(dbConn); err != nil {
		t.Fatalf("second InitDB failed: %v", err)
	}

	cols := tableColumns(t, dbConn, "records")
	for _, c := range []string{"word", "modifiers", "updated_at"} {
		if !cols[c] {
			t.Fatalf("expected column %s in records, got %v", c, cols)
		}
	}

	cols = tableColumns(t, dbConn, "builds")
	if !cols["pipeline"] || !cols["formula_version"] {
		t.Fatalf("expected pipeline and formula_version in builds, got %v", cols)
	}
}

func tableColumns(t *testing.T, dbConn *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := dbConn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("pragmas: %v", err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk); err != nil {
			t.Fatalf("scan col: %v", err)
		}
		cols[colName] = true
	}
	return cols
}
