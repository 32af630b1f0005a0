package result

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "rowset.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMaterialize(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Exec(`CREATE TABLE t (id INTEGER, name TEXT, note TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO t VALUES (1, 'a', NULL), (2, 'b', 'x')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := db.Query(`SELECT id, name, note FROM t ORDER BY id`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	rs, err := Materialize(rows)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	if got := rs.ColumnNames(); len(got) != 3 || got[0] != "id" || got[1] != "name" || got[2] != "note" {
		t.Errorf("unexpected columns: %v", got)
	}
	if rs.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", rs.Len())
	}
	if rs.Rows[0][0] != int64(1) || rs.Rows[0][1] != "a" {
		t.Errorf("unexpected first row: %v", rs.Rows[0])
	}
	if rs.Rows[0][2] != nil {
		t.Errorf("expected NULL to stay nil, got %v", rs.Rows[0][2])
	}
}

func TestMaterialize_EmptyResult(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Exec(`CREATE TABLE t (id INTEGER)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	rows, err := db.Query(`SELECT id FROM t`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	rs, err := Materialize(rows)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if rs.Len() != 0 {
		t.Errorf("expected empty row set, got %d rows", rs.Len())
	}
	if len(rs.Columns) != 1 {
		t.Errorf("expected column metadata for empty result, got %v", rs.Columns)
	}
}

func TestNormalizeValue(t *testing.T) {
	// Exact numerics arriving as text must not pass through float64.
	v := normalizeValue([]byte("12345678901234567890.42"), "NUMERIC")
	dec, ok := v.(decimal.Decimal)
	if !ok {
		t.Fatalf("expected decimal.Decimal, got %T", v)
	}
	if dec.String() != "12345678901234567890.42" {
		t.Errorf("precision lost: %s", dec.String())
	}

	if v := normalizeValue([]byte("hello"), "TEXT"); v != "hello" {
		t.Errorf("expected byte slice to become string, got %v (%T)", v, v)
	}
	if v := normalizeValue(nil, "TEXT"); v != nil {
		t.Errorf("expected nil to stay nil, got %v", v)
	}
	if v := normalizeValue(int64(7), "INTEGER"); v != int64(7) {
		t.Errorf("expected int64 passthrough, got %v (%T)", v, v)
	}
	// Malformed numeric text falls back to the raw string.
	if v := normalizeValue([]byte("not-a-number"), "DECIMAL"); v != "not-a-number" {
		t.Errorf("expected fallback to string, got %v (%T)", v, v)
	}
}
