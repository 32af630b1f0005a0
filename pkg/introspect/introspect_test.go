package introspect

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/unisql-project/unisql/pkg/dialect"
	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/pool"
)

func seededHandle(t *testing.T) (*pool.Manager, *pool.Handle) {
	t.Helper()

	m := pool.NewManager(nil)
	t.Cleanup(func() { m.Close() })

	desc := dialect.Descriptor{
		Kind:        dialect.KindSQLite,
		Database:    filepath.Join(t.TempDir(), "schema.db"),
		MaxPoolSize: 1,
	}
	h, err := m.Acquire(context.Background(), desc)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	t.Cleanup(func() { m.Release(h) })

	ddl := []string{
		`CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE books (
			id INTEGER PRIMARY KEY,
			author_id INTEGER REFERENCES authors(id),
			title TEXT
		)`,
		`CREATE INDEX books_author_idx ON books(author_id)`,
	}
	for _, stmt := range ddl {
		if _, err := h.Conn().ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("seeding schema: %v", err)
		}
	}
	return m, h
}

func TestDescribe(t *testing.T) {
	_, h := seededHandle(t)

	schema, err := New(nil).Describe(context.Background(), h)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}

	if len(schema.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %v", schema.TableNames())
	}

	authors, ok := schema.Tables["authors"]
	if !ok {
		t.Fatal("authors table missing from snapshot")
	}
	byName := make(map[string]dialect.ColumnInfo)
	for _, c := range authors.Columns {
		byName[c.Name] = c
	}
	if !byName["id"].PrimaryKey {
		t.Error("authors.id should be marked primary key")
	}
	if byName["name"].Nullable {
		t.Error("authors.name should be NOT NULL")
	}

	books, ok := schema.Tables["books"]
	if !ok {
		t.Fatal("books table missing from snapshot")
	}
	var authorID *dialect.ColumnInfo
	for i := range books.Columns {
		if books.Columns[i].Name == "author_id" {
			authorID = &books.Columns[i]
		}
	}
	if authorID == nil {
		t.Fatal("books.author_id column missing")
	}
	if authorID.ForeignKey == nil {
		t.Fatal("books.author_id should carry a foreign key reference")
	}
	if authorID.ForeignKey.Table != "authors" || authorID.ForeignKey.Column != "id" {
		t.Errorf("unexpected foreign key target: %+v", authorID.ForeignKey)
	}

	var found bool
	for _, ix := range books.Indexes {
		if ix.Name == "books_author_idx" {
			found = true
			if len(ix.Columns) != 1 || ix.Columns[0] != "author_id" {
				t.Errorf("unexpected index columns: %v", ix.Columns)
			}
			if ix.Unique {
				t.Error("books_author_idx should not be unique")
			}
		}
	}
	if !found {
		t.Errorf("books_author_idx missing from %v", books.Indexes)
	}
}

func TestDescribe_Idempotent(t *testing.T) {
	_, h := seededHandle(t)
	in := New(nil)

	first, err := in.Describe(context.Background(), h)
	if err != nil {
		t.Fatalf("first Describe failed: %v", err)
	}
	second, err := in.Describe(context.Background(), h)
	if err != nil {
		t.Fatalf("second Describe failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("snapshots differ with no intervening schema change")
	}
}

func TestDescribe_SeesSchemaChanges(t *testing.T) {
	_, h := seededHandle(t)
	in := New(nil)

	before, err := in.Describe(context.Background(), h)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}

	if _, err := h.Conn().ExecContext(context.Background(),
		`CREATE TABLE reviews (id INTEGER PRIMARY KEY, body TEXT)`); err != nil {
		t.Fatalf("altering schema: %v", err)
	}

	after, err := in.Describe(context.Background(), h)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if len(after.Tables) != len(before.Tables)+1 {
		t.Errorf("fresh snapshot has %d tables, want %d", len(after.Tables), len(before.Tables)+1)
	}
	if _, ok := after.Tables["reviews"]; !ok {
		t.Error("reviews table missing from fresh snapshot")
	}
}

func TestDescribe_ReleasedHandleIsPrecondition(t *testing.T) {
	m, h := seededHandle(t)
	if err := m.Release(h); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	_, err := New(nil).Describe(context.Background(), h)
	if err == nil {
		t.Fatal("expected precondition failure on released handle")
	}
	if !errors.IsKind(err, errors.KindFault) {
		t.Errorf("expected fault kind, got %v", errors.KindOf(err))
	}
}
