package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/statement"
)

func init() {
	register(&sqliteDialect{})
}

type sqliteDialect struct{}

func (d *sqliteDialect) Kind() Kind         { return KindSQLite }
func (d *sqliteDialect) DriverName() string { return "sqlite3" }

// DSN treats the descriptor's Database as the file path (":memory:"
// for in-memory). Host, port, and credentials are unused.
func (d *sqliteDialect) DSN(desc Descriptor) (string, error) {
	path := desc.Database
	if path == "" {
		path = ":memory:"
	}

	opts := []string{"_foreign_keys=ON", "_busy_timeout=5000"}
	for k, v := range desc.Params {
		opts = append(opts, fmt.Sprintf("%s=%s", k, v))
	}
	return path + "?" + strings.Join(opts, "&"), nil
}

func (d *sqliteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *sqliteDialect) Placeholder(n int) string           { return "?" }
func (d *sqliteDialect) PlaceholderStyle() PlaceholderStyle { return PlaceholderQuestion }
func (d *sqliteDialect) PingQuery() string                  { return "SELECT 1" }

func (d *sqliteDialect) Capabilities() Capabilities {
	return Capabilities{
		ReportsRowsAffected: true,
		TransactionalDDL:    true,
		MultipleResultSets:  false,
	}
}

func (d *sqliteDialect) ClassOverrides() map[string]statement.Class {
	return map[string]statement.Class{
		"PRAGMA":  statement.ClassRowReturning,
		"VACUUM":  statement.ClassSchemaDefinition,
		"ANALYZE": statement.ClassSchemaDefinition,
		"ATTACH":  statement.ClassSchemaDefinition,
		"DETACH":  statement.ClassSchemaDefinition,
	}
}

// MapError classifies SQLite result codes.
func (d *sqliteDialect) MapError(err error) errors.Kind {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return errors.KindInternal
	}

	switch sqliteErr.Code {
	case sqlite3.ErrError: // generic SQL error (includes parse errors)
		return errors.KindSyntax
	case sqlite3.ErrConstraint:
		return errors.KindConstraint
	case sqlite3.ErrAuth, sqlite3.ErrPerm, sqlite3.ErrReadonly:
		return errors.KindPrivilege
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return errors.KindTimeout
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB:
		return errors.KindConnection
	default:
		return errors.KindInternal
	}
}

func (d *sqliteDialect) NoResultSet(err error) bool { return false }

func (d *sqliteDialect) Tables(ctx context.Context, q Querier) ([]string, error) {
	return scanStrings(ctx, q, `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
}

// Columns reads PRAGMA table_info and PRAGMA foreign_key_list. PRAGMA
// arguments cannot be parameterized, so the table name is quoted
// inline.
func (d *sqliteDialect) Columns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", d.QuoteIdentifier(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{
			Name:         name,
			DeclaredType: ctype,
			Nullable:     notNull == 0,
			PrimaryKey:   pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fkRows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", d.QuoteIdentifier(table)))
	if err != nil {
		return nil, err
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := fkRows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		markForeignKey(cols, from, refTable, to.String)
	}
	return cols, fkRows.Err()
}

func (d *sqliteDialect) Indexes(ctx context.Context, q Querier, table string) ([]IndexInfo, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", d.QuoteIdentifier(table)))
	if err != nil {
		return nil, err
	}

	type idx struct {
		name   string
		unique bool
	}
	var list []idx
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, idx{name: name, unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var indexes []IndexInfo
	for _, ix := range list {
		cols, err := d.indexColumns(ctx, q, ix.name)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, IndexInfo{Name: ix.name, Columns: cols, Unique: ix.unique})
	}
	return indexes, nil
}

func (d *sqliteDialect) indexColumns(ctx context.Context, q Querier, index string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", d.QuoteIdentifier(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}
