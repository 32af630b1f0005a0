package dialect

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/statement"
)

func init() {
	register(&sqlserverDialect{})
}

type sqlserverDialect struct{}

func (d *sqlserverDialect) Kind() Kind         { return KindSQLServer }
func (d *sqlserverDialect) DriverName() string { return "sqlserver" }

func (d *sqlserverDialect) DSN(desc Descriptor) (string, error) {
	host := desc.Host
	if host == "" {
		host = "localhost"
	}
	port := desc.Port
	if port == 0 {
		port = 1433
	}

	q := url.Values{}
	q.Set("database", desc.Database)
	for k, v := range desc.Params {
		q.Set(k, v)
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(desc.Credentials.User, desc.Credentials.Secret),
		Host:     fmt.Sprintf("%s:%d", host, port),
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (d *sqlserverDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *sqlserverDialect) Placeholder(n int) string           { return fmt.Sprintf("@p%d", n) }
func (d *sqlserverDialect) PlaceholderStyle() PlaceholderStyle { return PlaceholderAt }
func (d *sqlserverDialect) PingQuery() string                  { return "SELECT 1" }

func (d *sqlserverDialect) Capabilities() Capabilities {
	return Capabilities{
		ReportsRowsAffected: true,
		TransactionalDDL:    true,
		MultipleResultSets:  true,
	}
}

func (d *sqlserverDialect) ClassOverrides() map[string]statement.Class {
	return map[string]statement.Class{
		"PRINT": statement.ClassRowAffecting,
	}
}

// MapError classifies SQL Server engine error numbers. See
// sys.messages for the full catalogue.
func (d *sqlserverDialect) MapError(err error) errors.Kind {
	var sqlErr mssql.Error
	if !errors.As(err, &sqlErr) {
		return errors.KindInternal
	}

	switch sqlErr.Number {
	case 102, 105, 156, 207, 208, 2812: // parse errors, invalid object/column
		return errors.KindSyntax
	case 515, 547, 2601, 2627: // null violation, reference, unique index, unique constraint
		return errors.KindConstraint
	case 229, 230, 262, 297, 300: // permission denied
		return errors.KindPrivilege
	case 18456, 18452, 4060: // login failed, cannot open database
		return errors.KindConnection
	case 1222, 8645: // lock request timeout, memory wait timeout
		return errors.KindTimeout
	default:
		return errors.KindInternal
	}
}

func (d *sqlserverDialect) NoResultSet(err error) bool { return false }

func (d *sqlserverDialect) Tables(ctx context.Context, q Querier) ([]string, error) {
	const query = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
	return scanStrings(ctx, q, query)
}

func (d *sqlserverDialect) Columns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_NAME = @p1 ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var name, declared, nullable string
		if err := rows.Scan(&name, &declared, &nullable); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{
			Name:         name,
			DeclaredType: declared,
			Nullable:     strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pk, err := scanStrings(ctx, q, `SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		WHERE tc.TABLE_NAME = @p1 AND tc.CONSTRAINT_TYPE = 'PRIMARY KEY'`, table)
	if err != nil {
		return nil, err
	}
	markPrimaryKeys(cols, pk)

	fkRows, err := q.QueryContext(ctx, `SELECT kcu.COLUMN_NAME, ref.TABLE_NAME, ref.COLUMN_NAME
		FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON kcu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ref
		  ON ref.CONSTRAINT_NAME = rc.UNIQUE_CONSTRAINT_NAME
		 AND ref.ORDINAL_POSITION = kcu.ORDINAL_POSITION
		WHERE kcu.TABLE_NAME = @p1`, table)
	if err != nil {
		return nil, err
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var col, refTable, refCol string
		if err := fkRows.Scan(&col, &refTable, &refCol); err != nil {
			return nil, err
		}
		markForeignKey(cols, col, refTable, refCol)
	}
	return cols, fkRows.Err()
}

func (d *sqlserverDialect) Indexes(ctx context.Context, q Querier, table string) ([]IndexInfo, error) {
	rows, err := q.QueryContext(ctx, `SELECT i.name, c.name, i.is_unique
		FROM sys.indexes i
		JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
		JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
		WHERE i.object_id = OBJECT_ID(@p1) AND i.name IS NOT NULL
		ORDER BY i.name, ic.key_ordinal`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []IndexInfo
	for rows.Next() {
		var name, col string
		var unique bool
		if err := rows.Scan(&name, &col, &unique); err != nil {
			return nil, err
		}
		if len(indexes) > 0 && indexes[len(indexes)-1].Name == name {
			last := &indexes[len(indexes)-1]
			last.Columns = append(last.Columns, col)
			continue
		}
		indexes = append(indexes, IndexInfo{Name: name, Columns: []string{col}, Unique: unique})
	}
	return indexes, rows.Err()
}
