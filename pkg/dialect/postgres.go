package dialect

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/statement"
)

func init() {
	register(&postgresDialect{})
}

type postgresDialect struct{}

func (d *postgresDialect) Kind() Kind         { return KindPostgres }
func (d *postgresDialect) DriverName() string { return "pgx" }

func (d *postgresDialect) DSN(desc Descriptor) (string, error) {
	host := desc.Host
	if host == "" {
		host = "localhost"
	}
	port := desc.Port
	if port == 0 {
		port = 5432
	}
	database := desc.Database
	if database == "" {
		database = "postgres"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(desc.Credentials.User, desc.Credentials.Secret),
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + database,
	}
	if len(desc.Params) > 0 {
		q := url.Values{}
		for k, v := range desc.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (d *postgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *postgresDialect) Placeholder(n int) string           { return fmt.Sprintf("$%d", n) }
func (d *postgresDialect) PlaceholderStyle() PlaceholderStyle { return PlaceholderDollar }
func (d *postgresDialect) PingQuery() string                  { return "SELECT 1" }

func (d *postgresDialect) Capabilities() Capabilities {
	return Capabilities{
		ReportsRowsAffected: true,
		TransactionalDDL:    true,
		MultipleResultSets:  false,
	}
}

func (d *postgresDialect) ClassOverrides() map[string]statement.Class {
	return map[string]statement.Class{
		"VACUUM":  statement.ClassSchemaDefinition,
		"ANALYZE": statement.ClassSchemaDefinition,
		"REINDEX": statement.ClassSchemaDefinition,
		"CLUSTER": statement.ClassSchemaDefinition,
	}
}

// MapError classifies PostgreSQL SQLSTATE codes. See
// https://www.postgresql.org/docs/current/errcodes-appendix.html
func (d *postgresDialect) MapError(err error) errors.Kind {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errors.KindInternal
	}

	code := pgErr.Code
	switch {
	case code == "42501":
		return errors.KindPrivilege
	case code == "57014": // query_canceled
		return errors.KindTimeout
	case strings.HasPrefix(code, "23"): // integrity constraint violation
		return errors.KindConstraint
	case strings.HasPrefix(code, "42"): // syntax error or access rule violation
		return errors.KindSyntax
	case strings.HasPrefix(code, "28"): // invalid authorization
		return errors.KindConnection
	case strings.HasPrefix(code, "08"), code == "53300": // connection exception, too_many_connections
		return errors.KindConnection
	default:
		return errors.KindInternal
	}
}

func (d *postgresDialect) NoResultSet(err error) bool { return false }

func (d *postgresDialect) Tables(ctx context.Context, q Querier) ([]string, error) {
	const query = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`
	return scanStrings(ctx, q, query)
}

func (d *postgresDialect) Columns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	const colQuery = `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`

	rows, err := q.QueryContext(ctx, colQuery, table)
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

	pk, err := scanStrings(ctx, q, `SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = current_schema()
		  AND tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'`, table)
	if err != nil {
		return nil, err
	}
	markPrimaryKeys(cols, pk)

	fkRows, err := q.QueryContext(ctx, `SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		 AND tc.table_schema = ccu.table_schema
		WHERE tc.table_schema = current_schema()
		  AND tc.table_name = $1 AND tc.constraint_type = 'FOREIGN KEY'`, table)
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

func (d *postgresDialect) Indexes(ctx context.Context, q Querier, table string) ([]IndexInfo, error) {
	rows, err := q.QueryContext(ctx, `SELECT indexname, indexdef FROM pg_indexes
		WHERE schemaname = current_schema() AND tablename = $1
		ORDER BY indexname`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []IndexInfo
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return nil, err
		}
		indexes = append(indexes, IndexInfo{
			Name:    name,
			Columns: indexDefColumns(def),
			Unique:  strings.Contains(def, " UNIQUE "),
		})
	}
	return indexes, rows.Err()
}

// indexDefColumns extracts the column list from a pg_indexes indexdef
// string, e.g. `CREATE INDEX t_idx ON public.t USING btree (a, b)`.
func indexDefColumns(def string) []string {
	open := strings.Index(def, "(")
	end := strings.LastIndex(def, ")")
	if open < 0 || end <= open {
		return nil
	}
	parts := strings.Split(def[open+1:end], ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		cols = append(cols, strings.TrimSpace(p))
	}
	return cols
}
