package dialect

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/statement"
)

func init() {
	register(&mysqlDialect{})
}

type mysqlDialect struct{}

func (d *mysqlDialect) Kind() Kind         { return KindMySQL }
func (d *mysqlDialect) DriverName() string { return "mysql" }

func (d *mysqlDialect) DSN(desc Descriptor) (string, error) {
	host := desc.Host
	if host == "" {
		host = "localhost"
	}
	port := desc.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.User = desc.Credentials.User
	cfg.Passwd = desc.Credentials.Secret
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = desc.Database
	cfg.ParseTime = true
	if len(desc.Params) > 0 {
		cfg.Params = make(map[string]string, len(desc.Params))
		for k, v := range desc.Params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN(), nil
}

func (d *mysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *mysqlDialect) Placeholder(n int) string           { return "?" }
func (d *mysqlDialect) PlaceholderStyle() PlaceholderStyle { return PlaceholderQuestion }
func (d *mysqlDialect) PingQuery() string                  { return "SELECT 1" }

func (d *mysqlDialect) Capabilities() Capabilities {
	return Capabilities{
		ReportsRowsAffected: true,
		TransactionalDDL:    false, // DDL implicitly commits
		MultipleResultSets:  true,
	}
}

func (d *mysqlDialect) ClassOverrides() map[string]statement.Class {
	return map[string]statement.Class{
		"ANALYZE":  statement.ClassSchemaDefinition,
		"OPTIMIZE": statement.ClassSchemaDefinition,
		"REPAIR":   statement.ClassSchemaDefinition,
		"CHECK":    statement.ClassRowReturning,
		"USE":      statement.ClassRowAffecting,
	}
}

// MapError classifies MySQL server error numbers. See
// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
func (d *mysqlDialect) MapError(err error) errors.Kind {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return errors.KindConnection
	}

	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return errors.KindInternal
	}

	switch myErr.Number {
	case 1064, 1054, 1146: // parse error, unknown column, unknown table
		return errors.KindSyntax
	case 1022, 1048, 1062, 1216, 1217, 1451, 1452, 1557, 3819:
		return errors.KindConstraint
	case 1044, 1142, 1143, 1227, 1370:
		return errors.KindPrivilege
	case 1045: // access denied (auth)
		return errors.KindConnection
	case 1205, 3024: // lock wait timeout, query execution interrupted (max time)
		return errors.KindTimeout
	default:
		return errors.KindInternal
	}
}

func (d *mysqlDialect) NoResultSet(err error) bool { return false }

func (d *mysqlDialect) Tables(ctx context.Context, q Querier) ([]string, error) {
	const query = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`
	return scanStrings(ctx, q, query)
}

func (d *mysqlDialect) Columns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `SELECT column_name, column_type, is_nullable, column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var name, declared, nullable, key string
		if err := rows.Scan(&name, &declared, &nullable, &key); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{
			Name:         name,
			DeclaredType: declared,
			Nullable:     strings.EqualFold(nullable, "YES"),
			PrimaryKey:   key == "PRI",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fkRows, err := q.QueryContext(ctx, `SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ?
		  AND referenced_table_name IS NOT NULL`, table)
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

func (d *mysqlDialect) Indexes(ctx context.Context, q Querier, table string) ([]IndexInfo, error) {
	rows, err := q.QueryContext(ctx, `SELECT index_name, column_name, non_unique
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY index_name, seq_in_index`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []IndexInfo
	for rows.Next() {
		var name, col string
		var nonUnique int
		if err := rows.Scan(&name, &col, &nonUnique); err != nil {
			return nil, err
		}
		if len(indexes) > 0 && indexes[len(indexes)-1].Name == name {
			last := &indexes[len(indexes)-1]
			last.Columns = append(last.Columns, col)
			continue
		}
		indexes = append(indexes, IndexInfo{
			Name:    name,
			Columns: []string{col},
			Unique:  nonUnique == 0,
		})
	}
	return indexes, rows.Err()
}
