package dialect

import (
	"context"
	"fmt"
	"strings"

	go_ora "github.com/sijms/go-ora/v2" // registers the "oracle" driver
	"github.com/sijms/go-ora/v2/network"

	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/statement"
)

func init() {
	register(&oracleDialect{})
}

type oracleDialect struct{}

func (d *oracleDialect) Kind() Kind         { return KindOracle }
func (d *oracleDialect) DriverName() string { return "oracle" }

func (d *oracleDialect) DSN(desc Descriptor) (string, error) {
	host := desc.Host
	if host == "" {
		host = "localhost"
	}
	port := desc.Port
	if port == 0 {
		port = 1521
	}
	return go_ora.BuildUrl(host, port, desc.Database,
		desc.Credentials.User, desc.Credentials.Secret, desc.Params), nil
}

func (d *oracleDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *oracleDialect) Placeholder(n int) string           { return fmt.Sprintf(":%d", n) }
func (d *oracleDialect) PlaceholderStyle() PlaceholderStyle { return PlaceholderColon }
func (d *oracleDialect) PingQuery() string                  { return "SELECT 1 FROM DUAL" }

func (d *oracleDialect) Capabilities() Capabilities {
	return Capabilities{
		ReportsRowsAffected: true,
		TransactionalDDL:    false, // DDL implicitly commits
		MultipleResultSets:  false,
	}
}

func (d *oracleDialect) ClassOverrides() map[string]statement.Class {
	return map[string]statement.Class{
		"ANALYZE": statement.ClassSchemaDefinition,
		"AUDIT":   statement.ClassSchemaDefinition,
		"NOAUDIT": statement.ClassSchemaDefinition,
	}
}

// MapError classifies ORA- error codes.
func (d *oracleDialect) MapError(err error) errors.Kind {
	var oraErr *network.OracleError
	if !errors.As(err, &oraErr) {
		return errors.KindInternal
	}

	switch oraErr.ErrCode {
	case 900, 904, 906, 911, 923, 933, 936, 942: // invalid SQL, bad identifier, missing keyword
		return errors.KindSyntax
	case 1, 1400, 2290, 2291, 2292: // unique, NOT NULL, check, FK parent/child
		return errors.KindConstraint
	case 1031, 1927, 2004: // insufficient privileges
		return errors.KindPrivilege
	case 1017, 28000, 28001: // invalid credentials, account locked/expired
		return errors.KindConnection
	case 1013: // operation cancelled (timeout/interrupt)
		return errors.KindTimeout
	case 12154, 12514, 12541: // TNS resolution/listener failures
		return errors.KindConnection
	default:
		return errors.KindInternal
	}
}

func (d *oracleDialect) NoResultSet(err error) bool {
	// ORA-00900 "invalid SQL statement" doubles as the engine's signal
	// when a non-query statement is prepared through the query path.
	var oraErr *network.OracleError
	return errors.As(err, &oraErr) && oraErr.ErrCode == 900
}

func (d *oracleDialect) Tables(ctx context.Context, q Querier) ([]string, error) {
	return scanStrings(ctx, q, `SELECT table_name FROM user_tables ORDER BY table_name`)
}

func (d *oracleDialect) Columns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `SELECT column_name, data_type, nullable
		FROM user_tab_columns WHERE table_name = :1 ORDER BY column_id`, table)
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
			Nullable:     nullable == "Y",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pk, err := scanStrings(ctx, q, `SELECT cc.column_name
		FROM user_constraints c
		JOIN user_cons_columns cc ON c.constraint_name = cc.constraint_name
		WHERE c.table_name = :1 AND c.constraint_type = 'P'`, table)
	if err != nil {
		return nil, err
	}
	markPrimaryKeys(cols, pk)

	fkRows, err := q.QueryContext(ctx, `SELECT cc.column_name, rc.table_name, rcc.column_name
		FROM user_constraints c
		JOIN user_cons_columns cc ON c.constraint_name = cc.constraint_name
		JOIN user_constraints rc ON rc.constraint_name = c.r_constraint_name
		JOIN user_cons_columns rcc ON rcc.constraint_name = rc.constraint_name
		 AND rcc.position = cc.position
		WHERE c.table_name = :1 AND c.constraint_type = 'R'`, table)
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

func (d *oracleDialect) Indexes(ctx context.Context, q Querier, table string) ([]IndexInfo, error) {
	rows, err := q.QueryContext(ctx, `SELECT i.index_name, ic.column_name, i.uniqueness
		FROM user_indexes i
		JOIN user_ind_columns ic ON i.index_name = ic.index_name
		WHERE i.table_name = :1
		ORDER BY i.index_name, ic.column_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []IndexInfo
	for rows.Next() {
		var name, col, uniqueness string
		if err := rows.Scan(&name, &col, &uniqueness); err != nil {
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
			Unique:  uniqueness == "UNIQUE",
		})
	}
	return indexes, rows.Err()
}
