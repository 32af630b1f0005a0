// Package result provides materialized row sets and page-windowed
// views over them.
package result

import (
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column describes one named column of a row set.
type Column struct {
	Name         string
	DatabaseType string
}

// RowSet is the materialized tabular result of a row-returning
// statement: ordered named columns and rows of typed values aligned to
// them. Immutable after creation.
type RowSet struct {
	Columns []Column
	Rows    [][]interface{}
}

// Len returns the row count.
func (rs *RowSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// ColumnNames returns the column names in order.
func (rs *RowSet) ColumnNames() []string {
	names := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		names[i] = c.Name
	}
	return names
}

// Materialize drains *sql.Rows into a RowSet, normalizing driver
// values: byte slices become strings for textual columns, and exact
// numeric columns (NUMERIC, DECIMAL, NUMBER) become decimal.Decimal so
// precision survives backends that return them as text.
func Materialize(rows *sql.Rows) (*RowSet, error) {
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name}
		if i < len(types) && types[i] != nil {
			cols[i].DatabaseType = types[i].DatabaseTypeName()
		}
	}

	rs := &RowSet{Columns: cols}
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make([]interface{}, len(cols))
		for i, v := range raw {
			row[i] = normalizeValue(v, cols[i].DatabaseType)
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rs, nil
}

// exactNumericTypes are database type names whose values must not pass
// through float64.
var exactNumericTypes = map[string]bool{
	"NUMERIC": true,
	"DECIMAL": true,
	"NUMBER":  true,
	"MONEY":   true,
}

func normalizeValue(v interface{}, dbType string) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		s := string(val)
		if exactNumericTypes[strings.ToUpper(dbType)] {
			if dec, err := decimal.NewFromString(s); err == nil {
				return dec
			}
		}
		return s
	case string:
		if exactNumericTypes[strings.ToUpper(dbType)] {
			if dec, err := decimal.NewFromString(val); err == nil {
				return dec
			}
		}
		return val
	case time.Time:
		return val
	default:
		return val
	}
}
