package dialect

import "context"

// Shared helpers for catalog query scanning.

// scanStrings runs a query whose result is a single string column and
// collects the values in order.
func scanStrings(ctx context.Context, q Querier, query string, args ...interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// markPrimaryKeys flags the named columns as primary key members.
func markPrimaryKeys(cols []ColumnInfo, pk []string) {
	for _, name := range pk {
		for i := range cols {
			if cols[i].Name == name {
				cols[i].PrimaryKey = true
			}
		}
	}
}

// markForeignKey attaches a foreign key reference to the named column.
func markForeignKey(cols []ColumnInfo, col, refTable, refCol string) {
	for i := range cols {
		if cols[i].Name == col {
			cols[i].ForeignKey = &ForeignKeyRef{Table: refTable, Column: refCol}
		}
	}
}
