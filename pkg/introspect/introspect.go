// Package introspect builds normalized schema snapshots from backend
// metadata catalogs.
package introspect

import (
	"context"
	"time"

	"github.com/unisql-project/unisql/pkg/dialect"
	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/log"
	"github.com/unisql-project/unisql/pkg/pool"
)

// TableDescriptor describes one table.
type TableDescriptor struct {
	Name    string
	Columns []dialect.ColumnInfo
	Indexes []dialect.IndexInfo
}

// SchemaDescriptor is a full snapshot of the target schema. It is
// rebuilt wholesale on every Describe call; a fresh fetch replaces the
// prior snapshot, never mutates it.
type SchemaDescriptor struct {
	Tables map[string]TableDescriptor
}

// TableNames returns the described table names.
func (s *SchemaDescriptor) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	return names
}

// Introspector queries backend metadata catalogs through the handle's
// dialect adapter.
type Introspector struct {
	logger *log.Logger
}

// New creates an introspector.
func New(logger *log.Logger) *Introspector {
	if logger == nil {
		logger = log.Discard()
	}
	return &Introspector{logger: logger}
}

// Describe fetches a full schema snapshot over the given handle. The
// fetch is idempotent: two calls with no intervening schema change
// yield structurally equal descriptors. Catalog rejections surface as
// introspection errors; insufficient rights map to the privilege kind.
func (in *Introspector) Describe(ctx context.Context, h *pool.Handle) (*SchemaDescriptor, error) {
	if h == nil || h.Released() {
		return nil, errors.New(errors.KindFault, errors.CodeHandleReleased,
			"describe on a released handle").WithOp("Introspector.Describe")
	}

	d := h.Dialect()
	conn := h.Conn()
	start := time.Now()

	tables, err := d.Tables(ctx, conn)
	if err != nil {
		return nil, in.wrap(d, err, "listing tables")
	}

	schema := &SchemaDescriptor{Tables: make(map[string]TableDescriptor, len(tables))}
	for _, table := range tables {
		cols, err := d.Columns(ctx, conn, table)
		if err != nil {
			return nil, in.wrap(d, err, "describing columns").WithField("table", table)
		}
		indexes, err := d.Indexes(ctx, conn, table)
		if err != nil {
			return nil, in.wrap(d, err, "describing indexes").WithField("table", table)
		}
		schema.Tables[table] = TableDescriptor{Name: table, Columns: cols, Indexes: indexes}
	}

	in.logger.Debug(log.CategoryIntrospection, "schema snapshot built",
		"target", h.Descriptor().SafeString(),
		"tables", len(schema.Tables), "elapsed", time.Since(start))
	return schema, nil
}

func (in *Introspector) wrap(d dialect.Dialect, err error, msg string) *errors.Error {
	kind := errors.KindIntrospection
	code := errors.CodeCatalogQuery
	if d.MapError(err) == errors.KindPrivilege {
		kind = errors.KindPrivilege
		code = errors.CodeCatalogDenied
	}
	return errors.Wrap(err, kind, code, msg).WithOp("Introspector.Describe")
}
