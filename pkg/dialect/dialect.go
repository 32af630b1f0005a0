// Package dialect provides one backend adapter per supported database
// family. An adapter translates the uniform connection descriptor into
// a driver DSN and hides dialect differences (identifier quoting,
// parameter placeholders, catalog queries, error shapes) behind a
// single interface consumed by the pool, executor, and introspector.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/statement"
)

// Kind identifies a backend family.
type Kind string

const (
	KindPostgres  Kind = "postgres"
	KindMySQL     Kind = "mysql"
	KindSQLServer Kind = "sqlserver"
	KindOracle    Kind = "oracle"
	KindSQLite    Kind = "sqlite"
)

// Credentials is an already-resolved credential bundle supplied by an
// external collaborator. The engine never persists or logs Secret.
type Credentials struct {
	User   string
	Secret string
}

// Descriptor identifies a logical database target. Immutable once
// created; a descriptor with different credentials is a different
// pool.
type Descriptor struct {
	Kind     Kind
	Host     string
	Port     int
	Database string

	Credentials Credentials

	// Pool-size hints. Zero values take pool defaults.
	MaxPoolSize int
	MinPoolSize int

	// AcquireTimeout bounds the wait for a free handle when the pool
	// is exhausted. Zero means the pool default applies.
	AcquireTimeout time.Duration

	// FailFast makes Acquire return immediately with a pool-exhausted
	// error instead of waiting for a handle to free up.
	FailFast bool

	// Params carries backend-specific DSN options.
	Params map[string]string
}

// Key returns the identity string used to select a pool. Includes the
// credential bundle so that different credentials map to different
// pools. Never log this; use SafeString instead.
func (d Descriptor) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s|%s|%s",
		d.Kind, d.Host, d.Port, d.Database, d.Credentials.User, d.Credentials.Secret)
}

// SafeString returns a loggable identity with no secret material.
func (d Descriptor) SafeString() string {
	if d.Kind == KindSQLite {
		return fmt.Sprintf("sqlite:%s", d.Database)
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", d.Kind, d.Credentials.User, d.Host, d.Port, d.Database)
}

// PlaceholderStyle is the parameter placeholder convention of a
// backend.
type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota // ?
	PlaceholderDollar                           // $1
	PlaceholderAt                               // @p1
	PlaceholderColon                            // :1
)

func (p PlaceholderStyle) String() string {
	switch p {
	case PlaceholderDollar:
		return "dollar"
	case PlaceholderAt:
		return "at"
	case PlaceholderColon:
		return "colon"
	default:
		return "question"
	}
}

// Capabilities are the per-backend behavior flags the executor and
// callers consult instead of hardcoding backend checks.
type Capabilities struct {
	// ReportsRowsAffected is true when the driver reliably reports
	// exact rows-affected counts for mutations.
	ReportsRowsAffected bool

	// TransactionalDDL is true when DDL statements participate in
	// transactions (false for backends that implicitly commit).
	TransactionalDDL bool

	// MultipleResultSets is true when a single statement round trip
	// can yield more than one result set.
	MultipleResultSets bool
}

// ColumnInfo is a normalized column descriptor produced by catalog
// queries.
type ColumnInfo struct {
	Name         string
	DeclaredType string
	Nullable     bool
	PrimaryKey   bool
	ForeignKey   *ForeignKeyRef
}

// ForeignKeyRef names the referenced table and column of a foreign key
// member column.
type ForeignKeyRef struct {
	Table  string
	Column string
}

// IndexInfo is a normalized index descriptor.
type IndexInfo struct {
	Name    string
	Columns []string
	Unique  bool
}

// Querier is the minimal query surface catalog code needs. Both
// *sql.Conn and *sql.DB satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Dialect is the backend adapter contract. Implementations are
// stateless; one instance per backend kind is registered at init time
// and selected once at descriptor resolution, never re-dispatched per
// statement.
type Dialect interface {
	Kind() Kind

	// DriverName is the database/sql driver name.
	DriverName() string

	// DSN builds a driver connection string from a descriptor.
	DSN(desc Descriptor) (string, error)

	// QuoteIdentifier quotes an identifier for this backend.
	QuoteIdentifier(name string) string

	// Placeholder returns the parameter placeholder for 1-based
	// position n.
	Placeholder(n int) string

	PlaceholderStyle() PlaceholderStyle

	// PingQuery is a trivial round-trip statement used for health
	// checks and open-time smoke tests.
	PingQuery() string

	Capabilities() Capabilities

	// ClassOverrides returns backend-specific leading-keyword
	// classifications layered over the common table. May be nil.
	ClassOverrides() map[string]statement.Class

	// MapError classifies a backend error into an error kind. Used by
	// the executor and introspector; never matches on message text.
	MapError(err error) errors.Kind

	// NoResultSet reports whether err is the backend's "statement
	// returns no result set" signal, which the executor uses to
	// resolve Unknown statements without swallowing genuine faults.
	NoResultSet(err error) bool

	// Catalog queries, normalized per backend.
	Tables(ctx context.Context, q Querier) ([]string, error)
	Columns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error)
	Indexes(ctx context.Context, q Querier, table string) ([]IndexInfo, error)
}

// registry of adapters by kind, populated at init time by each
// adapter file.
var registry = map[Kind]Dialect{}

func register(d Dialect) {
	registry[d.Kind()] = d
}

// For returns the adapter for a backend kind.
func For(kind Kind) (Dialect, error) {
	d, ok := registry[kind]
	if !ok {
		return nil, errors.Newf(errors.KindConnection, errors.CodeUnknownBackend,
			"unsupported backend kind: %s", kind)
	}
	return d, nil
}

// Kinds returns the registered backend kinds.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	return kinds
}
