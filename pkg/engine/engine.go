// Package engine is the library surface consumed by surrounding
// collaborators: acquire/release, batch execution over raw SQL text,
// schema introspection, pagination, and capability queries.
//
// SQL text reaching RunBatch is treated uniformly whether a user typed
// it or an external generator produced it: split, classify, execute,
// no special trust. All state (handles, page views, reports) is passed
// explicitly; the engine keeps no ambient session globals beyond the
// paginator cursor it owns.
package engine

import (
	"context"

	"github.com/unisql-project/unisql/pkg/dialect"
	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/executor"
	"github.com/unisql-project/unisql/pkg/introspect"
	"github.com/unisql-project/unisql/pkg/log"
	"github.com/unisql-project/unisql/pkg/pool"
	"github.com/unisql-project/unisql/pkg/result"
	"github.com/unisql-project/unisql/pkg/statement"
)

// Config holds engine configuration.
type Config struct {
	Logger *log.Logger

	// PageSize is the default page size for the engine's paginator.
	PageSize int

	// LogStatements echoes statement text to the audit log category.
	// Credentials are never logged regardless of this setting.
	LogStatements bool
}

// Engine wires the connection manager, executor, introspector, and
// paginator behind one facade.
type Engine struct {
	logger *log.Logger
	mgr    *pool.Manager
	exec   *executor.Executor
	intro  *introspect.Introspector
	pager  *result.Paginator
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	var execOpts []executor.Option
	if cfg.LogStatements {
		execOpts = append(execOpts, executor.WithStatementLogging())
	}

	return &Engine{
		logger: logger,
		mgr:    pool.NewManager(logger),
		exec:   executor.New(logger, execOpts...),
		intro:  introspect.New(logger),
		pager:  result.NewPaginator(cfg.PageSize),
	}
}

// Acquire checks out a connection handle for the descriptor.
func (e *Engine) Acquire(ctx context.Context, desc dialect.Descriptor) (*pool.Handle, error) {
	return e.mgr.Acquire(ctx, desc)
}

// Release returns a handle to its pool. Double release is a fault.
func (e *Engine) Release(h *pool.Handle) error {
	return e.mgr.Release(h)
}

// HealthCheck reports target liveness with a lightweight round trip,
// without consuming a checkout slot.
func (e *Engine) HealthCheck(ctx context.Context, desc dialect.Descriptor) bool {
	return e.mgr.Ping(ctx, desc) == nil
}

// Capabilities describes a target for callers that tailor behavior per
// backend without hardcoding backend checks.
type Capabilities struct {
	Kind                dialect.Kind
	PoolSize            int
	PlaceholderStyle    dialect.PlaceholderStyle
	ReportsRowsAffected bool
	TransactionalDDL    bool
	MultipleResultSets  bool
}

// Capabilities returns the read-only capability view for a descriptor.
func (e *Engine) Capabilities(desc dialect.Descriptor) (Capabilities, error) {
	d, err := dialect.For(desc.Kind)
	if err != nil {
		return Capabilities{}, err
	}
	caps := d.Capabilities()
	size := desc.MaxPoolSize
	if size <= 0 {
		size = pool.DefaultMaxPoolSize
	}
	return Capabilities{
		Kind:                desc.Kind,
		PoolSize:            size,
		PlaceholderStyle:    d.PlaceholderStyle(),
		ReportsRowsAffected: caps.ReportsRowsAffected,
		TransactionalDDL:    caps.TransactionalDDL,
		MultipleResultSets:  caps.MultipleResultSets,
	}, nil
}

// RunBatch splits raw SQL text, classifies each statement, and
// executes the batch on the handle. A syntax fault from the splitter
// (unterminated quote or comment) is attributed to the final statement
// as a failed report rather than aborting the call. The most recent
// row-returning result is installed in the engine's paginator,
// resetting the page cursor.
func (e *Engine) RunBatch(ctx context.Context, h *pool.Handle, rawSQL string) (*executor.BatchResult, error) {
	stmts, splitErr := statement.Split(rawSQL)
	if len(stmts) == 0 {
		if splitErr != nil {
			return nil, splitErr
		}
		return nil, errors.New(errors.KindSyntax, errors.CodeEmptyScript,
			"script contains no statements")
	}

	runnable := stmts
	if splitErr != nil {
		runnable = stmts[:len(stmts)-1]
	}

	batch, err := e.exec.RunBatch(ctx, h, runnable)
	if err != nil {
		return nil, err
	}

	if splitErr != nil {
		last := stmts[len(stmts)-1]
		batch.Reports = append(batch.Reports, executor.Report{
			Statement: last,
			Class:     statement.Classify(last),
			Success:   false,
			Err:       splitErr,
		})
	}

	if rs := batch.LastRowSet(); rs != nil {
		e.pager.SetRowSet(rs)
	}
	return batch, nil
}

// Describe fetches a fresh schema snapshot over the handle.
func (e *Engine) Describe(ctx context.Context, h *pool.Handle) (*introspect.SchemaDescriptor, error) {
	return e.intro.Describe(ctx, h)
}

// Page returns the page at the given index over the most recent
// row-returning result.
func (e *Engine) Page(index int) (result.PageView, error) {
	return e.pager.Seek(index)
}

// Paginator exposes the engine's pagination cursor for callers that
// navigate with Next/Prev.
func (e *Engine) Paginator() *result.Paginator {
	return e.pager
}

// Close shuts down all pools.
func (e *Engine) Close() error {
	return e.mgr.Close()
}
