// Package executor runs classified statements against a checked-out
// connection and produces one execution report per statement.
//
// Statements in a batch execute strictly in sequence on the same
// handle: scripts routinely depend on earlier statements' side
// effects, and most database protocols are unsafe for concurrent use
// of one connection. Failure of one statement never aborts the batch;
// the error is recorded in that statement's report and execution
// proceeds.
package executor

import (
	"context"
	"time"

	"github.com/unisql-project/unisql/pkg/dialect"
	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/log"
	"github.com/unisql-project/unisql/pkg/pool"
	"github.com/unisql-project/unisql/pkg/result"
	"github.com/unisql-project/unisql/pkg/statement"
)

// Report is the outcome of executing one statement. Rows is present if
// and only if the resolved class is row-returning and the statement
// succeeded. RowsAffected is nil when the backend does not report it,
// never coerced to zero.
type Report struct {
	Statement statement.Statement

	// Class is the resolved execution category. For statements that
	// classified as unknown up front, this reflects what the backend
	// actually did (row-returning or row-affecting).
	Class statement.Class

	Success      bool
	RowsAffected *int64
	Err          error
	Rows         *result.RowSet
	Elapsed      time.Duration
}

// BatchResult is the ordered sequence of reports for one batch.
type BatchResult struct {
	Reports []Report
}

// Summary is the aggregate outcome of a batch, folded over the reports
// rather than tracked as separate mutable state.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summary folds the reports into success/failure counts.
func (b *BatchResult) Summary() Summary {
	s := Summary{Total: len(b.Reports)}
	for _, r := range b.Reports {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// LastRowSet returns the most recent successful row-returning result
// in the batch, or nil.
func (b *BatchResult) LastRowSet() *result.RowSet {
	for i := len(b.Reports) - 1; i >= 0; i-- {
		if b.Reports[i].Success && b.Reports[i].Rows != nil {
			return b.Reports[i].Rows
		}
	}
	return nil
}

// Executor dispatches classified statements to the correct backend
// call path.
type Executor struct {
	logger        *log.Logger
	logStatements bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithStatementLogging logs each statement's text to the audit
// category before execution.
func WithStatementLogging() Option {
	return func(e *Executor) { e.logStatements = true }
}

// New creates an executor.
func New(logger *log.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = log.Discard()
	}
	e := &Executor{logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunBatch executes statements in order on the handle, returning one
// report per statement. Only batch-level precondition failures (a
// released handle) propagate as an error; per-statement failures are
// recorded in the reports.
//
// Cancellation is cooperative: the context is checked between
// statements. When the deadline expires, the in-flight statement's
// report is marked as a timeout failure and the reports gathered so
// far are returned; later statements are never launched and never
// retried.
func (e *Executor) RunBatch(ctx context.Context, h *pool.Handle, stmts []statement.Statement) (*BatchResult, error) {
	if h == nil || h.Released() {
		return nil, errors.New(errors.KindFault, errors.CodeHandleReleased,
			"batch submitted on a released handle").WithOp("Executor.RunBatch")
	}

	d := h.Dialect()
	overrides := d.ClassOverrides()
	batch := &BatchResult{Reports: make([]Report, 0, len(stmts))}

	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			break
		}

		report := e.runOne(ctx, h, d, stmt, overrides)
		batch.Reports = append(batch.Reports, report)

		if !report.Success && errors.IsKind(report.Err, errors.KindTimeout) && ctx.Err() != nil {
			break
		}
	}

	s := batch.Summary()
	e.logger.Info(log.CategoryExecution, "batch finished",
		"target", h.Descriptor().SafeString(),
		"total", s.Total, "succeeded", s.Succeeded, "failed", s.Failed)
	return batch, nil
}

func (e *Executor) runOne(ctx context.Context, h *pool.Handle, d dialect.Dialect, stmt statement.Statement, overrides map[string]statement.Class) Report {
	class := statement.ClassifyWith(stmt, overrides)
	report := Report{Statement: stmt, Class: class}

	if e.logStatements {
		e.logger.Debug(log.CategoryAudit, "executing statement",
			"position", stmt.Position, "class", class.String(), "sql", stmt.Text)
	}

	start := time.Now()
	switch class {
	case statement.ClassRowReturning:
		e.runQuery(ctx, h, d, &report)
	case statement.ClassRowAffecting:
		e.runExec(ctx, h, d, &report, true)
	case statement.ClassSchemaDefinition:
		// Rows-affected is meaningless for DDL even on backends that
		// report counts for mutations.
		e.runExec(ctx, h, d, &report, false)
	default:
		e.runUnknown(ctx, h, d, &report)
	}
	report.Elapsed = time.Since(start)

	if !report.Success {
		e.logger.Warn(log.CategoryExecution, "statement failed",
			"position", stmt.Position, "kind", errors.KindOf(report.Err).String())
	}
	return report
}

func (e *Executor) runQuery(ctx context.Context, h *pool.Handle, d dialect.Dialect, report *Report) {
	rows, err := h.Conn().QueryContext(ctx, report.Statement.Text)
	if err != nil {
		report.Err = e.classifyErr(ctx, d, err)
		return
	}

	rs, err := result.Materialize(rows)
	if err != nil {
		report.Err = e.classifyErr(ctx, d, err)
		return
	}

	report.Success = true
	report.Rows = rs
}

func (e *Executor) runExec(ctx context.Context, h *pool.Handle, d dialect.Dialect, report *Report, wantRowsAffected bool) {
	res, err := h.Conn().ExecContext(ctx, report.Statement.Text)
	if err != nil {
		report.Err = e.classifyErr(ctx, d, err)
		return
	}

	report.Success = true
	if wantRowsAffected && d.Capabilities().ReportsRowsAffected {
		if n, err := res.RowsAffected(); err == nil && n >= 0 {
			report.RowsAffected = &n
		}
	}
}

// runUnknown resolves an unclassifiable statement by attempting the
// row-returning path first and falling back to the row-affecting path
// on the backend's "no result set" signal. Genuine execution faults
// are distinguished by error kind, not message text, and are never
// swallowed.
func (e *Executor) runUnknown(ctx context.Context, h *pool.Handle, d dialect.Dialect, report *Report) {
	rows, err := h.Conn().QueryContext(ctx, report.Statement.Text)
	if err != nil {
		if d.NoResultSet(err) {
			report.Class = statement.ClassRowAffecting
			e.runExec(ctx, h, d, report, true)
			return
		}
		report.Err = e.classifyErr(ctx, d, err)
		return
	}

	rs, err := result.Materialize(rows)
	if err != nil {
		report.Err = e.classifyErr(ctx, d, err)
		return
	}

	if len(rs.Columns) == 0 {
		// The backend executed the statement but produced no result
		// set; it already ran, so record it as row-affecting with an
		// unknown count rather than re-executing.
		report.Class = statement.ClassRowAffecting
		report.Success = true
		return
	}

	report.Class = statement.ClassRowReturning
	report.Success = true
	report.Rows = rs
}

// classifyErr maps a backend error to the engine taxonomy. Context
// expiry takes precedence so driver-specific cancellation noise does
// not mask the timeout.
func (e *Executor) classifyErr(ctx context.Context, d dialect.Dialect, err error) error {
	if ctx.Err() != nil {
		code := errors.CodeExecTimeout
		if errors.Is(ctx.Err(), context.Canceled) {
			code = errors.CodeExecCancelled
		}
		return errors.Wrap(err, errors.KindTimeout, code, "statement interrupted")
	}

	kind := d.MapError(err)
	code := errors.CodeExecFailed
	switch kind {
	case errors.KindSyntax:
		code = errors.CodeSyntax
	case errors.KindConstraint:
		code = errors.CodeConstraint
	case errors.KindPrivilege:
		code = errors.CodePrivilege
	case errors.KindConnection:
		code = errors.CodeConnectFailed
	case errors.KindTimeout:
		code = errors.CodeExecTimeout
	}
	return errors.Wrap(err, kind, code, "statement execution failed")
}
