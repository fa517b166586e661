// Package query runs parameterized statements against pooled connections.
//
// Every execution acquires a connection, runs the statement, and releases the
// connection on every exit path, success or failure. A release failure is
// logged but never masks the outcome already being returned.
package query

import (
	"context"
	"fmt"
	"log/slog"

	"dept-desk/internal/dbpool"
)

// StatementError wraps a statement that failed against an acquired
// connection. The connection was still released.
type StatementError struct {
	cause error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement failed: %v", e.cause)
}

func (e *StatementError) Unwrap() error {
	return e.cause
}

// Executor issues statements through an explicitly passed pool. No global
// pool handle exists; the instance is created at startup and handed to every
// caller.
type Executor struct {
	pool *dbpool.Pool
}

func NewExecutor(pool *dbpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// Execute runs a single parameterized query and collects the full result.
// Pool exhaustion surfaces as dbpool.ErrPoolExhausted; statement failures as
// *StatementError.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release(conn)

	rows, err := conn.QueryContext(ctx, req.SQL, req.Args...)
	if err != nil {
		return nil, &StatementError{cause: err}
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, &StatementError{cause: err}
	}

	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Ordinal: i}
	}

	result := &Result{Columns: columns}

	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, &StatementError{cause: fmt.Errorf("row scan failed: %w", err)}
		}
		row := make([]any, len(columns))
		copy(row, values)
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, &StatementError{cause: fmt.Errorf("rows iteration error: %w", err)}
	}

	return result, nil
}

// ExecuteBatch prepares the statement once and executes it once per bind set,
// reporting the affected-row count of each execution in input order. A bind
// set that matches no rows reports 0, not an error.
func (e *Executor) ExecuteBatch(ctx context.Context, sqlText string, bindSets [][]any) (*Result, error) {
	for i, set := range bindSets {
		if err := (Request{SQL: sqlText, Args: set}).Validate(); err != nil {
			return nil, fmt.Errorf("bind set %d: %w", i, err)
		}
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release(conn)

	stmt, err := conn.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, &StatementError{cause: fmt.Errorf("prepare failed: %w", err)}
	}
	defer stmt.Close()

	counts := make([]int64, 0, len(bindSets))
	for i, set := range bindSets {
		res, err := stmt.ExecContext(ctx, set...)
		if err != nil {
			return nil, &StatementError{cause: fmt.Errorf("bind set %d: %w", i, err)}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, &StatementError{cause: fmt.Errorf("bind set %d: %w", i, err)}
		}
		counts = append(counts, affected)
	}

	return &Result{RowCounts: counts}, nil
}

// release returns a connection to the pool, logging (not propagating) any
// release failure so it cannot override the outcome already decided.
func release(conn *dbpool.Conn) {
	if err := conn.Release(); err != nil {
		slog.Warn("Connection release failed", "error", err)
	}
}
