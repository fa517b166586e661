package query_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dept-desk/internal/dbpool"
	"dept-desk/internal/query"
	"dept-desk/internal/testdb"
)

func newTestExecutor(t *testing.T, f *testdb.Fixture) (*query.Executor, *dbpool.Pool) {
	t.Helper()
	dsn := testdb.Register(t, f)
	pool, err := dbpool.Open(context.Background(), dbpool.Config{
		Driver:         testdb.DriverName,
		DSN:            dsn,
		MaxConns:       2,
		AcquireTimeout: time.Second,
	})
	require.NoError(t, err)
	return query.NewExecutor(pool), pool
}

func TestExecuteCollectsRowsInColumnOrder(t *testing.T) {
	fixture := &testdb.Fixture{
		QueryFn: func(q string, args []driver.Value) ([]string, [][]driver.Value, error) {
			require.Len(t, args, 1)
			assert.Equal(t, int64(90), args[0])
			return []string{"id", "name"}, [][]driver.Value{
				{int64(1), "Sam Okafor"},
				{int64(2), "Dana Ricci"},
			}, nil
		},
	}
	exec, pool := newTestExecutor(t, fixture)

	result, err := exec.Execute(context.Background(), query.Request{
		SQL:  "SELECT id, name FROM employees WHERE department_id = ?",
		Args: []any{int64(90)},
	})
	require.NoError(t, err)

	require.Len(t, result.Columns, 2)
	assert.Equal(t, query.Column{Name: "id", Ordinal: 0}, result.Columns[0])
	assert.Equal(t, query.Column{Name: "name", Ordinal: 1}, result.Columns[1])

	require.Len(t, result.Rows, 2)
	for _, row := range result.Rows {
		assert.Len(t, row, len(result.Columns))
	}

	// The connection went back to the pool.
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestExecuteReleasesConnectionOnStatementError(t *testing.T) {
	fixture := &testdb.Fixture{
		QueryFn: func(q string, args []driver.Value) ([]string, [][]driver.Value, error) {
			return nil, nil, errors.New("table gone")
		},
	}
	exec, pool := newTestExecutor(t, fixture)

	_, err := exec.Execute(context.Background(), query.Request{SQL: "SELECT 1"})

	var stmtErr *query.StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Contains(t, stmtErr.Error(), "table gone")

	// Release happened even though the statement failed.
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestExecuteRejectsPlaceholderMismatch(t *testing.T) {
	fixture := &testdb.Fixture{}
	exec, pool := newTestExecutor(t, fixture)

	_, err := exec.Execute(context.Background(), query.Request{
		SQL:  "SELECT * FROM employees WHERE department_id = ?",
		Args: nil,
	})
	require.Error(t, err)

	// Validation fails before any pool acquisition.
	assert.Equal(t, 0, fixture.QueryCalls())
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestExecutePoolExhaustedSurfaces(t *testing.T) {
	fixture := &testdb.Fixture{}
	dsn := testdb.Register(t, fixture)
	pool, err := dbpool.Open(context.Background(), dbpool.Config{
		Driver:         testdb.DriverName,
		DSN:            dsn,
		MaxConns:       1,
		AcquireTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	exec := query.NewExecutor(pool)

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	_, err = exec.Execute(context.Background(), query.Request{SQL: "SELECT 1"})
	assert.ErrorIs(t, err, dbpool.ErrPoolExhausted)
}

func TestExecuteBatchReportsCountsInInputOrder(t *testing.T) {
	// Table contains 3 rows with parentid=20 and 1 row with parentid=50.
	remaining := map[int64]int64{20: 3, 50: 1}

	fixture := &testdb.Fixture{
		ExecFn: func(q string, args []driver.Value) (int64, error) {
			require.Len(t, args, 1)
			id := args[0].(int64)
			affected := remaining[id]
			delete(remaining, id)
			return affected, nil
		},
	}
	exec, pool := newTestExecutor(t, fixture)

	result, err := exec.ExecuteBatch(context.Background(),
		"DELETE FROM employees WHERE department_id = ?",
		[][]any{{int64(20)}, {int64(30)}, {int64(50)}},
	)
	require.NoError(t, err)

	// One count per bind set, input order, unmatched sets report 0.
	assert.Equal(t, []int64{3, 0, 1}, result.RowCounts)
	assert.Equal(t, 3, fixture.ExecCalls())
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestExecuteBatchReleasesOnStatementError(t *testing.T) {
	fixture := &testdb.Fixture{
		ExecFn: func(q string, args []driver.Value) (int64, error) {
			return 0, errors.New("deadlock")
		},
	}
	exec, pool := newTestExecutor(t, fixture)

	_, err := exec.ExecuteBatch(context.Background(),
		"DELETE FROM employees WHERE department_id = ?",
		[][]any{{int64(20)}},
	)

	var stmtErr *query.StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestExecuteBatchValidatesEveryBindSet(t *testing.T) {
	fixture := &testdb.Fixture{}
	exec, _ := newTestExecutor(t, fixture)

	_, err := exec.ExecuteBatch(context.Background(),
		"DELETE FROM employees WHERE department_id = ?",
		[][]any{{int64(20)}, {int64(30), "extra"}},
	)
	require.Error(t, err)
	assert.Equal(t, 0, fixture.ExecCalls())
}
