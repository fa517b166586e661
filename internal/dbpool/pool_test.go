package dbpool_test

import (
	"context"
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dept-desk/internal/dbpool"
	"dept-desk/internal/testdb"
)

func newTestPool(t *testing.T, f *testdb.Fixture, maxConns int, acquireTimeout time.Duration) *dbpool.Pool {
	t.Helper()
	dsn := testdb.Register(t, f)
	pool, err := dbpool.Open(context.Background(), dbpool.Config{
		Driver:         testdb.DriverName,
		DSN:            dsn,
		MinConns:       0,
		MaxConns:       maxConns,
		AcquireTimeout: acquireTimeout,
	})
	require.NoError(t, err)
	return pool
}

func TestConfigValidation(t *testing.T) {
	ctx := context.Background()

	_, err := dbpool.Open(ctx, dbpool.Config{Driver: testdb.DriverName, MinConns: 5, MaxConns: 2})
	assert.Error(t, err)

	_, err = dbpool.Open(ctx, dbpool.Config{Driver: testdb.DriverName, MinConns: -1, MaxConns: 2})
	assert.Error(t, err)

	_, err = dbpool.Open(ctx, dbpool.Config{Driver: testdb.DriverName, MinConns: 0, MaxConns: 0})
	assert.Error(t, err)
}

func TestOpenFailsOnUnreachableDatabase(t *testing.T) {
	_, err := dbpool.Open(context.Background(), dbpool.Config{
		Driver:   testdb.DriverName,
		DSN:      "no-such-fixture",
		MaxConns: 1,
	})
	assert.Error(t, err)
}

func TestAcquireAndRelease(t *testing.T) {
	pool := newTestPool(t, &testdb.Fixture{}, 2, time.Second)

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pool.Outstanding())

	require.NoError(t, conn.Release())
	assert.Equal(t, int64(0), pool.Outstanding())

	// Releasing twice is a no-op, never a double-free.
	require.NoError(t, conn.Release())
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestAcquireTimesOutWhenExhausted(t *testing.T) {
	pool := newTestPool(t, &testdb.Fixture{}, 1, 75*time.Millisecond)

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, dbpool.ErrPoolExhausted)
	// The caller gets an error, not a hang.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOutstandingNeverExceedsMax(t *testing.T) {
	const maxConns = 3
	pool := newTestPool(t, &testdb.Fixture{}, maxConns, 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				conn, err := pool.Acquire(context.Background())
				if !assert.NoError(t, err) {
					return
				}
				assert.LessOrEqual(t, pool.Outstanding(), int64(maxConns))
				time.Sleep(time.Millisecond)
				assert.NoError(t, conn.Release())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestDrainWaitsForOutstandingConnections(t *testing.T) {
	pool := newTestPool(t, &testdb.Fixture{}, 2, time.Second)

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	drainDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		drainDone <- pool.Drain(ctx)
	}()

	// Drain must not finish while the connection is checked out.
	select {
	case err := <-drainDone:
		t.Fatalf("drain finished with %v while a connection was outstanding", err)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, conn.Release())
	select {
	case err := <-drainDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("drain did not finish after release")
	}

	// New acquisitions are rejected once draining.
	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, dbpool.ErrPoolDraining)
}

func TestDrainForcesCloseAfterGrace(t *testing.T) {
	pool := newTestPool(t, &testdb.Fixture{}, 1, time.Second)

	_, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = pool.Drain(ctx)
	assert.ErrorIs(t, err, dbpool.ErrForcedClose)
}

func TestDrainTwiceDoesNotPanic(t *testing.T) {
	pool := newTestPool(t, &testdb.Fixture{}, 1, time.Second)

	ctx := context.Background()
	require.NoError(t, pool.Drain(ctx))
	assert.NoError(t, pool.Drain(ctx))
}

func TestQueriesFlowThroughAcquiredConn(t *testing.T) {
	fixture := &testdb.Fixture{
		QueryFn: func(query string, args []driver.Value) ([]string, [][]driver.Value, error) {
			return []string{"n"}, [][]driver.Value{{int64(1)}}, nil
		},
	}
	pool := newTestPool(t, fixture, 1, time.Second)

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	rows, err := conn.QueryContext(context.Background(), "SELECT 1")
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	var n int64
	require.NoError(t, rows.Scan(&n))
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, fixture.QueryCalls())
}
