// Package testdb registers an in-memory database/sql driver that replays
// canned results, so pool, executor, and handler tests run without a live
// MySQL. It is test tooling only: it implements no SQL.
package testdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
)

// DriverName is what callers pass as dbpool.Config.Driver.
const DriverName = "testdb"

// Fixture is one test's database. QueryFn and ExecFn supply the canned
// behavior; both may be nil, in which case queries return an empty result
// and execs affect zero rows.
type Fixture struct {
	mu         sync.Mutex
	QueryFn    func(query string, args []driver.Value) (columns []string, rows [][]driver.Value, err error)
	ExecFn     func(query string, args []driver.Value) (affected int64, err error)
	queryCalls int
	execCalls  int
}

// QueryCalls reports how many queries reached the driver.
func (f *Fixture) QueryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

// ExecCalls reports how many exec statements reached the driver.
func (f *Fixture) ExecCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execCalls
}

func (f *Fixture) query(query string, args []driver.Value) (driver.Rows, error) {
	f.mu.Lock()
	f.queryCalls++
	fn := f.QueryFn
	f.mu.Unlock()

	if fn == nil {
		return &rows{}, nil
	}
	cols, data, err := fn(query, args)
	if err != nil {
		return nil, err
	}
	return &rows{columns: cols, data: data}, nil
}

func (f *Fixture) exec(query string, args []driver.Value) (driver.Result, error) {
	f.mu.Lock()
	f.execCalls++
	fn := f.ExecFn
	f.mu.Unlock()

	if fn == nil {
		return driver.RowsAffected(0), nil
	}
	affected, err := fn(query, args)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(affected), nil
}

var (
	registerOnce sync.Once
	registryMu   sync.Mutex
	registry     = map[string]*Fixture{}
	fixtureSeq   int
)

// Register installs the fixture under a unique DSN and removes it when the
// test finishes. The returned DSN goes into dbpool.Config.DSN.
func Register(t *testing.T, f *Fixture) string {
	t.Helper()

	registerOnce.Do(func() {
		sql.Register(DriverName, drv{})
	})

	registryMu.Lock()
	fixtureSeq++
	dsn := fmt.Sprintf("fixture-%d", fixtureSeq)
	registry[dsn] = f
	registryMu.Unlock()

	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, dsn)
		registryMu.Unlock()
	})

	return dsn
}

type drv struct{}

func (drv) Open(name string) (driver.Conn, error) {
	registryMu.Lock()
	f := registry[name]
	registryMu.Unlock()
	if f == nil {
		return nil, fmt.Errorf("testdb: unknown fixture %q", name)
	}
	return &conn{f: f}, nil
}

type conn struct {
	f *Fixture
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{f: c.f, query: query}, nil
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	return c.Prepare(query)
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	return nil, errors.New("testdb: transactions not supported")
}

func (c *conn) Ping(ctx context.Context) error { return nil }

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return c.f.query(query, values(args))
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return c.f.exec(query, values(args))
}

type stmt struct {
	f     *Fixture
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.f.query(s.query, args)
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.f.exec(s.query, args)
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.f.query(s.query, values(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.f.exec(s.query, values(args))
}

type rows struct {
	columns []string
	data    [][]driver.Value
	idx     int
}

func (r *rows) Columns() []string { return r.columns }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.idx >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.idx])
	r.idx++
	return nil
}

func values(named []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(named))
	for i, nv := range named {
		out[i] = nv.Value
	}
	return out
}
