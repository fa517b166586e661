package server_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dept-desk/internal/dbpool"
	"dept-desk/internal/email"
	"dept-desk/internal/hub"
	"dept-desk/internal/query"
	"dept-desk/internal/server"
	"dept-desk/internal/storage"
	"dept-desk/internal/testdb"
)

const testSecret = "testsecret"

type handlerFixture struct {
	fixture    *testdb.Fixture
	pool       *dbpool.Pool
	mux        *http.ServeMux
	archiveDir string
}

func newHandlerFixture(t *testing.T, f *testdb.Fixture) *handlerFixture {
	t.Helper()

	dsn := testdb.Register(t, f)
	pool, err := dbpool.Open(context.Background(), dbpool.Config{
		Driver:         testdb.DriverName,
		DSN:            dsn,
		MaxConns:       2,
		AcquireTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	archiveDir := t.TempDir()
	handler := server.NewHandler(
		query.NewExecutor(pool),
		pool,
		hub.NewHub(),
		storage.NewLocalProvider(archiveDir),
		email.NewLogSender(),
		testSecret,
		false,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/dashboard/stream", handler.HandleDashboard)
	mux.HandleFunc("/admin/purge", handler.HandlePurge)
	mux.HandleFunc("/", handler.HandleDepartment)

	return &handlerFixture{
		fixture:    f,
		pool:       pool,
		mux:        mux,
		archiveDir: archiveDir,
	}
}

// departmentFixture serves two employees for department 90 and nothing else.
func departmentFixture() *testdb.Fixture {
	return &testdb.Fixture{
		QueryFn: func(q string, args []driver.Value) ([]string, [][]driver.Value, error) {
			cols := []string{"id", "name", "role", "hired_at"}
			if len(args) == 1 && args[0] == int64(90) {
				return cols, [][]driver.Value{
					{int64(1), "Sam Okafor", "President", time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)},
					{int64(2), "Dana Ricci", "Vice President", nil},
				}, nil
			}
			return cols, nil, nil
		},
	}
}

func TestDepartmentLookupRendersTable(t *testing.T) {
	hf := newHandlerFixture(t, departmentFixture())

	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/90", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	// Header row plus exactly 2 data rows.
	assert.Equal(t, 3, strings.Count(body, "<tr>"))
	assert.Contains(t, body, "<th>name</th>")
	assert.Contains(t, body, "Sam Okafor")
}

func TestDepartmentLookupEmptyDepartmentStillRendersHeader(t *testing.T) {
	hf := newHandlerFixture(t, departmentFixture())

	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/30", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "<tr>"))
}

func TestDepartmentLookupJSONFormat(t *testing.T) {
	hf := newHandlerFixture(t, departmentFixture())

	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/90?format=json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)

	var row map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &row))
	assert.Equal(t, "Sam Okafor", row["name"])
}

func TestNonIntegerPathSkipsThePool(t *testing.T) {
	hf := newHandlerFixture(t, departmentFixture())

	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "integer")
	// No pool acquisition was attempted.
	assert.Equal(t, 0, hf.fixture.QueryCalls())
	assert.Equal(t, int64(0), hf.pool.Outstanding())
}

func TestIgnoredPathsRenderEmptySuccess(t *testing.T) {
	hf := newHandlerFixture(t, departmentFixture())

	for _, path := range []string{"/favicon.ico", "/robots.txt"} {
		rec := httptest.NewRecorder()
		hf.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Empty(t, rec.Body.String(), path)
	}
	assert.Equal(t, 0, hf.fixture.QueryCalls())
}

func TestStatementErrorRendersInlineMessage(t *testing.T) {
	hf := newHandlerFixture(t, &testdb.Fixture{
		QueryFn: func(q string, args []driver.Value) ([]string, [][]driver.Value, error) {
			return nil, nil, errors.New("employees table is missing")
		},
	})

	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/90", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "query failed")
	// The connection still went back to the pool.
	assert.Equal(t, int64(0), hf.pool.Outstanding())
}

func TestPoolExhaustionAnswers503(t *testing.T) {
	hf := newHandlerFixture(t, departmentFixture())

	// Check out every connection so the handler's acquire times out.
	ctx := context.Background()
	c1, err := hf.pool.Acquire(ctx)
	require.NoError(t, err)
	defer c1.Release()
	c2, err := hf.pool.Acquire(ctx)
	require.NoError(t, err)
	defer c2.Release()

	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/90", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func sign(method, path, body string, ts int64) (timestamp, signature string) {
	timestamp = strconv.FormatInt(ts, 10)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(method + path + body + timestamp))
	return timestamp, hex.EncodeToString(mac.Sum(nil))
}

func signedPurgeRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/admin/purge", bytes.NewBufferString(body))
	ts, sig := sign(http.MethodPost, "/admin/purge", body, time.Now().Unix())
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", sig)
	return req
}

// purgeFixture mimics a table with 3 rows in department 20 and 1 row in
// department 50. Selects feed the archive; execs perform the deletes.
func purgeFixture() *testdb.Fixture {
	rows := map[int64][][]driver.Value{
		20: {
			{int64(1), "Marcus Chen", "Analyst", int64(20), nil},
			{int64(2), "Priya Nair", "Analyst", int64(20), nil},
			{int64(3), "Jonas Weber", "Researcher", int64(20), nil},
		},
		50: {
			{int64(7), "Elena Petrova", "Engineer", int64(50), nil},
		},
	}

	f := &testdb.Fixture{}
	f.QueryFn = func(q string, args []driver.Value) ([]string, [][]driver.Value, error) {
		cols := []string{"id", "name", "role", "department_id", "hired_at"}
		id := args[0].(int64)
		return cols, rows[id], nil
	}
	f.ExecFn = func(q string, args []driver.Value) (int64, error) {
		id := args[0].(int64)
		affected := int64(len(rows[id]))
		delete(rows, id)
		return affected, nil
	}
	return f
}

func TestPurgeDeletesAndArchives(t *testing.T) {
	hf := newHandlerFixture(t, purgeFixture())

	body := `{"parent_ids":[20,30,50]}`
	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, signedPurgeRequest(body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp server.PurgeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int64{3, 0, 1}, resp.RowCounts)
	assert.NotEmpty(t, resp.JobID)

	// The doomed rows were archived before the delete.
	archive := filepath.Join(hf.archiveDir, fmt.Sprintf("purges/%s.csv", resp.JobID))
	content, err := os.ReadFile(archive)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, 1+4) // header + 3 rows from dept 20 + 1 row from dept 50
	assert.Contains(t, lines[0], "department_id")
}

func TestPurgeRejectsBadSignature(t *testing.T) {
	hf := newHandlerFixture(t, purgeFixture())

	body := `{"parent_ids":[20]}`
	req := httptest.NewRequest(http.MethodPost, "/admin/purge", bytes.NewBufferString(body))
	req.Header.Set("X-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Signature", "deadbeef")

	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, hf.fixture.ExecCalls())
}

func TestPurgeRequiresParentIDs(t *testing.T) {
	hf := newHandlerFixture(t, purgeFixture())

	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, signedPurgeRequest(`{"parent_ids":[]}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurgeRejectsInvalidEmail(t *testing.T) {
	hf := newHandlerFixture(t, purgeFixture())

	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, signedPurgeRequest(`{"parent_ids":[20],"email":"bad\r\nbcc: x@y.z"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, hf.fixture.ExecCalls())
}
