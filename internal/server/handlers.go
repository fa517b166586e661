package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"dept-desk/internal/dbpool"
	"dept-desk/internal/email"
	"dept-desk/internal/hub"
	"dept-desk/internal/query"
	"dept-desk/internal/render"
	"dept-desk/internal/router"
	"dept-desk/internal/storage"
)

// departmentSQL is the lookup behind GET /{deptId}. Column order is the
// render order.
const departmentSQL = "SELECT id, name, role, hired_at FROM employees WHERE department_id = ? ORDER BY id"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now
	},
}

type Handler struct {
	Exec        *query.Executor
	Pool        *dbpool.Pool
	Hub         *hub.Hub
	Storage     storage.Provider
	Emailer     email.Sender
	AdminSecret string
	UseGzip     bool
}

func NewHandler(exec *query.Executor, pool *dbpool.Pool, h *hub.Hub, store storage.Provider, emailer email.Sender, adminSecret string, useGzip bool) *Handler {
	return &Handler{
		Exec:        exec,
		Pool:        pool,
		Hub:         h,
		Storage:     store,
		Emailer:     emailer,
		AdminSecret: adminSecret,
		UseGzip:     useGzip,
	}
}

// HandleDepartment serves GET /{deptId}: the employees of one department as
// an HTML table (or json/csv/excel/pdf via ?format=). Routing and statement
// errors render as inline messages with matching status codes.
func (h *Handler) HandleDepartment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deptID, err := router.Route(r.URL.Path)
	if err != nil {
		switch {
		case errors.Is(err, router.ErrIgnored):
			w.WriteHeader(http.StatusOK)
		case errors.Is(err, router.ErrNotAnInteger):
			http.Error(w, "department id must be a base-10 integer", http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	result, err := h.Exec.Execute(r.Context(), query.Request{
		SQL:  departmentSQL,
		Args: []any{deptID},
	})
	if err != nil {
		h.writeExecError(w, deptID, err)
		return
	}

	format := r.URL.Query().Get("format")
	w.Header().Set("Content-Type", render.ContentType(format))

	enc := render.New(format, w)
	if err := enc.WriteHeader(result.ColumnNames()); err != nil {
		slog.Error("Render header failed", "department", deptID, "error", err)
		return
	}
	for _, row := range result.Rows {
		if err := enc.WriteRow(row); err != nil {
			slog.Error("Render row failed", "department", deptID, "error", err)
			return
		}
	}
	if err := enc.Close(); err != nil {
		slog.Error("Render close failed", "department", deptID, "error", err)
		return
	}

	h.Hub.Broadcast(hub.DashboardUpdate{
		Type:        "query",
		Department:  deptID,
		Rows:        len(result.Rows),
		Outstanding: h.Pool.Outstanding(),
	})
}

// HandleDashboard upgrades the connection and keeps it registered with the
// hub until the client goes away.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Dashboard upgrade failed", "error", err)
		return
	}

	h.Hub.Register(conn)

	for {
		if _, _, err := conn.NextReader(); err != nil {
			h.Hub.Unregister(conn)
			break
		}
	}
}

func (h *Handler) writeExecError(w http.ResponseWriter, deptID int64, err error) {
	var stmtErr *query.StatementError
	switch {
	case errors.Is(err, dbpool.ErrPoolExhausted):
		slog.Warn("Pool exhausted", "department", deptID)
		http.Error(w, "server busy, no database connection available", http.StatusServiceUnavailable)
	case errors.Is(err, dbpool.ErrPoolDraining):
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
	case errors.As(err, &stmtErr):
		slog.Error("Statement failed", "department", deptID, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
	default:
		slog.Error("Lookup failed", "department", deptID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
