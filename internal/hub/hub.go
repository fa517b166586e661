// Package hub fans service events out to dashboard websocket clients.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

type DashboardUpdate struct {
	Type        string  `json:"type"` // "query", "purge", "pool"
	Department  int64   `json:"department,omitempty"`
	Rows        int     `json:"rows,omitempty"`
	JobID       string  `json:"job_id,omitempty"`
	RowCounts   []int64 `json:"row_counts,omitempty"`
	Outstanding int64   `json:"outstanding,omitempty"`
}

type Hub struct {
	dashboards map[*websocket.Conn]bool
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		dashboards: make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dashboards[conn] = true
	slog.Info("Dashboard Connected", "total_connections", len(h.dashboards))
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.dashboards[conn]; ok {
		delete(h.dashboards, conn)
		conn.Close()
		slog.Info("Dashboard Disconnected", "total_connections", len(h.dashboards))
	}
}

func (h *Hub) Broadcast(update DashboardUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, _ := json.Marshal(update)
	for conn := range h.dashboards {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Error("Dashboard broadcast failed", "error", err)
			conn.Close()
			delete(h.dashboards, conn)
		}
	}
}
