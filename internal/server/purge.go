package server

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"dept-desk/internal/hub"
	"dept-desk/internal/query"
	"dept-desk/internal/render"
	"dept-desk/internal/security"
)

const (
	purgeSelectSQL = "SELECT id, name, role, department_id, hired_at FROM employees WHERE department_id = ?"
	purgeDeleteSQL = "DELETE FROM employees WHERE department_id = ?"
)

type PurgeRequest struct {
	// ParentIDs are the department ids whose employees get deleted, one
	// batch execution per id.
	ParentIDs []int64 `json:"parent_ids"`
	// Email optionally receives the completion report.
	Email string `json:"email,omitempty"`
}

type PurgeResponse struct {
	JobID string `json:"job_id"`
	// RowCounts has one affected-row count per requested id, in input order.
	RowCounts  []int64 `json:"row_counts"`
	ArchiveURL string  `json:"archive_url"`
}

// HandlePurge deletes the employees of the requested departments in one
// batch. The doomed rows are archived to storage as CSV before the delete so
// a purge is recoverable. The request must carry a valid HMAC signature.
func (h *Handler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := security.VerifyHMAC(
		h.AdminSecret,
		r.Method,
		r.URL.Path,
		string(body),
		r.Header.Get("X-Timestamp"),
		r.Header.Get("X-Signature"),
	); err != nil {
		slog.Warn("Purge request rejected", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var req PurgeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if len(req.ParentIDs) == 0 {
		http.Error(w, "parent_ids is required", http.StatusBadRequest)
		return
	}
	if req.Email != "" {
		if err := security.ValidateEmail(req.Email); err != nil {
			http.Error(w, "invalid email address", http.StatusBadRequest)
			return
		}
	}

	jobID := uuid.New().String()
	slog.Info("Purge started", "job_id", jobID, "departments", len(req.ParentIDs))

	archiveKey, err := h.archiveRows(r, jobID, req.ParentIDs)
	if err != nil {
		slog.Error("Purge archive failed", "job_id", jobID, "error", err)
		http.Error(w, "archive failed, nothing was deleted", http.StatusInternalServerError)
		return
	}

	bindSets := make([][]any, len(req.ParentIDs))
	for i, id := range req.ParentIDs {
		bindSets[i] = []any{id}
	}

	result, err := h.Exec.ExecuteBatch(r.Context(), purgeDeleteSQL, bindSets)
	if err != nil {
		h.writeExecError(w, 0, err)
		return
	}

	archiveURL := h.Storage.GetDownloadURL(archiveKey)

	h.Hub.Broadcast(hub.DashboardUpdate{
		Type:        "purge",
		JobID:       jobID,
		RowCounts:   result.RowCounts,
		Outstanding: h.Pool.Outstanding(),
	})

	if req.Email != "" {
		report := fmt.Sprintf("Job ID: %s\nDepartments purged: %d\nRow counts: %v", jobID, len(req.ParentIDs), result.RowCounts)
		h.Emailer.SendPurgeReport(req.Email, archiveURL, report)
	}

	slog.Info("Purge completed", "job_id", jobID, "row_counts", result.RowCounts)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PurgeResponse{
		JobID:      jobID,
		RowCounts:  result.RowCounts,
		ArchiveURL: archiveURL,
	})
}

// archiveRows streams the rows about to be deleted into storage as CSV
// (optionally gzipped) and returns the archive key.
func (h *Handler) archiveRows(r *http.Request, jobID string, parentIDs []int64) (string, error) {
	key := fmt.Sprintf("purges/%s.csv", jobID)
	if h.UseGzip {
		key += ".gz"
	}

	storageWriter, errChan := h.Storage.StreamToFile(r.Context(), key)
	if storageWriter == nil {
		return "", <-errChan
	}

	var finalWriter io.WriteCloser = storageWriter
	if h.UseGzip {
		finalWriter = gzip.NewWriter(storageWriter)
	}

	enc := render.NewCSVEncoder(finalWriter)

	wroteHeader := false
	for _, id := range parentIDs {
		result, err := h.Exec.Execute(r.Context(), query.Request{
			SQL:  purgeSelectSQL,
			Args: []any{id},
		})
		if err != nil {
			storageWriter.Close()
			return "", err
		}
		if !wroteHeader {
			if err := enc.WriteHeader(result.ColumnNames()); err != nil {
				storageWriter.Close()
				return "", err
			}
			wroteHeader = true
		}
		for _, row := range result.Rows {
			if err := enc.WriteRow(row); err != nil {
				storageWriter.Close()
				return "", err
			}
		}
	}

	if err := enc.Close(); err != nil {
		storageWriter.Close()
		return "", err
	}
	if gw, ok := finalWriter.(*gzip.Writer); ok {
		if err := gw.Close(); err != nil {
			storageWriter.Close()
			return "", err
		}
	}
	if err := storageWriter.Close(); err != nil {
		return "", err
	}
	if err := <-errChan; err != nil {
		return "", err
	}
	return key, nil
}
