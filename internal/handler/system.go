package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/prota/internal/backup"
	"github.com/dukerupert/prota/internal/email"
	"github.com/dukerupert/prota/internal/llm"
	"github.com/dukerupert/prota/internal/snapshot"
)

// SystemHandler serves health, AI status, export and backup endpoints.
type SystemHandler struct {
	prober *llm.Prober
	mail   email.Sender
	stores snapshot.Stores
	backup *backup.Manager
	logger *slog.Logger
}

func NewSystemHandler(prober *llm.Prober, mail email.Sender, stores snapshot.Stores, bm *backup.Manager, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{prober: prober, mail: mail, stores: stores, backup: bm, logger: logger}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	iaStatus := "not configured"
	if h.prober != nil && h.prober.Configured() {
		iaStatus = "configured"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"iaStatus":  iaStatus,
		"mail":      h.mail != nil && h.mail.Configured(),
		"timestamp": time.Now().UTC(),
	})
}

// AIStatus reports whether the model endpoint answers. Results are cached;
// ?refresh=true forces a new probe.
func (h *SystemHandler) AIStatus(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		writeJSON(w, http.StatusOK, llm.Status{})
		return
	}
	force := r.URL.Query().Get("refresh") == "true"
	writeJSON(w, http.StatusOK, h.prober.Check(r.Context(), force))
}

func (h *SystemHandler) Export(w http.ResponseWriter, r *http.Request) {
	doc, err := snapshot.Export(h.stores)
	if err != nil {
		h.logger.Error("export snapshot", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to export data"})
		return
	}
	if r.URL.Query().Get("download") == "true" {
		name := fmt.Sprintf("prota-%s.json", doc.ExportedAt.Format("20060102-150405"))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *SystemHandler) BackupNow(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil || !h.backup.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backup not configured"})
		return
	}
	archive, err := h.backup.RunNow(r.Context())
	if errors.Is(err, backup.ErrDisabled) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backup not configured"})
		return
	}
	if err != nil {
		h.logger.Error("backup", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backup failed"})
		return
	}
	writeJSON(w, http.StatusCreated, archive)
}

func (h *SystemHandler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		writeJSON(w, http.StatusOK, backup.Status{State: backup.StateDisabled})
		return
	}
	writeJSON(w, http.StatusOK, h.backup.Status())
}
