package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/prota/internal/email"
	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/reminder"
	"github.com/dukerupert/prota/internal/store"
	"github.com/dukerupert/prota/internal/websocket"
)

type ReminderHandler struct {
	reminders  *store.ReminderStore
	dispatcher *reminder.Dispatcher
	notify     Notifier
	logger     *slog.Logger
}

func NewReminderHandler(rs *store.ReminderStore, d *reminder.Dispatcher, notify Notifier, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{reminders: rs, dispatcher: d, notify: notify, logger: logger}
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.reminders.List()
	if err != nil {
		h.logger.Error("list reminders", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list reminders"})
		return
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}

type reminderRequest struct {
	Name      string `json:"name"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	TimeOfDay string `json:"timeOfDay"`
	Weekdays  []int  `json:"weekdays"`
	Recipient string `json:"recipient"`
	Active    *bool  `json:"active"`
}

func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	rem := model.Reminder{
		Name:      req.Name,
		Subject:   req.Subject,
		Message:   req.Message,
		TimeOfDay: req.TimeOfDay,
		Weekdays:  req.Weekdays,
		Recipient: req.Recipient,
		Active:    req.Active == nil || *req.Active,
	}
	if err := reminder.Validate(&rem); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if rem.Recipient != "" && !email.ValidAddress(rem.Recipient) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid recipient"})
		return
	}

	existing, err := h.reminders.List()
	if err != nil {
		h.logger.Error("list reminders", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create reminder"})
		return
	}
	for _, e := range existing {
		if e.Name == rem.Name {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "a reminder with that name already exists"})
			return
		}
	}

	created, err := h.reminders.Create(rem)
	if err != nil {
		h.logger.Error("create reminder", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create reminder"})
		return
	}
	publish(h.notify, websocket.EntityReminder, "created", created.ID, nil)
	writeJSON(w, http.StatusCreated, created)
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	err = h.reminders.Delete(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reminder not found"})
		return
	}
	if err != nil {
		h.logger.Error("delete reminder", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete reminder"})
		return
	}
	publish(h.notify, websocket.EntityReminder, "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Dispatch runs one dispatch pass for the current minute.
func (h *ReminderHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	res, err := h.dispatcher.Dispatch(r.Context(), time.Now())
	switch {
	case errors.Is(err, email.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   "mail not configured",
			"matched": res.Matched,
		})
	case err != nil:
		h.logger.Error("dispatch reminders", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  "some reminders could not be sent",
			"result": res,
		})
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// Test sends one reminder immediately, ignoring schedules.
func (h *ReminderHandler) Test(w http.ResponseWriter, r *http.Request) {
	to, err := h.dispatcher.SendTest(r.Context())
	if errors.Is(err, email.ErrNotConfigured) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "mail not configured"})
		return
	}
	if err != nil {
		h.logger.Error("send test reminder", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to send test email"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": true, "to": to})
}
