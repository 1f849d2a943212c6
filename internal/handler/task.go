package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/prota/internal/generator"
	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/store"
	"github.com/dukerupert/prota/internal/websocket"
)

type TaskHandler struct {
	tasks      *store.TaskStore
	objectives *store.ObjectiveStore
	notify     Notifier
	logger     *slog.Logger
	award      int
}

func NewTaskHandler(ts *store.TaskStore, objs *store.ObjectiveStore, notify Notifier, logger *slog.Logger, pointsPerTask int) *TaskHandler {
	return &TaskHandler{tasks: ts, objectives: objs, notify: notify, logger: logger, award: pointsPerTask}
}

type taskListResponse struct {
	Total int             `json:"total"`
	Tasks []model.Task    `json:"tasks"`
	Stats model.TaskStats `json:"stats"`
}

func parseTaskFilter(r *http.Request) (model.TaskFilter, error) {
	q := r.URL.Query()
	var f model.TaskFilter

	switch status := q.Get("status"); status {
	case "", model.TaskStatusPending, model.TaskStatusDone:
		f.Status = status
	default:
		return f, fmt.Errorf("status must be %s or %s", model.TaskStatusPending, model.TaskStatusDone)
	}

	if v := q.Get("objectiveId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errors.New("invalid objectiveId")
		}
		f.ObjectiveID = id
	}
	if v := q.Get("priority"); v != "" {
		p, ok := model.NormalizePriority(v)
		if !ok {
			return f, errors.New("priority must be low, medium, or high")
		}
		f.Priority = p
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}
	return f, nil
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseTaskFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	tasks, err := h.tasks.List(f)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	stats, err := h.tasks.Stats(f)
	if err != nil {
		h.logger.Error("task stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, taskListResponse{Total: len(tasks), Tasks: tasks, Stats: stats})
}

type taskRequest struct {
	ObjectiveID   int64  `json:"objectiveId"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	EstimatedTime any    `json:"estimatedTime"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.ObjectiveID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "objectiveId and title are required"})
		return
	}

	minutes := generator.DefaultMinutes
	if req.EstimatedTime != nil {
		minutes = generator.ParseMinutes(req.EstimatedTime)
	}

	task, err := h.tasks.Create(req.ObjectiveID, model.TaskDescriptor{
		Title:         req.Title,
		Description:   strings.TrimSpace(req.Description),
		EstimatedTime: minutes,
	}, model.SourceManual)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "objective not found"})
		return
	}
	if err != nil {
		h.logger.Error("create task", "objective", req.ObjectiveID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create task"})
		return
	}

	publish(h.notify, websocket.EntityTask, "created", task.ID, map[string]any{"objectiveId": task.ObjectiveID})
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Done(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, total, err := h.tasks.Complete(id, h.award)
	if !h.transitionOK(w, id, err) {
		return
	}

	h.logger.Info("task completed", "id", id, "points", total)
	publish(h.notify, websocket.EntityTask, "done", id, map[string]any{"objectiveId": task.ObjectiveID})
	publish(h.notify, websocket.EntityPoints, "updated", 0, map[string]any{"total": total})

	writeJSON(w, http.StatusOK, map[string]any{
		"task":        task,
		"pointsAdded": h.award,
		"totalPoints": total,
		"message":     fmt.Sprintf("Task done! +%d points", h.award),
	})
}

func (h *TaskHandler) Undo(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, total, err := h.tasks.Undo(id, h.award)
	if !h.transitionOK(w, id, err) {
		return
	}

	publish(h.notify, websocket.EntityTask, "undone", id, map[string]any{"objectiveId": task.ObjectiveID})
	publish(h.notify, websocket.EntityPoints, "updated", 0, map[string]any{"total": total})

	writeJSON(w, http.StatusOK, map[string]any{
		"task":          task,
		"pointsRemoved": h.award,
		"totalPoints":   total,
	})
}

func (h *TaskHandler) transitionOK(w http.ResponseWriter, id int64, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
	case errors.Is(err, store.ErrAlreadyDone):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task already done"})
	case errors.Is(err, store.ErrAlreadyPending):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task is already pending"})
	default:
		h.logger.Error("update task status", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update task"})
	}
	return false
}
