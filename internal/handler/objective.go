package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/prota/internal/generator"
	"github.com/dukerupert/prota/internal/jobs"
	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/store"
	"github.com/dukerupert/prota/internal/websocket"
)

type ObjectiveHandler struct {
	objectives   *store.ObjectiveStore
	tasks        *store.TaskStore
	jobs         *store.JobStore
	runner       *jobs.Runner
	notify       Notifier
	logger       *slog.Logger
	autoGenerate bool
}

func NewObjectiveHandler(objs *store.ObjectiveStore, ts *store.TaskStore, js *store.JobStore, runner *jobs.Runner, notify Notifier, logger *slog.Logger, autoGenerate bool) *ObjectiveHandler {
	return &ObjectiveHandler{
		objectives:   objs,
		tasks:        ts,
		jobs:         js,
		runner:       runner,
		notify:       notify,
		logger:       logger,
		autoGenerate: autoGenerate,
	}
}

type objectiveRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Priority     string `json:"priority"`
	EnergyLevel  string `json:"energyLevel"`
	AutoGenerate *bool  `json:"autoGenerate"`
}

type objectiveResponse struct {
	*model.Objective
	Tasks      []model.Task         `json:"tasks,omitempty"`
	Generation *model.GenerationJob `json:"generation,omitempty"`
}

func (h *ObjectiveHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req objectiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and description are required"})
		return
	}
	priority, ok := model.NormalizePriority(req.Priority)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "priority must be low, medium, or high"})
		return
	}
	energy, ok := model.NormalizeEnergy(req.EnergyLevel)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "energyLevel must be tired, normal, or motivated"})
		return
	}

	category := generator.InferCategory(req.Category, req.Title+" "+req.Description)
	if category == "" {
		category = strings.ToLower(strings.TrimSpace(req.Category))
	}

	obj, err := h.objectives.Create(req.Title, req.Description, category, priority, energy)
	if err != nil {
		h.logger.Error("create objective", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create objective"})
		return
	}
	publish(h.notify, websocket.EntityObjective, "created", obj.ID, nil)

	resp := objectiveResponse{Objective: obj}
	auto := h.autoGenerate
	if req.AutoGenerate != nil {
		auto = *req.AutoGenerate
	}
	if auto && h.runner != nil {
		job, err := h.runner.Submit(obj.ID, jobs.Options{Energy: energy})
		if err != nil {
			h.logger.Warn("queue generation", "objective", obj.ID, "error", err)
		}
		resp.Generation = job
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *ObjectiveHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"
	objectives, err := h.objectives.List(includeInactive)
	if err != nil {
		h.logger.Error("list objectives", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list objectives"})
		return
	}
	if objectives == nil {
		objectives = []model.Objective{}
	}
	writeJSON(w, http.StatusOK, objectives)
}

// lookup resolves the {id} path value, writing the error response itself
// when it returns nil.
func (h *ObjectiveHandler) lookup(w http.ResponseWriter, r *http.Request) *model.Objective {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil
	}
	obj, err := h.objectives.GetByID(id)
	if err != nil {
		h.logger.Error("get objective", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get objective"})
		return nil
	}
	if obj == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "objective not found"})
		return nil
	}
	return obj
}

func (h *ObjectiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	obj := h.lookup(w, r)
	if obj == nil {
		return
	}

	tasks, err := h.tasks.ListByObjective(obj.ID)
	if err != nil {
		h.logger.Error("list objective tasks", "id", obj.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	job, err := h.jobs.LatestForObjective(obj.ID)
	if err != nil {
		h.logger.Error("latest generation", "id", obj.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, objectiveResponse{Objective: obj, Tasks: tasks, Generation: job})
}

type objectiveUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Priority    *string `json:"priority"`
	EnergyLevel *string `json:"energyLevel"`
}

func (h *ObjectiveHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.lookup(w, r)
	if existing == nil {
		return
	}

	var req objectiveUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	title, description, category, priority := existing.Title, existing.Description, existing.Category, existing.Priority
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
	}
	if title == "" || description == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and description must not be empty"})
		return
	}
	if req.Category != nil {
		category = generator.NormalizeCategory(*req.Category)
		if category == "" {
			category = strings.ToLower(strings.TrimSpace(*req.Category))
		}
	}
	if req.Priority != nil {
		p, ok := model.NormalizePriority(*req.Priority)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "priority must be low, medium, or high"})
			return
		}
		priority = p
	}
	if req.EnergyLevel != nil {
		energy, ok := model.NormalizeEnergy(*req.EnergyLevel)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "energyLevel must be tired, normal, or motivated"})
			return
		}
		if err := h.objectives.SetEnergy(existing.ID, energy); err != nil {
			h.logger.Error("set objective energy", "id", existing.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update objective"})
			return
		}
	}

	obj, err := h.objectives.Update(existing.ID, title, description, category, priority)
	if err != nil {
		h.logger.Error("update objective", "id", existing.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update objective"})
		return
	}
	publish(h.notify, websocket.EntityObjective, "updated", obj.ID, nil)
	writeJSON(w, http.StatusOK, obj)
}

func (h *ObjectiveHandler) Delete(w http.ResponseWriter, r *http.Request) {
	obj := h.lookup(w, r)
	if obj == nil {
		return
	}
	if err := h.objectives.SoftDelete(obj.ID); err != nil {
		h.logger.Error("delete objective", "id", obj.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete objective"})
		return
	}
	publish(h.notify, websocket.EntityObjective, "deleted", obj.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	EnergyLevel string `json:"energyLevel"`
	Day         int    `json:"day"`
	MaxTasks    int    `json:"maxTasks"`
}

type generateResponse struct {
	ObjectiveID          int64        `json:"objectiveId"`
	Tasks                []model.Task `json:"tasks"`
	Source               string       `json:"source"`
	EnergyLevel          string       `json:"energyLevel,omitempty"`
	Coaching             string       `json:"coaching,omitempty"`
	RecommendedFirstTask *model.Task  `json:"recommendedFirstTask"`
}

// GenerateTasks creates the objective's task list. It runs inline unless
// ?async=true, in which case a job is queued and returned with 202.
func (h *ObjectiveHandler) GenerateTasks(w http.ResponseWriter, r *http.Request) {
	obj := h.lookup(w, r)
	if obj == nil {
		return
	}

	var req generateRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	energy, ok := model.NormalizeEnergy(req.EnergyLevel)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "energyLevel must be tired, normal, or motivated"})
		return
	}
	if req.MaxTasks < 0 || req.Day < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day and maxTasks must not be negative"})
		return
	}
	opts := jobs.Options{Energy: energy, Day: req.Day, MaxTasks: req.MaxTasks}

	if r.URL.Query().Get("async") == "true" {
		h.generateAsync(w, obj, opts)
		return
	}

	out, err := h.runner.GenerateNow(r.Context(), obj.ID, opts)
	switch {
	case errors.Is(err, store.ErrTasksExist):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "objective already has tasks"})
		return
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "objective not found"})
		return
	case err != nil:
		h.logger.Error("generate tasks", "id", obj.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate tasks"})
		return
	}

	resp := generateResponse{
		ObjectiveID: obj.ID,
		Tasks:       out.Tasks,
		Source:      out.Source,
		EnergyLevel: out.Energy,
		Coaching:    out.Coaching,
	}
	if len(out.Tasks) > 0 {
		resp.RecommendedFirstTask = &out.Tasks[0]
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *ObjectiveHandler) generateAsync(w http.ResponseWriter, obj *model.Objective, opts jobs.Options) {
	n, err := h.tasks.CountByObjective(obj.ID)
	if err != nil {
		h.logger.Error("count tasks", "id", obj.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to queue generation"})
		return
	}
	if n > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "objective already has tasks"})
		return
	}

	job, err := h.runner.Submit(obj.ID, opts)
	if errors.Is(err, jobs.ErrQueueFull) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "generation queue is full, try again shortly"})
		return
	}
	if errors.Is(err, jobs.ErrStopped) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server is shutting down"})
		return
	}
	if err != nil {
		h.logger.Error("queue generation", "id", obj.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to queue generation"})
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *ObjectiveHandler) Generation(w http.ResponseWriter, r *http.Request) {
	obj := h.lookup(w, r)
	if obj == nil {
		return
	}
	job, err := h.jobs.LatestForObjective(obj.ID)
	if err != nil {
		h.logger.Error("latest generation", "id", obj.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get generation"})
		return
	}
	if job == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no generation for objective"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}
