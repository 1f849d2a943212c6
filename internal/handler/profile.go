package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/prota/internal/generator"
	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/store"
	"github.com/dukerupert/prota/internal/websocket"
)

type ProfileHandler struct {
	settings *store.SettingsStore
	notify   Notifier
	logger   *slog.Logger
}

func NewProfileHandler(ss *store.SettingsStore, notify Notifier, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{settings: ss, notify: notify, logger: logger}
}

type profileResponse struct {
	EnergyLevel string `json:"energyLevel"`
	TaskCap     int    `json:"taskCap"`
	Coaching    string `json:"coaching"`
}

func profileFor(energy string) profileResponse {
	return profileResponse{
		EnergyLevel: energy,
		TaskCap:     generator.TaskCap(energy),
		Coaching:    generator.CoachingMessage(energy),
	}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	energy, err := h.settings.EnergyLevel()
	if err != nil {
		h.logger.Error("get energy level", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get profile"})
		return
	}
	writeJSON(w, http.StatusOK, profileFor(energy))
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EnergyLevel string `json:"energyLevel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if level, ok := model.NormalizeEnergy(req.EnergyLevel); !ok || level == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "energyLevel must be tired, normal, or motivated"})
		return
	}

	energy, err := h.settings.SetEnergyLevel(req.EnergyLevel)
	if err != nil {
		h.logger.Error("set energy level", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update profile"})
		return
	}

	publish(h.notify, websocket.EntityProfile, "updated", 0, map[string]any{"energyLevel": energy})
	writeJSON(w, http.StatusOK, profileFor(energy))
}
