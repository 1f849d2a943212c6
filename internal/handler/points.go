package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/store"
)

type PointsHandler struct {
	points     *store.PointsStore
	tasks      *store.TaskStore
	objectives *store.ObjectiveStore
	loc        *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

func NewPointsHandler(ps *store.PointsStore, ts *store.TaskStore, objs *store.ObjectiveStore, loc *time.Location, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{points: ps, tasks: ts, objectives: objs, loc: loc, logger: logger, now: time.Now}
}

func (h *PointsHandler) Get(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summary()
	if err != nil {
		h.logger.Error("points summary", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get points"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *PointsHandler) summary() (*model.PointsSummary, error) {
	points, err := h.points.Total()
	if err != nil {
		return nil, err
	}
	total, done, minutes, err := h.tasks.Totals()
	if err != nil {
		return nil, err
	}
	completions, err := h.tasks.CompletionTimes()
	if err != nil {
		return nil, err
	}
	objectives, err := h.objectives.List(true)
	if err != nil {
		return nil, err
	}

	s := &model.PointsSummary{
		Points:            points,
		CompletedTasks:    done,
		TotalTasks:        total,
		TotalTimeInvested: minutes,
		Streak:            model.Streak(completions, h.now(), h.loc),
		Message:           model.PointsMessage(points),
		Achievements:      model.Achievements(points, done, len(objectives), minutes),
	}
	if done > 0 {
		s.TimePerTask = (minutes + done/2) / done
	}
	return s, nil
}
