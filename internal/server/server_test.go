package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/prota/internal/config"
	"github.com/dukerupert/prota/internal/database"
	"github.com/dukerupert/prota/internal/email"
	"github.com/dukerupert/prota/internal/logging"
	"github.com/dukerupert/prota/internal/model"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (f *fakeSender) Configured() bool { return true }

func (f *fakeSender) Send(ctx context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:          3000,
		DBPath:        ":memory:",
		PointsPerTask: 10,
		AI:            config.AIConfig{Timeout: time.Second},
		Mail:          config.MailConfig{Transport: config.TransportSMTP, To: "me@example.com"},
		Reminders:     config.RemindersConfig{Timezone: "UTC", Interval: time.Minute},
	}
}

func setupServer(t *testing.T, cfg *config.Config) (*Server, http.Handler) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := New(cfg, db, logging.Discard(), WithMailSender(&fakeSender{}))
	return srv, srv.Router()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func createObjective(t *testing.T, h http.Handler, title string) model.Objective {
	t.Helper()
	rec := do(t, h, "POST", "/objectives", map[string]any{
		"title":        title,
		"description":  "Small steps toward " + title,
		"autoGenerate": false,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create objective: status %d: %s", rec.Code, rec.Body)
	}
	return decode[model.Objective](t, rec)
}

type generateResult struct {
	ObjectiveID          int64        `json:"objectiveId"`
	Tasks                []model.Task `json:"tasks"`
	Source               string       `json:"source"`
	RecommendedFirstTask *model.Task  `json:"recommendedFirstTask"`
}

type transitionResult struct {
	Task        model.Task `json:"task"`
	TotalPoints int        `json:"totalPoints"`
}

func TestHealth(t *testing.T) {
	_, h := setupServer(t, testConfig())
	rec := do(t, h, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["iaStatus"] != "not configured" || body["mail"] != true {
		t.Errorf("health = %v", body)
	}
}

func TestObjectiveTaskPointsFlow(t *testing.T) {
	_, h := setupServer(t, testConfig())

	if rec := do(t, h, "POST", "/objectives", map[string]any{"title": "No description"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing description = %d, want 400", rec.Code)
	}
	if rec := do(t, h, "POST", "/objectives", map[string]any{"description": "No title"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing title = %d, want 400", rec.Code)
	}
	if listed := decode[[]model.Objective](t, do(t, h, "GET", "/objectives?includeInactive=true", nil)); len(listed) != 0 {
		t.Fatalf("rejected creates stored %d objectives", len(listed))
	}

	obj := createObjective(t, h, "Learn Go")

	rec := do(t, h, "POST", fmt.Sprintf("/objectives/%d/generate-tasks", obj.ID), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate: status %d: %s", rec.Code, rec.Body)
	}
	gen := decode[generateResult](t, rec)
	if gen.Source != model.SourceFallback || len(gen.Tasks) < 3 || len(gen.Tasks) > 7 {
		t.Fatalf("generated = %+v", gen)
	}
	for _, task := range gen.Tasks {
		if task.EstimatedTime < 5 || task.EstimatedTime > 30 {
			t.Errorf("task %q estimatedTime = %d, want 5..30", task.Title, task.EstimatedTime)
		}
	}
	if gen.RecommendedFirstTask == nil || gen.RecommendedFirstTask.ID != gen.Tasks[0].ID {
		t.Errorf("recommended = %+v", gen.RecommendedFirstTask)
	}

	if rec := do(t, h, "POST", fmt.Sprintf("/objectives/%d/generate-tasks", obj.ID), nil); rec.Code != http.StatusBadRequest {
		t.Errorf("second generate = %d, want 400", rec.Code)
	}

	first := gen.Tasks[0]
	rec = do(t, h, "PATCH", fmt.Sprintf("/tasks/%d/done", first.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("done: status %d: %s", rec.Code, rec.Body)
	}
	if res := decode[transitionResult](t, rec); res.TotalPoints != 10 || res.Task.Status != model.TaskStatusDone {
		t.Errorf("done = %+v", res)
	}
	if rec := do(t, h, "PATCH", fmt.Sprintf("/tasks/%d/done", first.ID), nil); rec.Code != http.StatusBadRequest {
		t.Errorf("double done = %d, want 400", rec.Code)
	}

	rec = do(t, h, "GET", "/points", nil)
	points := decode[model.PointsSummary](t, rec)
	if points.Points != 10 || points.CompletedTasks != 1 || points.TotalTasks != len(gen.Tasks) || points.Streak != 1 {
		t.Errorf("points = %+v", points)
	}

	rec = do(t, h, "GET", fmt.Sprintf("/objectives/%d", obj.ID), nil)
	detail := decode[struct {
		Progress int          `json:"progress"`
		Tasks    []model.Task `json:"tasks"`
	}](t, rec)
	if len(detail.Tasks) != len(gen.Tasks) || detail.Progress == 0 {
		t.Errorf("detail = %+v", detail)
	}

	rec = do(t, h, "PATCH", fmt.Sprintf("/tasks/%d/undo", first.ID), nil)
	if res := decode[transitionResult](t, rec); rec.Code != http.StatusOK || res.TotalPoints != 0 {
		t.Errorf("undo = %d %+v", rec.Code, res)
	}
	if rec := do(t, h, "PATCH", fmt.Sprintf("/tasks/%d/undo", first.ID), nil); rec.Code != http.StatusBadRequest {
		t.Errorf("double undo = %d, want 400", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	_, h := setupServer(t, testConfig())

	for _, tc := range []struct{ method, path string }{
		{"GET", "/objectives/999"},
		{"PUT", "/objectives/999"},
		{"DELETE", "/objectives/999"},
		{"POST", "/objectives/999/generate-tasks"},
		{"PATCH", "/tasks/999/done"},
		{"PATCH", "/tasks/999/undo"},
		{"DELETE", "/reminders/999"},
	} {
		rec := do(t, h, tc.method, tc.path, map[string]any{})
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestManualTasksAndFilters(t *testing.T) {
	_, h := setupServer(t, testConfig())
	obj := createObjective(t, h, "Write a book")

	if rec := do(t, h, "POST", "/tasks", map[string]any{"objectiveId": obj.ID}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing title = %d, want 400", rec.Code)
	}
	if rec := do(t, h, "POST", "/tasks", map[string]any{"objectiveId": 999, "title": "x"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown objective = %d, want 400", rec.Code)
	}

	rec := do(t, h, "POST", "/tasks", map[string]any{"objectiveId": obj.ID, "title": "Outline chapter one", "estimatedTime": "10-20 min"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: %d %s", rec.Code, rec.Body)
	}
	task := decode[model.Task](t, rec)
	if task.EstimatedTime != 15 || task.Source != model.SourceManual || task.Position != 1 {
		t.Errorf("task = %+v", task)
	}
	do(t, h, "POST", "/tasks", map[string]any{"objectiveId": obj.ID, "title": "Write 100 words"})
	do(t, h, "PATCH", fmt.Sprintf("/tasks/%d/done", task.ID), nil)

	rec = do(t, h, "GET", "/tasks?status=pending", nil)
	list := decode[struct {
		Total int             `json:"total"`
		Tasks []model.Task    `json:"tasks"`
		Stats model.TaskStats `json:"stats"`
	}](t, rec)
	if list.Total != 1 || list.Tasks[0].Title != "Write 100 words" {
		t.Errorf("pending = %+v", list)
	}
	if list.Stats.Pending != 1 || list.Stats.Done != 1 {
		t.Errorf("stats = %+v", list.Stats)
	}

	if rec := do(t, h, "GET", "/tasks?status=later", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", rec.Code)
	}
}

func TestObjectiveUpdateAndSoftDelete(t *testing.T) {
	_, h := setupServer(t, testConfig())
	obj := createObjective(t, h, "Run 5k")

	rec := do(t, h, "PUT", fmt.Sprintf("/objectives/%d", obj.ID), map[string]any{"priority": "alta"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}
	if got := decode[model.Objective](t, rec); got.Priority != model.PriorityHigh || got.Title != "Run 5k" {
		t.Errorf("updated = %+v", got)
	}

	if rec := do(t, h, "DELETE", fmt.Sprintf("/objectives/%d", obj.ID), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}

	active := decode[[]model.Objective](t, do(t, h, "GET", "/objectives", nil))
	if len(active) != 0 {
		t.Errorf("active = %+v", active)
	}
	all := decode[[]model.Objective](t, do(t, h, "GET", "/objectives?includeInactive=true", nil))
	if len(all) != 1 || all[0].Active {
		t.Errorf("all = %+v", all)
	}
}

func TestAsyncGeneration(t *testing.T) {
	srv, h := setupServer(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)
	defer srv.Stop()

	obj := createObjective(t, h, "Meditate daily")

	rec := do(t, h, "POST", fmt.Sprintf("/objectives/%d/generate-tasks?async=true", obj.ID), map[string]any{"energyLevel": "cansado"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("async generate: %d %s", rec.Code, rec.Body)
	}
	job := decode[model.GenerationJob](t, rec)
	if job.ID == "" || job.EnergyLevel != model.EnergyTired {
		t.Errorf("job = %+v", job)
	}

	srv.Runner().Wait()

	rec = do(t, h, "GET", fmt.Sprintf("/objectives/%d/generation", obj.ID), nil)
	got := decode[model.GenerationJob](t, rec)
	if got.Status != model.JobStatusSucceeded || got.TaskCount == 0 {
		t.Errorf("finished job = %+v", got)
	}
}

func TestProfile(t *testing.T) {
	_, h := setupServer(t, testConfig())

	profile := decode[map[string]any](t, do(t, h, "GET", "/profile", nil))
	if profile["energyLevel"] != model.EnergyNormal {
		t.Errorf("default profile = %v", profile)
	}
	if rec := do(t, h, "PUT", "/profile", map[string]any{"energyLevel": "sleepy"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown level = %d, want 400", rec.Code)
	}
	rec := do(t, h, "PUT", "/profile", map[string]any{"energyLevel": "motivado"})
	if got := decode[map[string]any](t, rec); got["energyLevel"] != model.EnergyMotivated {
		t.Errorf("updated = %v", got)
	}
}

func TestReminderEndpoints(t *testing.T) {
	_, h := setupServer(t, testConfig())

	if rec := do(t, h, "POST", "/reminders", map[string]any{"name": "x", "subject": "y", "timeOfDay": "25:00"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad time = %d, want 400", rec.Code)
	}
	body := map[string]any{"name": "morning", "subject": "Start small", "timeOfDay": "8:00", "weekdays": []int{1, 2, 3}}
	rec := do(t, h, "POST", "/reminders", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create reminder: %d %s", rec.Code, rec.Body)
	}
	created := decode[model.Reminder](t, rec)
	if created.TimeOfDay != "08:00" {
		t.Errorf("reminder = %+v", created)
	}
	if rec := do(t, h, "POST", "/reminders", body); rec.Code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", rec.Code)
	}

	if rec := do(t, h, "POST", "/reminders/dispatch", nil); rec.Code != http.StatusOK {
		t.Errorf("dispatch = %d %s", rec.Code, rec.Body)
	}

	rec = do(t, h, "POST", "/reminders/test", nil)
	if got := decode[map[string]any](t, rec); rec.Code != http.StatusOK || got["to"] != "me@example.com" {
		t.Errorf("test email = %d %v", rec.Code, got)
	}

	if rec := do(t, h, "DELETE", fmt.Sprintf("/reminders/%d", created.ID), nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
}

func TestExportAndBackupDisabled(t *testing.T) {
	_, h := setupServer(t, testConfig())
	createObjective(t, h, "Learn piano")

	rec := do(t, h, "GET", "/export", nil)
	doc := decode[map[string]any](t, rec)
	if objs, _ := doc["objectives"].([]any); len(objs) != 1 {
		t.Errorf("export = %v", doc)
	}

	if rec := do(t, h, "POST", "/backups", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("backup without config = %d, want 503", rec.Code)
	}
}

func TestTokenAuth(t *testing.T) {
	cfg := testConfig()
	cfg.APIToken = "s3cret"
	_, h := setupServer(t, cfg)

	if rec := do(t, h, "GET", "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health = %d, want public", rec.Code)
	}
	if rec := do(t, h, "GET", "/objectives", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest("GET", "/objectives", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token = %d", rec.Code)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	_, h := setupServer(t, testConfig())
	var last int
	for i := 0; i < 11; i++ {
		last = do(t, h, "POST", "/objectives/1/generate-tasks", nil).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("11th call = %d, want 429", last)
	}
}

func TestDefaultConfigCreateThenGenerate(t *testing.T) {
	t.Setenv("PROTA_AI_TOKEN", "")
	t.Setenv("HF_TOKEN", "")
	t.Setenv("PROTA_API_TOKEN", "")
	t.Setenv("PROTA_AUTO_GENERATE", "")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	srv, h := setupServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)
	defer srv.Stop()

	rec := do(t, h, "POST", "/objectives", map[string]any{"title": "Learn guitar", "description": "Play three songs"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	obj := decode[model.Objective](t, rec)
	srv.Runner().Wait()

	rec = do(t, h, "POST", fmt.Sprintf("/objectives/%d/generate-tasks", obj.ID), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate after default create: %d %s", rec.Code, rec.Body)
	}
	gen := decode[generateResult](t, rec)
	if len(gen.Tasks) < 3 || len(gen.Tasks) > 7 {
		t.Errorf("generated %d tasks, want 3..7", len(gen.Tasks))
	}
	for _, task := range gen.Tasks {
		if task.EstimatedTime < 5 || task.EstimatedTime > 30 {
			t.Errorf("task %q estimatedTime = %d, want 5..30", task.Title, task.EstimatedTime)
		}
	}
}
