package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/prota/internal/database"
	"github.com/dukerupert/prota/internal/generator"
	"github.com/dukerupert/prota/internal/llm"
	"github.com/dukerupert/prota/internal/logging"
	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(entity, action string, id int64, extra map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, entity+"_"+action)
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type stubCompleter struct {
	reply string
}

func (s stubCompleter) Configured() bool { return s.reply != "" }

func (s stubCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	return s.reply, nil
}

type fixture struct {
	runner     *Runner
	objectives *store.ObjectiveStore
	tasks      *store.TaskStore
	jobs       *store.JobStore
	settings   *store.SettingsStore
	events     *recorder
}

func setup(t *testing.T, reply string) fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := fixture{
		objectives: store.NewObjectiveStore(db),
		tasks:      store.NewTaskStore(db),
		jobs:       store.NewJobStore(db),
		settings:   store.NewSettingsStore(db),
		events:     &recorder{},
	}
	gen := generator.New(stubCompleter{reply: reply}, logging.Discard())
	f.runner = NewRunner(f.jobs, f.objectives, f.tasks, f.settings, gen, f.events, logging.Discard(), Config{Workers: 1})
	return f
}

func TestGenerateNow(t *testing.T) {
	f := setup(t, `[{"title":"Tune","estimatedTime":5},{"title":"Strum","estimatedTime":10},{"title":"Play","estimatedTime":20}]`)
	obj, _ := f.objectives.Create("Learn guitar", "", "", model.PriorityMedium, "")

	out, err := f.runner.GenerateNow(context.Background(), obj.ID, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Source != model.SourceModel || len(out.Tasks) != 3 {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Energy != model.EnergyNormal {
		t.Errorf("energy = %q, want profile default normal", out.Energy)
	}
	if !f.events.has("task_generated") {
		t.Error("expected task_generated event")
	}

	if _, err := f.runner.GenerateNow(context.Background(), obj.ID, Options{}); !errors.Is(err, store.ErrTasksExist) {
		t.Errorf("second generate err = %v, want ErrTasksExist", err)
	}
	if _, err := f.runner.GenerateNow(context.Background(), 999, Options{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown objective err = %v, want ErrNotFound", err)
	}
}

func TestGenerateNowEnergyPrecedence(t *testing.T) {
	f := setup(t, "")
	f.settings.SetEnergyLevel(model.EnergyMotivated)

	withOwn, _ := f.objectives.Create("Run a 5k", "", "body", model.PriorityHigh, model.EnergyTired)
	out, err := f.runner.GenerateNow(context.Background(), withOwn.ID, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Energy != model.EnergyTired {
		t.Errorf("energy = %q, want objective's tired", out.Energy)
	}

	fromProfile, _ := f.objectives.Create("Read a book", "", "mind", model.PriorityLow, "")
	out, _ = f.runner.GenerateNow(context.Background(), fromProfile.ID, Options{})
	if out.Energy != model.EnergyMotivated {
		t.Errorf("energy = %q, want profile's motivated", out.Energy)
	}
	if out.Source != model.SourceFallback {
		t.Errorf("source = %q, want fallback without a model", out.Source)
	}
	if len(out.Tasks) > generator.TaskCap(model.EnergyMotivated) {
		t.Errorf("tasks = %d, over motivated cap", len(out.Tasks))
	}
}

func TestSubmitRunsInBackground(t *testing.T) {
	f := setup(t, "")
	obj, _ := f.objectives.Create("Learn guitar", "", "", model.PriorityMedium, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.runner.Start(ctx)
	defer f.runner.Stop()

	job, err := f.runner.Submit(obj.ID, Options{Energy: model.EnergyTired})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != model.JobStatusPending {
		t.Errorf("status = %q, want pending", job.Status)
	}

	f.runner.Wait()

	got, _ := f.jobs.GetByID(job.ID)
	if got.Status != model.JobStatusSucceeded || got.Source != model.SourceFallback || got.TaskCount == 0 {
		t.Errorf("job = %+v", got)
	}
	tasks, _ := f.tasks.ListByObjective(obj.ID)
	if len(tasks) != got.TaskCount {
		t.Errorf("stored tasks = %d, job says %d", len(tasks), got.TaskCount)
	}
	for _, e := range []string{"generation_queued", "generation_running", "generation_succeeded"} {
		if !f.events.has(e) {
			t.Errorf("missing event %s", e)
		}
	}
}

func TestSubmitFailsWhenTasksExist(t *testing.T) {
	f := setup(t, "")
	obj, _ := f.objectives.Create("Learn guitar", "", "", model.PriorityMedium, "")
	f.tasks.Create(obj.ID, model.TaskDescriptor{Title: "Manual", EstimatedTime: 10}, model.SourceManual)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.runner.Start(ctx)
	defer f.runner.Stop()

	job, err := f.runner.Submit(obj.ID, Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.runner.Wait()

	got, _ := f.jobs.GetByID(job.ID)
	if got.Status != model.JobStatusFailed || got.Error == "" {
		t.Errorf("job = %+v, want failed with error", got)
	}
	if !f.events.has("generation_failed") {
		t.Error("expected generation_failed event")
	}
}

func TestSubmitUnknownObjective(t *testing.T) {
	f := setup(t, "")
	if _, err := f.runner.Submit(999, Options{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStartFailsInterruptedJobs(t *testing.T) {
	f := setup(t, "")
	obj, _ := f.objectives.Create("Learn guitar", "", "", model.PriorityMedium, "")
	stale, _ := f.jobs.Create(obj.ID, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.runner.Start(ctx)
	f.runner.Stop()

	got, _ := f.jobs.GetByID(stale.ID)
	if got.Status != model.JobStatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
}

// blockingCompleter holds every completion until its context is cancelled.
type blockingCompleter struct {
	started chan struct{}
}

func (b blockingCompleter) Configured() bool { return true }

func (b blockingCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	b.started <- struct{}{}
	<-ctx.Done()
	return "", ctx.Err()
}

func TestStopFailsQueuedJobs(t *testing.T) {
	f := setup(t, "")
	block := blockingCompleter{started: make(chan struct{}, 1)}
	gen := generator.New(block, logging.Discard())
	runner := NewRunner(f.jobs, f.objectives, f.tasks, f.settings, gen, f.events, logging.Discard(), Config{Workers: 1})

	runner.Start(context.Background())

	var ids []string
	for _, title := range []string{"Learn guitar", "Read more", "Run 5k"} {
		obj, _ := f.objectives.Create(title, "", "", model.PriorityMedium, "")
		job, err := runner.Submit(obj.ID, Options{})
		if err != nil {
			t.Fatalf("submit %s: %v", title, err)
		}
		ids = append(ids, job.ID)
	}

	<-block.started
	runner.Stop()

	waited := make(chan struct{})
	go func() {
		runner.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Stop")
	}

	for _, id := range ids[1:] {
		got, _ := f.jobs.GetByID(id)
		if got.Status != model.JobStatusFailed {
			t.Errorf("queued job %s status = %q, want failed", id, got.Status)
		}
	}
	if !f.events.has("generation_failed") {
		t.Error("missing generation_failed event")
	}

	obj, _ := f.objectives.Create("After stop", "", "", model.PriorityMedium, "")
	if _, err := runner.Submit(obj.ID, Options{}); !errors.Is(err, ErrStopped) {
		t.Errorf("submit after stop: err = %v, want ErrStopped", err)
	}
}
