package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/prota/internal/generator"
	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/store"
	"github.com/dukerupert/prota/internal/websocket"
)

// ErrQueueFull is returned by Submit when the backlog is at capacity.
var ErrQueueFull = errors.New("generation queue is full")

// ErrStopped is returned by Submit once the runner has been stopped.
var ErrStopped = errors.New("generation runner stopped")

// Notifier receives change notifications.
type Notifier interface {
	Publish(entity, action string, id int64, extra map[string]any)
}

// Options tune one generation.
type Options struct {
	Energy   string
	Day      int
	MaxTasks int
}

// Outcome is the result of a generation that was stored.
type Outcome struct {
	ObjectiveID int64
	Tasks       []model.Task
	Source      string
	Reason      string
	Coaching    string
	Energy      string
}

type queued struct {
	jobID       string
	objectiveID int64
	opts        Options
}

// Runner generates tasks for objectives, either inline or as tracked
// background jobs processed by a small worker pool.
type Runner struct {
	jobs       *store.JobStore
	objectives *store.ObjectiveStore
	tasks      *store.TaskStore
	settings   *store.SettingsStore
	gen        *generator.Generator
	notify     Notifier
	logger     *slog.Logger

	workers int
	queue   chan queued
	pending sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type Config struct {
	Workers   int
	QueueSize int
}

func NewRunner(
	jobStore *store.JobStore,
	objectiveStore *store.ObjectiveStore,
	taskStore *store.TaskStore,
	settingsStore *store.SettingsStore,
	gen *generator.Generator,
	notify Notifier,
	logger *slog.Logger,
	cfg Config,
) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Runner{
		jobs:       jobStore,
		objectives: objectiveStore,
		tasks:      taskStore,
		settings:   settingsStore,
		gen:        gen,
		notify:     notify,
		logger:     logger,
		workers:    cfg.Workers,
		queue:      make(chan queued, cfg.QueueSize),
	}
}

// Start launches the workers. Jobs left unfinished by a previous process
// are marked failed first.
func (r *Runner) Start(ctx context.Context) {
	if n, err := r.jobs.FailUnfinished(); err != nil {
		r.logger.Error("fail unfinished jobs", "error", err)
	} else if n > 0 {
		r.logger.Warn("marked interrupted generation jobs as failed", "count", n)
	}

	r.mu.Lock()
	r.stopped = false
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx)
		}()
	}
	done := r.done
	go func() {
		wg.Wait()
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
		r.drain()
		close(done)
	}()
}

// Stop cancels in-flight generations and waits for the workers to exit.
// Jobs still queued are marked failed.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Wait blocks until every submitted job has finished.
func (r *Runner) Wait() {
	r.pending.Wait()
}

// Submit records a pending job for the objective and queues it.
func (r *Runner) Submit(objectiveID int64, opts Options) (*model.GenerationJob, error) {
	obj, err := r.objectives.GetByID(objectiveID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, store.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, ErrStopped
	}

	job, err := r.jobs.Create(objectiveID, opts.Energy)
	if err != nil {
		return nil, err
	}

	r.pending.Add(1)
	select {
	case r.queue <- queued{jobID: job.ID, objectiveID: objectiveID, opts: opts}:
	default:
		r.pending.Done()
		if err := r.jobs.MarkFailed(job.ID, ErrQueueFull); err != nil {
			r.logger.Error("mark job failed", "job", job.ID, "error", err)
		}
		return nil, ErrQueueFull
	}

	r.publish(websocket.EntityGeneration, "queued", objectiveID, job.ID, nil)
	return job, nil
}

func (r *Runner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-r.queue:
			if ctx.Err() != nil {
				r.abandon(q, ctx.Err())
				continue
			}
			r.process(ctx, q)
			r.pending.Done()
		}
	}
}

// drain fails every job left in the queue after the workers exit.
func (r *Runner) drain() {
	for {
		select {
		case q := <-r.queue:
			r.abandon(q, context.Canceled)
		default:
			return
		}
	}
}

func (r *Runner) abandon(q queued, cause error) {
	defer r.pending.Done()
	if err := r.jobs.MarkFailed(q.jobID, cause); err != nil {
		r.logger.Error("mark job failed", "job", q.jobID, "error", err)
	}
	r.publish(websocket.EntityGeneration, "failed", q.objectiveID, q.jobID, map[string]any{"error": cause.Error()})
}

func (r *Runner) process(ctx context.Context, q queued) {
	logger := r.logger.With("job", q.jobID, "objective", q.objectiveID)

	if err := r.jobs.MarkRunning(q.jobID); err != nil {
		logger.Error("mark job running", "error", err)
	}
	r.publish(websocket.EntityGeneration, "running", q.objectiveID, q.jobID, nil)

	start := time.Now()
	out, err := r.GenerateNow(ctx, q.objectiveID, q.opts)
	if err != nil {
		logger.Warn("generation job failed", "error", err, "duration", time.Since(start))
		if markErr := r.jobs.MarkFailed(q.jobID, err); markErr != nil {
			logger.Error("mark job failed", "error", markErr)
		}
		r.publish(websocket.EntityGeneration, "failed", q.objectiveID, q.jobID, map[string]any{"error": err.Error()})
		return
	}

	if err := r.jobs.MarkSucceeded(q.jobID, out.Source, len(out.Tasks)); err != nil {
		logger.Error("mark job succeeded", "error", err)
	}
	logger.Info("generation job finished", "source", out.Source, "tasks", len(out.Tasks), "duration", time.Since(start))
	r.publish(websocket.EntityGeneration, "succeeded", q.objectiveID, q.jobID, map[string]any{
		"source":    out.Source,
		"taskCount": len(out.Tasks),
	})
}

// GenerateNow generates and stores tasks for the objective in the calling
// goroutine. It fails with store.ErrNotFound for an unknown objective and
// store.ErrTasksExist when the objective already has tasks.
func (r *Runner) GenerateNow(ctx context.Context, objectiveID int64, opts Options) (*Outcome, error) {
	obj, err := r.objectives.GetByID(objectiveID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, store.ErrNotFound
	}

	existing, err := r.tasks.CountByObjective(objectiveID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, store.ErrTasksExist
	}

	energy, err := r.resolveEnergy(obj, opts.Energy)
	if err != nil {
		return nil, err
	}

	res := r.gen.Generate(ctx, generator.Request{
		Goal:        obj.Title,
		Description: obj.Description,
		Category:    obj.Category,
		Energy:      energy,
		Day:         opts.Day,
		MaxTasks:    opts.MaxTasks,
	})

	tasks, err := r.tasks.CreateBatch(objectiveID, res.Tasks, res.Source)
	if err != nil {
		return nil, fmt.Errorf("store generated tasks: %w", err)
	}

	r.publish(websocket.EntityTask, "generated", objectiveID, "", map[string]any{
		"count":  len(tasks),
		"source": res.Source,
	})
	return &Outcome{
		ObjectiveID: objectiveID,
		Tasks:       tasks,
		Source:      res.Source,
		Reason:      res.Reason,
		Coaching:    res.Coaching,
		Energy:      energy,
	}, nil
}

// resolveEnergy prefers the explicit level, then the objective's, then
// the profile's.
func (r *Runner) resolveEnergy(obj *model.Objective, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if obj.EnergyLevel != "" {
		return obj.EnergyLevel, nil
	}
	if r.settings == nil {
		return "", nil
	}
	return r.settings.EnergyLevel()
}

func (r *Runner) publish(entity, action string, objectiveID int64, jobID string, extra map[string]any) {
	if r.notify == nil {
		return
	}
	if jobID != "" {
		if extra == nil {
			extra = map[string]any{}
		}
		extra["jobId"] = jobID
	}
	r.notify.Publish(entity, action, objectiveID, extra)
}
