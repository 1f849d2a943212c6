package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/prota/internal/backup"
	"github.com/dukerupert/prota/internal/config"
	"github.com/dukerupert/prota/internal/email"
	"github.com/dukerupert/prota/internal/generator"
	"github.com/dukerupert/prota/internal/handler"
	"github.com/dukerupert/prota/internal/jobs"
	"github.com/dukerupert/prota/internal/llm"
	"github.com/dukerupert/prota/internal/middleware"
	"github.com/dukerupert/prota/internal/reminder"
	"github.com/dukerupert/prota/internal/snapshot"
	"github.com/dukerupert/prota/internal/store"
	ws "github.com/dukerupert/prota/internal/websocket"
)

type Server struct {
	cfg    *config.Config
	hub    *ws.Hub
	logger *slog.Logger

	objectiveH *handler.ObjectiveHandler
	taskH      *handler.TaskHandler
	pointsH    *handler.PointsHandler
	profileH   *handler.ProfileHandler
	reminderH  *handler.ReminderHandler
	systemH    *handler.SystemHandler

	runner        *jobs.Runner
	dispatcher    *reminder.Dispatcher
	backupManager *backup.Manager
	rateLimiter   *middleware.RateLimiter

	cancel context.CancelFunc
}

type Option func(*options)

type options struct {
	mail     email.Sender
	aiClient []llm.Option
}

// WithMailSender replaces the sender built from the mail config.
func WithMailSender(s email.Sender) Option {
	return func(o *options) { o.mail = s }
}

// WithAIOptions passes options to the chat completion client.
func WithAIOptions(opts ...llm.Option) Option {
	return func(o *options) { o.aiClient = append(o.aiClient, opts...) }
}

func New(cfg *config.Config, db *sql.DB, logger *slog.Logger, opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	objectiveStore := store.NewObjectiveStore(db)
	taskStore := store.NewTaskStore(db)
	pointsStore := store.NewPointsStore(db)
	jobStore := store.NewJobStore(db)
	reminderStore := store.NewReminderStore(db)
	settingsStore := store.NewSettingsStore(db)

	stores := snapshot.Stores{
		Objectives: objectiveStore,
		Tasks:      taskStore,
		Points:     pointsStore,
		Reminders:  reminderStore,
		Settings:   settingsStore,
	}

	aiClient := NewAIClient(cfg, o.aiClient...)
	gen := generator.New(aiClient, logger.With("component", "generator"))
	runner := jobs.NewRunner(jobStore, objectiveStore, taskStore, settingsStore, gen, hub,
		logger.With("component", "jobs"), jobs.Config{})

	mail := o.mail
	if mail == nil {
		mail = email.NewSender(cfg.Mail)
	}
	dispatcher := reminder.NewDispatcher(reminderStore, mail, hub, logger.With("component", "reminder"), reminder.Config{
		Location:  cfg.Location(),
		DefaultTo: cfg.Mail.To,
		Interval:  cfg.Reminders.Interval,
	})

	backupMgr := backup.NewManager(cfg.Backup, stores, logger.With("component", "backup"), func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"inProgress": s.InProgress,
				"error":      s.Error,
			},
		})
	})

	return &Server{
		cfg:           cfg,
		hub:           hub,
		logger:        logger,
		objectiveH:    handler.NewObjectiveHandler(objectiveStore, taskStore, jobStore, runner, hub, logger.With("component", "objective"), cfg.AutoGenerate),
		taskH:         handler.NewTaskHandler(taskStore, objectiveStore, hub, logger.With("component", "task"), cfg.PointsPerTask),
		pointsH:       handler.NewPointsHandler(pointsStore, taskStore, objectiveStore, cfg.Location(), logger.With("component", "points")),
		profileH:      handler.NewProfileHandler(settingsStore, hub, logger.With("component", "profile")),
		reminderH:     handler.NewReminderHandler(reminderStore, dispatcher, hub, logger.With("component", "reminder")),
		systemH:       handler.NewSystemHandler(llm.NewProber(aiClient), mail, stores, backupMgr, logger.With("component", "system")),
		runner:        runner,
		dispatcher:    dispatcher,
		backupManager: backupMgr,
		rateLimiter:   middleware.NewRateLimiter(10, time.Minute),
	}
}

// NewAIClient builds the chat completion client from the AI config.
func NewAIClient(cfg *config.Config, opts ...llm.Option) *llm.Client {
	return llm.NewClient(llm.Config{
		Token:       cfg.AI.Token,
		URL:         cfg.AI.URL,
		Model:       cfg.AI.Model,
		Timeout:     cfg.AI.Timeout,
		Temperature: cfg.AI.Temperature,
	}, opts...)
}

// Start launches the generation workers, the reminder loop, the backup
// loop and rate limiter cleanup.
func (s *Server) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.runner.Start(ctx)
	s.dispatcher.Start(ctx)
	s.backupManager.Start(ctx)
	go s.rateLimiter.RunCleanup(ctx)
}

// Stop halts the background loops started by Start.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.backupManager.Stop()
	s.dispatcher.Stop()
	s.runner.Stop()
}

// Runner returns the generation runner.
func (s *Server) Runner() *jobs.Runner {
	return s.runner
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.systemH.Health)
	mux.HandleFunc("GET /ai/status", s.systemH.AIStatus)

	// Objectives
	mux.HandleFunc("POST /objectives", s.rateLimited(s.objectiveH.Create))
	mux.HandleFunc("GET /objectives", s.objectiveH.List)
	mux.HandleFunc("GET /objectives/{id}", s.objectiveH.Get)
	mux.HandleFunc("PUT /objectives/{id}", s.objectiveH.Update)
	mux.HandleFunc("DELETE /objectives/{id}", s.objectiveH.Delete)
	mux.HandleFunc("POST /objectives/{id}/generate-tasks", s.rateLimited(s.objectiveH.GenerateTasks))
	mux.HandleFunc("GET /objectives/{id}/generation", s.objectiveH.Generation)

	// Tasks
	mux.HandleFunc("GET /tasks", s.taskH.List)
	mux.HandleFunc("POST /tasks", s.taskH.Create)
	mux.HandleFunc("PATCH /tasks/{id}/done", s.taskH.Done)
	mux.HandleFunc("PATCH /tasks/{id}/undo", s.taskH.Undo)

	// Points and profile
	mux.HandleFunc("GET /points", s.pointsH.Get)
	mux.HandleFunc("GET /profile", s.profileH.Get)
	mux.HandleFunc("PUT /profile", s.profileH.Update)

	// Reminders
	mux.HandleFunc("GET /reminders", s.reminderH.List)
	mux.HandleFunc("POST /reminders", s.reminderH.Create)
	mux.HandleFunc("DELETE /reminders/{id}", s.reminderH.Delete)
	mux.HandleFunc("POST /reminders/dispatch", s.reminderH.Dispatch)
	mux.HandleFunc("POST /reminders/test", s.rateLimited(s.reminderH.Test))

	// Export and backups
	mux.HandleFunc("GET /export", s.systemH.Export)
	mux.HandleFunc("POST /backups", s.rateLimited(s.systemH.BackupNow))
	mux.HandleFunc("GET /backups/status", s.systemH.BackupStatus)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.Handler(s.hub, s.logger.With("component", "websocket"), nil))

	var h http.Handler = mux
	h = middleware.RequireToken(s.cfg.APIToken, "/health")(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.ByIP)(h).ServeHTTP
}
