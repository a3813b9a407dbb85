package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/auth"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/handlers"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
	"github.com/ternarybob/skillmatch/internal/queue"
	"github.com/ternarybob/skillmatch/internal/services/blob"
	"github.com/ternarybob/skillmatch/internal/services/events"
	"github.com/ternarybob/skillmatch/internal/services/nlp"
	"github.com/ternarybob/skillmatch/internal/services/quota"
	"github.com/ternarybob/skillmatch/internal/storage/postgres"
	"github.com/ternarybob/skillmatch/internal/workers"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	EventService   interfaces.EventService
	StorageManager interfaces.StorageManager
	QueueManager   interfaces.QueueManager
	ObjectStore    interfaces.ObjectStore
	NLPService     interfaces.NLPService
	QuotaEnforcer  *quota.Enforcer
	WorkerPool     *queue.WorkerPool

	AuthMiddleware func(http.Handler) http.Handler

	ResumeHandler *handlers.ResumeHandler
	JobHandler    *handlers.JobHandler
	MatchHandler  *handlers.MatchHandler
	UsageHandler  *handlers.UsageHandler
	APIHandler    *handlers.APIHandler
	WSHandler     *handlers.WebSocketHandler
	Bridge        *handlers.RealtimeBridge

	cron    *cron.Cron
	started bool
}

// New wires the application in dependency order: bus, storage, broker,
// collaborators, workers, handlers. Start must be called afterwards;
// calling it twice is a no-op.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	a.EventService = events.NewService(logger)

	storageManager, err := postgres.NewManager(ctx, cfg.Database, a.EventService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	queueManager, err := queue.NewManager(
		cfg.Queue.DataDir,
		common.ParseDurationOr(cfg.Queue.VisibilityTimeout, 5*time.Minute),
		cfg.Queue.MaxReceive,
		logger,
	)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}
	a.QueueManager = queueManager

	objectStore, err := blob.NewStore(ctx, cfg.Storage, logger)
	if err != nil {
		a.closePartial()
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}
	a.ObjectStore = objectStore

	a.NLPService = nlp.NewClient(cfg.NLP, logger)
	a.QuotaEnforcer = quota.NewEnforcer(storageManager.UserStorage(), logger)

	a.initWorkers()
	a.initHandlers()
	a.initMaintenance()

	return a, nil
}

func (a *App) initWorkers() {
	cfg := a.Config.Queue

	resumeWorker := workers.NewResumeWorker(a.StorageManager.ResumeStorage(), a.ObjectStore, a.NLPService, a.Logger)
	jobWorker := workers.NewJobWorker(a.StorageManager.JobStorage(), a.ObjectStore, a.NLPService, a.Logger)
	matchWorker := workers.NewMatchWorker(
		a.StorageManager.MatchStorage(),
		a.StorageManager.ResumeStorage(),
		a.StorageManager.JobStorage(),
		a.NLPService,
		a.Logger,
	)

	pool := queue.NewWorkerPool(a.QueueManager, common.ParseDurationOr(cfg.PollInterval, time.Second), a.Logger)
	pool.RegisterHandler(models.QueueParseResume, cfg.ParseConcurrency, resumeWorker.Handle)
	pool.RegisterHandler(models.QueueParseJob, cfg.ParseConcurrency, jobWorker.Handle)
	pool.RegisterHandler(models.QueueComputeMatch, cfg.MatchConcurrency, matchWorker.Handle)
	a.WorkerPool = pool
}

func (a *App) initHandlers() {
	storage := a.StorageManager

	a.AuthMiddleware = auth.Middleware(a.Config.Auth, storage.UserStorage(), a.Logger)

	a.ResumeHandler = handlers.NewResumeHandler(storage.ResumeStorage(), a.ObjectStore, a.QueueManager, a.Logger)
	a.JobHandler = handlers.NewJobHandler(storage.JobStorage(), a.ObjectStore, a.QueueManager, a.Logger)
	a.MatchHandler = handlers.NewMatchHandler(storage.MatchStorage(), storage.ResumeStorage(), storage.JobStorage(), a.QuotaEnforcer, a.QueueManager, a.Logger)
	a.UsageHandler = handlers.NewUsageHandler(storage.UserStorage(), a.Logger)
	a.APIHandler = handlers.NewAPIHandler()
	a.WSHandler = handlers.NewWebSocketHandler(a.Config.WebSocket, a.Logger)
	a.Bridge = handlers.NewRealtimeBridge(a.WSHandler, storage.ResumeStorage(), storage.JobStorage(), storage.MatchStorage(), a.Logger)
}

func (a *App) initMaintenance() {
	a.cron = cron.New()

	schedule := a.Config.Maintenance.Schedule
	if schedule == "" {
		return
	}

	if _, err := a.cron.AddFunc(schedule, a.runMaintenance); err != nil {
		a.Logger.Warn().Err(err).Str("schedule", schedule).Msg("Invalid maintenance schedule, maintenance disabled")
	}
}

// Start begins background processing: the realtime bridge, the worker pool
// and the maintenance schedule. Idempotent.
func (a *App) Start() error {
	if a.started {
		return nil
	}

	if err := a.Bridge.Start(a.EventService); err != nil {
		return fmt.Errorf("failed to start realtime bridge: %w", err)
	}

	if err := a.WorkerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	a.cron.Start()
	a.started = true

	a.Logger.Info().Msg("Application started")
	return nil
}

// runMaintenance reclaims badger value-log space and fails rows abandoned
// in transient states
func (a *App) runMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	threshold := time.Duration(a.Config.Maintenance.StaleThresholdMinutes) * time.Minute
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}

	reaped, err := a.StorageManager.ReapStale(ctx, threshold)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Stale row reap failed")
	} else if reaped > 0 {
		a.Logger.Info().Int("reaped", reaped).Msg("Reaped stale rows")
	}

	if mgr, ok := a.QueueManager.(*queue.Manager); ok {
		if err := mgr.DB().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
			a.Logger.Warn().Err(err).Msg("Queue value log GC failed")
		}
	}
}

// Close stops background work and releases resources in reverse
// initialization order
func (a *App) Close() error {
	if a.cron != nil {
		a.cron.Stop()
	}

	if a.WorkerPool != nil {
		if err := a.WorkerPool.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Worker pool stop failed")
		}
	}

	a.closePartial()

	if a.EventService != nil {
		a.EventService.Close()
	}

	a.Logger.Info().Msg("Application stopped")
	return nil
}

func (a *App) closePartial() {
	if a.QueueManager != nil {
		if err := a.QueueManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Queue close failed")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}
}
