package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/batchgen/internal/config"
	"github.com/phrazzld/batchgen/internal/credential"
	"github.com/phrazzld/batchgen/internal/events"
	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/phrazzld/batchgen/internal/metrics"
	"github.com/phrazzld/batchgen/internal/platform/gemini"
	"github.com/phrazzld/batchgen/internal/platform/openai"
	"github.com/phrazzld/batchgen/internal/platform/postgres"
	"github.com/phrazzld/batchgen/internal/progress"
	"github.com/phrazzld/batchgen/internal/service"
	"github.com/phrazzld/batchgen/internal/service/auth"
	"github.com/phrazzld/batchgen/internal/store"
	"github.com/phrazzld/batchgen/internal/task"
	"github.com/redis/go-redis/v9"
)

// application holds the shared dependencies of the server so they can be
// shut down together.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	metrics    *metrics.Collector
	jwtService auth.JWTService

	// Progress fan-out
	hub        *progress.Hub
	notifier   *progress.Notifier
	redis      *redis.Client
	broker     *progress.RedisBroker
	stopBroker context.CancelFunc
	brokerDone chan struct{}

	// Services
	generationService *service.GenerationService
	credentialService *service.CredentialService
	resultsService    *service.ResultsService
	storyboardService *service.StoryboardService

	taskRunner *task.TaskRunner
}

// newApplication wires stores, provider, services and the task runner. The
// runner is started last so recovered sessions find every collaborator in
// place. On error every resource acquired so far, db included, is released.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (_ *application, err error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	cipher, err := credential.NewCipher(cfg.Credentials.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential cipher: %w", err)
	}

	sessionStore := postgres.NewPostgresSessionStore(db, logger)
	batchStore := postgres.NewPostgresBatchStore(db, logger)
	resultStore := postgres.NewPostgresResultStore(db, logger)
	credentialStore := postgres.NewPostgresCredentialStore(db, logger)
	taskStore := postgres.NewPostgresTaskStore(db, logger)

	provider, err := newProvider(cfg.Provider, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("provider initialized",
		"provider", provider.Name(),
		"model", cfg.Provider.Model,
		"text_model", cfg.Provider.TextModel)

	publisher, err := app.setupProgress(ctx)
	if err != nil {
		return nil, err
	}
	app.notifier = progress.NewNotifier(app.hub, sessionStore.GetByID, app.metrics, logger)

	tracker := service.NewSessionTracker(sessionStore, publisher, app.metrics, logger)
	source := credential.NewSource(credentialStore, cipher, logger)

	factory, err := task.NewBatchGenerationTaskFactory(task.BatchGenerationDeps{
		Tracker:        tracker,
		Credentials:    source,
		Batches:        batchStore,
		Results:        resultStore,
		Provider:       provider,
		PlaceholderURL: cfg.Generation.PlaceholderURL,
		Metrics:        app.metrics,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task factory: %w", err)
	}

	runner := task.NewTaskRunner(taskStore, task.RunnerConfigFrom(cfg.Task), logger)
	runner.RegisterRehydrator(task.TaskTypeBatchGeneration, factory.Rehydrate)

	dispatcher := events.NewDispatcher(logger)
	dispatcher.Register(events.TypeBatchGeneration, task.NewTaskFactoryEventHandler(factory, runner, logger))

	app.generationService, err = service.NewGenerationService(
		tracker,
		sessionStore,
		source,
		dispatcher,
		runner,
		cfg.Generation,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation service: %w", err)
	}

	validator := credential.NewValidator(provider, credential.DefaultProbeConcurrency, logger)
	app.credentialService, err = service.NewCredentialService(
		credentialStore,
		validator,
		cipher,
		store.DBTransactor(db),
		app.metrics,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential service: %w", err)
	}

	app.resultsService = service.NewResultsService(sessionStore, resultStore, logger)

	app.storyboardService, err = service.NewStoryboardService(source, provider, app.generationService, cfg.Generation, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storyboard service: %w", err)
	}

	if err := runner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}
	app.taskRunner = runner

	logger.Info("application initialized")
	return app, nil
}

// imageTextProvider generates images and text with the same credentials.
type imageTextProvider interface {
	generation.Provider
	generation.TextGenerator
}

// newProvider selects the provider named in cfg.
func newProvider(cfg config.ProviderConfig, logger *slog.Logger) (imageTextProvider, error) {
	switch cfg.Name {
	case "gemini":
		c, err := gemini.NewImageClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
		}
		return c, nil
	case "openai":
		c, err := openai.NewImageClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// setupProgress creates the local hub and, when Redis is configured, the
// broker that shares snapshots between instances. It returns the publisher
// the tracker should use.
func (app *application) setupProgress(ctx context.Context) (progress.Publisher, error) {
	app.hub = progress.NewHub(app.logger)
	if app.config.Redis.URL == "" {
		app.logger.Info("progress fan-out is process local")
		return app.hub, nil
	}

	client, err := progress.NewRedisClient(ctx, app.config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = client
	app.broker = progress.NewRedisBroker(client, app.hub, app.logger)

	brokerCtx, cancel := context.WithCancel(context.Background())
	app.stopBroker = cancel
	app.brokerDone = make(chan struct{})
	ready := make(chan struct{})

	go func() {
		defer close(app.brokerDone)
		if err := app.broker.Run(brokerCtx, ready); err != nil {
			app.logger.Error("progress broker stopped", "error", err)
		}
	}()

	select {
	case <-ready:
	case <-app.brokerDone:
		return nil, fmt.Errorf("progress broker failed to subscribe")
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("timed out subscribing to progress channels")
	}

	app.logger.Info("progress fan-out shared through redis")
	return app.broker, nil
}

// Run serves HTTP until a shutdown signal arrives.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases resources in reverse order of creation. Running tasks
// are returned to pending and resume on the next start.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.stopBroker != nil {
		app.stopBroker()
		<-app.brokerDone
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
