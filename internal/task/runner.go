package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/config"
	"github.com/phrazzld/batchgen/internal/platform/logger"
)

// ErrTaskCancelled is the cancellation cause given to a task's context when
// it is cancelled through Cancel.
var ErrTaskCancelled = errors.New("task cancelled")

// ErrNoRehydrator is returned when a persisted task has a type the runner
// does not know how to rebuild.
var ErrNoRehydrator = errors.New("no rehydrator registered for task type")

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// RunnerConfigFrom converts the application task settings.
func RunnerConfigFrom(cfg config.TaskConfig) TaskRunnerConfig {
	rc := DefaultTaskRunnerConfig()
	rc.WorkerCount = cfg.WorkerCount
	rc.QueueSize = cfg.QueueSize
	rc.StuckTaskAge = time.Duration(cfg.StuckTaskAgeMinutes) * time.Minute
	return rc
}

// TaskRunner manages background task processing. Tasks are persisted before
// they are queued so that they survive a restart; Start rebuilds unfinished
// tasks through the registered rehydrators.
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	pool       *WorkerPool
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)

	mu          sync.Mutex
	rehydrators map[string]Rehydrator
	running     map[string]context.CancelCauseFunc
	runningIDs  map[uuid.UUID]struct{}
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	// Apply default check interval if not specified
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}

	logger = logger.With("component", "task_runner")
	ctx, cancel := context.WithCancel(context.Background())
	queue := NewTaskQueue(config.QueueSize, logger)

	return &TaskRunner{
		store:      store,
		queue:      queue,
		pool:       NewWorkerPool(ctx, queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			// Default error handler just logs the error
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
		rehydrators: make(map[string]Rehydrator),
		running:     make(map[string]context.CancelCauseFunc),
		runningIDs:  make(map[uuid.UUID]struct{}),
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// RegisterRehydrator sets how persisted tasks of taskType are rebuilt.
func (r *TaskRunner) RegisterRehydrator(taskType string, fn Rehydrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rehydrators[taskType] = fn
}

// Submit persists a task and adds it to the queue
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	// Save task to database first
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.enqueue(task); err != nil {
		// The task stays pending in the store and is picked up on the next recovery.
		return fmt.Errorf("failed to queue task: %w", err)
	}
	return nil
}

// Start recovers unfinished tasks and starts the workers
func (r *TaskRunner) Start() error {
	// Recover unfinished tasks from previous runs
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start(r.processTask)

	// Start goroutine to check for stuck tasks periodically
	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner. Running tasks see their
// context cancelled and are returned to pending so the next Start resumes them.
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.pool.Stop()
	r.wg.Wait()
	r.queue.Close()
}

// Cancel cancels the task identified by key. A running task has its context
// cancelled with ErrTaskCancelled; a queued task starts already cancelled.
// It reports whether a task with that key was known to this runner.
func (r *TaskRunner) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.running[key]; ok {
		cancel(ErrTaskCancelled)
		r.logger.Info("cancelled running task", "task_key", key)
		return true
	}
	if r.queue.Cancel(key) {
		r.logger.Info("cancelled queued task", "task_key", key)
		return true
	}
	return false
}

// Recover loads any unfinished tasks from the database
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	// Get tasks that were in "pending" state
	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	// Get tasks that were in "processing" state (potentially interrupted by a crash)
	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, rec := range pendingTasks {
		r.requeue(ctx, rec)
	}

	for _, rec := range processingTasks {
		if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending, "reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}
		r.requeue(ctx, rec)
	}

	return nil
}

// requeue rebuilds a persisted task and puts it back on the queue. Records
// that cannot be rebuilt are marked failed so they are not retried forever.
func (r *TaskRunner) requeue(ctx context.Context, rec Record) {
	log := r.logger.With("task_id", rec.ID, "task_type", rec.Type)

	r.mu.Lock()
	_, running := r.runningIDs[rec.ID]
	rehydrate, ok := r.rehydrators[rec.Type]
	r.mu.Unlock()

	// Submitted to this runner already.
	if running || r.queue.Holds(rec.ID) {
		log.Debug("task already held by runner, skipping recovery")
		return
	}

	var (
		task Task
		err  error
	)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrNoRehydrator, rec.Type)
	} else {
		task, err = rehydrate(rec)
	}
	if err != nil {
		log.Error("failed to rebuild task", "error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to mark task failed", "error", updateErr)
		}
		return
	}

	if err := r.enqueue(task); err != nil {
		log.Error("failed to requeue task", "error", err)
		return
	}
	log.Info("requeued task")
}

func (r *TaskRunner) enqueue(task Task) error {
	return r.queue.Enqueue(task)
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(parent context.Context, task Task) {
	key := keyOf(task)
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
	)

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	// Claim and registration happen under r.mu so Cancel always finds the
	// task in one of the two.
	r.mu.Lock()
	if r.queue.Claim(task) {
		cancel(ErrTaskCancelled)
	}
	r.running[key] = cancel
	r.runningIDs[task.ID()] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.running, key)
		delete(r.runningIDs, task.ID())
		r.mu.Unlock()
	}()

	// Status writes must outlive a shutdown of the runner.
	storeCtx := context.WithoutCancel(parent)

	if err := r.store.UpdateTaskStatus(storeCtx, task.ID(), TaskStatusProcessing, ""); err != nil {
		log.Error("failed to update task status to processing", "error", err)
		return
	}

	log.Info("processing task")

	err := r.execute(logger.WithLogger(ctx, log), task)

	switch {
	case err == nil:
		log.Info("task completed successfully")
		if updateErr := r.store.UpdateTaskStatus(storeCtx, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
			log.Error("failed to update task status to completed", "error", updateErr)
		}

	case r.ctx.Err() != nil && !errors.Is(context.Cause(ctx), ErrTaskCancelled):
		// Interrupted by shutdown; the next recovery resumes it.
		log.Warn("task interrupted by shutdown", "error", err)
		if updateErr := r.store.UpdateTaskStatus(storeCtx, task.ID(), TaskStatusPending, "interrupted by shutdown"); updateErr != nil {
			log.Error("failed to reset interrupted task", "error", updateErr)
		}

	default:
		log.Error("task execution failed", "error", err)
		if updateErr := r.store.UpdateTaskStatus(storeCtx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}
		r.errHandler(task, err)
	}
}

// execute runs the task and converts a panic into an error.
func (r *TaskRunner) execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return task.Execute(ctx)
}

// stuckTaskMonitor periodically checks for tasks that have been in "processing"
// state for too long and resets them
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.resetStuckTasks(r.ctx)
		}
	}
}

func (r *TaskRunner) resetStuckTasks(ctx context.Context) {
	stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}

	for _, rec := range stuckTasks {
		r.mu.Lock()
		_, live := r.runningIDs[rec.ID]
		r.mu.Unlock()
		if live {
			// Long running but owned by a worker in this process.
			continue
		}

		r.logger.Info("resetting stuck task", "task_id", rec.ID, "task_type", rec.Type)
		if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending,
			"reset after being stuck in processing state"); err != nil {
			r.logger.Error("failed to reset stuck task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}
		r.requeue(ctx, rec)
	}
}

// keyOf returns the cancellation key of a task, falling back to its ID.
func keyOf(task Task) string {
	if k, ok := task.(Keyed); ok && k.Key() != "" {
		return k.Key()
	}
	return task.ID().String()
}
