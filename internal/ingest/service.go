package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yang-kun-long/insight-ingest/internal/config"
	"github.com/yang-kun-long/insight-ingest/internal/metrics"
	"github.com/yang-kun-long/insight-ingest/internal/model"
	"github.com/yang-kun-long/insight-ingest/internal/stage"
)

// Options tunes the per-task pipeline.
type Options struct {
	PartSize      int64
	Concurrency   int
	RetryAttempts int
	RetryDelay    time.Duration
	PollInterval  time.Duration
	AutoTranscode bool
	AutoProcess   bool
}

// OptionsFromConfig maps loaded configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PartSize:      cfg.PartSize,
		Concurrency:   cfg.Concurrency,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		PollInterval:  cfg.PollInterval,
		AutoTranscode: cfg.AutoTranscode,
		AutoProcess:   cfg.AutoProcess,
	}
}

// Service handles ingestion tasks. Tasks run independently and concurrently;
// the only state they share is the stage registry.
type Service struct {
	backend  Backend
	registry *stage.Registry
	opts     Options
	logger   *zap.Logger

	mu      sync.RWMutex
	tasks   map[string]*model.Task
	cancels map[string]context.CancelFunc

	onUpdate func(*model.Task) // callback for presentation updates
}

// NewService creates a new ingestion service.
func NewService(backend Backend, registry *stage.Registry, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = stage.NewRegistry()
	}
	return &Service{
		backend:  backend,
		registry: registry,
		opts:     opts,
		logger:   logger,
		tasks:    make(map[string]*model.Task),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SetUpdateCallback sets the callback invoked on every task state change.
func (s *Service) SetUpdateCallback(callback func(*model.Task)) {
	s.mu.Lock()
	s.onUpdate = callback
	s.mu.Unlock()
}

// Ingest creates a new ingestion task for the payload and starts it. The
// payload must stay readable for the lifetime of the task.
func (s *Service) Ingest(identity model.Identity, payload io.ReaderAt, size int64) (*model.Task, error) {
	key := identity.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.Done(key) {
		return nil, fmt.Errorf("content already ingested in this session: %s", identity.DisplayTitle())
	}
	for _, task := range s.tasks {
		if task.Identity.Key() == key && task.State.Active() {
			return nil, fmt.Errorf("task already exists for content: %s", identity.DisplayTitle())
		}
	}

	task := &model.Task{
		ID:          generateTaskID(),
		Identity:    identity,
		PartSize:    s.opts.PartSize,
		AutoProcess: s.opts.AutoProcess,
		State:       model.StateWaiting(model.WaitCheck, ""),
		StartedAt:   time.Now(),
	}
	s.tasks[task.ID] = task

	ctx, cancel := context.WithCancel(context.Background())
	s.cancels[task.ID] = cancel

	go s.run(ctx, task, payload, size)

	return task, nil
}

// Cancel stops an active task. In-flight network operations are aborted and
// the task ends in the cancelled state, never in Finished.
func (s *Service) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return fmt.Errorf("task not found: %s", id)
	}
	if !task.State.Active() {
		return fmt.Errorf("task is not active: %s", task.State.Phase)
	}

	cancel, exists := s.cancels[id]
	if !exists {
		return fmt.Errorf("task has no running pipeline: %s", id)
	}
	cancel()
	return nil
}

// Remove deletes a task that is no longer running.
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return fmt.Errorf("task not found: %s", id)
	}
	if task.State.Active() {
		return fmt.Errorf("task is still active: %s", id)
	}
	delete(s.tasks, id)
	return nil
}

// StartDeepProcess starts the follow-on deep processing pipeline for a task
// whose first pipeline finished. Valid only from that checkpoint.
func (s *Service) StartDeepProcess(id string) error {
	s.mu.Lock()
	task, exists := s.tasks[id]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("task not found: %s", id)
	}
	if task.State.Phase != model.PhaseFinished || task.State.Checkpoint != model.CheckpointMerged {
		s.mu.Unlock()
		return fmt.Errorf("task is not ready for deep processing: %s", task.State.Phase)
	}
	if task.ContentRef == "" {
		s.mu.Unlock()
		return fmt.Errorf("task has no resolved content: %s", id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancels[task.ID] = cancel
	s.mu.Unlock()

	go func() {
		metrics.ActiveTasks.Inc()
		defer metrics.ActiveTasks.Dec()
		defer s.clearCancel(task.ID, cancel)
		s.runDeepProcess(ctx, task)
	}()
	return nil
}

// Task returns a task by ID.
func (s *Service) Task(id string) (*model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, exists := s.tasks[id]
	return task, exists
}

// Tasks returns all tasks.
func (s *Service) Tasks() []*model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*model.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	return tasks
}

// setState records a task state transition and notifies the presentation
// layer.
func (s *Service) setState(task *model.Task, state model.State) {
	s.mu.Lock()
	task.State = state
	callback := s.onUpdate
	s.mu.Unlock()

	if callback != nil {
		callback(task)
	}
}

// clearCancel releases a finished pipeline's cancellation entry, taking the
// task out of the active set.
func (s *Service) clearCancel(id string, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	delete(s.cancels, id)
	s.mu.Unlock()
}

// generateTaskID generates a unique task ID.
func generateTaskID() string {
	return "task-" + uuid.NewString()
}
