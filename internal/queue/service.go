package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// Config holds the Redis connection and queue settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Queue is the queue name; defaults to "projects".
	Queue string
	// Retention keeps finished task records around for inspection.
	Retention time.Duration
}

func (c *Config) applyDefaults() {
	if c.Queue == "" {
		c.Queue = "projects"
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
}

// Runner executes one project end to end.
type Runner interface {
	RunProject(ctx context.Context, p leads.Project) error
}

// Service enqueues, executes and removes project tasks. Workers run with
// concurrency 1, so at most one project executes at a time per process.
type Service struct {
	cfg       Config
	client    *asynq.Client
	inspector *asynq.Inspector
	server    *asynq.Server
	logger    *zap.Logger

	// runMu serializes project runs at the handler level. The server config
	// already pins concurrency to 1; the lock keeps the single-flight
	// guarantee intact even if that setting drifts.
	runMu sync.Mutex
}

// NewService connects the enqueue and inspection clients. The worker server
// is only created by Start.
func NewService(cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	opt := cfg.redisOpt()
	return &Service{
		cfg:       cfg,
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		logger:    logger,
	}
}

func (c Config) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
}

// Enqueue submits a project for execution. Tasks never retry; a failed run is
// archived for inspection instead of re-executed.
func (s *Service) Enqueue(ctx context.Context, p leads.Project) error {
	task, err := NewRunProjectTask(p)
	if err != nil {
		return err
	}
	info, err := s.client.EnqueueContext(ctx, task,
		asynq.Queue(s.cfg.Queue),
		asynq.TaskID(p.ProjectID),
		asynq.MaxRetry(0),
		asynq.Retention(s.cfg.Retention),
	)
	if err != nil {
		return fmt.Errorf("enqueue project %s: %w", p.ProjectID, err)
	}
	s.logger.Info("project enqueued",
		zap.String("project_id", p.ProjectID),
		zap.String("queue", info.Queue),
	)
	return nil
}

// Start launches the worker server and blocks until Shutdown is called or the
// server fails.
func (s *Service) Start(runner Runner) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRunProject, s.handleRunProject(runner))

	s.server = asynq.NewServer(s.cfg.redisOpt(), s.serverConfig())
	s.logger.Info("queue worker starting", zap.String("queue", s.cfg.Queue))
	return s.server.Run(mux)
}

// serverConfig pins concurrency to 1: a second project never starts while
// one is mid-execution.
func (s *Service) serverConfig() asynq.Config {
	return asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{s.cfg.Queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			s.logger.Error("task failed",
				zap.String("type", task.Type()),
				zap.Error(err),
			)
		}),
	}
}

func (s *Service) handleRunProject(runner Runner) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := DecodeRunProjectTask(task)
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return runner.RunProject(ctx, p)
	}
}

// Remove deletes the queued task for a project. Missing tasks are not an
// error. Deleting an in-flight task fails; the running job observes
// cancellation through the project store instead.
func (s *Service) Remove(_ context.Context, projectID string) error {
	err := s.inspector.DeleteTask(s.cfg.Queue, projectID)
	switch {
	case err == nil:
		s.logger.Info("queued task removed", zap.String("project_id", projectID))
		return nil
	case errors.Is(err, asynq.ErrTaskNotFound), errors.Is(err, asynq.ErrQueueNotFound):
		return nil
	default:
		return fmt.Errorf("delete task %s: %w", projectID, err)
	}
}

// Shutdown stops the worker gracefully, waiting for the in-flight task.
func (s *Service) Shutdown() {
	if s.server != nil {
		s.server.Shutdown()
	}
}

// Close releases the Redis connections used for enqueueing and inspection.
func (s *Service) Close() error {
	if err := s.client.Close(); err != nil {
		return err
	}
	return s.inspector.Close()
}
