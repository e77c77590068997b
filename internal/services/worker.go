package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/pkg/logger"
)

// QuotaActionProcessor executes one fired quota rule.
type QuotaActionProcessor func(context.Context, *QuotaActionTask) error

// Worker consumes quota action tasks from Redis.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor QuotaActionProcessor

	mu      sync.Mutex
	running bool
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	log := logger.Component("quota-worker")
	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency:     4,
		Queues:          map[string]int{QuotaQueue: 1},
		ShutdownTimeout: 10 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			log.Warn().Err(err).Str("type", task.Type()).Int("retried", retried).Msg("Quota action failed")
		}),
	})

	return &Worker{server: server, mux: asynq.NewServeMux()}
}

func (w *Worker) SetProcessor(processor QuotaActionProcessor) {
	w.processor = processor
}

// Start registers the quota handler and runs the server in the background.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeQuotaAction, w.handleQuotaAction)
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start quota worker: %w", err)
	}
	w.running = true
	logger.Info().Str("queue", QuotaQueue).Msg("Quota worker started")
	return nil
}

// Stop waits for in-flight actions and shuts the server down.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}

	w.server.Shutdown()
	w.running = false
	logger.Info().Msg("Quota worker stopped")
}

func (w *Worker) handleQuotaAction(ctx context.Context, t *asynq.Task) error {
	var task QuotaActionTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		// malformed payloads are not retried
		return fmt.Errorf("decode quota action: %v: %w", err, asynq.SkipRetry)
	}

	logger.Debug().
		Str("rule_id", task.RuleID).
		Str("action", task.Action).
		Str("response_id", task.ResponseID).
		Msg("Processing quota action")

	if w.processor == nil {
		logger.Warn().Str("rule_id", task.RuleID).Msg("Quota action dropped, no processor set")
		return nil
	}
	return w.processor(ctx, &task)
}
