package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/pkg/logger"
)

const (
	TaskTypeQuotaAction = "quota:action"
	QuotaQueue          = "quota"
)

// QuotaActionTask carries one fired quota rule to the action processor.
type QuotaActionTask struct {
	RuleID     string `json:"rule_id"`
	RuleType   string `json:"rule_type"` // global, vendor
	Action     string `json:"action"`    // pause-vendor, redirect-quota-full, notify-admin
	ProjectID  string `json:"project_id"`
	VendorID   string `json:"vendor_id,omitempty"`
	Limit      int    `json:"limit"`
	Current    int    `json:"current"`
	ResponseID string `json:"response_id"`
}

// TaskQueue defines the interface for quota action dispatch
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *QuotaActionTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// Global task queue instance
var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		globalTaskQueue = NewTaskQueue(&cfg.Redis)
	})
	return globalTaskQueue
}

// NewTaskQueue returns a Redis-backed queue when Redis is enabled and
// reachable, otherwise an in-process queue.
func NewTaskQueue(cfg *config.RedisConfig) TaskQueue {
	if !cfg.Enabled {
		logger.Info().Str("mode", "sync").Msg("Quota action queue ready (Redis disabled)")
		return NewSyncQueue()
	}
	queue, err := NewAsyncQueue(cfg)
	if err != nil {
		logger.Warn().Err(err).Str("mode", "sync").Msg("Redis unavailable, quota actions run in process")
		return NewSyncQueue()
	}
	logger.Info().Str("mode", "async").Str("redis", cfg.Addr).Msg("Quota action queue ready")
	return queue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// Enqueue adds a quota action to the async queue. Rule and response id form
// the task id, so a redelivered trigger is queued once.
func (q *AsyncQueue) Enqueue(task *QuotaActionTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeQuotaAction, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue(QuotaQueue),
		asynq.MaxRetry(3),
		asynq.TaskID(task.RuleID+":"+task.ResponseID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("Quota action enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue in-process (no Redis). Tasks run on their own
// goroutine; Close waits for them.
type SyncQueue struct {
	mu        sync.RWMutex
	processor QuotaActionProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor QuotaActionProcessor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = processor
}

func (q *SyncQueue) Enqueue(task *QuotaActionTask) error {
	q.mu.RLock()
	processor := q.processor
	q.mu.RUnlock()

	if processor == nil {
		logger.Warn().Str("rule_id", task.RuleID).Msg("Quota action dropped, no processor set")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := processor(context.Background(), task); err != nil {
			logger.Warn().Err(err).Str("rule_id", task.RuleID).Str("action", task.Action).Msg("Quota action failed")
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Wait blocks until every enqueued task has been processed.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
