/**
 * Queue Consumer for the Recognition Worker
 *
 * Consumes recognition tasks from a Redis-backed Asynq queue, runs them
 * through the orchestrator and persists the outcome. The orchestrator core
 * stays callable as a library; this is the worker front-end around it.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/docmill/recognition-worker/internal/cache"
	"github.com/docmill/recognition-worker/internal/engine"
	"github.com/docmill/recognition-worker/internal/errors"
	"github.com/docmill/recognition-worker/internal/orchestrator"
	"github.com/docmill/recognition-worker/internal/storage"
)

// TaskTypeRecognize is the Asynq task type for recognition requests.
const TaskTypeRecognize = "recognition:process"

// RecognitionTask is the queue payload for one recognition request.
type RecognitionTask struct {
	RequestID   string                    `json:"requestId"`
	FilePath    string                    `json:"filePath"`
	Filename    string                    `json:"filename,omitempty"`
	Options     engine.Options            `json:"options"`
	Preferences *orchestrator.Preferences `json:"preferences,omitempty"`
	Metadata    map[string]interface{}    `json:"metadata,omitempty"`
}

// Consumer handles task consumption from the Redis queue.
type Consumer struct {
	client       *asynq.Client
	server       *asynq.Server
	mux          *asynq.ServeMux
	orchestrator *orchestrator.Orchestrator
	store        *storage.PostgresStore
	config       *ConsumerConfig
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Orchestrator      *orchestrator.Orchestrator
	Store             *storage.PostgresStore // optional; outcomes are skipped when nil
	ProcessingTimeout int64                  // per-task budget in milliseconds (default 300000)
}

// NewConsumer creates a new queue consumer.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = "recognition"
	}

	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("Orchestrator is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10, // Priority 10 for main queue
				"default":     1,  // Priority 1 for fallback
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, error=%v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:       client,
		server:       server,
		mux:          mux,
		orchestrator: cfg.Orchestrator,
		store:        cfg.Store,
		config:       cfg,
	}

	mux.HandleFunc(TaskTypeRecognize, consumer.handleRecognize)

	return consumer, nil
}

// Start starts the queue consumer.
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			log.Printf("Queue consumer error: %v", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully.
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	log.Printf("Queue consumer stopped")
	return nil
}

// Enqueue submits a recognition task to the queue.
func (c *Consumer) Enqueue(ctx context.Context, task *RecognitionTask) (string, error) {
	if task.RequestID == "" {
		task.RequestID = uuid.New().String()
	}
	if task.FilePath == "" {
		return "", fmt.Errorf("file path is required")
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task: %w", err)
	}

	_, err = c.client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypeRecognize, payload),
		asynq.Queue(c.config.QueueName),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	return task.RequestID, nil
}

// handleRecognize processes one recognition task.
func (c *Consumer) handleRecognize(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var req RecognitionTask
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	log.Printf("[Request %s] Processing recognition task: file=%s", req.RequestID, req.FilePath)

	timeout := 300000 * time.Millisecond
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result engine.Result
	if req.Preferences != nil {
		result = c.orchestrator.ProcessWith(processCtx, req.FilePath, req.Options, *req.Preferences)
	} else {
		result = c.orchestrator.Process(processCtx, req.FilePath, req.Options)
	}

	duration := time.Since(startTime)
	c.recordOutcome(ctx, &req, result, duration)

	if !result.Success {
		if processCtx.Err() == context.DeadlineExceeded {
			timeoutErr := errors.NewProcessingTimeoutError(req.RequestID, timeout, nil)
			log.Printf("[Request %s] Recognition timed out after %v", req.RequestID, duration)
			return fmt.Errorf("recognition timeout: %w", timeoutErr)
		}

		log.Printf("[Request %s] Recognition failed after %v: %s", req.RequestID, duration, result.Error)
		return errors.NewAllEnginesExhaustedError(req.RequestID, []string{result.Error})
	}

	log.Printf("[Request %s] Recognition completed in %v: engine=%s, confidence=%.2f, words=%d",
		req.RequestID, duration, result.EngineID, result.Confidence, result.WordCount)

	return nil
}

// recordOutcome persists the request outcome; storage failures are logged and
// never fail the task.
func (c *Consumer) recordOutcome(ctx context.Context, req *RecognitionTask, result engine.Result, duration time.Duration) {
	if c.store == nil {
		return
	}

	fileHash := ""
	if key, err := cache.KeyFor(req.FilePath, req.Options); err == nil {
		fileHash = string(key)
	}

	rec := &storage.RequestRecord{
		RequestID:    req.RequestID,
		Filename:     req.Filename,
		FileHash:     fileHash,
		Languages:    req.Options.Languages,
		EngineID:     result.EngineID,
		Success:      result.Success,
		Confidence:   result.Confidence,
		DurationMs:   duration.Milliseconds(),
		WordCount:    result.WordCount,
		ErrorMessage: result.Error,
		Metadata:     req.Metadata,
	}

	if err := c.store.RecordRequest(ctx, rec); err != nil {
		storageErr := errors.NewStorageFailedError(req.RequestID, err)
		log.Printf("[Request %s] Warning: failed to persist outcome: %v", req.RequestID, storageErr)
	}
}

// GetStatistics returns consumer statistics.
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"redisURL":    c.config.RedisURL,
	}
}
