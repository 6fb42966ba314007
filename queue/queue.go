// Package queue implements the durable job queue on Redis Streams.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"feed-hub/domain"
)

// Config holds queue configuration shared by producer and consumer.
type Config struct {
	// StreamKey is the Redis Stream the jobs live on.
	StreamKey string
	// GroupName is the consumer group all workers join.
	GroupName string
	// Workers is the number of concurrent consumer goroutines.
	Workers int
	// BatchSize is the number of messages to read at once.
	BatchSize int64
	// BlockTimeout is how long a read blocks waiting for messages.
	BlockTimeout time.Duration
}

// DefaultConfig returns the queue defaults.
func DefaultConfig() Config {
	return Config{
		StreamKey:    "feedhub:jobs",
		GroupName:    "feed-hub-workers",
		Workers:      4,
		BatchSize:    10,
		BlockTimeout: 5 * time.Second,
	}
}

// Queue enqueues jobs onto the stream.
type Queue struct {
	client *redis.Client
	config Config
	logger *slog.Logger
}

// NewQueue creates a job producer on an existing Redis client.
func NewQueue(client *redis.Client, config Config, logger *slog.Logger) *Queue {
	return &Queue{client: client, config: config, logger: logger}
}

// Enqueue appends the job to the stream and returns once Redis has
// accepted it. The job survives process restarts from this point on.
func (q *Queue) Enqueue(ctx context.Context, job domain.Job) (string, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	messageID, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.config.StreamKey,
		Values: map[string]interface{}{
			"job_id":      job.ID,
			"job_kind":    string(job.Kind),
			"enqueued_at": job.EnqueuedAt.Format(time.RFC3339),
			"payload":     string(payload),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	q.logger.InfoContext(ctx, "job enqueued",
		"job_id", job.ID, "job_kind", job.Kind, "message_id", messageID)
	return messageID, nil
}

// JobHandler processes one dequeued job.
type JobHandler interface {
	// HandleJob processes a single job. A returned error is terminal for
	// the job; the message is acknowledged either way.
	HandleJob(ctx context.Context, job domain.Job) error
}

// Consumer reads jobs off the stream in a consumer group and dispatches
// them to the handler. Messages are acknowledged after handling, so a
// worker crash mid-job leaves the message pending for redelivery.
type Consumer struct {
	client  *redis.Client
	config  Config
	handler JobHandler
	logger  *slog.Logger
	done    chan struct{}
}

// NewConsumer creates a consumer on an existing Redis client.
func NewConsumer(client *redis.Client, config Config, handler JobHandler, logger *slog.Logger) *Consumer {
	return &Consumer{
		client:  client,
		config:  config,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start ensures the consumer group exists and launches the worker
// goroutines. Each worker registers under a distinct consumer name.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureConsumerGroup(ctx); err != nil {
		return err
	}

	c.logger.Info("starting job consumers",
		"stream", c.config.StreamKey,
		"group", c.config.GroupName,
		"workers", c.config.Workers,
	)

	for i := 0; i < c.config.Workers; i++ {
		go c.consumeLoop(ctx, fmt.Sprintf("worker-%d", i+1))
	}
	return nil
}

// Stop signals all worker loops to exit.
func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) ensureConsumerGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.config.StreamKey, c.config.GroupName, "0").Err()
	if err != nil {
		// BUSYGROUP means the group already exists
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, consumerName string) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("job consumer context cancelled, stopping", "consumer", consumerName)
			return
		case <-c.done:
			c.logger.Info("job consumer shutdown requested, stopping", "consumer", consumerName)
			return
		default:
			if err := c.readAndProcess(ctx, consumerName); err != nil {
				c.logger.Error("error reading jobs", "consumer", consumerName, "error", err)
				time.Sleep(time.Second) // Back off on error
			}
		}
	}
}

func (c *Consumer) readAndProcess(ctx context.Context, consumerName string) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.config.GroupName,
		Consumer: consumerName,
		Streams:  []string{c.config.StreamKey, ">"},
		Count:    c.config.BatchSize,
		Block:    c.config.BlockTimeout,
	}).Result()

	if err == redis.Nil {
		// No jobs available
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			c.processMessage(ctx, consumerName, message)
		}
	}

	return nil
}

func (c *Consumer) processMessage(ctx context.Context, consumerName string, message redis.XMessage) {
	job, err := parseJob(message)
	if err != nil {
		c.logger.Error("discarding malformed job message",
			"message_id", message.ID, "error", err)
		c.ack(ctx, message.ID)
		return
	}

	if err := c.handler.HandleJob(ctx, job); err != nil {
		// Handler errors are terminal; the handler has already reported
		// the failure, so redelivering would only repeat it.
		c.logger.Error("job handler failed",
			"consumer", consumerName,
			"message_id", message.ID,
			"job_id", job.ID,
			"job_kind", job.Kind,
			"error", err,
		)
	}

	c.ack(ctx, message.ID)
}

func (c *Consumer) ack(ctx context.Context, messageID string) {
	if err := c.client.XAck(ctx, c.config.StreamKey, c.config.GroupName, messageID).Err(); err != nil {
		c.logger.Error("failed to acknowledge message",
			"message_id", messageID, "error", err)
	}
}

func parseJob(message redis.XMessage) (domain.Job, error) {
	raw, ok := message.Values["payload"].(string)
	if !ok {
		return domain.Job{}, fmt.Errorf("message %s has no payload", message.ID)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return domain.Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}
