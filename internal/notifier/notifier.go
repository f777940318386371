package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// WebhookJob is one delivery: a document lifecycle event serialized for
// the downstream system.
type WebhookJob struct {
	EventID    string                 `json:"event_id"`
	EventType  string                 `json:"event_type"`
	DocumentID int64                  `json:"document_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

type Worker struct {
	ID         int
	WorkerPool chan chan WebhookJob
	JobChannel chan WebhookJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan WebhookJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan WebhookJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(WebhookJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {

			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker delivering webhook", "worker_id", w.ID, "event_id", job.EventID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Client delivers document events to a configured webhook endpoint
// through a bounded worker pool, so a slow downstream never blocks the
// review pipeline.
type Client struct {
	webhookURL  string
	apiKey      string
	httpTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	jobQueue   chan WebhookJob
	workerPool chan chan WebhookJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

type Config struct {
	WebhookURL   string
	APIKey       string
	HTTPTimeout  time.Duration
	MaxWorkers   int
	JobQueueSize int
}

func NewClient(config Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 2
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	httpTimeout := config.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}

	client := &Client{
		webhookURL:  config.WebhookURL,
		apiKey:      config.APIKey,
		httpTimeout: httpTimeout,
		httpClient:  &http.Client{Timeout: httpTimeout},
		logger:      logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan WebhookJob, jobQueueSize),
		workerPool: make(chan chan WebhookJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {

		for i := 0; i < c.maxWorkers; i++ {
			worker := NewWorker(i, c.workerPool, c.logger)
			worker.Start(c.ctx, &c.wg, c.deliverJob)
		}

		c.wg.Add(1)
		go c.dispatch()

		c.logger.Info("notifier worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue))
	})
}

func (c *Client) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:

			select {
			case jobChannel := <-c.workerPool:

				select {
				case jobChannel <- job:

				case <-c.ctx.Done():
					c.logger.Info("dispatcher shutting down")
					return
				}
			case <-c.ctx.Done():
				c.logger.Info("dispatcher shutting down")
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("dispatcher shutting down")
			return
		}
	}
}

func (c *Client) Shutdown() {
	c.logger.Info("shutting down notifier")
	c.cancel()
	c.wg.Wait()
	c.logger.Info("notifier shutdown complete")
}

// Enqueue schedules a webhook delivery. A full queue drops the job with
// a warning rather than blocking the caller.
func (c *Client) Enqueue(job WebhookJob) error {
	if c.webhookURL == "" {
		return nil
	}

	select {
	case c.jobQueue <- job:
		c.logger.Debug("webhook job queued",
			"event_id", job.EventID,
			"event_type", job.EventType,
			"queue_length", len(c.jobQueue))
		return nil
	default:
		c.logger.Warn("webhook queue full, dropping event",
			"event_id", job.EventID,
			"event_type", job.EventType,
			"queue_capacity", cap(c.jobQueue))
		return fmt.Errorf("webhook queue full")
	}
}

func (c *Client) deliverJob(job WebhookJob) {
	if err := c.deliver(job); err != nil {
		c.logger.Error("webhook delivery failed",
			"event_id", job.EventID,
			"event_type", job.EventType,
			"error", err)
	}
}

func (c *Client) deliver(job WebhookJob) error {
	jsonData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.httpTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}

	c.logger.Info("webhook delivered",
		"event_id", job.EventID,
		"event_type", job.EventType,
		"status", resp.StatusCode)

	return nil
}
