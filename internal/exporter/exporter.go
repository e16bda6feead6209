// Package exporter batches telemetry events and ships them to a remote
// ingestion endpoint with bounded retry.
package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/tracer-cloud/tracerd/internal/events"
)

// Config bounds the Exporter's batching and retry behavior (SPEC_FULL.md §3).
type Config struct {
	IngestionEndpoint string
	BatchInterval     time.Duration
	MaxBatchSize      int
	Retries           int
	RetryDelay        time.Duration
	HTTPTimeout       time.Duration
}

// DefaultConfig matches the spec's documented defaults.
func DefaultConfig(endpoint string) Config {
	return Config{
		IngestionEndpoint: endpoint,
		BatchInterval:     5 * time.Second,
		MaxBatchSize:      100,
		Retries:           3,
		RetryDelay:        500 * time.Millisecond,
		HTTPTimeout:       30 * time.Second,
	}
}

type payload struct {
	Events []events.Event `json:"events"`
}

// nonRetryableError marks a 4xx response: retrying it can never succeed.
type nonRetryableError struct {
	status int
}

func (e *nonRetryableError) Error() string {
	return fmt.Sprintf("exporter: non-retryable status %d", e.status)
}

// Exporter owns the receiving end of the event channel and drains it in
// bounded batches on a fixed interval.
type Exporter struct {
	cfg      Config
	source   <-chan events.Event
	client   *http.Client
	log      *logrus.Logger
	failures atomic.Uint64
}

// Failures returns the number of batches that exhausted retries and were
// dropped, for the daemon's self-metrics surface.
func (e *Exporter) Failures() uint64 {
	return e.failures.Load()
}

// New builds an Exporter draining source and POSTing to cfg.IngestionEndpoint.
func New(cfg Config, source <-chan events.Event, log *logrus.Logger) *Exporter {
	return &Exporter{
		cfg:    cfg,
		source: source,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		log:    log,
	}
}

// Run blocks, draining and shipping batches every BatchInterval until ctx is
// canceled, then performs one final drain pass before returning.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.BatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.drainAndSend(context.Background())
			return
		case <-ticker.C:
			e.drainAndSend(ctx)
		}
	}
}

// drainAndSend pulls up to MaxBatchSize events via non-blocking multi-receive
// and ships them if any were collected.
func (e *Exporter) drainAndSend(ctx context.Context) {
	batch := e.drain()
	if len(batch) == 0 {
		return
	}
	if err := e.send(ctx, batch); err != nil {
		e.failures.Add(1)
		e.log.WithFields(logrus.Fields{
			"endpoint":    e.cfg.IngestionEndpoint,
			"event_count": len(batch),
			"error":       err,
		}).Error("exporter: batch submission failed, dropping batch")
	}
}

func (e *Exporter) drain() []events.Event {
	batch := make([]events.Event, 0, e.cfg.MaxBatchSize)
	for len(batch) < e.cfg.MaxBatchSize {
		select {
		case evt, ok := <-e.source:
			if !ok {
				return batch
			}
			batch = append(batch, evt)
		default:
			return batch
		}
	}
	return batch
}

// send POSTs batch to the ingestion endpoint, making at most cfg.Retries
// attempts total (not cfg.Retries retries on top of an initial attempt) with
// cfg.RetryDelay between them. A 4xx response aborts immediately without
// retry.
func (e *Exporter) send(ctx context.Context, batch []events.Event) error {
	body, err := json.Marshal(payload{Events: batch})
	if err != nil {
		return fmt.Errorf("exporter: marshal batch: %w", err)
	}

	maxAttempts := e.cfg.Retries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(e.cfg.RetryDelay), uint64(maxAttempts-1))
	policy = backoff.WithContext(policy, ctx)

	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.IngestionEndpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("exporter: building request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("exporter: transport error: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(&nonRetryableError{status: resp.StatusCode})
		default:
			return fmt.Errorf("exporter: server error status %d", resp.StatusCode)
		}
	}, policy)
}
