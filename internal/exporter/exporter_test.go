package exporter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tracer-cloud/tracerd/internal/events"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestExporter_DrainAndSend_SuccessClearsBatch(t *testing.T) {
	var received payload
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ch := make(chan events.Event, 10)
	ch <- events.Event{Body: "one"}
	ch <- events.Event{Body: "two"}

	cfg := DefaultConfig(srv.URL)
	exp := New(cfg, ch, testLogger())
	exp.drainAndSend(context.Background())

	if requests.Load() != 1 {
		t.Fatalf("server received %d requests, want 1", requests.Load())
	}
	if len(received.Events) != 2 {
		t.Fatalf("server received %d events, want 2", len(received.Events))
	}
	if exp.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0 on success", exp.Failures())
	}
}

func TestExporter_Send_NonRetryableStatusDoesNotRetry(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	ch := make(chan events.Event, 1)
	ch <- events.Event{Body: "one"}

	cfg := DefaultConfig(srv.URL)
	cfg.Retries = 3
	cfg.RetryDelay = time.Millisecond
	exp := New(cfg, ch, testLogger())
	exp.drainAndSend(context.Background())

	if requests.Load() != 1 {
		t.Fatalf("server received %d requests, want exactly 1 for a 4xx (no retry)", requests.Load())
	}
	if exp.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", exp.Failures())
	}
}

func TestExporter_Send_RetriesOn5xxThenFails(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := make(chan events.Event, 1)
	ch <- events.Event{Body: "one"}

	cfg := DefaultConfig(srv.URL)
	cfg.Retries = 3
	cfg.RetryDelay = time.Millisecond
	exp := New(cfg, ch, testLogger())
	exp.drainAndSend(context.Background())

	if got := requests.Load(); got != 3 {
		t.Fatalf("server received %d requests, want 3 (cfg.Retries is a total attempt count)", got)
	}
	if exp.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1 once retries are exhausted", exp.Failures())
	}
}

func TestExporter_Drain_RespectsMaxBatchSize(t *testing.T) {
	ch := make(chan events.Event, 10)
	for i := 0; i < 5; i++ {
		ch <- events.Event{Body: "e"}
	}
	cfg := DefaultConfig("http://example.invalid")
	cfg.MaxBatchSize = 3
	exp := New(cfg, ch, testLogger())

	batch := exp.drain()
	if len(batch) != 3 {
		t.Fatalf("drain() returned %d events, want 3 (MaxBatchSize)", len(batch))
	}
	if len(ch) != 2 {
		t.Fatalf("channel has %d events left, want 2", len(ch))
	}
}

func TestExporter_DrainAndSend_EmptyChannelSkipsRequest(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	ch := make(chan events.Event, 1)
	exp := New(DefaultConfig(srv.URL), ch, testLogger())
	exp.drainAndSend(context.Background())

	if requests.Load() != 0 {
		t.Fatalf("server received %d requests, want 0 for an empty batch", requests.Load())
	}
}
