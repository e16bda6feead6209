package daemon

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tracer-cloud/tracerd/internal/events"
	"github.com/tracer-cloud/tracerd/internal/exporter"
	"github.com/tracer-cloud/tracerd/internal/procstate"
	"github.com/tracer-cloud/tracerd/internal/router"
	"github.com/tracer-cloud/tracerd/internal/rulesstore"
	"github.com/tracer-cloud/tracerd/internal/sampler"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	state := procstate.NewManager()
	rules, err := rulesstore.New("")
	if err != nil {
		t.Fatalf("rulesstore.New() error = %v", err)
	}
	run := NewRunState()
	recorder := events.NewRecorder(run, 16)
	rtr := router.New(state, rules, recorder, testLogger())
	smp := sampler.New(state, recorder, testLogger(), time.Hour)
	exp := exporter.New(exporter.DefaultConfig("http://example.invalid"), recorder.Events(), testLogger())

	return New(Config{ListenAddr: "127.0.0.1:0", InfoHandlerTimeout: 500 * time.Millisecond},
		testLogger(), state, rules, recorder, rtr, smp, exp, nil, run)
}

func TestHandleStart_ActivatesRunAndReturnsIdentity(t *testing.T) {
	c := newTestController(t)
	mux := c.buildMux()

	body, _ := json.Marshal(startRequest{PipelineName: "rnaseq", RunName: "", TraceID: "trace-1"})
	req := httptest.NewRequest("POST", "/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp startResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID == "" || resp.RunName == "" {
		t.Fatalf("expected a generated run id/name, got %+v", resp)
	}
	if resp.PipelineName != "rnaseq" {
		t.Errorf("PipelineName = %q, want rnaseq", resp.PipelineName)
	}

	ev := <-c.recorder.Events()
	if ev.ProcessStatus != events.StatusNewRun {
		t.Errorf("ProcessStatus = %q, want %q", ev.ProcessStatus, events.StatusNewRun)
	}
}

func TestHandleStop_WithNoActiveRunReportsInactive(t *testing.T) {
	c := newTestController(t)
	mux := c.buildMux()

	req := httptest.NewRequest("POST", "/stop", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp stopResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.WasActive {
		t.Fatal("expected WasActive = false with no run ever started")
	}
}

func TestHandleStartThenStop_EmitsBothLifecycleEvents(t *testing.T) {
	c := newTestController(t)
	mux := c.buildMux()

	startBody, _ := json.Marshal(startRequest{PipelineName: "p"})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/start", bytes.NewReader(startBody)))
	<-c.recorder.Events() // drain NewRun

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/stop", nil))

	var resp stopResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.WasActive {
		t.Fatal("expected WasActive = true when stopping a started run")
	}

	ev := <-c.recorder.Events()
	if ev.ProcessStatus != events.StatusFinishedRun {
		t.Errorf("ProcessStatus = %q, want %q", ev.ProcessStatus, events.StatusFinishedRun)
	}
}

func TestHandleTag_AppliesTagsToActiveRun(t *testing.T) {
	c := newTestController(t)
	mux := c.buildMux()

	startBody, _ := json.Marshal(startRequest{PipelineName: "p"})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/start", bytes.NewReader(startBody)))
	<-c.recorder.Events()

	tagBody, _ := json.Marshal(tagRequest{Tags: []string{"env:prod"}})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/tag", bytes.NewReader(tagBody)))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	infoRec := httptest.NewRecorder()
	mux.ServeHTTP(infoRec, httptest.NewRequest("GET", "/info", nil))
	var info infoResponse
	json.Unmarshal(infoRec.Body.Bytes(), &info)
	if info.Inner == nil || len(info.Inner.Tags) != 1 || info.Inner.Tags[0] != "env:prod" {
		t.Fatalf("expected tag to be reflected in /info, got %+v", info.Inner)
	}
}

func TestHandleInfo_WithNoActiveRunOmitsInner(t *testing.T) {
	c := newTestController(t)
	mux := c.buildMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/info", nil))

	var info infoResponse
	json.Unmarshal(rec.Body.Bytes(), &info)
	if info.Inner != nil {
		t.Fatalf("expected Inner = nil with no active run, got %+v", info.Inner)
	}
}
