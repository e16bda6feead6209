package sampler

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tracer-cloud/tracerd/internal/events"
	"github.com/tracer-cloud/tracerd/internal/procstate"
	"github.com/tracer-cloud/tracerd/internal/trigger"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestDeltaOrZero(t *testing.T) {
	cases := []struct {
		current, previous, want uint64
	}{
		{100, 40, 60},
		{40, 100, 0}, // counter reset, e.g. process restarted under a reused pid
		{50, 50, 0},
	}
	for _, tc := range cases {
		if got := deltaOrZero(tc.current, tc.previous); got != tc.want {
			t.Errorf("deltaOrZero(%d, %d) = %d, want %d", tc.current, tc.previous, got, tc.want)
		}
	}
}

type fakeSamplerRecorder struct {
	toolTicks []events.ToolMetricAttributes
	hostTicks []events.SystemMetricAttributes
}

func (f *fakeSamplerRecorder) ToolMetricEvent(a events.ToolMetricAttributes) {
	f.toolTicks = append(f.toolTicks, a)
}
func (f *fakeSamplerRecorder) MetricEvent(a events.SystemMetricAttributes) {
	f.hostTicks = append(f.hostTicks, a)
}

func TestSampler_Tick_SkipsEntirelyWhenNothingMonitored(t *testing.T) {
	state := procstate.NewManager()
	rec := &fakeSamplerRecorder{}
	s := New(state, rec, testLogger(), time.Second)

	s.tick(context.Background())

	if len(rec.toolTicks) != 0 || len(rec.hostTicks) != 0 {
		t.Fatalf("expected no events when no process is monitored, got %d tool and %d host", len(rec.toolTicks), len(rec.hostTicks))
	}
}

func TestSampler_Tick_SamplesTheRunningTestProcess(t *testing.T) {
	state := procstate.NewManager()
	self := trigger.ProcessStart{PID: os.Getpid(), Comm: "test-binary", StartedAt: time.Now()}
	state.InsertProcess(self)
	state.AddMonitored("self", self)

	rec := &fakeSamplerRecorder{}
	s := New(state, rec, testLogger(), time.Second)
	s.tick(context.Background())

	if len(rec.toolTicks) != 1 {
		t.Fatalf("got %d tool metric events, want 1 for the current (running) test process", len(rec.toolTicks))
	}
	if rec.toolTicks[0].ToolName != "self" {
		t.Errorf("ToolName = %q, want \"self\"", rec.toolTicks[0].ToolName)
	}
	if len(rec.hostTicks) != 1 {
		t.Fatalf("got %d host metric events, want 1", len(rec.hostTicks))
	}
}
