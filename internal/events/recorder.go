package events

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RunContext is the minimal view of the active Run the Recorder injects into
// every Event. The Daemon Controller is the only writer of Run state; the
// Recorder only ever reads it through this interface.
type RunContext interface {
	// Current returns the active run's identity, or ok=false if no run is
	// active (events are still emitted, with empty run fields).
	Current() (pipelineName, runName, runID string, tags []string, ok bool)
}

// Recorder is a thin factory over a buffered channel: one method per
// event kind, each building a timestamped Event with run context injected
// and a fresh random span ID, then pushing it. A push blocks while the
// channel buffer is full, until the Exporter drains it or the Recorder is
// closed; events are not dropped to make room. Once the Recorder is closed
// (at shutdown) every push becomes a no-op so callers never need to guard
// against a closed-channel panic.
type Recorder struct {
	ch      chan Event
	run     RunContext
	closed  chan struct{}
	dropped atomic.Uint64
}

// NewRecorder returns a Recorder writing to a channel with a buffer of
// bufferHint events. The channel does not grow: once bufferHint events are
// queued, pushes block until the Exporter drains some (see
// internal/exporter for the bounded-batch drain loop).
func NewRecorder(run RunContext, bufferHint int) *Recorder {
	return &Recorder{
		ch:     make(chan Event, bufferHint),
		run:    run,
		closed: make(chan struct{}),
	}
}

// Events returns the receiving end of the channel, owned by the Exporter.
func (r *Recorder) Events() <-chan Event {
	return r.ch
}

// Close marks the Recorder closed; subsequent pushes are no-ops. It does
// not close the underlying channel itself, so the Exporter's final drain
// (triggered separately at shutdown) can still read whatever was queued
// before Close was called.
func (r *Recorder) Close() {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
}

// Dropped returns the number of events discarded because the Recorder had
// already been closed, for the daemon's self-metrics surface.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) push(e Event) {
	select {
	case <-r.closed:
		r.dropped.Add(1)
		return
	default:
	}
	e.SpanID = newSpanID()
	e.Timestamp = time.Now().UTC()
	e.EventType = EventTypeProcessStatus
	e.ProcessType = ProcessTypePipeline
	if pipeline, runName, runID, tags, ok := r.run.Current(); ok {
		e.PipelineName = pipeline
		e.RunName = runName
		e.RunID = runID
		e.Tags = tags
	}
	select {
	case r.ch <- e:
	case <-r.closed:
	}
}

func newSpanID() string {
	id := uuid.New()
	return id.String()
}

// NewRun emits the start-of-run lifecycle event.
func (r *Recorder) NewRun(body string) {
	r.push(Event{Body: body, ProcessStatus: StatusNewRun})
}

// FinishedRun emits the end-of-run lifecycle event.
func (r *Recorder) FinishedRun(body string) {
	r.push(Event{Body: body, ProcessStatus: StatusFinishedRun})
}

// ToolExecution emits the process-start lifecycle event.
func (r *Recorder) ToolExecution(attrs ProcessAttributes) {
	r.push(Event{
		Body:          "tool execution started: " + attrs.ToolName,
		ProcessStatus: StatusToolExecution,
		Attributes:    &Attributes{Process: &attrs},
	})
}

// FinishedToolExecution emits the process-end lifecycle event.
func (r *Recorder) FinishedToolExecution(attrs CompletedProcessAttributes) {
	r.push(Event{
		Body:          "tool execution finished: " + attrs.ToolName,
		ProcessStatus: StatusFinishedToolExecution,
		Attributes:    &Attributes{CompletedProcess: &attrs},
	})
}

// ToolMetricEvent emits a per-process metric tick.
func (r *Recorder) ToolMetricEvent(attrs ToolMetricAttributes) {
	r.push(Event{
		Body:          "tool metric: " + attrs.ToolName,
		ProcessStatus: StatusToolMetricEvent,
		Attributes:    &Attributes{ToolMetric: &attrs},
	})
}

// MetricEvent emits a host-level metric tick.
func (r *Recorder) MetricEvent(attrs SystemMetricAttributes) {
	r.push(Event{
		Body:          "system metrics",
		ProcessStatus: StatusMetricEvent,
		Attributes:    &Attributes{SystemMetric: &attrs},
	})
}

// FileOpened emits a file-open observation.
func (r *Recorder) FileOpened(attrs FileOpenAttributes) {
	r.push(Event{
		Body:          "file opened: " + attrs.Filename,
		ProcessStatus: StatusFileOpened,
		Attributes:    &Attributes{FileOpen: &attrs},
	})
}

// Alert emits an operator-supplied alert.
func (r *Recorder) Alert(body string) {
	r.push(Event{Body: body, ProcessStatus: StatusAlert, SeverityText: "alert"})
}

// Log emits an operator-supplied ad-hoc log line.
func (r *Recorder) Log(body string) {
	r.push(Event{Body: body, ProcessStatus: StatusLogEvent})
}
