// Package router implements the Trigger Router: it consumes batches of
// kernel triggers and drives the State Manager, Target Matcher and Event
// Recorder in the mandatory OOM → End → Start → FileOpen order.
package router

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tracer-cloud/tracerd/internal/events"
	"github.com/tracer-cloud/tracerd/internal/procstate"
	"github.com/tracer-cloud/tracerd/internal/rulesstore"
	"github.com/tracer-cloud/tracerd/internal/trigger"
)

// Recorder is the subset of *events.Recorder the Router depends on, kept
// narrow so tests can stub it without a real channel.
type Recorder interface {
	ToolExecution(events.ProcessAttributes)
	FinishedToolExecution(events.CompletedProcessAttributes)
	FileOpened(events.FileOpenAttributes)
}

// fileWatch tracks the last known size of a file this agent has already
// reported on, so later opens of the same path can be recognized as repeats
// rather than first sightings (SPEC_FULL.md §12.4).
type fileWatch struct {
	sizeBytes int64
}

// Router implements the batch-processing order of spec §4.4: OOM signals,
// then ends (two-pass OOM enrichment), then starts, then file opens.
type Router struct {
	state     *procstate.Manager
	rules     *rulesstore.Store
	recorder  Recorder
	log       *logrus.Logger
	fileExts  []string
	fileWatch map[string]fileWatch
	processed atomic.Uint64
}

// Processed returns the number of individual triggers routed so far, for
// the daemon's self-metrics surface.
func (r *Router) Processed() uint64 {
	return r.processed.Load()
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithFileExtensions overrides the default monitored file-extension set.
func WithFileExtensions(exts []string) Option {
	return func(r *Router) { r.fileExts = exts }
}

// New wires a Router to the shared State Manager, Rules Store and Event
// Recorder. Default monitored extensions are .fq and .fastq.
func New(state *procstate.Manager, rules *rulesstore.Store, recorder Recorder, log *logrus.Logger, opts ...Option) *Router {
	r := &Router{
		state:     state,
		rules:     rules,
		recorder:  recorder,
		log:       log,
		fileExts:  []string{".fq", ".fastq"},
		fileWatch: make(map[string]fileWatch),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process runs one batch through the mandatory OOM → End → Start → FileOpen
// ordering. A trigger that refers to no known process (an OOM for an
// untracked pid, an End without a prior Start) is dropped without emitting
// an event; only the unrelated-OOM case is logged, at debug level, and no
// warning is logged. A dropped trigger never aborts the remainder of the
// batch.
func (r *Router) Process(batch trigger.Batch) {
	r.processed.Add(uint64(len(batch)))
	for _, t := range batch {
		if t.OutOfMemory != nil {
			r.handleOOM(*t.OutOfMemory)
		}
	}
	for _, t := range batch {
		if t.End != nil {
			r.handleEnd(*t.End)
		}
	}
	for _, t := range batch {
		if t.Start != nil {
			r.handleStart(*t.Start)
		}
	}
	for _, t := range batch {
		if t.FileOpen != nil {
			r.handleFileOpen(*t.FileOpen)
		}
	}
}

// handleOOM only ever checks oom.PID itself: OutOfMemory carries no ppid, so
// the "or its parent" clause of HasProcess is never exercised here.
func (r *Router) handleOOM(oom trigger.OutOfMemory) {
	if !r.state.HasProcess(oom.PID, 0) {
		r.log.WithField("pid", oom.PID).Debug("trigger: ignoring unrelated OOM signal")
		return
	}
	r.state.InsertOOMVictim(oom)
}

func (r *Router) handleEnd(end trigger.ProcessEnd) {
	_, wasOOM := r.state.RemoveOOMVictim(end.PID)

	// target must be read before RemoveProcess, which also evicts pid from
	// every monitoring set.
	target, monitored := r.state.MonitoringTargetOf(end.PID)
	start, existed := r.state.RemoveProcess(end.PID)
	if !existed || !monitored {
		return
	}

	duration := end.FinishedAt.Sub(start.StartedAt)
	if duration < 0 {
		duration = 0
	}

	var reason *events.ExitReason
	switch {
	case wasOOM:
		reason = &events.ExitReason{OutOfMemoryKilled: true}
	case end.ExitReason != nil:
		reason = &events.ExitReason{Code: end.ExitReason.Code, Signal: end.ExitReason.Signal}
	}

	r.recorder.FinishedToolExecution(events.CompletedProcessAttributes{
		ToolName:    target,
		ToolPID:     strconv.Itoa(start.PID),
		DurationSec: int64(duration.Seconds()),
		ExitReason:  reason,
	})
}

func (r *Router) handleStart(start trigger.ProcessStart) {
	r.state.InsertProcess(start)

	target, matched := r.rules.Snapshot().Lookup(start.Comm, strings.Join(start.Argv, " "))
	if !matched {
		return
	}
	r.state.AddMonitored(target, start)

	r.recorder.ToolExecution(events.ProcessAttributes{
		ToolName:       target,
		ToolPID:        strconv.Itoa(start.PID),
		ToolParentPID:  strconv.Itoa(start.PPID),
		ToolBinaryPath: start.FileName,
		ToolCmd:        strings.Join(start.Argv, " "),
		StartTimestamp: start.StartedAt.UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleFileOpen(open trigger.FileOpen) {
	if !hasMonitoredExtension(open.Filename, r.fileExts) {
		return
	}
	_, seen := r.fileWatch[open.Filename]
	r.fileWatch[open.Filename] = fileWatch{sizeBytes: open.SizeBytes}

	r.recorder.FileOpened(events.FileOpenAttributes{
		Filename:  open.Filename,
		SizeBytes: open.SizeBytes,
		FirstSeen: !seen,
	})
}

// hasMonitoredExtension reports whether filename contains one of exts
// anywhere in its name, not just as a suffix, so compressed variants like
// sample.fq.gz and sample.fastq.gz are still caught.
func hasMonitoredExtension(filename string, exts []string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range exts {
		if strings.Contains(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
