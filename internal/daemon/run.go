package daemon

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tracer-cloud/tracerd/internal/events"
)

// RunState holds the currently active Run, if any. It implements
// events.RunContext so the Recorder can read the live run identity without
// depending on the Controller, and is constructed before both the Recorder
// and the Controller so it can be shared between them.
type RunState struct {
	mu           sync.RWMutex
	run          *events.Run
	pipelineName string
}

// NewRunState returns an empty RunState with no active run.
func NewRunState() *RunState {
	return &RunState{}
}

// Current implements events.RunContext.
func (a *RunState) Current() (pipelineName, runName, runID string, tags []string, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.run == nil {
		return "", "", "", nil, false
	}
	return a.pipelineName, a.run.Name, a.run.ID, append([]string(nil), a.run.Tags...), true
}

// Start creates and activates a new Run, returning it. If name is empty, a
// human-readable name is generated.
func (a *RunState) Start(pipelineName, name, traceID string) events.Run {
	a.mu.Lock()
	defer a.mu.Unlock()
	if name == "" {
		name = generateRunName()
	}
	run := events.Run{
		Name:      name,
		ID:        uuid.New().String(),
		StartTime: time.Now().UTC(),
		TraceID:   traceID,
	}
	a.run = &run
	a.pipelineName = pipelineName
	return run
}

// Stop deactivates the current run, returning whether one was active.
func (a *RunState) Stop() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	wasActive := a.run != nil
	a.run = nil
	a.pipelineName = ""
	return wasActive
}

// AddTags appends tags to the active run, if any.
func (a *RunState) AddTags(tags []string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.run == nil {
		return false
	}
	a.run.Tags = append(a.run.Tags, tags...)
	return true
}

// Snapshot returns a read-only copy of the active run and pipeline name, or
// ok=false if no run is active.
func (a *RunState) Snapshot() (run events.Run, pipelineName string, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.run == nil {
		return events.Run{}, "", false
	}
	return *a.run, a.pipelineName, true
}

var runAdjectives = []string{
	"swift", "quiet", "bright", "steady", "curious", "bold", "calm", "eager",
	"gentle", "lucky", "nimble", "proud", "sharp", "vivid", "wary", "zesty",
}

var runNouns = []string{
	"falcon", "otter", "marmot", "heron", "lynx", "badger", "finch", "gecko",
	"orca", "puffin", "sparrow", "tapir", "vole", "wombat", "yak", "zebu",
}

// generateRunName produces a short, human-readable identifier in the style
// of docker/moby's container name generator — an adjective, a noun, and a
// small numeric suffix to reduce collisions across concurrent runs.
func generateRunName() string {
	adj := runAdjectives[rand.Intn(len(runAdjectives))]
	noun := runNouns[rand.Intn(len(runNouns))]
	suffix := rand.Intn(1000)
	return adj + "-" + noun + "-" + strconv.Itoa(suffix)
}
