// Package trigger defines the kernel-observed process events the agent
// consumes. The Router that funnels them into monitoring state lives in
// internal/router.
package trigger

import "time"

// ExitReason mirrors events.ExitReason at the trigger boundary, before OOM
// enrichment has been applied by the Router.
type ExitReason struct {
	Code   *int32
	Signal *int32
}

// ProcessStart is emitted when the kernel source observes a new process.
type ProcessStart struct {
	PID       int
	PPID      int
	Comm      string
	FileName  string
	Argv      []string
	StartedAt time.Time
}

// ProcessEnd is emitted when the kernel source observes a process exit.
type ProcessEnd struct {
	PID        int
	FinishedAt time.Time
	ExitReason *ExitReason
}

// OutOfMemory is emitted when the kernel source observes an OOM kill.
type OutOfMemory struct {
	PID       int
	UPID      uint64
	Comm      string
	Timestamp time.Time
}

// FileOpen is emitted when the kernel source observes a file being opened.
type FileOpen struct {
	PID       int
	Filename  string
	SizeBytes int64
}

// Trigger is a closed tagged variant over the four trigger kinds. Exactly
// one of the pointer fields is non-nil; callers switch on that, never on a
// type assertion, to keep the variant exhaustive and cheap to construct.
type Trigger struct {
	Start       *ProcessStart
	End         *ProcessEnd
	OutOfMemory *OutOfMemory
	FileOpen    *FileOpen
}

func FromStart(s ProcessStart) Trigger      { return Trigger{Start: &s} }
func FromEnd(e ProcessEnd) Trigger          { return Trigger{End: &e} }
func FromOutOfMemory(o OutOfMemory) Trigger { return Trigger{OutOfMemory: &o} }
func FromFileOpen(f FileOpen) Trigger       { return Trigger{FileOpen: &f} }

// Batch is a coalesced group of triggers as delivered by the kernel source.
type Batch []Trigger
