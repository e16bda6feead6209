// Package procstate holds the authoritative in-memory model of observed
// processes and serializes all mutation through a State Manager.
package procstate

import (
	"sync"

	"github.com/tracer-cloud/tracerd/internal/trigger"
)

// processSet is a set of trigger.ProcessStart keyed by PID, matching the
// spec's "set of ProcessStart" semantics without relying on Go's lack of a
// native set type.
type processSet map[int]trigger.ProcessStart

// state is the authoritative in-memory model described in spec §3. It is
// never accessed directly outside Manager; every field is guarded by
// Manager's mutex.
type state struct {
	processes  map[int]trigger.ProcessStart
	monitoring map[string]processSet
	oomVictims map[int]trigger.OutOfMemory
}

func newState() *state {
	return &state{
		processes:  make(map[int]trigger.ProcessStart),
		monitoring: make(map[string]processSet),
		oomVictims: make(map[int]trigger.OutOfMemory),
	}
}

// Manager owns ProcessState exclusively; every mutation and read goes
// through it. It holds its lock only across in-memory map operations, never
// across I/O (spec §4.3's concurrency contract).
type Manager struct {
	mu sync.RWMutex
	s  *state
}

// NewManager returns an empty, ready-to-use State Manager.
func NewManager() *Manager {
	return &Manager{s: newState()}
}

// InsertProcess upserts a process start into the authoritative table.
func (m *Manager) InsertProcess(start trigger.ProcessStart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.processes[start.PID] = start
}

// RemoveProcess removes pid from processes and from every monitoring set
// (invariant 1: monitoring ⊆ processes). It returns the removed entry, if
// any, and whether pid was present in processes.
func (m *Manager) RemoveProcess(pid int) (trigger.ProcessStart, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, existed := m.s.processes[pid]
	delete(m.s.processes, pid)
	for target, set := range m.s.monitoring {
		if _, ok := set[pid]; ok {
			delete(set, pid)
			if len(set) == 0 {
				delete(m.s.monitoring, target)
			}
		}
	}
	return start, existed
}

// MonitoringTargetOf reports whether pid is currently monitored and, if so,
// under which target key.
func (m *Manager) MonitoringTargetOf(pid int) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for target, set := range m.s.monitoring {
		if _, ok := set[pid]; ok {
			return target, true
		}
	}
	return "", false
}

// AddMonitored records that start now belongs to target's monitoring set.
// The caller must already have inserted start via InsertProcess.
func (m *Manager) AddMonitored(target string, start trigger.ProcessStart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.s.monitoring[target]
	if !ok {
		set = make(processSet)
		m.s.monitoring[target] = set
	}
	set[start.PID] = start
}

// InsertOOMVictim records pid as killed by OOM, pending its End trigger.
func (m *Manager) InsertOOMVictim(oom trigger.OutOfMemory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.oomVictims[oom.PID] = oom
}

// RemoveOOMVictim removes and returns pid's OOM record, if any.
func (m *Manager) RemoveOOMVictim(pid int) (trigger.OutOfMemory, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oom, ok := m.s.oomVictims[pid]
	delete(m.s.oomVictims, pid)
	return oom, ok
}

// HasProcess reports whether pid (or, if ppid is non-zero, its parent) is
// currently tracked — used to decide whether an OOM trigger is related to a
// known process (spec §4.4 step 1).
func (m *Manager) HasProcess(pid, ppid int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.s.processes[pid]; ok {
		return true
	}
	if ppid != 0 {
		_, ok := m.s.processes[ppid]
		return ok
	}
	return false
}

// GetMonitoredPIDs returns every PID currently attributed to a target,
// for the Sampler to refresh.
func (m *Manager) GetMonitoredPIDs() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pids := make([]int, 0)
	for _, set := range m.s.monitoring {
		for pid := range set {
			pids = append(pids, pid)
		}
	}
	return pids
}

// MonitoringSnapshot is a read-only (target, process) view used by the
// Sampler and by /info.
type MonitoringSnapshot struct {
	Target  string
	Process trigger.ProcessStart
}

// Monitoring returns a point-in-time copy of every monitored process
// grouped by target.
func (m *Manager) Monitoring() []MonitoringSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MonitoringSnapshot, 0)
	for target, set := range m.s.monitoring {
		for _, proc := range set {
			out = append(out, MonitoringSnapshot{Target: target, Process: proc})
		}
	}
	return out
}

// MonitoredTargets returns the distinct set of target keys currently being
// monitored, for the /info control endpoint's process preview.
func (m *Manager) MonitoredTargets() map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{}, len(m.s.monitoring))
	for target, set := range m.s.monitoring {
		if len(set) > 0 {
			out[target] = struct{}{}
		}
	}
	return out
}

// ProcessCount returns len(processes), mostly for tests and diagnostics.
func (m *Manager) ProcessCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.s.processes)
}

// OOMVictimCount returns len(oom_victims), mostly for tests and diagnostics.
func (m *Manager) OOMVictimCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.s.oomVictims)
}
