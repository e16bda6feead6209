// Package kernel defines the narrow boundary between the telemetry core and
// the eBPF program that observes the host. The kernel program itself, its
// build, and its loading are out of scope for this module (spec §1); this
// package only names the interface the Router consumes.
package kernel

import "github.com/tracer-cloud/tracerd/internal/trigger"

// Source is an asynchronous stream of coalesced trigger batches. A real
// implementation subscribes to the eBPF ring buffer and groups triggers
// observed within a short coalescing window; this module consumes whatever
// it produces without caring how.
type Source interface {
	// Batches returns a channel that yields a trigger.Batch whenever the
	// source has new triggers to report. The channel is closed when the
	// source can produce no more triggers (e.g. on shutdown).
	Batches() <-chan trigger.Batch
}
