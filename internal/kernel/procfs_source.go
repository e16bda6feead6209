package kernel

import (
	"context"
	"strings"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/tracer-cloud/tracerd/internal/trigger"
)

// ProcessTablePoller is a concrete kernel.Source that synthesizes
// ProcessStart/ProcessEnd triggers by diffing successive snapshots of the OS
// process table. The real agent drives this interface from an eBPF program
// (deliberately out of scope, spec §1); this poller is the narrowest
// standalone implementation that lets the rest of the pipeline run without
// a kernel component, trading immediacy (poll interval) and OOM/file-open
// visibility for portability.
type ProcessTablePoller struct {
	interval time.Duration
	log      *logrus.Logger
	batches  chan trigger.Batch

	seen map[int]trigger.ProcessStart
}

// NewProcessTablePoller builds a poller that diffs the process table every
// interval.
func NewProcessTablePoller(interval time.Duration, log *logrus.Logger) *ProcessTablePoller {
	return &ProcessTablePoller{
		interval: interval,
		log:      log,
		batches:  make(chan trigger.Batch, 16),
		seen:     make(map[int]trigger.ProcessStart),
	}
}

// Batches implements kernel.Source.
func (p *ProcessTablePoller) Batches() <-chan trigger.Batch {
	return p.batches
}

// Run polls until ctx is canceled, then closes the batch channel.
func (p *ProcessTablePoller) Run(ctx context.Context) {
	defer close(p.batches)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := p.poll(ctx)
			if len(batch) == 0 {
				continue
			}
			select {
			case p.batches <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *ProcessTablePoller) poll(ctx context.Context) trigger.Batch {
	pids, err := gopsprocess.PidsWithContext(ctx)
	if err != nil {
		p.log.WithError(err).Warn("kernel: failed to list process table")
		return nil
	}

	current := make(map[int]struct{}, len(pids))
	var batch trigger.Batch

	for _, pid := range pids {
		current[int(pid)] = struct{}{}
		if _, known := p.seen[int(pid)]; known {
			continue
		}
		start, ok := describeProcess(ctx, pid)
		if !ok {
			continue
		}
		p.seen[int(pid)] = start
		batch = append(batch, trigger.FromStart(start))
	}

	for pid := range p.seen {
		if _, alive := current[pid]; alive {
			continue
		}
		delete(p.seen, pid)
		batch = append(batch, trigger.FromEnd(trigger.ProcessEnd{
			PID:        pid,
			FinishedAt: time.Now().UTC(),
			ExitReason: nil,
		}))
	}

	return batch
}

func describeProcess(ctx context.Context, pid int32) (trigger.ProcessStart, bool) {
	proc, err := gopsprocess.NewProcessWithContext(ctx, pid)
	if err != nil {
		return trigger.ProcessStart{}, false
	}
	name, err := proc.NameWithContext(ctx)
	if err != nil || name == "" {
		return trigger.ProcessStart{}, false
	}
	ppid, _ := proc.PpidWithContext(ctx)
	exe, _ := proc.ExeWithContext(ctx)
	cmdline, _ := proc.CmdlineSliceWithContext(ctx)
	createMs, err := proc.CreateTimeWithContext(ctx)
	startedAt := time.Now().UTC()
	if err == nil && createMs > 0 {
		startedAt = time.UnixMilli(createMs).UTC()
	}

	return trigger.ProcessStart{
		PID:       int(pid),
		PPID:      int(ppid),
		Comm:      strings.TrimSpace(name),
		FileName:  exe,
		Argv:      cmdline,
		StartedAt: startedAt,
	}, true
}
