// Package sampler periodically refreshes resource usage for monitored
// processes and the host, emitting metric events through the Recorder.
package sampler

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gopsprocess "github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/tracer-cloud/tracerd/internal/events"
	"github.com/tracer-cloud/tracerd/internal/procstate"
)

// Recorder is the subset of *events.Recorder the Sampler depends on.
type Recorder interface {
	ToolMetricEvent(events.ToolMetricAttributes)
	MetricEvent(events.SystemMetricAttributes)
}

// diskCounters remembers the last-seen cumulative read/write bytes per pid so
// each tick can derive a last-interval delta (spec §4.5 step 4).
type diskCounters struct {
	readBytes  uint64
	writeBytes uint64
}

// Sampler owns the periodic tick that refreshes process and host metrics.
// It reads, but never mutates, State Manager data.
type Sampler struct {
	state    *procstate.Manager
	recorder Recorder
	log      *logrus.Logger
	interval time.Duration

	lastDisk map[int]diskCounters
}

// New builds a Sampler ticking at interval, reading monitored pids from
// state and emitting through recorder.
func New(state *procstate.Manager, recorder Recorder, log *logrus.Logger, interval time.Duration) *Sampler {
	return &Sampler{
		state:    state,
		recorder: recorder,
		log:      log,
		interval: interval,
		lastDisk: make(map[int]diskCounters),
	}
}

// Run blocks, ticking every interval until ctx is canceled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	monitoring := s.state.Monitoring()
	if len(monitoring) == 0 {
		return
	}

	for _, snap := range monitoring {
		attrs, ok := s.sampleProcess(ctx, snap)
		if !ok {
			continue
		}
		s.recorder.ToolMetricEvent(attrs)
	}

	if host, ok := s.sampleHost(ctx); ok {
		s.recorder.MetricEvent(host)
	}
}

// sampleProcess refreshes OS data for one monitored pid. A pid that has
// vanished from the OS table yields ok=false; it is NOT removed from
// monitoring here — removal is driven only by End triggers (spec §4.5).
func (s *Sampler) sampleProcess(ctx context.Context, snap procstate.MonitoringSnapshot) (events.ToolMetricAttributes, bool) {
	pid := int32(snap.Process.PID)
	proc, err := gopsprocess.NewProcessWithContext(ctx, pid)
	if err != nil {
		s.log.WithError(err).WithField("pid", pid).Debug("sampler: process no longer present")
		return events.ToolMetricAttributes{}, false
	}

	cpuPct, _ := proc.CPUPercentWithContext(ctx)
	memInfo, _ := proc.MemoryInfoWithContext(ctx)
	ioCounters, _ := proc.IOCountersWithContext(ctx)
	statuses, _ := proc.StatusWithContext(ctx)
	cwd, _ := proc.CwdWithContext(ctx)

	var rss, vsz uint64
	if memInfo != nil {
		rss = memInfo.RSS
		vsz = memInfo.VMS
	}

	var readTotal, writeTotal, readDelta, writeDelta uint64
	if ioCounters != nil {
		readTotal = ioCounters.ReadBytes
		writeTotal = ioCounters.WriteBytes
		prev := s.lastDisk[snap.Process.PID]
		readDelta = deltaOrZero(readTotal, prev.readBytes)
		writeDelta = deltaOrZero(writeTotal, prev.writeBytes)
		s.lastDisk[snap.Process.PID] = diskCounters{readBytes: readTotal, writeBytes: writeTotal}
	}

	status := "Unknown"
	if len(statuses) > 0 {
		status = statuses[0]
	}

	runTimeMs := uint64(time.Since(snap.Process.StartedAt).Milliseconds())

	return events.ToolMetricAttributes{
		ToolName:                          snap.Target,
		ToolPID:                           strconv.Itoa(snap.Process.PID),
		ProcessCPUUtilization:             cpuPct,
		ProcessMemoryUsage:                rss,
		ProcessMemoryVirtual:              vsz,
		ProcessDiskUsageReadTotal:         readTotal,
		ProcessDiskUsageWriteTotal:        writeTotal,
		ProcessDiskUsageReadLastInterval:  readDelta,
		ProcessDiskUsageWriteLastInterval: writeDelta,
		ProcessRunTimeMs:                  runTimeMs,
		ProcessStatus:                     status,
		ContainerID:                       os.Getenv("HOSTNAME"),
		JobID:                             os.Getenv("AWS_BATCH_JOB_ID"),
		TraceID:                           os.Getenv("TRACER_TRACE_ID"),
		WorkingDirectory:                  cwd,
	}, true
}

func (s *Sampler) sampleHost(ctx context.Context) (events.SystemMetricAttributes, bool) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		s.log.WithError(err).Warn("sampler: failed to read host memory")
		return events.SystemMetricAttributes{}, false
	}
	swap, _ := mem.SwapMemoryWithContext(ctx)

	cpuPcts, _ := cpu.PercentWithContext(ctx, 0, false)
	var cpuUtil float64
	if len(cpuPcts) > 0 {
		cpuUtil = cpuPcts[0]
	}

	diskIO := make(map[string]events.DiskStatistic)
	partitions, _ := disk.PartitionsWithContext(ctx, false)
	for _, p := range partitions {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		diskIO[p.Mountpoint] = events.DiskStatistic{
			TotalSpace:     usage.Total,
			UsedSpace:      usage.Used,
			AvailableSpace: usage.Free,
			Utilization:    usage.UsedPercent,
		}
	}

	var swapTotal, swapUsed uint64
	if swap != nil {
		swapTotal = swap.Total
		swapUsed = swap.Used
	}

	return events.SystemMetricAttributes{
		SystemMemoryTotal:       vm.Total,
		SystemMemoryUsed:        vm.Used,
		SystemMemoryAvailable:   vm.Available,
		SystemMemoryUtilization: vm.UsedPercent,
		SystemMemorySwapTotal:   swapTotal,
		SystemMemorySwapUsed:    swapUsed,
		SystemCPUUtilization:    cpuUtil,
		SystemDiskIO:            diskIO,
	}, true
}

func deltaOrZero(current, previous uint64) uint64 {
	if current < previous {
		return 0
	}
	return current - previous
}
