// Package events defines the telemetry schema shipped to the ingestion
// endpoint and the Recorder that constructs and queues it.
package events

import "time"

// ProcessStatus labels the kind of lifecycle or metric event being reported.
type ProcessStatus string

const (
	StatusNewRun                ProcessStatus = "new_run"
	StatusFinishedRun           ProcessStatus = "finished_run"
	StatusToolExecution         ProcessStatus = "tool_execution"
	StatusFinishedToolExecution ProcessStatus = "finished_tool_execution"
	StatusToolMetricEvent       ProcessStatus = "tool_metric_event"
	StatusMetricEvent           ProcessStatus = "metric_event"
	StatusAlert                 ProcessStatus = "alert"
	StatusFileOpened            ProcessStatus = "file_opened"
	StatusSyslogEvent           ProcessStatus = "syslog_event"
	StatusLogEvent              ProcessStatus = "log_event"
)

// EventType and ProcessType are coarse classifiers carried on every Event,
// mirroring the wire schema's top-level discriminators.
type EventType string

const EventTypeProcessStatus EventType = "process_status"

type ProcessType string

const ProcessTypePipeline ProcessType = "pipeline"

// ExitReason is a closed variant describing how a monitored process ended.
type ExitReason struct {
	Code             *int32 `json:"code,omitempty"`
	Signal           *int32 `json:"signal,omitempty"`
	OutOfMemoryKilled bool  `json:"out_of_memory_killed,omitempty"`
}

func ExitCode(code int32) ExitReason    { return ExitReason{Code: &code} }
func ExitSignal(sig int32) ExitReason   { return ExitReason{Signal: &sig} }
func ExitOutOfMemoryKilled() ExitReason { return ExitReason{OutOfMemoryKilled: true} }

// ProcessAttributes carries the static properties of a started process.
type ProcessAttributes struct {
	ToolName       string `json:"tool_name"`
	ToolPID        string `json:"tool_pid"`
	ToolParentPID  string `json:"tool_parent_pid"`
	ToolBinaryPath string `json:"tool_binary_path"`
	ToolCmd        string `json:"tool_cmd"`
	StartTimestamp string `json:"start_timestamp"`
}

// CompletedProcessAttributes carries the outcome of a monitored process.
type CompletedProcessAttributes struct {
	ToolName    string      `json:"tool_name"`
	ToolPID     string      `json:"tool_pid"`
	DurationSec int64       `json:"duration_sec"`
	ExitReason  *ExitReason `json:"exit_reason,omitempty"`
}

// ToolMetricAttributes carries a single monitored process's resource snapshot.
type ToolMetricAttributes struct {
	ToolName                          string  `json:"tool_name"`
	ToolPID                           string  `json:"tool_pid"`
	ProcessCPUUtilization             float64 `json:"process_cpu_utilization"`
	ProcessMemoryUsage                uint64  `json:"process_memory_usage"`
	ProcessMemoryVirtual              uint64  `json:"process_memory_virtual"`
	ProcessDiskUsageReadTotal         uint64  `json:"process_disk_usage_read_total"`
	ProcessDiskUsageWriteTotal        uint64  `json:"process_disk_usage_write_total"`
	ProcessDiskUsageReadLastInterval  uint64  `json:"process_disk_usage_read_last_interval"`
	ProcessDiskUsageWriteLastInterval uint64  `json:"process_disk_usage_write_last_interval"`
	ProcessRunTimeMs                  uint64  `json:"process_run_time_ms"`
	ProcessStatus                     string  `json:"process_status"`
	ContainerID                       string  `json:"container_id,omitempty"`
	JobID                             string  `json:"job_id,omitempty"`
	TraceID                           string  `json:"trace_id,omitempty"`
	WorkingDirectory                  string  `json:"working_directory,omitempty"`
}

// DiskStatistic is a per-volume utilization snapshot.
type DiskStatistic struct {
	TotalSpace      uint64  `json:"disk_total_space"`
	UsedSpace       uint64  `json:"disk_used_space"`
	AvailableSpace  uint64  `json:"disk_available_space"`
	Utilization     float64 `json:"disk_utilization"`
}

// SystemMetricAttributes carries the host-level metric tick.
type SystemMetricAttributes struct {
	SystemMemoryTotal        uint64                   `json:"system_memory_total"`
	SystemMemoryUsed         uint64                   `json:"system_memory_used"`
	SystemMemoryAvailable    uint64                   `json:"system_memory_available"`
	SystemMemoryUtilization  float64                  `json:"system_memory_utilization"`
	SystemMemorySwapTotal    uint64                   `json:"system_memory_swap_total"`
	SystemMemorySwapUsed     uint64                   `json:"system_memory_swap_used"`
	SystemCPUUtilization     float64                  `json:"system_cpu_utilization"`
	SystemDiskIO             map[string]DiskStatistic `json:"system_disk_io"`
}

// FileOpenAttributes carries a file-open observation.
type FileOpenAttributes struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	FirstSeen bool   `json:"first_seen"`
}

// Attributes is a tagged union keyed (implicitly, by which field is set) by
// the Event's ProcessStatus. Exactly one field is populated per Event.
type Attributes struct {
	Process          *ProcessAttributes          `json:"process,omitempty"`
	CompletedProcess *CompletedProcessAttributes `json:"completed_process,omitempty"`
	ToolMetric       *ToolMetricAttributes       `json:"tool_metric,omitempty"`
	SystemMetric     *SystemMetricAttributes     `json:"system_metric,omitempty"`
	FileOpen         *FileOpenAttributes         `json:"file_open,omitempty"`
}

// Event is the unit shipped to the ingestion endpoint.
type Event struct {
	Timestamp      time.Time     `json:"timestamp"`
	Body           string        `json:"body"`
	EventType      EventType     `json:"event_type"`
	ProcessType    ProcessType   `json:"process_type"`
	ProcessStatus  ProcessStatus `json:"process_status"`
	PipelineName   string        `json:"pipeline_name,omitempty"`
	RunName        string        `json:"run_name,omitempty"`
	RunID          string        `json:"run_id,omitempty"`
	Attributes     *Attributes   `json:"attributes,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	SeverityText   string        `json:"severity_text,omitempty"`
	SeverityNumber int           `json:"severity_number,omitempty"`
	TraceID        string        `json:"trace_id,omitempty"`
	SpanID         string        `json:"span_id"`
}

// Run is a pipeline session identifier bracketing a sequence of events.
type Run struct {
	Name      string    `json:"name"`
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	TraceID   string    `json:"trace_id,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}
