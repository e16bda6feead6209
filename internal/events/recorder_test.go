package events

import "testing"

type fakeRunContext struct {
	pipeline, run, id string
	tags              []string
	active            bool
}

func (f fakeRunContext) Current() (string, string, string, []string, bool) {
	return f.pipeline, f.run, f.id, f.tags, f.active
}

func TestRecorder_PushInjectsRunContextWhenActive(t *testing.T) {
	run := fakeRunContext{pipeline: "rnaseq", run: "brave-otter-42", id: "abc123", tags: []string{"env:ci"}, active: true}
	r := NewRecorder(run, 4)

	r.NewRun("starting")

	ev := <-r.Events()
	if ev.PipelineName != "rnaseq" || ev.RunName != "brave-otter-42" || ev.RunID != "abc123" {
		t.Fatalf("run context not injected: %+v", ev)
	}
	if ev.SpanID == "" {
		t.Error("expected a non-empty span ID to be stamped")
	}
	if ev.ProcessStatus != StatusNewRun {
		t.Errorf("ProcessStatus = %q, want %q", ev.ProcessStatus, StatusNewRun)
	}
}

func TestRecorder_PushOmitsRunContextWhenInactive(t *testing.T) {
	r := NewRecorder(fakeRunContext{active: false}, 4)
	r.Log("hello")

	ev := <-r.Events()
	if ev.RunID != "" || ev.PipelineName != "" {
		t.Fatalf("expected no run context on an inactive run, got %+v", ev)
	}
}

func TestRecorder_Close_DropsFurtherPushes(t *testing.T) {
	r := NewRecorder(fakeRunContext{}, 1)
	r.Close()
	r.Close() // idempotent

	r.Log("dropped")

	if r.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1 after a push following Close", r.Dropped())
	}
	select {
	case ev := <-r.Events():
		t.Fatalf("expected no event queued after Close, got %+v", ev)
	default:
	}
}

func TestRecorder_ToolExecution_CarriesProcessAttributes(t *testing.T) {
	r := NewRecorder(fakeRunContext{}, 1)
	r.ToolExecution(ProcessAttributes{ToolName: "bwa", ToolPID: "123"})

	ev := <-r.Events()
	if ev.Attributes == nil || ev.Attributes.Process == nil || ev.Attributes.Process.ToolName != "bwa" {
		t.Fatalf("expected process attributes to be attached, got %+v", ev.Attributes)
	}
}
