package kernel

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestProcessTablePoller_Poll_FindsCurrentProcessOnFirstPass(t *testing.T) {
	p := NewProcessTablePoller(time.Millisecond, testLogger())
	batch := p.poll(context.Background())

	self := os.Getpid()
	if _, known := p.seen[self]; !known {
		t.Fatalf("expected pid %d (this test binary) to be recorded as seen after the first poll", self)
	}

	foundSelf := false
	for _, tr := range batch {
		if tr.Start != nil && tr.Start.PID == self {
			foundSelf = true
		}
	}
	if !foundSelf {
		t.Fatal("expected a Start trigger for this test binary's own pid on the first poll")
	}
}

func TestProcessTablePoller_Poll_SecondPassEmitsNoDuplicateStarts(t *testing.T) {
	p := NewProcessTablePoller(time.Millisecond, testLogger())
	p.poll(context.Background())

	self := os.Getpid()
	batch := p.poll(context.Background())
	for _, tr := range batch {
		if tr.Start != nil && tr.Start.PID == self {
			t.Fatal("expected no duplicate Start trigger for an already-seen pid")
		}
	}
}

func TestProcessTablePoller_Batches_ClosesWhenContextCanceled(t *testing.T) {
	p := NewProcessTablePoller(time.Millisecond, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if _, open := <-p.Batches(); open {
		t.Fatal("expected the batch channel to be closed once Run returns")
	}
}
