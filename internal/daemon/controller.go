// Package daemon binds the Rules Store, State Manager, Trigger Router,
// System Sampler and Exporter under a single cancellation discipline and a
// local HTTP control surface.
package daemon

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tracer-cloud/tracerd/internal/events"
	"github.com/tracer-cloud/tracerd/internal/exporter"
	"github.com/tracer-cloud/tracerd/internal/kernel"
	"github.com/tracer-cloud/tracerd/internal/procstate"
	"github.com/tracer-cloud/tracerd/internal/router"
	"github.com/tracer-cloud/tracerd/internal/rulesstore"
	"github.com/tracer-cloud/tracerd/internal/sampler"
)

// Phase is one state of the Controller's lifecycle state machine.
type Phase int32

const (
	PhaseInitial Phase = iota
	PhaseRunning
	PhaseDraining
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config bounds the Controller's own behavior, independent of its owned
// components' configs.
type Config struct {
	ListenAddr         string
	InfoHandlerTimeout time.Duration
}

// Controller owns the State Manager, Exporter, Trigger Router, System
// Sampler, Run state, a cancellation token, and the HTTP control listener
// (spec §4.8).
type Controller struct {
	cfg Config
	log *logrus.Logger

	state    *procstate.Manager
	rules    *rulesstore.Store
	recorder *events.Recorder
	router   *router.Router
	sampler  *sampler.Sampler
	exporter *exporter.Exporter
	source   kernel.Source

	run *RunState

	phase atomic.Int32

	httpServer *http.Server
	registry   *prometheus.Registry

	mu             sync.Mutex
	lastInfo       infoResponse
	lastInfoCached bool
}

// New builds a Controller in PhaseInitial. All owned components must
// already be wired by the caller (cmd/tracerd).
func New(
	cfg Config,
	log *logrus.Logger,
	state *procstate.Manager,
	rules *rulesstore.Store,
	recorder *events.Recorder,
	rtr *router.Router,
	smp *sampler.Sampler,
	exp *exporter.Exporter,
	source kernel.Source,
	run *RunState,
) *Controller {
	c := &Controller{
		cfg:      cfg,
		log:      log,
		state:    state,
		rules:    rules,
		recorder: recorder,
		router:   rtr,
		sampler:  smp,
		exporter: exp,
		source:   source,
		run:      run,
		registry: prometheus.NewRegistry(),
	}
	c.phase.Store(int32(PhaseInitial))
	c.registerSelfMetrics(c.registry)
	return c
}

// Phase returns the Controller's current lifecycle phase.
func (c *Controller) Phase() Phase {
	return Phase(c.phase.Load())
}

// Run transitions Initial → Running, spawning the trigger loop, sampler
// loop, exporter loop and HTTP server, then blocks until ctx is canceled,
// at which point it drains and transitions to Terminated.
func (c *Controller) Run(ctx context.Context) error {
	c.phase.Store(int32(PhaseRunning))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.triggerLoop(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sampler.Run(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.exporter.Run(runCtx)
	}()

	mux := c.buildMux()
	c.httpServer = &http.Server{Addr: c.cfg.ListenAddr, Handler: mux}

	serveErrCh := make(chan error, 1)
	go func() {
		if err := c.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErrCh:
		if err != nil {
			c.log.WithError(err).Error("daemon: control server failed")
		}
	}

	c.phase.Store(int32(PhaseDraining))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := c.httpServer.Shutdown(shutdownCtx); err != nil {
		c.log.WithError(err).Warn("daemon: control server shutdown did not complete cleanly")
	}

	cancel()
	wg.Wait()

	c.phase.Store(int32(PhaseTerminated))
	return nil
}

// triggerLoop consumes kernel trigger batches and feeds them to the Router
// until the source closes or ctx is canceled (spec §4.4).
func (c *Controller) triggerLoop(ctx context.Context) {
	batches := c.source.Batches()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			c.router.Process(batch)
		}
	}
}
