package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracer-cloud/tracerd/internal/config"
	"github.com/tracer-cloud/tracerd/internal/daemon"
	"github.com/tracer-cloud/tracerd/internal/events"
	"github.com/tracer-cloud/tracerd/internal/exporter"
	"github.com/tracer-cloud/tracerd/internal/kernel"
	"github.com/tracer-cloud/tracerd/internal/logging"
	"github.com/tracer-cloud/tracerd/internal/procstate"
	"github.com/tracer-cloud/tracerd/internal/router"
	"github.com/tracer-cloud/tracerd/internal/rulesstore"
	"github.com/tracer-cloud/tracerd/internal/sampler"
)

var logLevelFlag string

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tracerd agent in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&logLevelFlag, "log-level", "info", "logrus level (debug, info, warn, error)")
	return cmd
}

func runAgent(ctx context.Context) error {
	log := logging.New(logLevelFlag)

	cfg, err := config.Load(configDirFlag)
	if err != nil {
		return err
	}

	rulesStore, err := rulesstore.New(cfg.RulesDir)
	if err != nil {
		return err
	}

	state := procstate.NewManager()
	runState := daemon.NewRunState()
	recorder := events.NewRecorder(runState, 4096)

	rtr := router.New(state, rulesStore, recorder, log, router.WithFileExtensions(cfg.MonitoredFileExtensions))
	smp := sampler.New(state, recorder, log, cfg.ProcessMetricsSendInterval)

	expCfg := exporter.DefaultConfig(cfg.IngestionEndpoint)
	expCfg.BatchInterval = cfg.BatchSubmissionInterval
	expCfg.Retries = cfg.BatchSubmissionRetries
	expCfg.RetryDelay = cfg.BatchSubmissionRetryDelay
	exp := exporter.New(expCfg, recorder.Events(), log)

	poller := kernel.NewProcessTablePoller(2*time.Second, log)

	ctrl := daemon.New(
		daemon.Config{ListenAddr: cfg.Server, InfoHandlerTimeout: 500 * time.Millisecond},
		log,
		state,
		rulesStore,
		recorder,
		rtr,
		smp,
		exp,
		poller,
		runState,
	)

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go poller.Run(signalCtx)

	log.WithField("addr", cfg.Server).Info("tracerd starting")
	err = ctrl.Run(signalCtx)
	recorder.Close()
	return err
}
