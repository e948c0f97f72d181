package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/solarstation/livedash/pkg/dashboard"
	"github.com/solarstation/livedash/pkg/events"
	"github.com/solarstation/livedash/pkg/server"
	"github.com/solarstation/livedash/pkg/source"
	"github.com/solarstation/livedash/pkg/version"
)

var (
	runListen     = ""
	runNoAPI      = false
	runNoTerminal = false
	runPolicy     = ""

	runVerboseStatus = false
)

// NewRunCommand .
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the live dashboard in the foreground",
		GroupID: gBasic,
		Long: `Poll the source on the refresh interval and render every frame to the
terminal and to the configured sinks. The HTTP API serves the latest metrics
and streams updates over SSE (/events) and WebSocket (/ws).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVar(&runListen, "listen", runListen, "HTTP API listen address, overrides the config")
	f.BoolVar(&runNoAPI, "no-api", runNoAPI, "do not serve the HTTP API")
	f.BoolVar(&runNoTerminal, "no-terminal", runNoTerminal, "do not print frames to stdout")
	f.BoolVar(&runVerboseStatus, "verbose-status", runVerboseStatus, "also print a status line when each refresh starts")
	f.StringVar(&runPolicy, "policy", runPolicy, "what to do when a refresh is due while one is in flight (skip, overlap)")

	return cmd
}

func runDashboard(parent context.Context) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	if runListen != "" {
		conf.SetListen(runListen)
	}
	if runPolicy != "" {
		conf.SetOverlapPolicy(runPolicy)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := source.NewHTTP(conf.SourceURL())
	if err != nil {
		return err
	}

	listen := conf.Listen()
	var hub *events.EventHub
	if !runNoAPI && listen != "" {
		hub = events.NewEventHub()
	}

	sinks, err := buildSinks(ctx, conf, hub, conf.Terminal() && !runNoTerminal)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close sinks")
		}
	}()

	opts, err := schedulerOptions(conf, src, sinks)
	if err != nil {
		return err
	}
	sched, err := dashboard.New(opts)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"version": version.Version,
		"commit":  version.GitCommit,
		"source":  src.URL(),
		"sinks":   len(sinks),
	}).Info("livedash starting")

	g, gctx := errgroup.WithContext(ctx)
	if err := sched.Start(gctx); err != nil {
		return err
	}
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		sched.Wait()
		logrus.WithFields(logrus.Fields{
			"cycles":    sched.Stats().Cycles,
			"succeeded": sched.Stats().Succeeded,
			"failed":    sched.Stats().Failed,
		}).Info("scheduler stopped")
		return nil
	})

	if hub != nil {
		srv := server.New(server.Options{
			Tracker: sched.Tracker(),
			Hub:     hub,
			Stats:   sched.Stats,
		})
		g.Go(func() error {
			return srv.Run(gctx, listen)
		})
	}

	return g.Wait()
}
