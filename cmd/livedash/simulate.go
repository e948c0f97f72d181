package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solarstation/livedash/pkg/server"
	"github.com/solarstation/livedash/pkg/simulator"
)

var (
	simListen = "127.0.0.1:8081"
	simOpts   = simulator.Options{}
)

func NewSimulateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "simulate",
		Short:   "Serve a simulated inverter dongle",
		GroupID: gAdvanced,
		Long: `Serve synthetic measurements at /api/data in the same format as the
dongle, for demos and testing without hardware. Point the dashboard at it
with --source http://127.0.0.1:8081/api/data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logrus.WithFields(logrus.Fields{
				"listen":    simListen,
				"warmup":    simOpts.Warmup,
				"errorRate": simOpts.ErrorRate,
			}).Info("starting simulator")

			return server.ListenAndServe(ctx, simListen, simulator.New(simOpts).Handler())
		},
	}

	f := cmd.Flags()
	f.StringVar(&simListen, "listen", simListen, "listen address")
	f.StringVar(&simOpts.Serial, "serial", simulator.DefaultSerial, "reported serial number")
	f.Float64Var(&simOpts.CapacityWh, "capacity", simulator.DefaultCapacityWh, "battery capacity in Wh")
	f.Float64Var(&simOpts.PeakPVWatts, "peak-pv", simulator.DefaultPeakPVWatts, "PV power at solar noon in W")
	f.Float64Var(&simOpts.InitialSOC, "soc", 60, "initial state of charge in percent")
	f.IntVar(&simOpts.Warmup, "warmup", 1, `requests answered with {"error":"No data"} before the first sample`)
	f.Float64Var(&simOpts.ErrorRate, "error-rate", 0, "probability of failing a request (0-1)")
	f.IntVar(&simOpts.ErrorStatus, "error-status", simulator.DefaultErrorStatus, "HTTP status of failed requests")
	f.Int64Var(&simOpts.Seed, "seed", 0, "random seed, 0 picks one")

	return cmd
}
