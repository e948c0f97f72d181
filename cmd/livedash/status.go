package main

import (
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solarstation/livedash/pkg/client"
	"github.com/solarstation/livedash/pkg/sink"
	"github.com/solarstation/livedash/pkg/version"
)

var statusAPI = ""

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Show the dashboard of a running livedash",
		Long:    `Query the HTTP API of a running livedash and print its latest frame and refresh statistics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := statusAPI
			if addr == "" {
				conf, err := loadConfig()
				if err != nil {
					return err
				}
				addr = conf.Listen()
			}
			apiClient := client.NewClient(addr)
			ctx := cmd.Context()

			if v, commit, err := apiClient.GetVersion(ctx); err == nil && v != version.Version {
				logrus.WithFields(logrus.Fields{
					"clientVersion": version.Version,
					"serverVersion": v,
					"serverCommit":  commit,
				}).Warn("Version mismatch between this binary and the running livedash.")
			}

			st, err := apiClient.GetStatus(ctx)
			if err != nil {
				return err
			}

			m, err := apiClient.GetMetrics(ctx)
			switch {
			case errors.Is(err, client.ErrNoData):
				cmd.Printf("%s %s\n", bold("Status:"), st.Message)
			case err != nil:
				return err
			default:
				cmd.Print(sink.Format(m.Metrics, time.Now().Format("15:04"), st.State, st.Message))
			}

			if st.Stats != nil {
				cmd.Printf("%s %d cycles, %s ok, %s failed, %d skipped\n",
					bold("Refresh:"),
					st.Stats.Cycles,
					color.GreenString("%d", st.Stats.Succeeded),
					color.RedString("%d", st.Stats.Failed),
					st.Stats.Skipped,
				)
			}
			if !st.LastSuccess.IsZero() {
				cmd.Printf("%s %s ago\n", bold("Last ok:"), time.Since(st.LastSuccess).Round(time.Second))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&statusAPI, "api", statusAPI, "address of the running livedash API, defaults to listen in the config")

	return cmd
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
