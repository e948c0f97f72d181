package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solarstation/livedash/pkg/dashboard"
	"github.com/solarstation/livedash/pkg/sink"
	"github.com/solarstation/livedash/pkg/source"
)

var onceJSON = false

func NewOnceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "once",
		Short:   "Fetch and print a single frame",
		GroupID: gBasic,
		Long: `Run one refresh cycle and print the derived metrics. Exits non-zero if
the source could not be read.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := source.NewHTTP(conf.SourceURL())
			if err != nil {
				return err
			}
			opts, err := schedulerOptions(conf, src, sink.Nop{})
			if err != nil {
				return err
			}
			sched, err := dashboard.New(opts)
			if err != nil {
				return err
			}

			if err := sched.RunCycle(cmd.Context()); err != nil {
				return fmt.Errorf("%s: %w", sched.Tracker().Status().Message, err)
			}

			m, _ := sched.Tracker().Metrics()
			if onceJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			}

			st := sched.Tracker().Status()
			fmt.Print(sink.Format(m, st.UpdatedAt.Format("15:04"), st.State, st.Message))
			return nil
		},
	}

	cmd.Flags().BoolVar(&onceJSON, "json", onceJSON, "print the metrics as JSON")

	return cmd
}
