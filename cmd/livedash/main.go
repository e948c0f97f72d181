package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/solarstation/livedash/pkg/client"
	"github.com/solarstation/livedash/pkg/config"
	"github.com/solarstation/livedash/pkg/source"
)

var (
	logLevel   = "info"
	logFile    = ""
	logMaxAge  = 7
	configPath = "/etc/livedash/config.json"
	sourceURL  = ""
	envFiles   = []string{".env"}
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	if logFile == "" {
		return nil
	}

	w, err := rotatelogs.New(
		logFile+".%Y%m%d%H",
		rotatelogs.WithLinkName(logFile),
		rotatelogs.WithRotationTime(time.Hour),
		rotatelogs.WithMaxAge(time.Duration(logMaxAge)*24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %v", logFile, err)
	}
	// Files get full timestamps regardless of the terminal.
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	logrus.SetOutput(io.MultiWriter(os.Stderr, w))

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, source.ErrSourceNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: the data source is not reachable")
		fmt.Fprintln(os.Stderr, "Is the dongle powered and on the same network? Check --source or sourceURL in the config.")
	} else if errors.Is(err, client.ErrNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: livedash is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'livedash run', or point --api at its listen address.")
	} else if errors.Is(err, source.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Check the permissions of the source socket")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "livedash",
		Short: "livedash is a live dashboard for solar inverters and home batteries",
		Long: `livedash polls an inverter dongle for live measurements, derives
utilisation, battery time estimates and energy flow, and shows them in the
terminal, over HTTP, MQTT and InfluxDB.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := setupLogger(); err != nil {
				return err
			}
			return config.LoadDotEnv(envFiles...)
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&logFile, "log-file", logFile, "also write logs to this file, rotated hourly")
	globalFlags.IntVar(&logMaxAge, "log-max-age", logMaxAge, "days to keep rotated log files")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVarP(&sourceURL, "source", "s", sourceURL, "source URL, overrides the config (http://host/api/data or unix:///path.sock)")
	globalFlags.StringSliceVar(&envFiles, "env-file", envFiles, "environment files to load before reading the config")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewRunCommand(),
		NewOnceCommand(),
		NewStatusCommand(),
		NewConfigCommand(),
		NewSimulateCommand(),
		NewVersionCommand(),
	)

	return cmd
}
