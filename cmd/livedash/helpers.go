package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/solarstation/livedash/pkg/config"
	"github.com/solarstation/livedash/pkg/dashboard"
	"github.com/solarstation/livedash/pkg/events"
	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/savings"
	"github.com/solarstation/livedash/pkg/sink"
	"github.com/solarstation/livedash/pkg/source"
	"github.com/solarstation/livedash/pkg/utils/ptr"
)

// loadConfig reads the config file, applies LIVEDASH_* variables and then
// the command line overrides.
func loadConfig() (*config.File, error) {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := conf.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	if sourceURL != "" {
		conf.SetSourceURL(sourceURL)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logrus.WithFields(conf.LogrusFields()).Debug("config loaded")
	return conf, nil
}

func limitsFromConfig(conf config.Config) metrics.Limits {
	return metrics.Limits{
		MaxPVWatts:          conf.MaxPVWatts(),
		MaxPhaseWatts:       conf.MaxPhaseWatts(),
		TimeEstimateCeiling: conf.TimeEstimateCeiling(),
	}
}

func savingsFromConfig(conf config.Config) savings.Provider {
	if conf.PlaceholderSavings() {
		return savings.Placeholder
	}
	return savings.None{}
}

// schedulerOptions builds the scheduler options for a source and sink.
func schedulerOptions(conf config.Config, src source.Source, s sink.Sink) (dashboard.Options, error) {
	policy, err := dashboard.ParsePolicy(conf.OverlapPolicy())
	if err != nil {
		return dashboard.Options{}, err
	}
	return dashboard.Options{
		Source:          src,
		Sink:            s,
		Limits:          limitsFromConfig(conf),
		RefreshInterval: conf.RefreshInterval(),
		ClockInterval:   conf.ClockInterval(),
		FetchTimeout:    conf.FetchTimeout(),
		Policy:          policy,
		Savings:         savingsFromConfig(conf),
	}, nil
}

// buildSinks returns every sink enabled by the config. The terminal sink is
// included when terminal is set; hub may be nil when no API is served.
func buildSinks(ctx context.Context, conf config.Config, hub *events.EventHub, terminal bool) (sink.Multi, error) {
	var sinks sink.Multi

	if terminal {
		t := sink.NewTerminal(os.Stdout)
		t.Verbose = runVerboseStatus
		sinks = append(sinks, t)
	}
	if hub != nil {
		sinks = append(sinks, sink.NewHub(hub))
	}

	if mc := conf.MQTT(); mc.Broker != "" {
		m, err := sink.NewMQTT(ctx, sink.MQTTOptions{
			Broker:      mc.Broker,
			ClientID:    mc.ClientID,
			Username:    mc.Username,
			Password:    mc.Password,
			TopicPrefix: mc.TopicPrefix,
			QoS:         1,
			Retain:      ptr.Deref(mc.Retain, true),
			MaxRetries:  5,
		})
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
		sinks = append(sinks, m)
	}

	if ic := conf.Influx(); ic.URL != "" {
		i, err := sink.NewInflux(sink.InfluxOptions{
			URL:         ic.URL,
			Token:       ic.Token,
			Org:         ic.Org,
			Bucket:      ic.Bucket,
			Measurement: ic.Measurement,
		})
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("failed to set up influxdb: %w", err)
		}
		sinks = append(sinks, i)
	}

	return sinks, nil
}
