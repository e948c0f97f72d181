package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LIVEDASH_"

type envOverride struct {
	name  string
	apply func(c *RawFileConfig, v string) error
}

func envString(set func(c *RawFileConfig, v string)) func(*RawFileConfig, string) error {
	return func(c *RawFileConfig, v string) error {
		set(c, v)
		return nil
	}
}

func envInt(set func(c *RawFileConfig, v int)) func(*RawFileConfig, string) error {
	return func(c *RawFileConfig, v string) error {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		set(c, i)
		return nil
	}
}

func envFloat(set func(c *RawFileConfig, v float64)) func(*RawFileConfig, string) error {
	return func(c *RawFileConfig, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		set(c, f)
		return nil
	}
}

func envBool(set func(c *RawFileConfig, v bool)) func(*RawFileConfig, string) error {
	return func(c *RawFileConfig, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		set(c, b)
		return nil
	}
}

func mqttSection(c *RawFileConfig) *MQTTConfig {
	if c.MQTT == nil {
		c.MQTT = &MQTTConfig{}
	}
	return c.MQTT
}

func influxSection(c *RawFileConfig) *InfluxConfig {
	if c.Influx == nil {
		c.Influx = &InfluxConfig{}
	}
	return c.Influx
}

var envOverrides = []envOverride{
	{"SOURCE_URL", envString(func(c *RawFileConfig, v string) { c.SourceURL = &v })},
	{"REFRESH_INTERVAL_MS", envInt(func(c *RawFileConfig, v int) { c.RefreshIntervalMs = &v })},
	{"CLOCK_INTERVAL_MS", envInt(func(c *RawFileConfig, v int) { c.ClockIntervalMs = &v })},
	{"FETCH_TIMEOUT_MS", envInt(func(c *RawFileConfig, v int) { c.FetchTimeoutMs = &v })},
	{"OVERLAP_POLICY", envString(func(c *RawFileConfig, v string) { c.OverlapPolicy = &v })},
	{"MAX_PV_WATTS", envFloat(func(c *RawFileConfig, v float64) { c.MaxPVWatts = &v })},
	{"MAX_PHASE_WATTS", envFloat(func(c *RawFileConfig, v float64) { c.MaxPhaseWatts = &v })},
	{"TIME_ESTIMATE_CEILING_HOURS", envInt(func(c *RawFileConfig, v int) { c.TimeEstimateCeilingHours = &v })},
	{"LISTEN", envString(func(c *RawFileConfig, v string) { c.Listen = &v })},
	{"TERMINAL", envBool(func(c *RawFileConfig, v bool) { c.Terminal = &v })},
	{"PLACEHOLDER_SAVINGS", envBool(func(c *RawFileConfig, v bool) { c.PlaceholderSavings = &v })},
	{"MQTT_BROKER", envString(func(c *RawFileConfig, v string) { mqttSection(c).Broker = v })},
	{"MQTT_CLIENT_ID", envString(func(c *RawFileConfig, v string) { mqttSection(c).ClientID = v })},
	{"MQTT_USERNAME", envString(func(c *RawFileConfig, v string) { mqttSection(c).Username = v })},
	{"MQTT_PASSWORD", envString(func(c *RawFileConfig, v string) { mqttSection(c).Password = v })},
	{"MQTT_TOPIC_PREFIX", envString(func(c *RawFileConfig, v string) { mqttSection(c).TopicPrefix = v })},
	{"MQTT_RETAIN", envBool(func(c *RawFileConfig, v bool) { mqttSection(c).Retain = &v })},
	{"INFLUX_URL", envString(func(c *RawFileConfig, v string) { influxSection(c).URL = v })},
	{"INFLUX_TOKEN", envString(func(c *RawFileConfig, v string) { influxSection(c).Token = v })},
	{"INFLUX_ORG", envString(func(c *RawFileConfig, v string) { influxSection(c).Org = v })},
	{"INFLUX_BUCKET", envString(func(c *RawFileConfig, v string) { influxSection(c).Bucket = v })},
	{"INFLUX_MEASUREMENT", envString(func(c *RawFileConfig, v string) { influxSection(c).Measurement = v })},
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing
// files are skipped; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			logrus.WithField("path", p).Debug("loaded environment file")
			continue
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return pkgerrors.Wrapf(err, "failed to load environment file %s", p)
	}
	return nil
}

// ApplyEnv overrides file values with LIVEDASH_* variables. lookup is
// usually os.LookupEnv.
func (f *File) ApplyEnv(lookup func(string) (string, bool)) error {
	if f.c == nil {
		panic("config is nil")
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, o := range envOverrides {
		name := EnvPrefix + o.name
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := o.apply(f.c, v); err != nil {
			return pkgerrors.Wrapf(err, "invalid value for %s", name)
		}
		logrus.WithField("name", name).Trace("applied environment override")
	}
	return nil
}
