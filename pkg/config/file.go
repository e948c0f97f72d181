package config

import (
	"encoding/json"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solarstation/livedash/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		SourceURL:                ptr.To("http://192.168.4.1/api/data"),
		RefreshIntervalMs:        ptr.To(5000),
		ClockIntervalMs:          ptr.To(1000),
		FetchTimeoutMs:           ptr.To(4000),
		OverlapPolicy:            ptr.To("skip"),
		MaxPVWatts:               ptr.To(10000.0),
		MaxPhaseWatts:            ptr.To(5000.0),
		TimeEstimateCeilingHours: ptr.To(99),
		Listen:                   ptr.To("127.0.0.1:8080"),
		Terminal:                 ptr.To(true),
		// The dashboard has always shown a fixed savings figure. Keep it
		// until a tariff source exists.
		PlaceholderSavings: ptr.To(true),
	}
	defaultMQTTTopicPrefix   = "livedash"
	defaultInfluxMeasurement = "livedash"
	validOverlapPolicies     = []string{"skip", "overlap"}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	SourceURL                *string       `json:"sourceURL,omitempty"`
	RefreshIntervalMs        *int          `json:"refreshIntervalMs,omitempty"`
	ClockIntervalMs          *int          `json:"clockIntervalMs,omitempty"`
	FetchTimeoutMs           *int          `json:"fetchTimeoutMs,omitempty"`
	OverlapPolicy            *string       `json:"overlapPolicy,omitempty"`
	MaxPVWatts               *float64      `json:"maxPVWatts,omitempty"`
	MaxPhaseWatts            *float64      `json:"maxPhaseWatts,omitempty"`
	TimeEstimateCeilingHours *int          `json:"timeEstimateCeilingHours,omitempty"`
	Listen                   *string       `json:"listen,omitempty"`
	Terminal                 *bool         `json:"terminal,omitempty"`
	PlaceholderSavings       *bool         `json:"placeholderSavings,omitempty"`
	MQTT                     *MQTTConfig   `json:"mqtt,omitempty"`
	Influx                   *InfluxConfig `json:"influx,omitempty"`
}

// value returns the field picked from the file, or from the defaults when
// the file leaves it unset.
func value[T any](f *File, pick func(*RawFileConfig) *T) T {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if v := pick(f.c); v != nil {
		return *v
	}
	return *pick(defaultFileConfig)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (f *File) SourceURL() string {
	return value(f, func(c *RawFileConfig) *string { return c.SourceURL })
}

func (f *File) RefreshInterval() time.Duration {
	return millis(value(f, func(c *RawFileConfig) *int { return c.RefreshIntervalMs }))
}

func (f *File) ClockInterval() time.Duration {
	return millis(value(f, func(c *RawFileConfig) *int { return c.ClockIntervalMs }))
}

func (f *File) FetchTimeout() time.Duration {
	return millis(value(f, func(c *RawFileConfig) *int { return c.FetchTimeoutMs }))
}

func (f *File) OverlapPolicy() string {
	return value(f, func(c *RawFileConfig) *string { return c.OverlapPolicy })
}

func (f *File) MaxPVWatts() float64 {
	return value(f, func(c *RawFileConfig) *float64 { return c.MaxPVWatts })
}

func (f *File) MaxPhaseWatts() float64 {
	return value(f, func(c *RawFileConfig) *float64 { return c.MaxPhaseWatts })
}

func (f *File) TimeEstimateCeiling() time.Duration {
	return time.Duration(value(f, func(c *RawFileConfig) *int { return c.TimeEstimateCeilingHours })) * time.Hour
}

func (f *File) Listen() string {
	return value(f, func(c *RawFileConfig) *string { return c.Listen })
}

func (f *File) Terminal() bool {
	return value(f, func(c *RawFileConfig) *bool { return c.Terminal })
}

func (f *File) PlaceholderSavings() bool {
	return value(f, func(c *RawFileConfig) *bool { return c.PlaceholderSavings })
}

func (f *File) MQTT() MQTTConfig {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var m MQTTConfig
	if f.c.MQTT != nil {
		m = *f.c.MQTT
	}
	if m.TopicPrefix == "" {
		m.TopicPrefix = defaultMQTTTopicPrefix
	}
	if m.Retain == nil {
		m.Retain = ptr.To(true)
	}
	return m
}

func (f *File) Influx() InfluxConfig {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var i InfluxConfig
	if f.c.Influx != nil {
		i = *f.c.Influx
	}
	if i.Measurement == "" {
		i.Measurement = defaultInfluxMeasurement
	}
	return i
}

func (f *File) SetSourceURL(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.SourceURL = &s
}

func (f *File) SetListen(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Listen = &s
}

func (f *File) SetRefreshInterval(d time.Duration) {
	if f.c == nil {
		panic("config is nil")
	}

	ms := int(d / time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.RefreshIntervalMs = &ms
}

func (f *File) SetOverlapPolicy(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.OverlapPolicy = &s
}

func (f *File) Validate() error {
	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	if _, err := url.Parse(f.SourceURL()); err != nil || f.SourceURL() == "" {
		return pkgerrors.Errorf("invalid source url %q", f.SourceURL())
	}
	for name, d := range map[string]time.Duration{
		"refreshIntervalMs": f.RefreshInterval(),
		"clockIntervalMs":   f.ClockInterval(),
		"fetchTimeoutMs":    f.FetchTimeout(),
	} {
		if d <= 0 {
			return pkgerrors.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if f.FetchTimeout() > f.RefreshInterval() && f.OverlapPolicy() == "skip" {
		logrus.WithFields(logrus.Fields{
			"fetchTimeout":    f.FetchTimeout(),
			"refreshInterval": f.RefreshInterval(),
		}).Warn("fetch timeout is longer than the refresh interval, ticks will be skipped while a fetch hangs")
	}

	policy := f.OverlapPolicy()
	valid := false
	for _, p := range validOverlapPolicies {
		if policy == p {
			valid = true
		}
	}
	if !valid {
		return pkgerrors.Errorf("overlapPolicy must be one of %s, got %q", strings.Join(validOverlapPolicies, ", "), policy)
	}

	if f.MaxPVWatts() <= 0 || f.MaxPhaseWatts() <= 0 {
		return pkgerrors.New("maxPVWatts and maxPhaseWatts must be positive")
	}
	if f.TimeEstimateCeiling() <= 0 {
		return pkgerrors.New("timeEstimateCeilingHours must be positive")
	}
	if i := f.Influx(); i.URL != "" && i.Bucket == "" {
		return pkgerrors.New("influx.bucket is required when influx.url is set")
	}

	return nil
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.filepath == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}
	if f.filepath == "" {
		return pkgerrors.New("config file path is not set")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

// Effective returns every setting with defaults filled in.
func (f *File) Effective() *RawFileConfig {
	m, i := f.MQTT(), f.Influx()
	return &RawFileConfig{
		SourceURL:                ptr.To(f.SourceURL()),
		RefreshIntervalMs:        ptr.To(int(f.RefreshInterval() / time.Millisecond)),
		ClockIntervalMs:          ptr.To(int(f.ClockInterval() / time.Millisecond)),
		FetchTimeoutMs:           ptr.To(int(f.FetchTimeout() / time.Millisecond)),
		OverlapPolicy:            ptr.To(f.OverlapPolicy()),
		MaxPVWatts:               ptr.To(f.MaxPVWatts()),
		MaxPhaseWatts:            ptr.To(f.MaxPhaseWatts()),
		TimeEstimateCeilingHours: ptr.To(int(f.TimeEstimateCeiling() / time.Hour)),
		Listen:                   ptr.To(f.Listen()),
		Terminal:                 ptr.To(f.Terminal()),
		PlaceholderSavings:       ptr.To(f.PlaceholderSavings()),
		MQTT:                     &m,
		Influx:                   &i,
	}
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"sourceURL":       f.SourceURL(),
		"refreshInterval": f.RefreshInterval(),
		"clockInterval":   f.ClockInterval(),
		"fetchTimeout":    f.FetchTimeout(),
		"overlapPolicy":   f.OverlapPolicy(),
		"maxPVWatts":      f.MaxPVWatts(),
		"maxPhaseWatts":   f.MaxPhaseWatts(),
		"listen":          f.Listen(),
		"mqttBroker":      f.MQTT().Broker,
		"influxURL":       f.Influx().URL,
	}
}
