package config

import "time"

type Config interface {
	SourceURL() string
	RefreshInterval() time.Duration
	ClockInterval() time.Duration
	FetchTimeout() time.Duration
	OverlapPolicy() string

	MaxPVWatts() float64
	MaxPhaseWatts() float64
	TimeEstimateCeiling() time.Duration

	Listen() string
	Terminal() bool
	PlaceholderSavings() bool

	MQTT() MQTTConfig
	Influx() InfluxConfig

	SetSourceURL(string)
	SetListen(string)
	SetRefreshInterval(time.Duration)
	SetOverlapPolicy(string)

	// Validate checks the effective values.
	Validate() error
	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}

// MQTTConfig is the MQTT sink section. An empty Broker disables the sink.
type MQTTConfig struct {
	Broker      string `json:"broker,omitempty"`
	ClientID    string `json:"clientID,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	TopicPrefix string `json:"topicPrefix,omitempty"`
	Retain      *bool  `json:"retain,omitempty"`
}

// InfluxConfig is the InfluxDB sink section. An empty URL disables the sink.
type InfluxConfig struct {
	URL         string `json:"url,omitempty"`
	Token       string `json:"token,omitempty"`
	Org         string `json:"org,omitempty"`
	Bucket      string `json:"bucket,omitempty"`
	Measurement string `json:"measurement,omitempty"`
}
