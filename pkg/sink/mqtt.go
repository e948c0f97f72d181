package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/status"
)

// MQTTOptions configures the MQTT sink.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retain      bool
	// ConnectTimeout bounds each connection attempt.
	ConnectTimeout time.Duration
	// MaxRetries is the number of extra connection attempts. 0 means one attempt.
	MaxRetries uint64
}

// MQTT publishes metrics and status as retained JSON messages, for home
// automation systems that subscribe to <prefix>/metrics and <prefix>/status.
type MQTT struct {
	client mqtt.Client
	opts   MQTTOptions
}

// NewMQTT connects to the broker, retrying with exponential backoff until
// ctx is done or the retries are used up.
func NewMQTT(ctx context.Context, opts MQTTOptions) (*MQTT, error) {
	if opts.Broker == "" {
		return nil, pkgerrors.New("mqtt broker is not set")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.ConnectTimeout).
		SetWill(statusTopic(opts.TopicPrefix), `{"state":"offline"}`, opts.QoS, true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logrus.WithError(err).WithField("broker", opts.Broker).Warn("lost connection to mqtt broker")
		})
	client := mqtt.NewClient(co)

	connect := func() error {
		token := client.Connect()
		if !token.WaitTimeout(opts.ConnectTimeout) {
			return pkgerrors.Errorf("timed out connecting to %s", opts.Broker)
		}
		return token.Error()
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), opts.MaxRetries), ctx)
	notify := func(err error, next time.Duration) {
		logrus.WithFields(logrus.Fields{
			"broker": opts.Broker,
			"retry":  next,
		}).WithError(err).Warn("failed to connect to mqtt broker")
	}
	if err := backoff.RetryNotify(connect, bo, notify); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to connect to mqtt broker %s", opts.Broker)
	}

	logrus.WithFields(logrus.Fields{
		"broker":   opts.Broker,
		"clientID": opts.ClientID,
		"prefix":   opts.TopicPrefix,
	}).Info("connected to mqtt broker")

	return newMQTT(client, opts), nil
}

func newMQTT(client mqtt.Client, opts MQTTOptions) *MQTT {
	return &MQTT{client: client, opts: opts}
}

func metricsTopic(prefix string) string { return prefix + "/metrics" }
func statusTopic(prefix string) string  { return prefix + "/status" }

func (m *MQTT) Render(mt metrics.Metrics) {
	m.publish(metricsTopic(m.opts.TopicPrefix), mt)
}

func (m *MQTT) SetStatus(state status.State, message string) {
	m.publish(statusTopic(m.opts.TopicPrefix), struct {
		State   status.State `json:"state"`
		Message string       `json:"message"`
	}{state, message})
}

// TickClock is a no-op; subscribers keep their own time.
func (m *MQTT) TickClock(time.Time) {}

func (m *MQTT) publish(topic string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logrus.WithError(err).WithField("topic", topic).Error("failed to marshal mqtt payload")
		return
	}
	if !m.client.IsConnected() {
		logrus.WithField("topic", topic).Debug("mqtt not connected, dropping message")
		return
	}
	token := m.client.Publish(topic, m.opts.QoS, m.opts.Retain, b)
	go func() {
		if !token.WaitTimeout(m.opts.ConnectTimeout) {
			logrus.WithField("topic", topic).Warn("timed out publishing to mqtt")
			return
		}
		if err := token.Error(); err != nil {
			logrus.WithError(err).WithField("topic", topic).Warn("failed to publish to mqtt")
		}
	}()
}

// Close publishes an offline status and disconnects.
func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		token := m.client.Publish(statusTopic(m.opts.TopicPrefix), m.opts.QoS, true, []byte(`{"state":"offline"}`))
		token.WaitTimeout(time.Second)
	}
	m.client.Disconnect(250)
	return nil
}
