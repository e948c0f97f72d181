package sink

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/status"
)

// InfluxOptions configures the InfluxDB sink.
type InfluxOptions struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	// Tags are added to every point.
	Tags map[string]string
}

// Influx writes every rendered frame as a point through the non-blocking
// write API. Points are batched and flushed by the client.
type Influx struct {
	client influxdb2.Client
	write  api.WriteAPI
	opts   InfluxOptions
	done   chan struct{}
}

func NewInflux(opts InfluxOptions) (*Influx, error) {
	if opts.URL == "" {
		return nil, pkgerrors.New("influx url is not set")
	}
	if opts.Bucket == "" {
		return nil, pkgerrors.New("influx bucket is not set")
	}
	if opts.Measurement == "" {
		opts.Measurement = "livedash"
	}

	client := influxdb2.NewClientWithOptions(opts.URL, opts.Token,
		influxdb2.DefaultOptions().SetFlushInterval(5000).SetPrecision(time.Second))
	w := client.WriteAPI(opts.Org, opts.Bucket)

	i := &Influx{client: client, write: w, opts: opts, done: make(chan struct{})}
	// Errors must be requested before the first write.
	go i.logErrors(w.Errors())

	logrus.WithFields(logrus.Fields{
		"url":    opts.URL,
		"org":    opts.Org,
		"bucket": opts.Bucket,
	}).Info("writing metrics to influxdb")

	return i, nil
}

func (i *Influx) logErrors(errs <-chan error) {
	defer close(i.done)
	for err := range errs {
		logrus.WithError(err).WithField("bucket", i.opts.Bucket).Warn("failed to write to influxdb")
	}
}

func (i *Influx) tags(m *metrics.Metrics) map[string]string {
	tags := make(map[string]string, len(i.opts.Tags)+1)
	for k, v := range i.opts.Tags {
		tags[k] = v
	}
	if m != nil && m.SerialNumber != "--" {
		tags["sn"] = m.SerialNumber
	}
	return tags
}

func (i *Influx) Render(m metrics.Metrics) {
	i.write.WritePoint(influxdb2.NewPoint(i.opts.Measurement, i.tags(&m), pointFields(m), time.Now()))
}

func (i *Influx) SetStatus(state status.State, message string) {
	// Only settled states are worth a point.
	if state != status.OK && state != status.Error {
		return
	}
	i.write.WritePoint(influxdb2.NewPoint(i.opts.Measurement+"_status", i.tags(nil),
		map[string]interface{}{
			"state":   string(state),
			"message": message,
			"ok":      state == status.OK,
		}, time.Now()))
}

func (i *Influx) TickClock(time.Time) {}

// Close flushes pending points and closes the client.
func (i *Influx) Close() error {
	i.write.Flush()
	i.client.Close()
	<-i.done
	return nil
}

func pointFields(m metrics.Metrics) map[string]interface{} {
	f := map[string]interface{}{
		"pv_power":          m.TotalPVPower,
		"pv_utilization":    m.PVUtilizationPercent,
		"pv_today":          m.PVToday,
		"soc":               m.SOC,
		"battery_power":     m.BatteryPower,
		"battery_direction": string(m.BatteryDirection),
		"inverter_power":    m.TotalInverterPower,
		"mode":              string(m.Mode),
		"grid_power":        m.TotalGridPower,
		"grid_buy_today":    m.GridBuyToday,
		"grid_sell_today":   m.GridSellToday,
		"load_power":        m.LoadPower,
		"load_today":        m.LoadToday,
		"self_use":          m.SelfUsePercent,
	}
	for n, p := range m.PVStrings {
		f["pv"+string(rune('1'+n))+"_power"] = p
	}
	if m.BatteryTimeRemaining.Known {
		f["battery_time_remaining_h"] = m.BatteryTimeRemaining.Hours
	}
	if m.BatteryTemperature.Valid {
		f["battery_temperature"] = m.BatteryTemperature.Value
	}
	if m.InverterTemperature.Valid {
		f["inverter_temperature"] = m.InverterTemperature.Value
	}
	if m.SpotPrice.Valid {
		f["spot_price"] = m.SpotPrice.Price
	}
	return f
}
