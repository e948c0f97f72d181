// Package snapshot defines the raw measurement record published by an inverter
// dongle. Every field is optional: a nil pointer means the dongle did not
// report the value. Absent values are data, not errors; they only turn into
// zeros through Or0 / ValueOr, so tests can tell "absent" and "zero" apart.
package snapshot

import (
	"bytes"
	"encoding/json"

	pkgerrors "github.com/pkg/errors"
)

// Snapshot is one point-in-time set of raw electrical measurements.
// It is never modified after Decode returns it.
type Snapshot struct {
	// Photovoltaic, W and kWh.
	PV1Power *float64 `json:"pv1Power,omitempty"`
	PV2Power *float64 `json:"pv2Power,omitempty"`
	PV3Power *float64 `json:"pv3Power,omitempty"`
	PV4Power *float64 `json:"pv4Power,omitempty"`
	PVToday  *float64 `json:"pvToday,omitempty"`
	PVTotal  *float64 `json:"pvTotal,omitempty"`

	// Battery. BatteryPower is positive when discharging, negative when charging.
	SOC                    *float64 `json:"soc,omitempty"`
	BatteryPower           *float64 `json:"batteryPower,omitempty"`
	BatteryCapacityWh      *float64 `json:"batteryCapacityWh,omitempty"`
	BatteryTemperature     *float64 `json:"batteryTemperature,omitempty"`
	BatteryChargedToday    *float64 `json:"batteryChargedToday,omitempty"`
	BatteryDischargedToday *float64 `json:"batteryDischargedToday,omitempty"`
	HasBattery             *bool    `json:"hasBattery,omitempty"`

	// Inverter output per phase.
	L1Power             *float64 `json:"L1Power,omitempty"`
	L2Power             *float64 `json:"L2Power,omitempty"`
	L3Power             *float64 `json:"L3Power,omitempty"`
	SerialNumber        *string  `json:"sn,omitempty"`
	InverterTemperature *float64 `json:"inverterTemperature,omitempty"`
	InverterMode        *int     `json:"inverterMode,omitempty"`

	// Grid. Positive is import, negative is export.
	GridPowerL1   *float64 `json:"gridPowerL1,omitempty"`
	GridPowerL2   *float64 `json:"gridPowerL2,omitempty"`
	GridPowerL3   *float64 `json:"gridPowerL3,omitempty"`
	GridBuyToday  *float64 `json:"gridBuyToday,omitempty"`
	GridSellToday *float64 `json:"gridSellToday,omitempty"`

	// Load.
	LoadPower *float64 `json:"loadPower,omitempty"`
	LoadToday *float64 `json:"loadToday,omitempty"`

	// Dongle status code as reported by the firmware (1 = OK, <0 = error).
	Status *int `json:"status,omitempty"`

	// Spot market price for the current quarter hour, when the device has one.
	SpotCurrency      *string  `json:"spotCurrency,omitempty"`
	SpotEnergyUnit    *string  `json:"spotEnergyUnit,omitempty"`
	CurrentPrice      *float64 `json:"currentPrice,omitempty"`
	CurrentPriceLevel *int     `json:"currentPriceLevel,omitempty"`
	CurrentQuarter    *int     `json:"currentQuarter,omitempty"`
}

// errorPayload is what the device answers before it has any data.
type errorPayload struct {
	Error string `json:"error"`
}

// Decode parses a snapshot payload. An empty body, a JSON value that is not an
// object, a field with the wrong type, and the device's {"error": "..."} reply
// are all rejected.
func Decode(b []byte) (*Snapshot, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil, pkgerrors.New("empty payload")
	}
	if trimmed[0] != '{' {
		return nil, pkgerrors.Errorf("payload is not a JSON object")
	}

	var ep errorPayload
	if err := json.Unmarshal(trimmed, &ep); err == nil && ep.Error != "" {
		return nil, pkgerrors.Errorf("device reported error: %s", ep.Error)
	}

	var s Snapshot
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal snapshot")
	}

	return &s, nil
}

// Or0 returns *p, or 0 when the field is absent.
func Or0(p *float64) float64 {
	return ValueOr(p, 0)
}

// ValueOr returns *p, or def when the field is absent.
func ValueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// SumOr0 sums fields, counting absent ones as 0.
func SumOr0(fields ...*float64) float64 {
	var sum float64
	for _, f := range fields {
		sum += Or0(f)
	}
	return sum
}
