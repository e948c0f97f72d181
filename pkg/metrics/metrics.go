// Package metrics turns a raw snapshot into display-ready metrics.
//
// Derive is a total, pure function: every representable snapshot (including nil
// and an empty one) produces a fully populated Metrics value. Absent fields are
// treated as zero when summed and as "unknown" where a value cannot be
// estimated, never as errors.
package metrics

import (
	"time"
)

// Limits are the assumed maxima used to scale utilisation percentages and to
// reject absurd battery time estimates.
type Limits struct {
	// MaxPVWatts is the PV power considered 100% utilisation.
	MaxPVWatts float64
	// MaxPhaseWatts is the per-phase power considered 100% utilisation.
	MaxPhaseWatts float64
	// TimeEstimateCeiling is the longest battery time estimate still shown.
	TimeEstimateCeiling time.Duration
}

const (
	DefaultMaxPVWatts          = 10000
	DefaultMaxPhaseWatts       = 5000
	DefaultTimeEstimateCeiling = 99 * time.Hour
)

// DefaultLimits returns the limits used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPVWatts:          DefaultMaxPVWatts,
		MaxPhaseWatts:       DefaultMaxPhaseWatts,
		TimeEstimateCeiling: DefaultTimeEstimateCeiling,
	}
}

// BatteryDirection is the direction of battery power flow.
type BatteryDirection string

const (
	BatteryIdle        BatteryDirection = "idle"
	BatteryCharging    BatteryDirection = "charging"
	BatteryDischarging BatteryDirection = "discharging"
)

// GridFlow is the direction of grid power flow.
type GridFlow string

const (
	GridImporting GridFlow = "importing"
	GridExporting GridFlow = "exporting"
)

// Phase is one electrical line (L1/L2/L3).
type Phase struct {
	Power              float64 `json:"power"`
	UtilizationPercent int     `json:"utilizationPercent"`
}

// Reading is a measured value the dongle may not report.
type Reading struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// SpotPrice is the electricity market price for the current quarter hour.
type SpotPrice struct {
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	EnergyUnit string  `json:"energyUnit"`
	Level      int     `json:"level"`
	Valid      bool    `json:"valid"`
}

// Savings is an amount saved by smart control, provided by an external source.
type Savings struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Valid    bool    `json:"valid"`
}

// Metrics is the complete output of one derivation pass.
type Metrics struct {
	// PV
	PVStrings            [4]float64 `json:"pvStrings"`
	TotalPVPower         float64    `json:"totalPvPower"`
	PVUtilizationPercent int        `json:"pvUtilizationPercent"`
	PVToday              float64    `json:"pvToday"`
	PVTotal              float64    `json:"pvTotal"`

	// Battery
	HasBattery             bool             `json:"hasBattery"`
	SOC                    float64          `json:"soc"`
	BatteryPower           float64          `json:"batteryPower"`
	BatteryAbsPower        float64          `json:"batteryAbsPower"`
	BatteryDirection       BatteryDirection `json:"batteryDirection"`
	BatteryTimeRemaining   Estimate         `json:"batteryTimeRemaining"`
	BatteryTemperature     Reading          `json:"batteryTemperature"`
	BatteryChargedToday    float64          `json:"batteryChargedToday"`
	BatteryDischargedToday float64          `json:"batteryDischargedToday"`

	// Inverter
	InverterPhases      [3]Phase  `json:"inverterPhases"`
	TotalInverterPower  float64   `json:"totalInverterPower"`
	SerialNumber        string    `json:"serialNumber"`
	InverterTemperature Reading   `json:"inverterTemperature"`
	Mode                ModeLabel `json:"mode"`

	// Grid
	GridPhases     [3]Phase `json:"gridPhases"`
	TotalGridPower float64  `json:"totalGridPower"`
	GridAbsPower   float64  `json:"gridAbsPower"`
	GridFlow       GridFlow `json:"gridFlow"`
	GridBuyToday   float64  `json:"gridBuyToday"`
	GridSellToday  float64  `json:"gridSellToday"`

	// Load
	LoadPower      float64 `json:"loadPower"`
	LoadToday      float64 `json:"loadToday"`
	SelfUsePercent int     `json:"selfUsePercent"`

	SpotPrice SpotPrice `json:"spotPrice"`
	// Savings is attached after derivation; Derive leaves it invalid.
	Savings Savings `json:"savings"`
}
