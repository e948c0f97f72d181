package metrics

import (
	"math"
	"time"

	"github.com/solarstation/livedash/pkg/snapshot"
)

// Derive computes the metrics for one snapshot. A nil snapshot derives the
// same as an empty one.
func Derive(s *snapshot.Snapshot, l Limits) Metrics {
	if s == nil {
		s = &snapshot.Snapshot{}
	}

	var m Metrics

	// PV
	m.PVStrings = [4]float64{
		snapshot.Or0(s.PV1Power),
		snapshot.Or0(s.PV2Power),
		snapshot.Or0(s.PV3Power),
		snapshot.Or0(s.PV4Power),
	}
	m.TotalPVPower = snapshot.SumOr0(s.PV1Power, s.PV2Power, s.PV3Power, s.PV4Power)
	m.PVUtilizationPercent = Percent(m.TotalPVPower / l.MaxPVWatts)
	m.PVToday = snapshot.Or0(s.PVToday)
	m.PVTotal = snapshot.Or0(s.PVTotal)

	// Battery
	m.HasBattery = snapshot.ValueOr(s.HasBattery, true)
	m.SOC = snapshot.Or0(s.SOC)
	m.BatteryPower = snapshot.Or0(s.BatteryPower)
	m.BatteryAbsPower = math.Abs(m.BatteryPower)
	m.BatteryDirection = batteryDirection(s)
	m.BatteryTimeRemaining = batteryTimeRemaining(s, l.TimeEstimateCeiling)
	m.BatteryTemperature = reading(s.BatteryTemperature)
	m.BatteryChargedToday = snapshot.Or0(s.BatteryChargedToday)
	m.BatteryDischargedToday = snapshot.Or0(s.BatteryDischargedToday)

	// Inverter
	m.InverterPhases = phases(l.MaxPhaseWatts, s.L1Power, s.L2Power, s.L3Power)
	m.TotalInverterPower = snapshot.SumOr0(s.L1Power, s.L2Power, s.L3Power)
	m.SerialNumber = snapshot.ValueOr(s.SerialNumber, "--")
	if m.SerialNumber == "" {
		m.SerialNumber = "--"
	}
	m.InverterTemperature = reading(s.InverterTemperature)
	if s.InverterMode != nil {
		m.Mode = ModeFromCode(*s.InverterMode)
	} else {
		m.Mode = ModeNormal
	}

	// Grid
	m.GridPhases = phases(l.MaxPhaseWatts, s.GridPowerL1, s.GridPowerL2, s.GridPowerL3)
	m.TotalGridPower = snapshot.SumOr0(s.GridPowerL1, s.GridPowerL2, s.GridPowerL3)
	m.GridAbsPower = math.Abs(m.TotalGridPower)
	m.GridFlow = GridImporting
	if m.TotalGridPower < 0 {
		m.GridFlow = GridExporting
	}
	m.GridBuyToday = snapshot.Or0(s.GridBuyToday)
	m.GridSellToday = snapshot.Or0(s.GridSellToday)

	// Load
	m.LoadPower = snapshot.Or0(s.LoadPower)
	m.LoadToday = snapshot.Or0(s.LoadToday)
	m.SelfUsePercent = selfUsePercent(m.LoadToday, m.GridBuyToday)

	m.SpotPrice = spotPrice(s)

	return m
}

// Percent rounds ratio×100 half away from zero, then clamps it to [0, 100].
// NaN yields 0.
func Percent(ratio float64) int {
	p := math.Round(ratio * 100)
	if math.IsNaN(p) {
		return 0
	}
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}

func phases(maxPhaseWatts float64, l1, l2, l3 *float64) [3]Phase {
	var out [3]Phase
	for i, p := range []*float64{l1, l2, l3} {
		power := snapshot.Or0(p)
		out[i] = Phase{
			Power:              power,
			UtilizationPercent: Percent(math.Abs(power) / maxPhaseWatts),
		}
	}
	return out
}

// capacityKnown follows the dongle's convention that a capacity of 0 means
// "not reported".
func capacityKnown(s *snapshot.Snapshot) bool {
	return s.BatteryCapacityWh != nil && *s.BatteryCapacityWh > 0
}

func batteryDirection(s *snapshot.Snapshot) BatteryDirection {
	power := snapshot.Or0(s.BatteryPower)
	switch {
	case !capacityKnown(s) || power == 0:
		return BatteryIdle
	case power > 0:
		return BatteryDischarging
	default:
		return BatteryCharging
	}
}

func batteryTimeRemaining(s *snapshot.Snapshot, ceiling time.Duration) Estimate {
	power := snapshot.Or0(s.BatteryPower)
	if !capacityKnown(s) || power == 0 {
		return Unknown
	}

	soc := snapshot.Or0(s.SOC)
	capacity := *s.BatteryCapacityWh

	var hours float64
	if power > 0 {
		remainingWh := soc / 100 * capacity
		hours = remainingWh / power
	} else {
		toFullWh := (100 - soc) / 100 * capacity
		hours = toFullWh / math.Abs(power)
	}

	return newEstimate(hours, ceiling)
}

func selfUsePercent(loadToday, gridBuyToday float64) int {
	if loadToday <= 0 {
		return 0
	}
	return Percent((loadToday - gridBuyToday) / loadToday)
}

func reading(p *float64) Reading {
	if p == nil {
		return Reading{}
	}
	return Reading{Value: *p, Valid: true}
}

func spotPrice(s *snapshot.Snapshot) SpotPrice {
	if s.CurrentPrice == nil {
		return SpotPrice{}
	}
	return SpotPrice{
		Price:      *s.CurrentPrice,
		Currency:   snapshot.ValueOr(s.SpotCurrency, ""),
		EnergyUnit: snapshot.ValueOr(s.SpotEnergyUnit, "kWh"),
		Level:      snapshot.ValueOr(s.CurrentPriceLevel, 0),
		Valid:      true,
	}
}
