package metrics

import (
	"math"
	"strconv"
	"strings"
)

// FormatPower formats watts with the unit scaling used on the device screen:
// W below 10 kW, kW with one decimal up to 1 MW, then MW.
func FormatPower(watts float64) string {
	abs := math.Abs(watts)
	switch {
	case abs >= 10e6:
		return formatFixed(watts/1e6, 0) + " MW"
	case abs >= 1e6:
		return formatFixed(watts/1e6, 1) + " MW"
	case abs >= 10e3:
		return formatFixed(watts/1e3, 1) + " kW"
	default:
		return formatFixed(watts, 0) + " W"
	}
}

// FormatEnergy formats watt-hours: Wh below 1 kWh, kWh with one decimal below
// 10 kWh, whole kWh below 1 MWh, then MWh.
func FormatEnergy(wh float64) string {
	abs := math.Abs(wh)
	switch {
	case abs >= 10e6:
		return formatFixed(wh/1e6, 0) + " MWh"
	case abs >= 1e6:
		return formatFixed(wh/1e6, 1) + " MWh"
	case abs >= 10e3:
		return formatFixed(wh/1e3, 0) + " kWh"
	case abs >= 1e3:
		return formatFixed(wh/1e3, 1) + " kWh"
	default:
		return formatFixed(wh, 0) + " Wh"
	}
}

// FormatKWh formats a daily/total counter that is already in kWh.
func FormatKWh(kwh float64, decimals int) string {
	return formatFixed(kwh, decimals) + " kWh"
}

func formatFixed(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	// "-0" and "-0.0" read oddly on a dashboard.
	if strings.Trim(s, "-0.") == "" {
		return strings.TrimPrefix(s, "-")
	}
	return s
}
