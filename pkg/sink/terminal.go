package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/status"
)

// Terminal prints the dashboard as coloured text. A frame rendered while a
// cycle is loading is held until the status settles, so every printed frame
// carries the final status of its cycle. Settled status changes redraw the
// last frame, or print a single status line before the first frame.
type Terminal struct {
	mu       sync.Mutex
	w        io.Writer
	clock    string
	state    status.State
	message  string
	last     metrics.Metrics
	hasFrame bool

	// Verbose also prints a line when a cycle starts loading.
	Verbose bool
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, clock: "--:--", state: status.Idle}
}

func (t *Terminal) TickClock(now time.Time) {
	t.mu.Lock()
	t.clock = now.Format("15:04")
	t.mu.Unlock()
}

func (t *Terminal) SetStatus(state status.State, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	t.message = message

	switch state {
	case status.OK, status.Error:
		if t.hasFrame {
			fmt.Fprint(t.w, Format(t.last, t.clock, t.state, t.message))
			return
		}
		t.printStatusLine()
	default:
		if t.Verbose {
			t.printStatusLine()
		}
	}
}

func (t *Terminal) Render(m metrics.Metrics) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = m
	t.hasFrame = true
	if t.state == status.Loading {
		return
	}
	fmt.Fprint(t.w, Format(m, t.clock, t.state, t.message))
}

func (t *Terminal) printStatusLine() {
	fmt.Fprintf(t.w, "[%s] %s\n", t.clock, statusText(t.state, t.message))
}

// Format renders one dashboard frame.
func Format(m metrics.Metrics, clock string, state status.State, message string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s  %s\n", bold("Solar"), clock, statusText(state, message))

	fmt.Fprintf(&b, "  %-9s%s  %s  today %s\n",
		"PV", bold("%s", metrics.FormatPower(m.TotalPVPower)),
		percentText(m.PVUtilizationPercent),
		metrics.FormatKWh(m.PVToday, 1))
	for i, p := range m.PVStrings {
		if p != 0 {
			fmt.Fprintf(&b, "    PV%d    %s\n", i+1, metrics.FormatPower(p))
		}
	}

	if m.HasBattery {
		line := fmt.Sprintf("  %-9s%s  %s %s", "Battery",
			bold("%.0f%%", m.SOC), directionText(m.BatteryDirection),
			metrics.FormatPower(m.BatteryAbsPower))
		if m.BatteryTimeRemaining.Known {
			line += "  " + m.BatteryTimeRemaining.String()
			if m.BatteryDirection == metrics.BatteryCharging {
				line += " to full"
			} else {
				line += " left"
			}
		}
		if m.BatteryTemperature.Valid {
			line += fmt.Sprintf("  %.1f°C", m.BatteryTemperature.Value)
		}
		fmt.Fprintln(&b, line)
	}

	line := fmt.Sprintf("  %-9s%s  %s", "Inverter", bold("%s", m.Mode.DisplayName()), metrics.FormatPower(m.TotalInverterPower))
	for i, p := range m.InverterPhases {
		line += fmt.Sprintf("  L%d %s %s", i+1, metrics.FormatPower(p.Power), percentText(p.UtilizationPercent))
	}
	fmt.Fprintln(&b, line)

	fmt.Fprintf(&b, "  %-9s%s %s  buy %s  sell %s\n", "Grid",
		flowText(m.GridFlow), bold("%s", metrics.FormatPower(m.GridAbsPower)),
		metrics.FormatKWh(m.GridBuyToday, 1), metrics.FormatKWh(m.GridSellToday, 1))

	fmt.Fprintf(&b, "  %-9s%s  today %s  self-use %s\n", "Load",
		bold("%s", metrics.FormatPower(m.LoadPower)),
		metrics.FormatKWh(m.LoadToday, 1), percentText(m.SelfUsePercent))

	if m.SpotPrice.Valid {
		fmt.Fprintf(&b, "  %-9s%.2f %s / %s\n", "Spot", m.SpotPrice.Price, m.SpotPrice.Currency, m.SpotPrice.EnergyUnit)
	}
	if m.Savings.Valid {
		fmt.Fprintf(&b, "  %-9s%+.0f %s\n", "Savings", m.Savings.Amount, m.Savings.Currency)
	}
	fmt.Fprintf(&b, "  %-9s%s\n", "SN", m.SerialNumber)

	return b.String()
}

func statusText(state status.State, message string) string {
	switch state {
	case status.OK:
		return color.New(color.Bold, color.FgGreen).Sprint("● " + message)
	case status.Loading:
		return color.New(color.FgYellow).Sprint("● " + message)
	case status.Error:
		return color.New(color.Bold, color.FgRed).Sprint("● " + message)
	default:
		return "○ " + message
	}
}

func directionText(d metrics.BatteryDirection) string {
	switch d {
	case metrics.BatteryCharging:
		return color.GreenString("charging")
	case metrics.BatteryDischarging:
		return color.RedString("discharging")
	default:
		return "idle"
	}
}

func flowText(f metrics.GridFlow) string {
	if f == metrics.GridExporting {
		return color.GreenString("exporting")
	}
	return color.YellowString("importing")
}

func percentText(p int) string {
	return fmt.Sprintf("%d%%", p)
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
