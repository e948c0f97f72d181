package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Estimate is a battery time estimate. The zero value is "unknown".
type Estimate struct {
	Hours float64
	Known bool
}

// Unknown is the estimate shown as blank.
var Unknown = Estimate{}

// newEstimate accepts hours only when finite, non-negative and not above the ceiling.
func newEstimate(hours float64, ceiling time.Duration) Estimate {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 || hours > ceiling.Hours() {
		return Unknown
	}
	return Estimate{Hours: hours, Known: true}
}

// Duration returns the estimate as a time.Duration, 0 when unknown.
func (e Estimate) Duration() time.Duration {
	if !e.Known {
		return 0
	}
	return time.Duration(e.Hours * float64(time.Hour))
}

// Components splits the estimate into whole days, hours and minutes.
// Each component is floored.
func (e Estimate) Components() (days, hours, minutes int) {
	if !e.Known {
		return 0, 0, 0
	}
	whole := math.Floor(e.Hours)
	days = int(math.Floor(e.Hours / 24))
	hours = int(math.Floor(math.Mod(e.Hours, 24)))
	minutes = int(math.Floor((e.Hours - whole) * 60))
	return days, hours, minutes
}

// String formats the estimate as "1d 2h 3m", "2h 3m" or "3m". Unknown
// estimates format as the empty string.
func (e Estimate) String() string {
	if !e.Known {
		return ""
	}
	d, h, m := e.Components()
	if d > 0 {
		return fmt.Sprintf("%dd %dh %dm", d, h, m)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

type estimateJSON struct {
	Known     bool    `json:"known"`
	Hours     float64 `json:"hours,omitempty"`
	Formatted string  `json:"formatted"`
}

func (e Estimate) MarshalJSON() ([]byte, error) {
	return json.Marshal(estimateJSON{Known: e.Known, Hours: e.Hours, Formatted: e.String()})
}

func (e *Estimate) UnmarshalJSON(b []byte) error {
	var v estimateJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	e.Known = v.Known
	e.Hours = v.Hours
	return nil
}
