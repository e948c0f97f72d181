package events

import (
	"encoding/json"
	"time"

	"github.com/solarstation/livedash/pkg/metrics"
)

// Event name constants
const (
	Metrics = "metrics"
	Status  = "status"
	Clock   = "clock"
)

// Event is a generic event pushed to dashboard clients.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// MetricsEvent is the typed payload for metrics.
type MetricsEvent struct {
	Metrics metrics.Metrics `json:"metrics"`
	Ts      int64           `json:"ts"`
}

// StatusEvent is the typed payload for status.
type StatusEvent struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
	Ts      int64  `json:"ts"`
}

// ClockEvent is the typed payload for clock. Time is formatted HH:MM.
type ClockEvent struct {
	Time string `json:"time"`
	Ts   int64  `json:"ts"`
}

// NewClockEvent formats now the way the dashboard header shows it.
func NewClockEvent(now time.Time) ClockEvent {
	return ClockEvent{Time: now.Format("15:04"), Ts: now.Unix()}
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// If Data is empty, it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.StatusEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.State, payload.Message)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
