package sink

import (
	"time"

	"github.com/solarstation/livedash/pkg/events"
	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/status"
)

// Hub publishes to an event hub, from which the HTTP server streams to
// browsers.
type Hub struct {
	hub *events.EventHub
	now func() time.Time
}

func NewHub(hub *events.EventHub) *Hub {
	return &Hub{hub: hub, now: time.Now}
}

func (h *Hub) Render(m metrics.Metrics) {
	h.hub.Publish(events.Metrics, events.MetricsEvent{Metrics: m, Ts: h.now().Unix()})
}

func (h *Hub) SetStatus(state status.State, message string) {
	h.hub.Publish(events.Status, events.StatusEvent{State: string(state), Message: message, Ts: h.now().Unix()})
}

func (h *Hub) TickClock(now time.Time) {
	h.hub.Publish(events.Clock, events.NewClockEvent(now))
}
