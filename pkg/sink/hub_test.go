package sink

import (
	"testing"
	"time"

	"github.com/solarstation/livedash/pkg/events"
	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/status"
)

func TestHubSink(t *testing.T) {
	hub := events.NewEventHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	s := NewHub(hub)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	s.SetStatus(status.OK, "Connected")
	s.Render(metrics.Metrics{LoadPower: 640})
	s.TickClock(time.Date(2026, 1, 1, 6, 7, 0, 0, time.UTC))

	var got []events.Event
	for len(got) < 3 {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %d events", len(got))
		}
	}

	st, err := events.DecodeAs[events.StatusEvent](got[0])
	if err != nil || got[0].Name != events.Status || st.State != "ok" || st.Ts != 1700000000 {
		t.Errorf("unexpected status event %s %+v (%v)", got[0].Name, st, err)
	}
	m, err := events.DecodeAs[events.MetricsEvent](got[1])
	if err != nil || got[1].Name != events.Metrics || m.Metrics.LoadPower != 640 {
		t.Errorf("unexpected metrics event %s %+v (%v)", got[1].Name, m, err)
	}
	c, err := events.DecodeAs[events.ClockEvent](got[2])
	if err != nil || got[2].Name != events.Clock || c.Time != "06:07" {
		t.Errorf("unexpected clock event %s %+v (%v)", got[2].Name, c, err)
	}
}
