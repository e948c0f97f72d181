package simulator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/snapshot"
	"github.com/solarstation/livedash/pkg/source"
)

func at(hour int) *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2024, 6, 21, hour, 0, 0, 0, time.UTC))
}

func TestSampleFollowsTheSun(t *testing.T) {
	tests := []struct {
		name   string
		hour   int
		wantPV bool
	}{
		{name: "midnight", hour: 0, wantPV: false},
		{name: "early morning", hour: 5, wantPV: false},
		{name: "noon", hour: 12, wantPV: true},
		{name: "afternoon", hour: 15, wantPV: true},
		{name: "evening", hour: 19, wantPV: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{Seed: 1, Clock: at(tt.hour)})
			m := metrics.Derive(s.Sample(), metrics.DefaultLimits())
			if got := m.TotalPVPower > 0; got != tt.wantPV {
				t.Errorf("TotalPVPower = %v, want pv=%v", m.TotalPVPower, tt.wantPV)
			}
			if m.SerialNumber != DefaultSerial {
				t.Errorf("SerialNumber = %q", m.SerialNumber)
			}
		})
	}
}

func TestBatteryDrainsAtNight(t *testing.T) {
	clock := at(1)
	s := New(Options{Seed: 7, Clock: clock, InitialSOC: 80})

	first := s.Sample()
	if snapshot.Or0(first.BatteryPower) <= 0 {
		t.Fatalf("battery should discharge at night, got %v", snapshot.Or0(first.BatteryPower))
	}

	clock.Advance(time.Hour)
	second := s.Sample()
	if snapshot.Or0(second.SOC) >= snapshot.Or0(first.SOC) {
		t.Errorf("SOC did not drop: %v -> %v", snapshot.Or0(first.SOC), snapshot.Or0(second.SOC))
	}
	if snapshot.Or0(second.BatteryDischargedToday) <= 0 {
		t.Errorf("discharged counter did not grow")
	}
	if snapshot.Or0(second.GridBuyToday) != 0 {
		t.Errorf("battery covers the load, grid buy = %v", snapshot.Or0(second.GridBuyToday))
	}
}

func TestDailyCountersReset(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 21, 23, 0, 0, 0, time.UTC))
	s := New(Options{Seed: 3, Clock: clock})
	s.Sample()
	clock.Advance(30 * time.Minute)
	if snapshot.Or0(s.Sample().LoadToday) == 0 {
		t.Fatal("load counter should have grown")
	}
	clock.Advance(30 * time.Minute)
	if got := snapshot.Or0(s.Sample().LoadToday); got != 0 {
		t.Errorf("LoadToday after midnight = %v, want 0", got)
	}
}

func TestHandlerWarmupAndHeaders(t *testing.T) {
	ts := httptest.NewServer(New(Options{Seed: 1, Warmup: 1, Clock: at(12)}).Handler())
	defer ts.Close()

	src, err := source.NewHTTP(ts.URL)
	if err != nil {
		t.Fatal(err)
	}

	_, err = src.Fetch(context.Background())
	if !errors.Is(err, source.ErrDecode) {
		t.Fatalf("first fetch error = %v, want decode error", err)
	}

	s, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if snapshot.Or0(s.PV1Power) <= 0 {
		t.Errorf("expected PV at noon, got %+v", s)
	}

	resp, err := http.Get(ts.URL + "/api/data")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestHandlerFailureInjection(t *testing.T) {
	ts := httptest.NewServer(New(Options{ErrorRate: 1, ErrorStatus: http.StatusServiceUnavailable, Clock: at(12)}).Handler())
	defer ts.Close()

	src, err := source.NewHTTP(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	_, err = src.Fetch(context.Background())
	if got := source.Describe(err); got != "HTTP 503" {
		t.Fatalf("Describe = %q, want HTTP 503", got)
	}
}
