package client

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/server"
	"github.com/solarstation/livedash/pkg/snapshot"
	"github.com/solarstation/livedash/pkg/status"
	"github.com/solarstation/livedash/pkg/utils/ptr"
	"github.com/solarstation/livedash/pkg/version"
)

func TestNewClientBaseURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"http://dash.local/", "http://dash.local"},
		{"https://dash.local:8443", "https://dash.local:8443"},
	}
	for _, tt := range tests {
		if got := NewClient(tt.addr).baseURL; got != tt.want {
			t.Errorf("NewClient(%q).baseURL = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestClientAgainstServer(t *testing.T) {
	tracker := status.NewTracker(nil)
	ts := httptest.NewServer(server.New(server.Options{Tracker: tracker}).Handler())
	defer ts.Close()
	c := NewClient(ts.URL)
	ctx := context.Background()

	if _, err := c.GetMetrics(ctx); !errors.Is(err, ErrNoData) {
		t.Fatalf("GetMetrics before first cycle: err = %v, want ErrNoData", err)
	}

	_ = tracker.Begin()
	_ = tracker.Succeed(metrics.Derive(&snapshot.Snapshot{SOC: ptr.To(77.0)}, metrics.DefaultLimits()))

	m, err := c.GetMetrics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m.Metrics.SOC != 77 {
		t.Errorf("SOC = %v, want 77", m.Metrics.SOC)
	}

	st, err := c.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != status.OK || st.Message != status.MessageOK {
		t.Errorf("unexpected status %+v", st.Status)
	}

	v, commit, err := c.GetVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != version.Version || commit != version.GitCommit {
		t.Errorf("version = %s %s", v, commit)
	}

	var out map[string]any
	if err := c.Get(ctx, "/api/nope", &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown path: err = %v, want ErrNotFound", err)
	}
}

func TestClientNotRunning(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	if _, err := NewClient(addr).GetStatus(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
}
