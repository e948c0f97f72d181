package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solarstation/livedash/pkg/dashboard"
	"github.com/solarstation/livedash/pkg/events"
	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/snapshot"
	"github.com/solarstation/livedash/pkg/status"
	"github.com/solarstation/livedash/pkg/utils/ptr"
)

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMetricsEndpoint(t *testing.T) {
	tracker := status.NewTracker(nil)
	s := New(Options{Tracker: tracker})

	w := get(t, s.Handler(), "/api/metrics", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"No data"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}

	m := metrics.Derive(&snapshot.Snapshot{PV1Power: ptr.To(3000.0), SerialNumber: ptr.To("ABC123")}, metrics.DefaultLimits())
	if err := tracker.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Succeed(m); err != nil {
		t.Fatal(err)
	}

	w = get(t, s.Handler(), "/api/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp MetricsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Metrics.TotalPVPower != 3000 || resp.Metrics.SerialNumber != "ABC123" {
		t.Errorf("unexpected metrics %+v", resp.Metrics)
	}
	if resp.Status.State != status.OK {
		t.Errorf("state = %v, want ok", resp.Status.State)
	}
}

func TestStatusEndpoint(t *testing.T) {
	tracker := status.NewTracker(nil)
	_ = tracker.Begin()
	_ = tracker.Fail("HTTP 500")

	s := New(Options{
		Tracker: tracker,
		Stats:   func() dashboard.Stats { return dashboard.Stats{Cycles: 3, Succeeded: 2, Failed: 1} },
	})

	w := get(t, s.Handler(), "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != status.Error || resp.Message != "Connection error: HTTP 500" {
		t.Errorf("unexpected status %+v", resp.Status)
	}
	if resp.Failures != 1 {
		t.Errorf("failures = %d, want 1", resp.Failures)
	}
	if resp.Stats == nil || resp.Stats.Cycles != 3 || resp.Stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", resp.Stats)
	}
}

func TestStatusEndpointWithoutTracker(t *testing.T) {
	w := get(t, New(Options{}).Handler(), "/api/status", nil)
	if !strings.Contains(w.Body.String(), status.MessageIdle) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestHealthAndVersion(t *testing.T) {
	h := New(Options{}).Handler()
	for _, path := range []string{"/healthz", "/api/version"} {
		if w := get(t, h, path, nil); w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}
	if w := get(t, h, "/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown route: status = %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	h := New(Options{}).Handler()

	w := get(t, h, "/healthz", http.Header{"X-Request-Id": {"abc-123"}})
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want the client's id", got)
	}

	w = get(t, h, "/healthz", nil)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("X-Request-ID = %q, want a generated uuid", got)
	}
}

func TestCORS(t *testing.T) {
	h := New(Options{}).Handler()

	w := get(t, h, "/healthz", http.Header{"Origin": {"http://dashboard.local"}})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}

	restricted := New(Options{AllowedOrigins: []string{"http://ok.local"}}).Handler()
	w = get(t, restricted, "/healthz", http.Header{"Origin": {"http://evil.local"}})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want none", got)
	}
}

func TestServerSentEvents(t *testing.T) {
	hub := events.NewEventHub()
	hub.Publish(events.Status, events.StatusEvent{State: "ok", Message: "Connected", Ts: 1})

	ts := httptest.NewServer(New(Options{Hub: hub}).Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if strings.HasPrefix(sc.Text(), "data:") {
			break
		}
	}
	if len(lines) < 2 || lines[0] != "event:status" {
		t.Fatalf("unexpected stream %q", lines)
	}
	data := strings.TrimPrefix(lines[len(lines)-1], "data:")
	var ev events.StatusEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.State != "ok" || ev.Message != "Connected" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestWebSocket(t *testing.T) {
	hub := events.NewEventHub()
	ts := httptest.NewServer(New(Options{Hub: hub}).Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Publish(events.Clock, events.ClockEvent{Time: "12:34", Ts: 5})

	_ = conn.SetReadDeadline(deadline)
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Event != events.Clock {
		t.Fatalf("event = %q, want clock", msg.Event)
	}
	var ev events.ClockEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Time != "12:34" {
		t.Errorf("time = %q", ev.Time)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Options{}).Serve(ctx, l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func dialWebSocket(t *testing.T, addr string, hub *events.EventHub) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestShutdownClosesWebSockets(t *testing.T) {
	tests := []struct {
		name  string
		start func(t *testing.T, srv *Server) (string, func())
	}{
		{
			name: "close with foreign http server",
			start: func(t *testing.T, srv *Server) (string, func()) {
				ts := httptest.NewServer(srv.Handler())
				t.Cleanup(ts.Close)
				return strings.TrimPrefix(ts.URL, "http://"), srv.Close
			},
		},
		{
			name: "serve context cancelled",
			start: func(t *testing.T, srv *Server) (string, func()) {
				l, err := net.Listen("tcp", "127.0.0.1:0")
				if err != nil {
					t.Fatal(err)
				}
				ctx, cancel := context.WithCancel(context.Background())
				done := make(chan error, 1)
				go func() { done <- srv.Serve(ctx, l) }()
				t.Cleanup(func() {
					cancel()
					<-done
				})
				return l.Addr().String(), cancel
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := events.NewEventHub()
			srv := New(Options{Hub: hub})
			addr, shutdown := tt.start(t, srv)

			conn := dialWebSocket(t, addr, hub)
			defer conn.Close()

			shutdown()

			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, _, err := conn.ReadMessage()
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Fatalf("ReadMessage = %v, want a going-away close", err)
			}

			deadline := time.Now().Add(5 * time.Second)
			for hub.Subscribers() != 0 {
				if time.Now().After(deadline) {
					t.Fatal("websocket handler did not unsubscribe")
				}
				time.Sleep(5 * time.Millisecond)
			}
		})
	}
}
