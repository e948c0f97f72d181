package sink

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/snapshot"
	"github.com/solarstation/livedash/pkg/status"
	"github.com/solarstation/livedash/pkg/utils/ptr"
)

func TestInfluxWritesPoints(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
		query string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			http.NotFound(w, r)
			return
		}
		var body io.Reader = r.Body
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			body = gz
		}
		b, _ := io.ReadAll(body)
		mu.Lock()
		query = r.URL.RawQuery
		lines = append(lines, strings.Split(strings.TrimSpace(string(b)), "\n")...)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, err := NewInflux(InfluxOptions{
		URL:    srv.URL,
		Token:  "t0ken",
		Org:    "home",
		Bucket: "solar",
		Tags:   map[string]string{"site": "roof"},
	})
	if err != nil {
		t.Fatal(err)
	}

	m := metrics.Derive(&snapshot.Snapshot{
		PV1Power:     ptr.To(3000.0),
		SerialNumber: ptr.To("ABC123"),
	}, metrics.DefaultLimits())
	s.SetStatus(status.Loading, "Updating...")
	s.Render(m)
	s.SetStatus(status.OK, "Connected")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(query, "bucket=solar") || !strings.Contains(query, "org=home") {
		t.Errorf("unexpected query %q", query)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "livedash,") ||
		!strings.Contains(lines[0], "site=roof") ||
		!strings.Contains(lines[0], "sn=ABC123") ||
		!strings.Contains(lines[0], "pv_power=3000") {
		t.Errorf("unexpected metrics line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "livedash_status,") || !strings.Contains(lines[1], `state="ok"`) {
		t.Errorf("unexpected status line %q", lines[1])
	}
}

func TestNewInfluxValidates(t *testing.T) {
	if _, err := NewInflux(InfluxOptions{Bucket: "b"}); err == nil {
		t.Error("expected error without url")
	}
	if _, err := NewInflux(InfluxOptions{URL: "http://localhost:8086"}); err == nil {
		t.Error("expected error without bucket")
	}
}

func TestPointFields(t *testing.T) {
	f := pointFields(metrics.Metrics{PVStrings: [4]float64{1, 2, 3, 4}})
	for _, k := range []string{"pv1_power", "pv2_power", "pv3_power", "pv4_power"} {
		if _, ok := f[k]; !ok {
			t.Errorf("missing field %s", k)
		}
	}
	if _, ok := f["battery_time_remaining_h"]; ok {
		t.Error("unknown estimate should not be written")
	}
}
