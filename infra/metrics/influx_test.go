package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/octowatt/core/metrics"
	"github.com/kilianp07/octowatt/core/model"
)

type captured struct {
	mu   sync.Mutex
	body string
}

func (c *captured) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.body = string(data)
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *captured) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(c.body)
}

func TestInfluxSinkRecordSync(t *testing.T) {
	var c captured
	sink := NewInfluxSink(c.server(t).URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := coremetrics.SyncEvent{
		Series:        "electric",
		Pages:         4,
		BackwardPages: 2,
		ForwardPages:  2,
		Added:         96,
		Records:       1000,
		Duration:      1500 * time.Millisecond,
		Time:          now,
	}
	if err := sink.RecordSync(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("sync_event").
		AddTag("series", "electric").
		AddTag("component", "sync_engine").
		AddField("seeded", false).
		AddField("pages", 4).
		AddField("backward_pages", 2).
		AddField("forward_pages", 2).
		AddField("added", 96).
		AddField("records", 1000).
		AddField("duration_ms", 1500.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if got := c.get(); got != expected {
		t.Errorf("unexpected body:\n got %s\nwant %s", got, expected)
	}
}

func TestInfluxSinkRecordSamples(t *testing.T) {
	var c captured
	sink := NewInfluxSink(c.server(t).URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	err := sink.RecordSamples("gas", []model.Sample{
		{Timestamp: t0, Value: 0.1234},
		{Timestamp: t0.Add(model.SlotDuration), Value: 0.5},
	})
	if err != nil {
		t.Fatalf("record samples: %v", err)
	}
	lines := strings.Split(c.get(), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "consumption,series=gas value=0.123 ") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if err := sink.RecordSamples("gas", nil); err != nil {
		t.Fatalf("empty series: %v", err)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	var mu sync.Mutex
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			mu.Lock()
			called = true
			mu.Unlock()
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	mu.Lock()
	defer mu.Unlock()
	if !called {
		t.Fatalf("health endpoint not queried")
	}
}
