package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/octowatt/core/metrics"
	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/infra/logger"
)

// InfluxSink writes update cycle events, and optionally the series
// themselves, to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. A URL ending in the
// write path is accepted.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback returns a NopSink when the instance fails its
// health check.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(points ...*write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordSync writes one sync_event point.
func (s *InfluxSink) RecordSync(ev coremetrics.SyncEvent) error {
	p := write.NewPointWithMeasurement("sync_event").
		AddTag("series", ev.Series).
		AddTag("component", "sync_engine")
	if ev.ErrorKind != "" {
		p.AddTag("error_kind", ev.ErrorKind)
	}
	p.AddField("seeded", ev.Seeded).
		AddField("pages", ev.Pages).
		AddField("backward_pages", ev.BackwardPages).
		AddField("forward_pages", ev.ForwardPages).
		AddField("added", ev.Added).
		AddField("records", ev.Records).
		AddField("duration_ms", round3(float64(ev.Duration)/float64(time.Millisecond))).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordGaps writes one series_gaps point.
func (s *InfluxSink) RecordGaps(ev coremetrics.GapEvent) error {
	p := write.NewPointWithMeasurement("series_gaps").
		AddTag("series", ev.Series).
		AddField("missing", ev.Missing).
		SetTime(ev.Time)
	if !ev.Latest.IsZero() {
		p.AddField("latest_unix", ev.Latest.Unix())
	}
	return s.write(p)
}

// RecordOptimizer writes the recommendation for one appliance.
func (s *InfluxSink) RecordOptimizer(ev coremetrics.OptimizerEvent) error {
	p := write.NewPointWithMeasurement("start_time").
		AddTag("appliance", ev.Appliance).
		SetTime(ev.Time)
	if ev.ErrorKind != "" {
		p.AddTag("error_kind", ev.ErrorKind).AddField("ok", false)
	} else {
		p.AddField("ok", true).
			AddField("cost", round3(ev.Cost)).
			AddField("start_unix", ev.Start.Unix())
	}
	return s.write(p)
}

// RecordCache writes one cache_event point.
func (s *InfluxSink) RecordCache(ev coremetrics.CacheEvent) error {
	p := write.NewPointWithMeasurement("cache_event").
		AddTag("series", ev.Series).
		AddTag("outcome", ev.Outcome).
		AddField("records", ev.Records).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordSamples exports a series as one point per reading, stamped with the
// reading time.
func (s *InfluxSink) RecordSamples(series string, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(samples))
	for _, smp := range samples {
		points = append(points, write.NewPointWithMeasurement("consumption").
			AddTag("series", series).
			AddField("value", round3(smp.Value)).
			SetTime(smp.Timestamp))
	}
	return s.write(points...)
}

// RecordTariff exports unit rates in pence per kWh.
func (s *InfluxSink) RecordTariff(series string, rates []model.TariffRate) error {
	if len(rates) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(rates))
	for _, r := range rates {
		points = append(points, write.NewPointWithMeasurement("unit_rate").
			AddTag("series", series).
			AddField("unit_price", round3(r.UnitPrice)).
			SetTime(r.ValidFrom))
	}
	return s.write(points...)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
