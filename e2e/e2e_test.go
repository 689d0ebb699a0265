//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	coremetrics "github.com/kilianp07/octowatt/core/metrics"
	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/infra/metrics"
	"github.com/kilianp07/octowatt/infra/mqtt"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
}

// startInflux starts an InfluxDB 2.7 container initialised with the test
// organisation, bucket and token.
func startInflux(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(90 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "8086")
	require.NoError(t, err)
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto starts a broker that accepts anonymous clients.
func startMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "1883")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func TestInfluxSinkRoundTrip(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	url := startInflux(ctx, t)
	sink := metrics.NewInfluxSinkWithFallback(url, influxToken, influxOrg, influxBucket)
	influx, ok := sink.(*metrics.InfluxSink)
	require.True(t, ok, "health check failed, got %T", sink)
	defer influx.Close()

	now := time.Now().UTC().Truncate(model.SlotDuration)
	require.NoError(t, influx.RecordSync(coremetrics.SyncEvent{
		Series: "electricity", Seeded: true, Pages: 3, Added: 48, Records: 48,
		Duration: 1500 * time.Millisecond, Time: now,
	}))
	samples := []model.Sample{
		{Timestamp: now.Add(-90 * time.Minute), Value: 0.2},
		{Timestamp: now.Add(-60 * time.Minute), Value: 0.3},
		{Timestamp: now.Add(-30 * time.Minute), Value: 0.25},
	}
	require.NoError(t, influx.RecordSamples("electricity", samples))
	require.NoError(t, influx.RecordTariff("tariff", []model.TariffRate{{ValidFrom: now, ValidTo: now.Add(model.SlotDuration), UnitPrice: 18.2}}))

	cli := NewInfluxClient(url, influxOrg, influxBucket, influxToken)
	defer cli.Close()

	n, err := cli.Count(ctx, "consumption", "value", "electricity")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = cli.Count(ctx, "sync_event", "pages", "electricity")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = cli.Count(ctx, "unit_rate", "unit_price", "tariff")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMQTTPublishesRetainedStartTimes(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startMosquitto(ctx, t)
	pub, err := mqtt.NewPahoClient(mqtt.Config{Enabled: true, Broker: broker, ClientID: "e2e-publisher"})
	require.NoError(t, err)
	defer pub.Disconnect()

	start := time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)
	end, cost := start.Add(90*time.Minute), 8.5
	require.NoError(t, pub.PublishCycle(mqtt.Cycle{
		ID:              "cycle-e2e",
		ComputedAt:      start.Add(-3 * time.Hour),
		Recommendations: []mqtt.Recommendation{{Appliance: "Gentle Dishwasher", Start: &start, End: &end, Cost: &cost}},
	}))

	// Retained messages reach a subscriber that connects afterwards.
	got := make(chan mqtt.Recommendation, 1)
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("e2e-subscriber")
	sub := paho.NewClient(opts)
	tok := sub.Connect()
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())
	defer sub.Disconnect(250)
	tok = sub.Subscribe("octowatt/starttimes/gentle-dishwasher", 1, func(_ paho.Client, m paho.Message) {
		var r mqtt.Recommendation
		if json.Unmarshal(m.Payload(), &r) == nil {
			select {
			case got <- r:
			default:
			}
		}
	})
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())

	select {
	case r := <-got:
		assert.Equal(t, "Gentle Dishwasher", r.Appliance)
		require.NotNil(t, r.Start)
		assert.True(t, r.Start.Equal(start))
		assert.InDelta(t, 8.5, *r.Cost, 1e-9)
	case <-time.After(10 * time.Second):
		t.Fatal("no retained start time received")
	}
}
