package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// generateCert writes a self-signed certificate, its key and a CA bundle.
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	for path, data := range map[string][]byte{certFile: certPEM, keyFile: keyPEM, caFile: certPEM} {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	tlsCfg, err := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) != 1 || tlsCfg.RootCAs == nil {
		t.Fatalf("tls config incomplete")
	}

	tlsCfg, err = Config{UseTLS: true, CABundle: ca}.LoadTLSConfig()
	if err != nil {
		t.Fatalf("server-only tls: %v", err)
	}
	if len(tlsCfg.Certificates) != 0 {
		t.Fatalf("unexpected client certificate")
	}

	if _, err := (Config{UseTLS: true}).LoadTLSConfig(); err == nil {
		t.Fatalf("expected error without ca bundle")
	}
}

func TestNewClientOptions(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p", TopicPrefix: "home/energy", QoS: 1})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
	if !opts.WillEnabled || opts.WillTopic != "home/energy/status" || string(opts.WillPayload) != "offline" || !opts.WillRetained {
		t.Fatalf("last will incorrect: %+v", opts)
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	if c.TopicPrefix != "octowatt" || c.ClientID == "" || c.MaxRetries != 3 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("disabled config must validate: %v", err)
	}
	c.Enabled = true
	if err := c.Validate(); err == nil {
		t.Fatalf("expected missing broker error")
	}
	c.Broker, c.QoS = "tcp://broker:1883", 3
	if err := c.Validate(); err == nil {
		t.Fatalf("expected qos error")
	}
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestConnectAnnouncesOnline(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: 1})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer cli.Disconnect()
	if len(mc.published) != 1 || mc.published[0].topic != "octowatt/status" || !mc.published[0].retained {
		t.Fatalf("online status not published: %+v", mc.published)
	}
}

func TestPublishCycle(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "home", QoS: 1})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	start := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	cost := 4.5
	err = cli.PublishCycle(Cycle{
		ID:         "c1",
		ComputedAt: start,
		Recommendations: []Recommendation{
			{Appliance: "Washing Machine", Start: &start, End: &end, Cost: &cost},
			{Appliance: "Intense Dishwasher", Error: "horizon too short", Kind: "insufficient_horizon"},
		},
		Series: []SeriesStatus{{Series: "electric", Latest: start, Missing: 2, Records: 10}},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := []string{"home/status", "home/starttimes/washing-machine", "home/starttimes/intense-dishwasher", "home/series/electric", "home/cycle"}
	if len(mc.published) != len(want) {
		t.Fatalf("published %d messages, want %d", len(mc.published), len(want))
	}
	for i, topic := range want {
		if mc.published[i].topic != topic || mc.published[i].qos != 1 || !mc.published[i].retained {
			t.Fatalf("message %d = %+v, want topic %s", i, mc.published[i], topic)
		}
	}
	var rec map[string]any
	if err := json.Unmarshal(mc.published[2].payload, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["kind"] != "insufficient_horizon" {
		t.Fatalf("unexpected payload %v", rec)
	}
	if _, ok := rec["start"]; ok {
		t.Fatalf("failed recommendation must not carry a start")
	}
}

func TestPublishRetries(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	mc.published = nil
	mc.publishErrs = []error{fmt.Errorf("net fail"), nil}
	if err := cli.PublishCycle(Cycle{ID: "c"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected one retry, got %d publishes", len(mc.published))
	}

	mc.publishErrs = []error{fmt.Errorf("down"), fmt.Errorf("down")}
	if err := cli.PublishCycle(Cycle{ID: "c"}); err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Eco Dishwasher":  "eco-dishwasher",
		"washing machine": "washing-machine",
		"  Oven #2 ":      "oven-2",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

type publishedMsg struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements paho.Client for tests.
type mockClient struct {
	opts        *paho.ClientOptions
	published   []publishedMsg
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	}
	m.published = append(m.published, publishedMsg{topic, qos, retained, data})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(string, byte, paho.MessageHandler) paho.Token { return &dummyToken{} }
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }
