package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/lmaertin/pooldose-go/internal/infrastructure/config"
)

const testDeviceID = "01220000095B_DEVICE"

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "pooldose-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"ValueState", topics.ValueState(testDeviceID, "ph"), "pooldose/state/01220000095B_DEVICE/ph"},
		{"DeviceState", topics.DeviceState(testDeviceID), "pooldose/state/01220000095B_DEVICE"},
		{"Command", topics.Command(testDeviceID, "ph_target"), "pooldose/command/01220000095B_DEVICE/ph_target"},
		{"Ack", topics.Ack(testDeviceID, "ph_target"), "pooldose/ack/01220000095B_DEVICE/ph_target"},
		{"Health", topics.Health(testDeviceID), "pooldose/health/01220000095B_DEVICE"},
		{"AllCommands", topics.AllCommands(testDeviceID), "pooldose/command/01220000095B_DEVICE/+"},
	}

	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.expected)
		}
	}
}

func TestNameFromTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"pooldose/command/D/ph_target", "ph_target"},
		{"pooldose/state/D", "D"},
		{"bare", "bare"},
		{"trailing/", ""},
	}
	for _, tt := range tests {
		if got := NameFromTopic(tt.topic); got != tt.want {
			t.Errorf("NameFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "pool", Password: "secret"}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "pooldose-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "pool" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS")
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLSConfig missing minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "pooldose-test", testDeviceID)

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will = enabled:%v retained:%v qos:%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "pooldose/health/01220000095B_DEVICE" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var payload map[string]string
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload["status"] != "offline" || payload["reason"] != "unexpected_disconnect" {
		t.Errorf("will payload = %v", payload)
	}
}

func TestHealthPayload(t *testing.T) {
	var payload map[string]string
	if err := json.Unmarshal([]byte(healthPayload("c1", "online", "")), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["status"] != "online" || payload["client_id"] != "c1" {
		t.Errorf("payload = %v", payload)
	}
	if _, ok := payload["reason"]; ok {
		t.Error("empty reason was included")
	}
	if payload["timestamp"] == "" {
		t.Error("timestamp missing")
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnectRequiresDeviceID(t *testing.T) {
	_, err := Connect(testConfig(), "")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (&Client{}).HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Validation Tests (no broker needed)
// =============================================================================

func TestPublishValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"invalid qos", "t", nil, 3, ErrInvalidQoS},
		{"oversized payload", "t", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "t", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		if err := client.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
			t.Errorf("%s: Publish() error = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v", err)
	}
	if err := client.Subscribe("t", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v", err)
	}
	if err := client.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
	if err := client.Subscribe("t", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v", err)
	}
	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v", err)
	}
	if len(client.subscriptions) != 0 {
		t.Errorf("tracked %d subscriptions after failed calls, want 0", len(client.subscriptions))
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

func TestWrapHandlerLogsErrorsAndPanics(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{}
	client.SetLogger(logger)

	failing := client.wrapHandler(func(string, []byte) error {
		return errors.New("bad command")
	})
	failing(nil, fakeMessage{topic: "pooldose/command/D/x"})

	panicking := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	panicking(nil, fakeMessage{topic: "pooldose/command/D/y"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one recovered panic", logger.errors)
	}
}

func TestWrapHandlerPassesTopicAndPayload(t *testing.T) {
	client := &Client{}
	var gotTopic, gotPayload string
	h := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})
	h(nil, fakeMessage{topic: "pooldose/command/D/ph_target", payload: []byte(`{"value":7.2}`)})

	if gotTopic != "pooldose/command/D/ph_target" || gotPayload != `{"value":7.2}` {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
}
