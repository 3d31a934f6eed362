package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lmaertin/pooldose-go/internal/auth"
	"github.com/lmaertin/pooldose-go/internal/history"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/config"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/database"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/logging"
	"github.com/lmaertin/pooldose-go/internal/metrics"
	"github.com/lmaertin/pooldose-go/internal/monitor"
	"github.com/lmaertin/pooldose-go/internal/pooldose"
	"github.com/lmaertin/pooldose-go/internal/transport"
	"github.com/lmaertin/pooldose-go/internal/values"
)

const (
	testModel    = "PDPR1H1HAW100"
	testFirmware = "539187"
	testDeviceID = "01220000095B_DEVICE"
	testSecret   = "test-secret-at-least-32-characters-long"
)

// fakeStore reports fixed pool statistics and schema status.
type fakeStore struct {
	schema database.SchemaStatus
	err    error
}

func (f fakeStore) Stats() sql.DBStats {
	return sql.DBStats{MaxOpenConnections: 1, OpenConnections: 1, Idle: 1}
}

func (f fakeStore) SchemaStatus(context.Context) (database.SchemaStatus, error) {
	return f.schema, f.err
}

// connectedBroker is a ConnectionStatus that is always up.
type connectedBroker struct{}

func (connectedBroker) IsConnected() bool { return true }

// fakeHistory is an in-memory history.Repository.
type fakeHistory struct {
	mu       sync.Mutex
	readings []history.Reading
	writes   []history.WriteRecord
	limits   []int
	err      error
}

func (f *fakeHistory) RecordReadings(_ context.Context, readings []history.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings = append(f.readings, readings...)
	return f.err
}

func (f *fakeHistory) GetHistory(_ context.Context, deviceID, name string, limit int) ([]history.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	var out []history.Reading
	for _, r := range f.readings {
		if r.DeviceID == deviceID && r.Name == name {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeHistory) RecordWrite(_ context.Context, rec history.WriteRecord) (history.WriteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, rec)
	return rec, f.err
}

func (f *fakeHistory) ListWrites(_ context.Context, _ string, limit int) ([]history.WriteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return append([]history.WriteRecord(nil), f.writes...), nil
}

func (f *fakeHistory) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("broker unreachable") }

type testEnv struct {
	server  *Server
	handler http.Handler
	monitor *monitor.Monitor
	mock    *transport.Mock
	history *fakeHistory
}

// authenticator is shared across tests; every account costs one Argon2id
// derivation to set up.
var (
	authOnce sync.Once
	authInst *auth.Authenticator
	authErr  error
)

func testAuthenticator(t *testing.T) *auth.Authenticator {
	t.Helper()
	authOnce.Do(func() {
		adminHash, err := auth.HashPassword("admin-password")
		if err != nil {
			authErr = err
			return
		}
		operatorHash, err := auth.HashPassword("operator-password")
		if err != nil {
			authErr = err
			return
		}
		authInst, authErr = auth.NewAuthenticator(testSecret, 15*time.Minute,
			auth.Account{Username: "admin", PasswordHash: adminHash, Role: auth.RoleAdmin},
			auth.Account{Username: "operator", PasswordHash: operatorHash, Role: auth.RoleOperator},
		)
	})
	if authErr != nil {
		t.Fatalf("NewAuthenticator() error = %v", authErr)
	}
	return authInst
}

// newTestEnv wires a connected client over the mock transport, a monitor
// with one completed poll and an API server.
func newTestEnv(t *testing.T, withAuth bool) *testEnv {
	t.Helper()

	mock, err := transport.NewMock("../pooldose/testdata/instant_values.json", testModel, testFirmware)
	if err != nil {
		t.Fatalf("NewMock() error = %v", err)
	}
	device := pooldose.New(mock, pooldose.Options{BootstrapDelay: -1})
	if err := device.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	hist := &fakeHistory{}
	mon, err := monitor.New(monitor.Options{
		Client:   device,
		DeviceID: testDeviceID,
		Sinks:    []monitor.Sink{monitor.NewHistorySink(hist)},
	})
	if err != nil {
		t.Fatalf("monitor.New() error = %v", err)
	}
	t.Cleanup(mon.Stop)
	if err := mon.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	deps := Deps{
		Config: config.APIConfig{
			CORS: config.CORSConfig{AllowedOrigins: []string{"http://panel.local"}},
		},
		Logger:  logging.Discard(),
		Values:  mon,
		Device:  device,
		Version: "test",
		History: hist,
		Metrics: metrics.New(),
		Sinks:   mon.SinkNames(),
	}
	if withAuth {
		deps.Auth = testAuthenticator(t)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testEnv{server: srv, handler: srv.Handler(), monitor: mon, mock: mock, history: hist}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Username: username, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login(%s) status = %d, body = %s", username, rec.Code, rec.Body.String())
	}
	var token auth.Token
	if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil {
		t.Fatalf("decoding token: %v", err)
	}
	return token.AccessToken
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
}

// =============================================================================
// Construction
// =============================================================================

func TestNewRequiresDependencies(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Values: env.monitor, Device: env.server.device}},
		{"no values", Deps{Logger: logging.Discard(), Device: env.server.device}},
		{"no device", Deps{Logger: logging.Discard(), Values: env.monitor}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil")
			}
		})
	}

	if env.server.metricsPath != defaultMetricsPath {
		t.Errorf("metricsPath = %q, want %q", env.server.metricsPath, defaultMetricsPath)
	}
	if err := env.server.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start error = nil")
	}
}

// =============================================================================
// Reads
// =============================================================================

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp healthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
	if resp.Device.Status != monitor.HealthOnline {
		t.Errorf("device status = %q, want online", resp.Device.Status)
	}

	env.server.components = map[string]HealthChecker{"mqtt": failingCheck{}}
	rec = env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	decodeBody(t, rec, &resp)
	if resp.Status != "degraded" || resp.Components["mqtt"] != "broker unreachable" {
		t.Errorf("health with failing component = %+v", resp)
	}
}

func TestHandleGetDevice(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/device", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp deviceResponse
	decodeBody(t, rec, &resp)
	if resp.DeviceID != testDeviceID {
		t.Errorf("device_id = %q", resp.DeviceID)
	}
	if resp.Static.ModelID != testModel {
		t.Errorf("MODEL_ID = %q, want %q", resp.Static.ModelID, testModel)
	}
	if resp.Static.WifiKey != "" || resp.Static.APKey != "" {
		t.Error("device response leaks WiFi or access point keys")
	}
}

func TestHandleListTypes(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/types", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var types map[string][]string
	decodeBody(t, rec, &types)
	if len(types["number"]) != 4 {
		t.Errorf("number names = %v, want 4", types["number"])
	}
	if len(types["select"]) != 2 {
		t.Errorf("select names = %v, want 2", types["select"])
	}
}

func TestHandleListValues(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantKeys []string
	}{
		{"all kinds", "/api/v1/values", http.StatusOK, []string{"sensor", "binary_sensor", "switch", "number", "select"}},
		{"one kind", "/api/v1/values?kind=number", http.StatusOK, []string{"number"}},
		{"unknown kind", "/api/v1/values?kind=light", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "", nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantKeys == nil {
				return
			}
			var body map[string]map[string]json.RawMessage
			decodeBody(t, rec, &body)
			if len(body) != len(tt.wantKeys) {
				t.Errorf("kinds = %d, want %d", len(body), len(tt.wantKeys))
			}
			for _, k := range tt.wantKeys {
				if len(body[k]) == 0 {
					t.Errorf("kind %q missing or empty", k)
				}
			}
		})
	}
}

func TestHandleGetValue(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/values/ph_target", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var number struct {
		Name     string `json:"name"`
		Kind     string `json:"kind"`
		Writable bool   `json:"writable"`
		Value    struct {
			Value float64 `json:"value"`
			Min   float64 `json:"min"`
			Max   float64 `json:"max"`
		} `json:"value"`
	}
	decodeBody(t, rec, &number)
	if number.Kind != "number" || !number.Writable {
		t.Errorf("ph_target = %+v", number)
	}
	if number.Value.Value != 7.0 || number.Value.Min != 6.0 || number.Value.Max != 8.0 {
		t.Errorf("ph_target value = %+v", number.Value)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/values/water_meter_unit", "", nil)
	var sel struct {
		Options []string `json:"options"`
	}
	decodeBody(t, rec, &sel)
	if len(sel.Options) != 2 || sel.Options[0] != "m³" || sel.Options[1] != "L" {
		t.Errorf("water_meter_unit options = %v", sel.Options)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/values/ph", "", nil)
	var sensor struct {
		Writable bool `json:"writable"`
	}
	decodeBody(t, rec, &sensor)
	if sensor.Writable {
		t.Error("sensor reported writable")
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/values/no_such_value", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown value status = %d, want 404", rec.Code)
	}
}

// =============================================================================
// Auth
// =============================================================================

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"wrong password", loginRequest{Username: "admin", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", loginRequest{Username: "ghost", Password: "admin-password"}, http.StatusUnauthorized},
		{"missing fields", loginRequest{Username: "admin"}, http.StatusBadRequest},
		{"invalid JSON", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}

	body := map[string]any{"value": 7.2}
	if rec := env.do(t, http.MethodPut, "/api/v1/values/ph_target", "", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("write without token status = %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodPut, "/api/v1/values/ph_target", "not-a-token", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("write with bad token status = %d, want 401", rec.Code)
	}

	operator := env.login(t, "operator", "operator-password")
	if rec := env.do(t, http.MethodPut, "/api/v1/values/ph_target", operator, body); rec.Code != http.StatusOK {
		t.Errorf("operator write status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/system/reboot", operator, nil); rec.Code != http.StatusForbidden {
		t.Errorf("operator reboot status = %d, want 403", rec.Code)
	}

	admin := env.login(t, "admin", "admin-password")
	rec := env.do(t, http.MethodPost, "/api/v1/system/reboot", admin, nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("admin reboot status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestWritesWithoutAuthenticator(t *testing.T) {
	env := newTestEnv(t, false)

	if rec := env.do(t, http.MethodPut, "/api/v1/values/ph_target", "x", map[string]any{"value": 7.2}); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("write status = %d, want 503", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Username: "a", Password: "b"}); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("login status = %d, want 503", rec.Code)
	}
}

// =============================================================================
// Writes
// =============================================================================

func TestHandleSetValue(t *testing.T) {
	env := newTestEnv(t, true)
	token := env.login(t, "operator", "operator-password")

	tests := []struct {
		name     string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"accepted number", "/api/v1/values/ph_target", map[string]any{"value": 7.2}, http.StatusOK, ""},
		{"accepted switch", "/api/v1/values/stop_pool_dosing", map[string]any{"value": true}, http.StatusOK, ""},
		{"accepted select", "/api/v1/values/water_meter_unit", map[string]any{"value": "L"}, http.StatusOK, ""},
		{"out of range", "/api/v1/values/ph_target", map[string]any{"value": 9.5}, http.StatusUnprocessableEntity, monitor.ErrCodeOutOfRange},
		{"off step", "/api/v1/values/ph_target", map[string]any{"value": 7.25}, http.StatusUnprocessableEntity, monitor.ErrCodeOffStep},
		{"accepted paired bound", "/api/v1/values/temperature_alarm_low", map[string]any{"value": 20}, http.StatusOK, ""},
		{"paired bound out of range", "/api/v1/values/temperature_alarm_low", map[string]any{"value": 40}, http.StatusUnprocessableEntity, monitor.ErrCodeOutOfRange},
		{"sensor not writable", "/api/v1/values/ph", map[string]any{"value": 7}, http.StatusUnprocessableEntity, monitor.ErrCodeNotWritable},
		{"invalid option", "/api/v1/values/water_meter_unit", map[string]any{"value": "gallon"}, http.StatusUnprocessableEntity, monitor.ErrCodeInvalidValue},
		{"wrong type", "/api/v1/values/stop_pool_dosing", map[string]any{"value": "yes"}, http.StatusUnprocessableEntity, monitor.ErrCodeInvalidValue},
		{"unknown name", "/api/v1/values/no_such_value", map[string]any{"value": 1}, http.StatusNotFound, ErrCodeNotFound},
		{"missing value", "/api/v1/values/ph_target", map[string]any{}, http.StatusBadRequest, ErrCodeBadRequest},
		{"invalid JSON", "/api/v1/values/ph_target", "{", http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, tt.path, token, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr == "" {
				return
			}
			var apiErr Error
			decodeBody(t, rec, &apiErr)
			if apiErr.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantErr)
			}
		})
	}

	payloads := env.mock.Payloads()
	if len(payloads) != 4 {
		t.Errorf("device payloads = %d, want 4 accepted writes", len(payloads))
	}

	env.history.mu.Lock()
	defer env.history.mu.Unlock()
	var accepted, rejected int
	for _, w := range env.history.writes {
		if w.Source != history.SourceAPI {
			t.Errorf("audit source = %q, want api", w.Source)
		}
		switch w.Outcome {
		case history.OutcomeAccepted:
			accepted++
		case history.OutcomeRejected:
			rejected++
		}
	}
	if accepted != 4 || rejected != 7 {
		t.Errorf("audit accepted/rejected = %d/%d, want 4/7", accepted, rejected)
	}
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"unknown name", fmt.Errorf("%w: %w: x", values.ErrRejected, values.ErrUnknownName), http.StatusNotFound, ErrCodeNotFound},
		{"rejected", fmt.Errorf("%w: %w: x", values.ErrRejected, values.ErrOffStep), http.StatusUnprocessableEntity, monitor.ErrCodeOffStep},
		{"no snapshot", monitor.ErrNoSnapshot, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"stale", fmt.Errorf("%w: last poll last_data", monitor.ErrStale), http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"not acknowledged", fmt.Errorf("%w: x", values.ErrNotAcknowledged), http.StatusBadGateway, monitor.ErrCodeNotAcknowledged},
		{"device error", errors.New("connection reset"), http.StatusBadGateway, monitor.ErrCodeDeviceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeWriteError(rec, tt.err)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var apiErr Error
			decodeBody(t, rec, &apiErr)
			if apiErr.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// History
// =============================================================================

func TestHistoryEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/history/ph", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Name     string            `json:"name"`
		Readings []history.Reading `json:"readings"`
		Count    int               `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Name != "ph" || resp.Count != 1 || len(resp.Readings) != 1 {
		t.Errorf("history = %+v", resp)
	}

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantLimit int
	}{
		{"default limit", "/api/v1/writes", http.StatusOK, defaultHistoryLimit},
		{"explicit limit", "/api/v1/writes?limit=5", http.StatusOK, 5},
		{"clamped limit", "/api/v1/history/ph?limit=5000", http.StatusOK, maxHistoryLimit},
		{"zero limit", "/api/v1/writes?limit=0", http.StatusBadRequest, 0},
		{"non-numeric limit", "/api/v1/writes?limit=ten", http.StatusBadRequest, 0},
		{"unknown value", "/api/v1/history/no_such_value", http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.history.mu.Lock()
			env.history.limits = nil
			env.history.mu.Unlock()

			rec := env.do(t, http.MethodGet, tt.path, "", nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantLimit == 0 {
				return
			}
			env.history.mu.Lock()
			defer env.history.mu.Unlock()
			if len(env.history.limits) != 1 || env.history.limits[0] != tt.wantLimit {
				t.Errorf("limits = %v, want [%d]", env.history.limits, tt.wantLimit)
			}
		})
	}

	env.server.history = nil
	if rec := env.do(t, http.MethodGet, "/api/v1/writes", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("writes without history status = %d, want 503", rec.Code)
	}
}

// =============================================================================
// Middleware and metrics
// =============================================================================

func TestMiddleware(t *testing.T) {
	env := newTestEnv(t, false)

	t.Run("generates request ID", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
		if id := rec.Header().Get("X-Request-ID"); len(id) != 36 {
			t.Errorf("X-Request-ID = %q, want a UUID", id)
		}
	})

	t.Run("keeps client request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
			t.Errorf("X-Request-ID = %q, want abc-123", got)
		}
	})

	t.Run("replaces oversized request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", maxRequestIDLen+1))
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
			t.Errorf("X-Request-ID = %q, want a UUID", got)
		}
	})

	t.Run("CORS allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/values", nil)
		req.Header.Set("Origin", "http://panel.local")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("CORS foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/values", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("body size limit", func(t *testing.T) {
		big := `{"username":"` + strings.Repeat("a", maxRequestBodySize) + `"}`
		env.server.auth = testAuthenticator(t)
		defer func() { env.server.auth = nil }()
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", big)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("oversized body status = %d, want 400", rec.Code)
		}
	})
}

func TestMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pooldose_") {
		t.Error("/metrics has no pooldose_ series")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/system/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("system metrics status = %d", rec.Code)
	}
	var m SystemMetrics
	decodeBody(t, rec, &m)
	if m.Version != "test" || m.Runtime.Goroutines == 0 {
		t.Errorf("system metrics = %+v", m)
	}
	if m.Device.Values == 0 || m.Device.Health.Status != monitor.HealthOnline {
		t.Errorf("device metrics = %+v", m.Device)
	}
	if len(m.Sinks) != 1 || m.Sinks[0] != "history" {
		t.Errorf("sinks = %v, want [history]", m.Sinks)
	}
	if m.MQTT != nil || m.Database != nil {
		t.Error("optional sections present without providers")
	}

	env.server.mqtt = connectedBroker{}
	env.server.db = fakeStore{schema: database.SchemaStatus{Version: "20261001_120000", Applied: 1}}
	rec = env.do(t, http.MethodGet, "/api/v1/system/metrics", "", nil)
	m = SystemMetrics{}
	decodeBody(t, rec, &m)
	if m.MQTT == nil || !m.MQTT.Connected {
		t.Errorf("mqtt metrics = %+v", m.MQTT)
	}
	if m.Database == nil || m.Database.OpenConnections != 1 {
		t.Fatalf("database metrics = %+v", m.Database)
	}
	if m.Database.Schema == nil || m.Database.Schema.Version != "20261001_120000" || m.Database.Schema.Applied != 1 {
		t.Errorf("schema = %+v", m.Database.Schema)
	}

	env.server.db = fakeStore{err: errors.New("database is locked")}
	rec = env.do(t, http.MethodGet, "/api/v1/system/metrics", "", nil)
	m = SystemMetrics{}
	decodeBody(t, rec, &m)
	if m.Database == nil || m.Database.Schema != nil {
		t.Errorf("database metrics with failing schema = %+v", m.Database)
	}
}

func TestPanelMount(t *testing.T) {
	env := newTestEnv(t, false)
	env.server.panel = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("dashboard")) //nolint:errcheck
	})
	handler := env.server.Handler()

	for _, path := range []string{"/", "/app.js"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Body.String() != "dashboard" {
			t.Errorf("GET %s = %q, want dashboard", path, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Body.String() == "dashboard" {
		t.Error("panel shadows the API")
	}
}
