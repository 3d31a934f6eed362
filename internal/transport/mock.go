package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/lmaertin/pooldose-go/internal/mapping"
	"github.com/lmaertin/pooldose-go/internal/values"
)

// deviceKeySuffix marks devicedata keys that name a dosing unit.
const deviceKeySuffix = "_DEVICE"

// mockAPIVersion is the API version the mock reports.
const mockAPIVersion = "v1/"

// Mock serves a captured getInstantValues dump in place of a controller.
// Writes are recorded, never sent, and always acknowledged.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Mock struct {
	path    string
	modelID string
	fwCode  string

	mu        sync.RWMutex
	data      *InstantValues
	deviceKey string
	connected bool
	payloads  []Payload
}

// NewMock loads a dump for the given model and firmware code.
func NewMock(path, modelID, fwCode string) (*Mock, error) {
	m := &Mock{
		path:    path,
		modelID: modelID,
		fwCode:  mapping.NormalizeFirmware(fwCode),
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload reads the dump file again.
func (m *Mock) Reload() error {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("reading mock data: %w", err)
	}
	var iv InstantValues
	if err := json.Unmarshal(raw, &iv); err != nil {
		return fmt.Errorf("parsing mock data %s: %w", m.path, err)
	}
	if len(iv.DeviceData) == 0 {
		return fmt.Errorf("%w: no devicedata in %s", ErrNoData, m.path)
	}
	key, ok := iv.deviceKey()
	if !ok {
		return fmt.Errorf("%w: no device key in %s", ErrNoData, m.path)
	}

	m.mu.Lock()
	m.data = &iv
	m.deviceKey = key
	m.mu.Unlock()
	return nil
}

// DeviceID returns the device key found in the dump.
func (m *Mock) DeviceID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deviceKey
}

// Connect marks the mock connected.
func (m *Mock) Connect(context.Context) error {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

// IsConnected reports whether Connect was called.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SoftwareVersion returns a fixed placeholder.
func (m *Mock) SoftwareVersion() string {
	return "MOCK"
}

// APIVersion returns the supported API version.
func (m *Mock) APIVersion() string {
	return mockAPIVersion
}

// GetDebugConfig synthesises identity from the dump's device key.
func (m *Mock) GetDebugConfig(context.Context) (*DebugConfig, error) {
	deviceKey := m.DeviceID()
	serial := strings.TrimSuffix(deviceKey, deviceKeySuffix)
	return &DebugConfig{
		Gateway: GatewayInfo{
			DID:   FlexString(serial),
			Name:  FlexString("Mock " + m.modelID + " Device"),
			FWRel: "MOCK",
		},
		Devices: []DeviceInfo{{
			DID:         FlexString(deviceKey),
			Name:        FlexString(m.modelID),
			ProductCode: FlexString(m.modelID),
			FWRel:       "MOCK",
			FWCode:      FlexString(m.fwCode),
		}},
	}, nil
}

// GetWifiStation returns placeholder station details.
func (m *Mock) GetWifiStation(context.Context) (*WifiStation, error) {
	return &WifiStation{SSID: "MockWiFi", MAC: "00:00:00:00:00:00", IP: "127.0.0.1", Key: "mock_wifi_key"}, nil
}

// GetAccessPoint returns placeholder access point details.
func (m *Mock) GetAccessPoint(context.Context) (*AccessPoint, error) {
	return &AccessPoint{SSID: "MockAP", Key: "mock_ap_key"}, nil
}

// GetNetworkInfo returns placeholder owner and group.
func (m *Mock) GetNetworkInfo(context.Context) (*NetworkInfo, error) {
	return &NetworkInfo{OwnerID: "MOCK_OWNER", GroupName: "Mock Pool"}, nil
}

// GetInfoRelease returns a minimal release record.
func (m *Mock) GetInfoRelease(_ context.Context, softwareVersion string) (map[string]any, error) {
	return map[string]any{"SOFTWAREVERSION": softwareVersion, "RELEASE_NOTES": "mock"}, nil
}

// GetValuesRaw returns the dump's device records that belong to the model
// and are objects or booleans.
func (m *Mock) GetValuesRaw(context.Context) (*InstantValues, error) {
	m.mu.RLock()
	data, deviceKey := m.data, m.deviceKey
	m.mu.RUnlock()

	var device map[string]json.RawMessage
	if err := json.Unmarshal(data.DeviceData[deviceKey], &device); err != nil {
		return nil, fmt.Errorf("%w: device %s: %w", ErrRequestFailed, deviceKey, err)
	}

	prefix := mapping.PrefixModel(m.modelID, m.fwCode)
	filtered := make(map[string]json.RawMessage, len(device))
	for key, raw := range device {
		if strings.HasPrefix(key, prefix) && isRecord(raw) {
			filtered[key] = raw
		}
	}

	encoded, err := json.Marshal(filtered)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return &InstantValues{DeviceData: map[string]json.RawMessage{deviceKey: encoded}}, nil
}

func isRecord(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case '{':
		return true
	case 't', 'f':
		return bytes.Equal(trimmed, []byte("true")) || bytes.Equal(trimmed, []byte("false"))
	default:
		return false
	}
}

// SetValue records the payload a controller would receive.
func (m *Mock) SetValue(_ context.Context, deviceID, key string, value any, tag values.ValueType) (bool, error) {
	payload := NewPayload(deviceID, key, value, tag)
	m.mu.Lock()
	m.payloads = append(m.payloads, payload)
	m.mu.Unlock()
	return true, nil
}

// Reboot does nothing.
func (m *Mock) Reboot(context.Context) error {
	return nil
}

// LastPayload returns the most recent write payload.
func (m *Mock) LastPayload() (Payload, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.payloads) == 0 {
		return nil, false
	}
	return m.payloads[len(m.payloads)-1], true
}

// Payloads returns every recorded write payload in order.
func (m *Mock) Payloads() []Payload {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Payload, len(m.payloads))
	copy(out, m.payloads)
	return out
}
