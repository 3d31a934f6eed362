package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lmaertin/pooldose-go/internal/values"
)

// FlexString is a JSON scalar the controller sends either quoted or bare.
// FW_CODE, for example, arrives as 539187 or "539187" depending on firmware.
type FlexString string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*f = ""
		return nil
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	case trimmed[0] == '{' || trimmed[0] == '[':
		return fmt.Errorf("expected scalar, got %s", string(trimmed[:1]))
	default:
		*f = FlexString(trimmed)
		return nil
	}
}

// String returns the plain value.
func (f FlexString) String() string {
	return string(f)
}

// DebugConfig is the response of /api/v1/debug/config.
type DebugConfig struct {
	Gateway GatewayInfo  `json:"GATEWAY"`
	Devices []DeviceInfo `json:"DEVICES"`
}

// GatewayInfo describes the WiFi gateway module.
type GatewayInfo struct {
	DID   FlexString `json:"DID"`
	Name  FlexString `json:"NAME"`
	FWRel FlexString `json:"FW_REL"`
}

// DeviceInfo describes a dosing unit behind the gateway.
type DeviceInfo struct {
	DID         FlexString `json:"DID"`
	Name        FlexString `json:"NAME"`
	ProductCode FlexString `json:"PRODUCT_CODE"`
	FWRel       FlexString `json:"FW_REL"`
	FWCode      FlexString `json:"FW_CODE"`
}

// WifiStation is the response of /api/v1/network/wifi/getStation.
type WifiStation struct {
	SSID FlexString `json:"SSID"`
	MAC  FlexString `json:"MAC"`
	IP   FlexString `json:"IP"`
	Key  FlexString `json:"KEY"`
}

// AccessPoint is the response of /api/v1/network/wifi/getAccessPoint.
type AccessPoint struct {
	SSID FlexString `json:"SSID"`
	Key  FlexString `json:"KEY"`
}

// NetworkInfo is the response of /api/v1/network/info/getInfo.
type NetworkInfo struct {
	OwnerID   FlexString `json:"OWNERID"`
	GroupName FlexString `json:"GROUPNAME"`
}

// InstantValues is the response of /api/v1/DWI/getInstantValues. Device
// records stay raw until a caller selects one device.
type InstantValues struct {
	DeviceData map[string]json.RawMessage `json:"devicedata"`
}

// DeviceIDs returns the device identifiers present in the response.
func (iv *InstantValues) DeviceIDs() []string {
	ids := make([]string, 0, len(iv.DeviceData))
	for id := range iv.DeviceData {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot decodes the records of one device. A device missing from the
// response yields an empty snapshot.
func (iv *InstantValues) Snapshot(deviceID string) (values.Snapshot, error) {
	raw, ok := iv.DeviceData[deviceID]
	if !ok {
		return values.Snapshot{}, nil
	}
	var snap values.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decoding device %s: %w", deviceID, err)
	}
	return snap, nil
}

// deviceKey finds the first devicedata key naming a device.
func (iv *InstantValues) deviceKey() (string, bool) {
	var found string
	for id := range iv.DeviceData {
		if strings.HasSuffix(id, deviceKeySuffix) && (found == "" || id < found) {
			found = id
		}
	}
	return found, found != ""
}

// writeItem is one element of a setInstantValues key list.
type writeItem struct {
	Value any              `json:"value"`
	Type  values.ValueType `json:"type"`
}

// Payload is the body of a setInstantValues request:
// {device_id: {key: [{"value": v, "type": TAG}, ...]}}.
type Payload map[string]map[string][]writeItem

// NewPayload builds a write body. A slice value, such as a lower/upper
// bound pair, becomes one item per element in order.
func NewPayload(deviceID, key string, value any, tag values.ValueType) Payload {
	var items []writeItem
	switch v := value.(type) {
	case []float64:
		for _, x := range v {
			items = append(items, writeItem{Value: x, Type: tag})
		}
	case []any:
		for _, x := range v {
			items = append(items, writeItem{Value: x, Type: tag})
		}
	default:
		items = []writeItem{{Value: value, Type: tag}}
	}
	return Payload{deviceID: {key: items}}
}
