package pooldose

import (
	"fmt"
	"strings"
)

// redacted replaces secrets in String output.
const redacted = "***"

// StaticValues is the read-only identity of a connected controller.
type StaticValues struct {
	Name         string `json:"NAME"`
	SerialNumber string `json:"SERIAL_NUMBER"`
	DeviceID     string `json:"DEVICE_ID"`
	Model        string `json:"MODEL"`
	ModelID      string `json:"MODEL_ID"`
	OwnerID      string `json:"OWNERID"`
	GroupName    string `json:"GROUPNAME"`
	FWVersion    string `json:"FW_VERSION"`
	SWVersion    string `json:"SW_VERSION"`
	APIVersion   string `json:"API_VERSION"`
	FWCode       string `json:"FW_CODE"`
	MAC          string `json:"MAC"`
	IP           string `json:"IP"`
	WifiSSID     string `json:"WIFI_SSID"`
	WifiKey      string `json:"WIFI_KEY,omitempty"`
	APSSID       string `json:"AP_SSID"`
	APKey        string `json:"AP_KEY,omitempty"`
}

// Redacted returns a copy with the WiFi and access point keys cleared.
func (s StaticValues) Redacted() StaticValues {
	s.WifiKey = ""
	s.APKey = ""
	return s
}

// String renders the identity with keys masked.
func (s StaticValues) String() string {
	fields := []struct{ k, v string }{
		{"name", s.Name},
		{"serial", s.SerialNumber},
		{"device_id", s.DeviceID},
		{"model", s.Model},
		{"model_id", s.ModelID},
		{"fw_version", s.FWVersion},
		{"fw_code", s.FWCode},
		{"sw_version", s.SWVersion},
		{"api_version", s.APIVersion},
		{"ip", s.IP},
		{"wifi_ssid", s.WifiSSID},
		{"wifi_key", mask(s.WifiKey)},
		{"ap_ssid", s.APSSID},
		{"ap_key", mask(s.APKey)},
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", f.k, f.v))
		}
	}
	return "StaticValues{" + strings.Join(parts, " ") + "}"
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

// APIVersionCheck compares the controller's API version with the supported one.
type APIVersionCheck struct {
	Is     string `json:"api_version_is"`
	Should string `json:"api_version_should"`
}
