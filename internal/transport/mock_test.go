package transport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lmaertin/pooldose-go/internal/values"
)

const mockDump = "testdata/instant_values.json"

func TestMockIdentity(t *testing.T) {
	m, err := NewMock(mockDump, "PDPR1H1HAW100", "FW539187")
	if err != nil {
		t.Fatalf("NewMock() error = %v", err)
	}
	ctx := context.Background()

	if m.DeviceID() != "01220000095B_DEVICE" {
		t.Errorf("DeviceID() = %q", m.DeviceID())
	}
	cfg, err := m.GetDebugConfig(ctx)
	if err != nil {
		t.Fatalf("GetDebugConfig() error = %v", err)
	}
	if cfg.Gateway.DID != "01220000095B" {
		t.Errorf("Gateway.DID = %q", cfg.Gateway.DID)
	}
	if cfg.Devices[0].FWCode != "539187" {
		t.Errorf("FWCode = %q, want FW prefix stripped", cfg.Devices[0].FWCode)
	}
	if m.APIVersion() != "v1/" {
		t.Errorf("APIVersion() = %q", m.APIVersion())
	}
}

func TestMockFiltersRecords(t *testing.T) {
	m, err := NewMock(mockDump, "PDPR1H1HAW100", "539187")
	if err != nil {
		t.Fatalf("NewMock() error = %v", err)
	}

	iv, err := m.GetValuesRaw(context.Background())
	if err != nil {
		t.Fatalf("GetValuesRaw() error = %v", err)
	}
	snap, err := iv.Snapshot(m.DeviceID())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if _, ok := snap["PDPR1H1HAW100_FW539187_w_1eommf39k"]; !ok {
		t.Error("object record was filtered out")
	}
	if _, ok := snap["PDPR1H1HAW100_FW539187_w_1eklft5qt"]; !ok {
		t.Error("boolean record was filtered out")
	}
	for _, key := range []string{"PDPR1H1HAW100_FW539187_version", "OTHERMODEL_FW1_w_1stray", "info"} {
		if _, ok := snap[key]; ok {
			t.Errorf("%s was not filtered out", key)
		}
	}
}

func TestMockRecordsPayloads(t *testing.T) {
	m, err := NewMock(mockDump, "PDPR1H1HAW100", "539187")
	if err != nil {
		t.Fatalf("NewMock() error = %v", err)
	}
	ctx := context.Background()

	if _, ok := m.LastPayload(); ok {
		t.Error("LastPayload() reported a payload before any write")
	}

	ok, err := m.SetValue(ctx, "D", "k1", "O", values.ValueTypeString)
	if !ok || err != nil {
		t.Fatalf("SetValue() = %v, %v", ok, err)
	}
	if _, err := m.SetValue(ctx, "D", "k2", []float64{20, 30}, values.ValueTypeNumber); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}

	last, ok := m.LastPayload()
	if !ok {
		t.Fatal("LastPayload() reported none")
	}
	got, _ := json.Marshal(last)
	want := `{"D":{"k2":[{"value":20,"type":"NUMBER"},{"value":30,"type":"NUMBER"}]}}`
	if string(got) != want {
		t.Errorf("LastPayload() = %s, want %s", got, want)
	}
	if n := len(m.Payloads()); n != 2 {
		t.Errorf("len(Payloads()) = %d, want 2", n)
	}
}

func TestNewMockErrors(t *testing.T) {
	dir := t.TempDir()
	noDevice := filepath.Join(dir, "nodevice.json")
	if err := os.WriteFile(noDevice, []byte(`{"devicedata":{"GATEWAY":{}}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte(`{`), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.json"), noDevice, broken} {
		if _, err := NewMock(path, "M", "1"); err == nil {
			t.Errorf("NewMock(%s) error = nil", filepath.Base(path))
		}
	}
}
