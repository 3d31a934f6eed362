package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lmaertin/pooldose-go/internal/auth"
)

const mockDump = "../../internal/pooldose/testdata/instant_values.json"

func writeConfig(t *testing.T, content string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("POOLDOSE_CONFIG", configPath)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("POOLDOSE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDevice verifies run fails validation without a device.
func TestRun_MissingDevice(t *testing.T) {
	writeConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
api:
  enabled: false
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "device.host") {
		t.Fatalf("run() error = %v, want device.host validation error", err)
	}
}

// TestRun_MockDeviceStartupAndShutdown runs the service against a mock
// dump until the context ends.
func TestRun_MockDeviceStartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	writeConfig(t, `
device:
  mock_file: "`+mockDump+`"
  mock_model_id: "PDPR1H1HAW100"
  mock_fw_code: "539187"

database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

logging:
  level: warn
  format: text
  output: stdout

api:
  enabled: false
`)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("POOLDOSE_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("POOLDOSE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	if err := hashPassword(strings.NewReader("pool-secret\n"), &out); err != nil {
		t.Fatalf("hashPassword() error = %v", err)
	}

	hash := strings.TrimSpace(out.String())
	ok, err := auth.VerifyPassword("pool-secret", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword(hash) = %v, %v", ok, err)
	}

	if err := hashPassword(strings.NewReader("\n"), &out); err == nil {
		t.Error("hashPassword(empty) error = nil")
	}
}
