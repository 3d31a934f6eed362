package pooldose

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lmaertin/pooldose-go/internal/mapping"
	"github.com/lmaertin/pooldose-go/internal/transport"
	"github.com/lmaertin/pooldose-go/internal/values"
)

// SupportedAPIVersion is the controller API version this client speaks.
const SupportedAPIVersion = "v1/"

// DefaultBootstrapDelay separates bootstrap requests. Controllers drop
// requests that arrive back to back.
const DefaultBootstrapDelay = 500 * time.Millisecond

// Transport is the controller surface the client needs. transport.Client
// and transport.Mock both implement it.
type Transport interface {
	values.Writer

	Connect(ctx context.Context) error
	IsConnected() bool
	SoftwareVersion() string
	APIVersion() string
	GetDebugConfig(ctx context.Context) (*transport.DebugConfig, error)
	GetWifiStation(ctx context.Context) (*transport.WifiStation, error)
	GetAccessPoint(ctx context.Context) (*transport.AccessPoint, error)
	GetNetworkInfo(ctx context.Context) (*transport.NetworkInfo, error)
	GetInfoRelease(ctx context.Context, softwareVersion string) (map[string]any, error)
	GetValuesRaw(ctx context.Context) (*transport.InstantValues, error)
	Reboot(ctx context.Context) error
}

// Logger is the logging interface used by Client.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Client.
type Options struct {
	// IncludeSensitiveData keeps the WiFi and access point keys in
	// StaticValues.
	IncludeSensitiveData bool

	// Loader resolves mapping tables. Nil uses the embedded mappings.
	Loader *mapping.Loader

	// BootstrapDelay separates bootstrap requests. Zero means
	// DefaultBootstrapDelay; a negative value disables the pause.
	BootstrapDelay time.Duration

	Logger Logger
}

// Client is a connected controller.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Views returned by
//     InstantValues are not; each belongs to one caller.
type Client struct {
	transport Transport
	loader    *mapping.Loader
	opts      Options
	logger    Logger

	mu        sync.RWMutex
	connected bool
	static    StaticValues
	table     *mapping.Table
}

// New creates a client over a transport. Call Connect before use.
func New(t Transport, opts Options) *Client {
	if opts.BootstrapDelay == 0 {
		opts.BootstrapDelay = DefaultBootstrapDelay
	}
	loader := opts.Loader
	if loader == nil {
		loader = mapping.NewLoader("")
	}
	return &Client{
		transport: t,
		loader:    loader,
		opts:      opts,
		logger:    opts.Logger,
	}
}

// Connect runs the identity bootstrap.
//
// Debug config, mapping and network info failures abort the connect. WiFi
// station and access point failures are logged and leave those fields empty.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		c.logError("transport connect failed", "error", err)
		return fmt.Errorf("connecting: %w", err)
	}

	static := StaticValues{
		APIVersion: c.transport.APIVersion(),
	}

	cfg, err := c.transport.GetDebugConfig(ctx)
	if err != nil {
		c.logError("fetching debug config failed", "error", err)
		return fmt.Errorf("loading device info: %w", err)
	}
	if len(cfg.Devices) == 0 {
		return ErrNoDevice
	}
	static.SerialNumber = cfg.Gateway.DID.String()
	static.Name = cfg.Gateway.Name.String()
	static.SWVersion = cfg.Gateway.FWRel.String()

	device := cfg.Devices[0]
	static.DeviceID = device.DID.String()
	static.Model = device.Name.String()
	static.ModelID = device.ProductCode.String()
	static.FWVersion = device.FWRel.String()
	static.FWCode = mapping.NormalizeFirmware(device.FWCode.String())

	if err := c.pause(ctx); err != nil {
		return err
	}

	table, err := c.loader.Load(static.ModelID, static.FWCode)
	if err != nil {
		c.logError("loading mapping failed", "model", static.ModelID, "fw_code", static.FWCode, "error", err)
		return fmt.Errorf("loading mapping: %w", err)
	}

	if station, err := c.transport.GetWifiStation(ctx); err != nil {
		c.logWarn("fetching wifi station failed", "error", err)
	} else {
		static.WifiSSID = station.SSID.String()
		static.MAC = station.MAC.String()
		static.IP = station.IP.String()
		if c.opts.IncludeSensitiveData {
			static.WifiKey = station.Key.String()
		}
	}
	if err := c.pause(ctx); err != nil {
		return err
	}

	if ap, err := c.transport.GetAccessPoint(ctx); err != nil {
		c.logWarn("fetching access point failed", "error", err)
	} else {
		static.APSSID = ap.SSID.String()
		if c.opts.IncludeSensitiveData {
			static.APKey = ap.Key.String()
		}
	}
	if err := c.pause(ctx); err != nil {
		return err
	}

	info, err := c.transport.GetNetworkInfo(ctx)
	if err != nil {
		c.logError("fetching network info failed", "error", err)
		return fmt.Errorf("loading network info: %w", err)
	}
	static.OwnerID = info.OwnerID.String()
	static.GroupName = info.GroupName.String()

	if c.opts.IncludeSensitiveData {
		c.logInfo("included wifi and access point keys")
	}

	c.mu.Lock()
	c.static = static
	c.table = table
	c.connected = true
	c.mu.Unlock()

	c.logDebug("connected", "device", static.String(), "mapping_entries", table.Len())
	return nil
}

// pause waits the bootstrap delay or until ctx is done.
func (c *Client) pause(ctx context.Context) error {
	if c.opts.BootstrapDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.opts.BootstrapDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsConnected reports whether Connect has succeeded.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// CheckAPIVersion compares the controller's API version with
// SupportedAPIVersion. The comparison is returned even when it fails.
func (c *Client) CheckAPIVersion() (APIVersionCheck, error) {
	check := APIVersionCheck{
		Is:     c.transport.APIVersion(),
		Should: SupportedAPIVersion,
	}
	if check.Is == "" {
		c.logWarn("api version not set")
		return check, transport.ErrNoData
	}
	if check.Is != SupportedAPIVersion {
		c.logWarn("unsupported api version", "is", check.Is, "should", SupportedAPIVersion)
		return check, fmt.Errorf("%w: %s", transport.ErrAPIVersionUnsupported, check.Is)
	}
	return check, nil
}

// StaticValues returns the device identity collected by Connect.
func (c *Client) StaticValues() (StaticValues, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return StaticValues{}, ErrNotConnected
	}
	return c.static, nil
}

// Mapping returns the mapping table loaded by Connect, or nil.
func (c *Client) Mapping() *mapping.Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table
}

// AvailableTypes lists the logical names per kind. It is empty before Connect.
func (c *Client) AvailableTypes() map[mapping.Kind][]string {
	table := c.Mapping()
	if table == nil {
		return map[mapping.Kind][]string{}
	}
	return table.AvailableTypes()
}

// InstantValues fetches a snapshot and returns a view over it.
//
// When the fetch fails but an earlier response is available, the view is
// built from that response and returned together with an error wrapping
// transport.ErrLastData.
func (c *Client) InstantValues(ctx context.Context) (*values.View, error) {
	c.mu.RLock()
	connected, static, table := c.connected, c.static, c.table
	c.mu.RUnlock()
	if !connected {
		return nil, ErrNotConnected
	}

	raw, fetchErr := c.transport.GetValuesRaw(ctx)
	if raw == nil {
		return nil, fmt.Errorf("fetching instant values: %w", fetchErr)
	}

	snapshot, err := raw.Snapshot(static.DeviceID)
	if err != nil {
		c.logWarn("decoding instant values failed", "device", static.DeviceID, "error", err)
		return nil, fmt.Errorf("decoding instant values: %w", err)
	}

	prefix := mapping.KeyPrefix(static.ModelID, static.FWCode)
	view := values.NewView(table, prefix, static.DeviceID, snapshot, c.transport)
	if c.logger != nil {
		view.SetLogger(c.logger)
	}

	if fetchErr != nil {
		if !errors.Is(fetchErr, transport.ErrLastData) {
			return nil, fmt.Errorf("fetching instant values: %w", fetchErr)
		}
		return view, fetchErr
	}
	return view, nil
}

// InstantValuesStructured fetches a snapshot and decodes every mapped name.
func (c *Client) InstantValuesStructured(ctx context.Context) (values.StructuredSnapshot, error) {
	view, err := c.InstantValues(ctx)
	if view == nil {
		return values.StructuredSnapshot{}, err
	}
	return view.Structured(), err
}

// InfoRelease fetches release notes for the controller's software version.
func (c *Client) InfoRelease(ctx context.Context) (map[string]any, error) {
	version := c.transport.SoftwareVersion()
	if version == "" {
		c.mu.RLock()
		version = c.static.SWVersion
		c.mu.RUnlock()
	}
	return c.transport.GetInfoRelease(ctx, version)
}

// Reboot restarts the controller.
func (c *Client) Reboot(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.transport.Reboot(ctx)
}

// SetNumber writes a setpoint against a fresh snapshot.
func (c *Client) SetNumber(ctx context.Context, name string, value float64) error {
	view, err := c.freshView(ctx)
	if err != nil {
		return err
	}
	return view.SetNumber(ctx, name, value)
}

// SetSwitch writes a switch state against a fresh snapshot.
func (c *Client) SetSwitch(ctx context.Context, name string, on bool) error {
	view, err := c.freshView(ctx)
	if err != nil {
		return err
	}
	return view.SetSwitch(ctx, name, on)
}

// SetSelect writes a select by display value against a fresh snapshot.
func (c *Client) SetSelect(ctx context.Context, name, value string) error {
	view, err := c.freshView(ctx)
	if err != nil {
		return err
	}
	return view.SetSelect(ctx, name, value)
}

// Set writes a dynamically typed value against a fresh snapshot.
func (c *Client) Set(ctx context.Context, name string, value any) error {
	view, err := c.freshView(ctx)
	if err != nil {
		return err
	}
	return view.Set(ctx, name, value)
}

// freshView returns a view for validation. Writes never validate against
// stale data, so a LastData fallback is an error here.
func (c *Client) freshView(ctx context.Context) (*values.View, error) {
	view, err := c.InstantValues(ctx)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
