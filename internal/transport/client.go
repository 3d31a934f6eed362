package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/lmaertin/pooldose-go/internal/values"
)

// Endpoint paths.
const (
	pathParams        = "/js_libs/params.js"
	pathDebugConfig   = "/api/v1/debug/config"
	pathWifiStation   = "/api/v1/network/wifi/getStation"
	pathAccessPoint   = "/api/v1/network/wifi/getAccessPoint"
	pathNetworkInfo   = "/api/v1/network/info/getInfo"
	pathInfoRelease   = "/api/v1/infoRelease"
	pathInstantValues = "/api/v1/DWI/getInstantValues"
	pathSetValues     = "/api/v1/DWI/setInstantValues"
	pathReboot        = "/api/v1/system/reboot"
)

// DefaultTimeout bounds each request when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps response bodies read from the controller.
const maxBodySize = 4 << 20

var (
	softwareVersionPattern = regexp.MustCompile(`softwareVersion\s*:\s*["']([^"']+)["']`)
	apiVersionPattern      = regexp.MustCompile(`apiversion\s*:\s*["']([^"']+)["']`)
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Options configures a Client.
type Options struct {
	// Host is the controller's hostname or IP address.
	Host string

	// Port defaults to 80, or 443 with UseSSL.
	Port int

	UseSSL bool

	// SSLVerify enables certificate verification for HTTPS. Controllers
	// ship self-signed certificates, so this is usually false.
	SSLVerify bool

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the client built from the other options.
	HTTPClient *http.Client
}

// Client is an HTTP client for one controller.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	opts    Options
	baseURL string
	http    *http.Client
	logger  Logger

	mu              sync.RWMutex
	connected       bool
	softwareVersion string
	apiVersion      string
	lastValues      *InstantValues
}

// New creates a client. It does not contact the controller; call Connect.
func New(opts Options) (*Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidOptions)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	defaultPort := 80
	scheme := "http"
	if opts.UseSSL {
		defaultPort = 443
		scheme = "https"
	}
	if opts.Port == 0 {
		opts.Port = defaultPort
	}
	if opts.Port < 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidOptions, opts.Port)
	}

	baseURL := scheme + "://" + opts.Host
	if opts.Port != defaultPort {
		baseURL = scheme + "://" + net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.UseSSL && !opts.SSLVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // controllers use self-signed certificates
		}
		httpClient = &http.Client{Transport: transport}
	}

	return &Client{
		opts:    opts,
		baseURL: baseURL,
		http:    httpClient,
	}, nil
}

// SetLogger sets the logger for request failures.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// BaseURL returns the controller's root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Connect checks that the controller accepts TCP connections and reads the
// software and API versions from params.js.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.checkReachable(ctx); err != nil {
		return err
	}

	body, err := c.do(ctx, http.MethodGet, pathParams, nil)
	if err != nil {
		c.logError("fetching core params failed", "error", err)
		return fmt.Errorf("%w: %w", ErrParamsFetchFailed, err)
	}

	c.mu.Lock()
	c.softwareVersion = findParam(softwareVersionPattern, body)
	c.apiVersion = findParam(apiVersionPattern, body)
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) checkReachable(ctx context.Context) error {
	address := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
	dialer := net.Dialer{Timeout: c.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		c.logError("host not reachable", "address", address, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrHostUnreachable, address, err)
	}
	return conn.Close()
}

func findParam(pattern *regexp.Regexp, body []byte) string {
	m := pattern.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// IsConnected reports whether Connect has succeeded.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SoftwareVersion returns the version read from params.js.
func (c *Client) SoftwareVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.softwareVersion
}

// APIVersion returns the API version read from params.js, for example "v1/".
func (c *Client) APIVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiVersion
}

// GetDebugConfig fetches gateway and device identity.
func (c *Client) GetDebugConfig(ctx context.Context) (*DebugConfig, error) {
	var cfg DebugConfig
	if err := c.fetchJSON(ctx, http.MethodGet, pathDebugConfig, nil, &cfg); err != nil {
		return nil, fmt.Errorf("debug config: %w", err)
	}
	return &cfg, nil
}

// GetWifiStation fetches WiFi station details. Some firmware wraps the JSON
// object in stray text; the object is recovered when present.
func (c *Client) GetWifiStation(ctx context.Context) (*WifiStation, error) {
	body, err := c.do(ctx, http.MethodPost, pathWifiStation, nil)
	if err != nil {
		return nil, fmt.Errorf("wifi station: %w", err)
	}
	var station WifiStation
	if err := decodeJSON(body, &station); err != nil {
		salvaged, ok := extractObject(body)
		if !ok {
			return nil, fmt.Errorf("wifi station: %w", err)
		}
		if err := decodeJSON(salvaged, &station); err != nil {
			return nil, fmt.Errorf("wifi station: %w", err)
		}
	}
	return &station, nil
}

// GetAccessPoint fetches access point details.
func (c *Client) GetAccessPoint(ctx context.Context) (*AccessPoint, error) {
	var ap AccessPoint
	if err := c.fetchJSON(ctx, http.MethodPost, pathAccessPoint, nil, &ap); err != nil {
		return nil, fmt.Errorf("access point: %w", err)
	}
	return &ap, nil
}

// GetNetworkInfo fetches owner and group.
func (c *Client) GetNetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	var info NetworkInfo
	if err := c.fetchJSON(ctx, http.MethodPost, pathNetworkInfo, nil, &info); err != nil {
		return nil, fmt.Errorf("network info: %w", err)
	}
	return &info, nil
}

// GetInfoRelease fetches release notes for a software version.
func (c *Client) GetInfoRelease(ctx context.Context, softwareVersion string) (map[string]any, error) {
	body := map[string]string{"SOFTWAREVERSION": softwareVersion}
	var info map[string]any
	if err := c.fetchJSON(ctx, http.MethodPost, pathInfoRelease, body, &info); err != nil {
		return nil, fmt.Errorf("info release: %w", err)
	}
	return info, nil
}

// GetValuesRaw fetches the instant values of all devices behind the gateway.
//
// When the request fails after an earlier success, the earlier response is
// returned together with an error wrapping ErrLastData.
func (c *Client) GetValuesRaw(ctx context.Context) (*InstantValues, error) {
	var iv InstantValues
	err := c.fetchJSON(ctx, http.MethodPost, pathInstantValues, nil, &iv)
	if err == nil {
		c.mu.Lock()
		c.lastValues = &iv
		c.mu.Unlock()
		return &iv, nil
	}

	c.logWarn("fetching instant values failed", "error", err)
	if errors.Is(err, ErrNoData) {
		return nil, fmt.Errorf("instant values: %w", err)
	}

	c.mu.RLock()
	last := c.lastValues
	c.mu.RUnlock()
	if last != nil {
		return last, fmt.Errorf("instant values: %w: %w", ErrLastData, err)
	}
	return nil, fmt.Errorf("instant values: %w", err)
}

// SetValue writes one device field. It reports false without an error when
// the controller answers with a non-success status.
func (c *Client) SetValue(ctx context.Context, deviceID, key string, value any, tag values.ValueType) (bool, error) {
	payload := NewPayload(deviceID, key, value, tag)
	if _, err := c.do(ctx, http.MethodPost, pathSetValues, payload); err != nil {
		c.logWarn("setting value failed", "device", deviceID, "key", key, "error", err)
		var status *statusError
		if errors.As(err, &status) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Reboot asks the controller to restart.
func (c *Client) Reboot(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, pathReboot, nil); err != nil {
		c.logWarn("sending reboot failed", "error", err)
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}

// statusError is a non-2xx answer.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.code)
}

// fetchJSON performs a request and decodes a non-empty JSON document.
func (c *Client) fetchJSON(ctx context.Context, method, path string, body, out any) error {
	data, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeJSON(data, out)
}

// do performs one request bounded by the configured timeout and returns the
// response body. Errors wrap ErrRequestFailed.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding body: %w", ErrRequestFailed, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrRequestFailed, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, &statusError{code: resp.StatusCode})
	}
	return data, nil
}

// decodeJSON decodes data into out. Empty documents (null, {}, [] or no
// bytes at all) are ErrNoData.
func decodeJSON(data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "", "null", "{}", "[]":
		return ErrNoData
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrRequestFailed, err)
	}
	return nil
}

// extractObject returns the outermost {...} in a malformed body, with
// escaped newlines and tabs removed.
func extractObject(body []byte) ([]byte, bool) {
	cleaned := bytes.ReplaceAll(body, []byte(`\\n`), nil)
	cleaned = bytes.ReplaceAll(cleaned, []byte(`\\t`), nil)
	start := bytes.IndexByte(cleaned, '{')
	end := bytes.LastIndexByte(cleaned, '}')
	if start < 0 || end < start {
		return nil, false
	}
	return cleaned[start : end+1], true
}

func (c *Client) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
