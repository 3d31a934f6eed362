package monitor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/lmaertin/pooldose-go/internal/history"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/mqtt"
	"github.com/lmaertin/pooldose-go/internal/metrics"
	"github.com/lmaertin/pooldose-go/internal/transport"
	"github.com/lmaertin/pooldose-go/internal/values"
)

const (
	// DefaultInterval is the poll interval when none is configured.
	DefaultInterval = 30 * time.Second

	// DefaultCommandTimeout bounds one MQTT-requested write.
	DefaultCommandTimeout = 10 * time.Second

	// pruneInterval is how often old history is pruned.
	pruneInterval = time.Hour

	// shutdownTimeout bounds the final health report.
	shutdownTimeout = 5 * time.Second
)

// DeviceClient is the controller surface the monitor polls.
// Satisfied by *pooldose.Client.
type DeviceClient interface {
	InstantValues(ctx context.Context) (*values.View, error)
}

// Logger is the logging interface used by the monitor.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Monitor.
type Options struct {
	// Client is the connected controller. Required.
	Client DeviceClient

	// DeviceID identifies the controller in topics, keys and records.
	// Required.
	DeviceID string

	// Interval between polls. Zero means DefaultInterval.
	Interval time.Duration

	// Retention is how long pruning sinks keep readings. Zero keeps
	// everything.
	Retention time.Duration

	// CommandTimeout bounds one MQTT-requested write. Zero means
	// DefaultCommandTimeout.
	CommandTimeout time.Duration

	// MQTT enables retained state publishing and the command topics.
	// May be nil.
	MQTT MQTTClient

	// QoS for MQTT publishes and the command subscription.
	QoS byte

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// Sinks receive every poll result.
	Sinks []Sink

	Logger Logger
}

// Monitor polls a controller, tracks value changes and fans them out to
// sinks. It is also the single write path: API and MQTT writes go through
// Write so every attempt is serialized, audited and counted.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Writes are serialized and hold the current view for their duration.
//     The view itself is never shared outside the monitor.
type Monitor struct {
	client         DeviceClient
	deviceID       string
	interval       time.Duration
	retention      time.Duration
	commandTimeout time.Duration
	mqtt           MQTTClient
	qos            byte
	metrics        *metrics.Metrics
	sinks          []Sink

	// pollMu serializes polls so change detection sees every snapshot
	// in order.
	pollMu sync.Mutex

	// viewMu serializes writes and guards view.
	viewMu sync.Mutex
	view   *values.View

	mu          sync.RWMutex
	snapshot    values.StructuredSnapshot
	hasSnapshot bool
	stale       bool
	cache       map[string]values.Decoded
	health      Health

	pollNow chan struct{}

	// Shutdown coordination (stopOnce prevents double-close panics)
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a monitor. Call Start to begin polling.
func New(opts Options) (*Monitor, error) {
	if opts.Client == nil {
		return nil, ErrClientRequired
	}
	if opts.DeviceID == "" {
		return nil, ErrDeviceIDRequired
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	commandTimeout := opts.CommandTimeout
	if commandTimeout <= 0 {
		commandTimeout = DefaultCommandTimeout
	}

	sinks := append([]Sink(nil), opts.Sinks...)
	if opts.MQTT != nil {
		sinks = append(sinks, NewMQTTSink(opts.MQTT, opts.QoS))
	}

	// Monitor-level context aborts in-flight polls and writes on shutdown
	ctx, ctxCancel := context.WithCancel(context.Background())

	return &Monitor{
		client:         opts.Client,
		deviceID:       opts.DeviceID,
		interval:       interval,
		retention:      opts.Retention,
		commandTimeout: commandTimeout,
		mqtt:           opts.MQTT,
		qos:            opts.QoS,
		metrics:        opts.Metrics,
		sinks:          sinks,
		cache:          make(map[string]values.Decoded),
		health:         Health{DeviceID: opts.DeviceID, Status: HealthOffline},
		pollNow:        make(chan struct{}, 1),
		done:           make(chan struct{}),
		ctx:            ctx,
		ctxCancel:      ctxCancel,
		logger:         opts.Logger,
	}, nil
}

// Start subscribes to the command topics, runs a first poll and starts
// the poll and prune loops. A failed first poll is logged, not returned:
// the loop keeps retrying.
func (m *Monitor) Start(ctx context.Context) error {
	if m.mqtt != nil {
		topic := mqtt.Topics{}.AllCommands(m.deviceID)
		if err := m.mqtt.Subscribe(topic, m.qos, m.handleCommand); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		m.logInfo("subscribed to commands", "topic", topic)
	}

	if err := m.Poll(m.ctx); err != nil {
		m.logWarn("initial poll failed", "error", err)
	}

	m.wg.Add(1)
	go m.pollLoop(ctx)

	if m.retention > 0 && len(m.pruners()) > 0 {
		m.wg.Add(1)
		go m.pruneLoop(ctx)
	}

	m.logInfo("monitor started",
		"device_id", m.deviceID,
		"interval", m.interval,
		"sinks", m.SinkNames())
	return nil
}

// Stop halts the loops, waits for in-flight work and reports the device
// offline. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.ctxCancel()
		m.wg.Wait()

		if m.mqtt != nil {
			if err := m.mqtt.Unsubscribe(mqtt.Topics{}.AllCommands(m.deviceID)); err != nil {
				m.logDebug("unsubscribe from commands failed", "error", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		m.setHealth(ctx, HealthOffline, "", errors.New("monitor stopped"), time.Time{})

		for _, s := range m.sinks {
			if f, ok := s.(Flusher); ok {
				f.Flush()
			}
		}

		m.logInfo("monitor stopped")
	})
}

func (m *Monitor) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
		case <-m.pollNow:
		}
		if err := m.Poll(m.ctx); err != nil {
			m.logDebug("poll failed", "error", err)
		}
	}
}

func (m *Monitor) pruneLoop(ctx context.Context) {
	defer m.wg.Done()

	m.prune()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.prune()
		}
	}
}

// RequestPoll schedules a poll ahead of the next tick. Requests made while
// one is pending are merged.
func (m *Monitor) RequestPoll() {
	select {
	case m.pollNow <- struct{}{}:
	default:
	}
}

// Poll fetches a snapshot, detects changes and delivers the result to every
// sink.
//
// Only fresh data replaces the current view. When the device serves cached
// data (transport.ErrLastData) or nothing at all, the previous snapshot is
// kept for reads but writes are refused until the next fresh poll.
func (m *Monitor) Poll(ctx context.Context) error {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	start := time.Now()
	view, err := m.client.InstantValues(ctx)
	elapsed := time.Since(start)
	status := transport.StatusOf(err)

	if err != nil {
		m.mu.Lock()
		m.stale = true
		m.mu.Unlock()

		health := HealthOffline
		if view != nil {
			health = HealthDegraded
		}
		if m.metrics != nil {
			m.metrics.ObservePoll(string(status), false, elapsed)
		}
		m.setHealth(ctx, health, status, err, time.Time{})
		return err
	}

	snapshot := view.Structured()
	now := time.Now()

	m.viewMu.Lock()
	m.view = view
	m.viewMu.Unlock()

	m.mu.Lock()
	changed := diff(m.cache, snapshot)
	m.cache = cacheOf(snapshot)
	m.snapshot = snapshot
	m.hasSnapshot = true
	m.stale = false
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ObservePoll(string(status), true, elapsed)
		m.metrics.ObserveSnapshot(m.deviceID, snapshot)
	}
	m.setHealth(ctx, HealthOnline, status, nil, now)

	m.logDebug("poll complete",
		"values", snapshot.Len(),
		"changed", len(changed),
		"duration", elapsed)

	m.publish(ctx, Update{
		DeviceID: m.deviceID,
		Snapshot: snapshot,
		Changed:  changed,
		At:       now,
	})
	return nil
}

// publish delivers an update to every sink. Sink errors are logged and
// counted.
func (m *Monitor) publish(ctx context.Context, u Update) {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, u); err != nil {
			m.logError("sink publish failed", fmt.Errorf("%s: %w", s.Name(), err))
			if m.metrics != nil {
				m.metrics.SinkError(s.Name())
			}
		}
	}
}

// Write validates and sends one value through the current view.
//
// Writes are serialized. Every attempt, accepted or not, is counted and
// delivered to the sinks that observe writes. An accepted write schedules
// an early poll so readers see the new value.
func (m *Monitor) Write(ctx context.Context, name string, value any, source string) error {
	m.viewMu.Lock()
	defer m.viewMu.Unlock()

	start := time.Now()
	err := m.write(ctx, name, value)
	elapsed := time.Since(start)
	outcome := history.OutcomeOf(err)

	if m.metrics != nil {
		m.metrics.ObserveWrite(source, outcome, elapsed)
	}

	// Audit even when the caller's context is already done
	m.observeWrite(context.WithoutCancel(ctx), WriteEvent{
		DeviceID: m.deviceID,
		Name:     name,
		Value:    value,
		Source:   source,
		Outcome:  outcome,
		Err:      err,
		At:       start,
	})

	switch outcome {
	case history.OutcomeAccepted:
		m.logInfo("write accepted", "name", name, "value", value, "source", source)
		m.RequestPoll()
	case history.OutcomeRejected:
		m.logWarn("write rejected", "name", name, "value", value, "source", source, "error", err)
	default:
		m.logError("write failed", fmt.Errorf("%s: %w", name, err))
	}
	return err
}

// write runs under viewMu.
func (m *Monitor) write(ctx context.Context, name string, value any) error {
	m.mu.RLock()
	stale, poll := m.stale, m.health.PollStatus
	m.mu.RUnlock()

	if m.view == nil {
		return ErrNoSnapshot
	}
	if stale {
		return fmt.Errorf("%w: last poll %s", ErrStale, poll)
	}
	return m.view.Set(ctx, name, value)
}

func (m *Monitor) observeWrite(ctx context.Context, e WriteEvent) {
	for _, s := range m.sinks {
		o, ok := s.(WriteObserver)
		if !ok {
			continue
		}
		if err := o.ObserveWrite(ctx, e); err != nil {
			m.logError("write audit failed", fmt.Errorf("%s: %w", s.Name(), err))
			if m.metrics != nil {
				m.metrics.SinkError(s.Name())
			}
		}
	}
}

// setHealth records the device health and reports transitions to the
// health observers.
func (m *Monitor) setHealth(ctx context.Context, status HealthStatus, poll transport.Status, err error, lastPoll time.Time) {
	h := Health{
		DeviceID:   m.deviceID,
		Status:     status,
		PollStatus: poll,
		LastPoll:   lastPoll,
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		h.Reason = err.Error()
	}

	m.mu.Lock()
	if h.LastPoll.IsZero() {
		h.LastPoll = m.health.LastPoll
	}
	transition := m.health.Status != h.Status || m.health.PollStatus != h.PollStatus
	m.health = h
	m.mu.Unlock()

	if !transition {
		return
	}

	m.logInfo("device health changed",
		"status", h.Status,
		"poll_status", h.PollStatus,
		"reason", h.Reason)

	for _, s := range m.sinks {
		o, ok := s.(HealthObserver)
		if !ok {
			continue
		}
		if err := o.ObserveHealth(ctx, h); err != nil {
			m.logError("health report failed", fmt.Errorf("%s: %w", s.Name(), err))
			if m.metrics != nil {
				m.metrics.SinkError(s.Name())
			}
		}
	}
}

func (m *Monitor) pruners() []Sink {
	var out []Sink
	for _, s := range m.sinks {
		if _, ok := s.(Pruner); ok {
			out = append(out, s)
		}
	}
	return out
}

// prune deletes history older than the retention window.
func (m *Monitor) prune() {
	cutoff := time.Now().Add(-m.retention)
	for _, s := range m.pruners() {
		n, err := s.(Pruner).Prune(m.ctx, cutoff)
		if err != nil {
			m.logError("prune failed", fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if n > 0 {
			m.logInfo("pruned history", "sink", s.Name(), "rows", n, "before", cutoff)
		}
	}
}

// diff returns the names whose decoded value differs from the cache, in
// snapshot order. The result is never nil.
func diff(cache map[string]values.Decoded, snapshot values.StructuredSnapshot) []string {
	changed := make([]string, 0)
	snapshot.Each(func(name string, d values.Decoded) {
		if prev, ok := cache[name]; !ok || !reflect.DeepEqual(prev, d) {
			changed = append(changed, name)
		}
	})
	return changed
}

func cacheOf(snapshot values.StructuredSnapshot) map[string]values.Decoded {
	cache := make(map[string]values.Decoded, snapshot.Len())
	snapshot.Each(func(name string, d values.Decoded) {
		cache[name] = d
	})
	return cache
}

// =============================================================================
// Accessors
// =============================================================================

// DeviceID returns the monitored controller's ID.
func (m *Monitor) DeviceID() string {
	return m.deviceID
}

// Snapshot returns the latest structured snapshot and whether one exists.
func (m *Monitor) Snapshot() (values.StructuredSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot, m.hasSnapshot
}

// Value returns one decoded value from the latest snapshot.
func (m *Monitor) Value(name string) (values.Decoded, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot.Get(name)
}

// Health returns the latest device health.
func (m *Monitor) Health() Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health
}

// SinkNames lists the configured sinks.
func (m *Monitor) SinkNames() []string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	return names
}

// ClearStateCache forgets the previous snapshot so the next poll reports
// every value as changed.
func (m *Monitor) ClearStateCache() {
	m.mu.Lock()
	m.cache = make(map[string]values.Decoded)
	m.mu.Unlock()
}

// SetLogger sets the logger for this monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

func (m *Monitor) getLogger() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}

func (m *Monitor) logDebug(msg string, keysAndValues ...any) {
	if l := m.getLogger(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (m *Monitor) logInfo(msg string, keysAndValues ...any) {
	if l := m.getLogger(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (m *Monitor) logWarn(msg string, keysAndValues ...any) {
	if l := m.getLogger(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}

func (m *Monitor) logError(msg string, err error) {
	if l := m.getLogger(); l != nil {
		l.Error(msg, "error", err)
	}
}
