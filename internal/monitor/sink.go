package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lmaertin/pooldose-go/internal/history"
	"github.com/lmaertin/pooldose-go/internal/values"
)

// Update is the result of one successful poll.
type Update struct {
	DeviceID string
	Snapshot values.StructuredSnapshot

	// Changed lists the values that differ from the previous poll. The
	// first poll lists every value.
	Changed []string

	At time.Time
}

// WriteEvent is the outcome of one write attempt.
type WriteEvent struct {
	DeviceID string
	Name     string
	Value    any
	Source   string
	Outcome  string
	Err      error
	At       time.Time
}

// ErrorMessage returns the error text, or "" for an accepted write.
func (e WriteEvent) ErrorMessage() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Sink receives every poll result.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Publish delivers one update. Errors are logged and counted; they
	// never stop the poll loop.
	Publish(ctx context.Context, u Update) error
}

// WriteObserver is implemented by sinks that record write attempts.
type WriteObserver interface {
	ObserveWrite(ctx context.Context, e WriteEvent) error
}

// HealthObserver is implemented by sinks that report device health.
type HealthObserver interface {
	ObserveHealth(ctx context.Context, h Health) error
}

// Pruner is implemented by sinks that keep a bounded history.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Flusher is implemented by sinks that buffer points. Stop flushes them.
type Flusher interface {
	Flush()
}

// =============================================================================
// InfluxDB
// =============================================================================

// InfluxWriter is the InfluxDB surface used by InfluxSink.
type InfluxWriter interface {
	WriteSnapshot(deviceID string, snapshot values.StructuredSnapshot, ts time.Time)
	WriteOutcome(deviceID, name, outcome, source string, ts time.Time)
	Flush()
}

// InfluxSink writes every poll as time-series points. Writes are
// asynchronous so Publish never fails.
type InfluxSink struct {
	client InfluxWriter
}

// NewInfluxSink wraps an InfluxDB client.
func NewInfluxSink(client InfluxWriter) *InfluxSink {
	return &InfluxSink{client: client}
}

func (s *InfluxSink) Name() string { return "influxdb" }

// Publish writes the whole snapshot, changed or not.
func (s *InfluxSink) Publish(_ context.Context, u Update) error {
	s.client.WriteSnapshot(u.DeviceID, u.Snapshot, u.At)
	return nil
}

// ObserveWrite writes a write outcome point.
func (s *InfluxSink) ObserveWrite(_ context.Context, e WriteEvent) error {
	s.client.WriteOutcome(e.DeviceID, e.Name, e.Outcome, e.Source, e.At)
	return nil
}

// Flush sends the points still batched in the client.
func (s *InfluxSink) Flush() {
	s.client.Flush()
}

// =============================================================================
// SQLite history
// =============================================================================

// HistorySink records changed values and the write audit log.
type HistorySink struct {
	repo history.Repository
}

// NewHistorySink wraps a history repository.
func NewHistorySink(repo history.Repository) *HistorySink {
	return &HistorySink{repo: repo}
}

func (s *HistorySink) Name() string { return "history" }

// Publish records one reading per changed value.
func (s *HistorySink) Publish(ctx context.Context, u Update) error {
	readings := history.ReadingsFrom(u.DeviceID, u.Snapshot, u.Changed, u.At)
	if len(readings) == 0 {
		return nil
	}
	return s.repo.RecordReadings(ctx, readings)
}

// ObserveWrite appends the attempt to the audit log.
func (s *HistorySink) ObserveWrite(ctx context.Context, e WriteEvent) error {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Errorf("encoding write value: %w", err)
	}
	_, err = s.repo.RecordWrite(ctx, history.WriteRecord{
		DeviceID:  e.DeviceID,
		Name:      e.Name,
		Value:     value,
		Source:    e.Source,
		Outcome:   e.Outcome,
		Error:     e.ErrorMessage(),
		CreatedAt: e.At,
	})
	return err
}

// Prune deletes readings older than the cutoff.
func (s *HistorySink) Prune(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.Prune(ctx, before)
}

// =============================================================================
// Valkey
// =============================================================================

// SnapshotStore is the Valkey surface used by ValkeySink.
type SnapshotStore interface {
	StoreSnapshot(ctx context.Context, deviceID string, snapshot values.StructuredSnapshot, changed []string, at time.Time) error
	StoreHealth(ctx context.Context, deviceID string, online bool, status, errMsg string) error
}

// ValkeySink caches the latest snapshot and announces changes.
type ValkeySink struct {
	store SnapshotStore
}

// NewValkeySink wraps a Valkey client.
func NewValkeySink(store SnapshotStore) *ValkeySink {
	return &ValkeySink{store: store}
}

func (s *ValkeySink) Name() string { return "valkey" }

// Publish stores the snapshot and the changed values.
func (s *ValkeySink) Publish(ctx context.Context, u Update) error {
	return s.store.StoreSnapshot(ctx, u.DeviceID, u.Snapshot, u.Changed, u.At)
}

// ObserveHealth stores the device health.
func (s *ValkeySink) ObserveHealth(ctx context.Context, h Health) error {
	return s.store.StoreHealth(ctx, h.DeviceID, h.Online(), string(h.PollStatus), h.Reason)
}

// =============================================================================
// Kafka
// =============================================================================

// EventProducer is the Kafka surface used by KafkaSink.
type EventProducer interface {
	PublishChanges(ctx context.Context, deviceID string, snapshot values.StructuredSnapshot, changed []string, at time.Time) error
	PublishWrite(ctx context.Context, deviceID, name string, value any, source, outcome, errMsg string, at time.Time) error
}

// KafkaSink emits change and write events.
type KafkaSink struct {
	producer EventProducer
}

// NewKafkaSink wraps a Kafka producer.
func NewKafkaSink(producer EventProducer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Publish emits one event per changed value.
func (s *KafkaSink) Publish(ctx context.Context, u Update) error {
	return s.producer.PublishChanges(ctx, u.DeviceID, u.Snapshot, u.Changed, u.At)
}

// ObserveWrite emits a write event.
func (s *KafkaSink) ObserveWrite(ctx context.Context, e WriteEvent) error {
	return s.producer.PublishWrite(ctx, e.DeviceID, e.Name, e.Value, e.Source, e.Outcome, e.ErrorMessage(), e.At)
}
