package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/lmaertin/pooldose-go/internal/infrastructure/config"
	"github.com/lmaertin/pooldose-go/internal/values"
)

const (
	dialTimeout  = 10 * time.Second
	batchSize    = 100
	batchBytes   = 1 << 20
	batchTimeout = 10 * time.Millisecond
	maxAttempts  = 3
)

// messageWriter is the subset of *kafkago.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer writes change and write events to one topic.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Producer struct {
	writer messageWriter
	topic  string

	mu     sync.RWMutex
	closed bool

	sent   int64
	failed int64
}

// Connect verifies that a broker is reachable and creates a synchronous
// writer for the configured topic.
func Connect(ctx context.Context, cfg config.KafkaConfig) (*Producer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: no brokers configured", ErrConnectionFailed)
	}

	dialer := &kafkago.Dialer{Timeout: dialTimeout, DualStack: true}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var lastErr error
	reachable := false
	for _, broker := range cfg.Brokers {
		conn, err := dialer.DialContext(dialCtx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		reachable = true
		break
	}
	if !reachable {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, lastErr)
	}

	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequiredAcks(cfg.RequiredAcks),
		Async:                  false,
		MaxAttempts:            maxAttempts,
		BatchSize:              batchSize,
		BatchBytes:             batchBytes,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
		Transport:              &kafkago.Transport{DialTimeout: dialTimeout},
	}

	return newProducer(writer, cfg.Topic), nil
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{writer: w, topic: topic}
}

// Topic returns the destination topic.
func (p *Producer) Topic() string {
	return p.topic
}

// PublishChanges emits one change event per changed value in a single
// batch. A nil changed slice emits every value; an empty one emits nothing.
func (p *Producer) PublishChanges(ctx context.Context, deviceID string, snapshot values.StructuredSnapshot, changed []string, at time.Time) error {
	msgs, err := changeMessages(deviceID, snapshot, changed, at)
	if err != nil {
		return err
	}
	return p.produce(ctx, msgs)
}

// PublishWrite emits the outcome of one write attempt.
func (p *Producer) PublishWrite(ctx context.Context, deviceID, name string, value any, source, outcome, errMsg string, at time.Time) error {
	msg, err := encode(Event{
		Type:      EventWrite,
		DeviceID:  deviceID,
		Name:      name,
		Value:     value,
		Source:    source,
		Outcome:   outcome,
		Error:     errMsg,
		Timestamp: at.UTC(),
	})
	if err != nil {
		return err
	}
	return p.produce(ctx, []kafkago.Message{msg})
}

func (p *Producer) produce(ctx context.Context, msgs []kafkago.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrNotConnected
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.mu.Lock()
		p.failed += int64(len(msgs))
		p.mu.Unlock()
		return fmt.Errorf("%w: %d messages to %s: %w", ErrProduceFailed, len(msgs), p.topic, err)
	}

	p.mu.Lock()
	p.sent += int64(len(msgs))
	p.mu.Unlock()
	return nil
}

// Stats returns the number of messages sent and failed.
func (p *Producer) Stats() (sent, failed int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sent, p.failed
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}
