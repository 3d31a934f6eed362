package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lmaertin/pooldose-go/internal/history"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/mqtt"
	"github.com/lmaertin/pooldose-go/internal/values"
)

// MQTTClient is the MQTT surface used by the monitor.
// Satisfied by *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// MQTTSink publishes retained value state and device health.
type MQTTSink struct {
	client MQTTClient
	qos    byte
}

// NewMQTTSink wraps an MQTT client.
func NewMQTTSink(client MQTTClient, qos byte) *MQTTSink {
	return &MQTTSink{client: client, qos: qos}
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Publish sends the retained state of every changed value, then the
// structured snapshot.
func (s *MQTTSink) Publish(_ context.Context, u Update) error {
	topics := mqtt.Topics{}
	var errs []error

	publish := func(name string) {
		d, ok := u.Snapshot.Get(name)
		if !ok {
			return
		}
		msg := StateMessage{
			DeviceID:  u.DeviceID,
			Name:      name,
			Kind:      d.Kind(),
			Value:     d,
			Timestamp: u.At.UTC(),
		}
		if err := s.publishJSON(topics.ValueState(u.DeviceID, name), msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if u.Changed == nil {
		u.Snapshot.Each(func(name string, _ values.Decoded) { publish(name) })
	} else {
		for _, name := range u.Changed {
			publish(name)
		}
	}

	dump := SnapshotMessage{DeviceID: u.DeviceID, Values: u.Snapshot, Timestamp: u.At.UTC()}
	if err := s.publishJSON(topics.DeviceState(u.DeviceID), dump); err != nil {
		errs = append(errs, fmt.Errorf("snapshot: %w", err))
	}
	return errors.Join(errs...)
}

// ObserveHealth publishes the retained device health.
func (s *MQTTSink) ObserveHealth(_ context.Context, h Health) error {
	return s.publishJSON(mqtt.Topics{}.Health(h.DeviceID), h)
}

func (s *MQTTSink) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", topic, err)
	}
	return s.client.Publish(topic, payload, s.qos, true)
}

// =============================================================================
// Commands
// =============================================================================

// handleCommand executes a write requested on a command topic and
// publishes its acknowledgement.
func (m *Monitor) handleCommand(topic string, payload []byte) error {
	name := mqtt.NameFromTopic(topic)

	cmd, value, err := decodeCommand(payload)
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if err == nil && name == "" {
		err = fmt.Errorf("%w: no value name in topic %s", ErrInvalidCommand, topic)
	}
	if err != nil {
		m.publishAck(newAck(cmd, m.deviceID, name, err))
		return err
	}

	source := cmd.Source
	if source == "" {
		source = history.SourceMQTT
	}

	m.logInfo("received command",
		"command_id", cmd.ID,
		"name", name,
		"source", source)

	ctx, cancel := context.WithTimeout(m.ctx, m.commandTimeout)
	defer cancel()

	err = m.Write(ctx, name, value, source)
	m.publishAck(newAck(cmd, m.deviceID, name, err))
	return nil
}

// decodeCommand parses a command payload. Numbers decode as float64.
func decodeCommand(payload []byte) (CommandMessage, any, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	raw := bytes.TrimSpace(cmd.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return cmd, nil, fmt.Errorf("%w: missing value", ErrInvalidCommand)
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return cmd, nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return cmd, value, nil
}

func (m *Monitor) publishAck(ack AckMessage) {
	if m.mqtt == nil {
		return
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		m.logError("failed to marshal ack", err)
		return
	}
	if err := m.mqtt.Publish(mqtt.Topics{}.Ack(m.deviceID, ack.Name), payload, m.qos, false); err != nil {
		m.logError("failed to publish ack", err)
	}
	if ack.Error != nil {
		m.logWarn("command not accepted",
			"command_id", ack.CommandID,
			"name", ack.Name,
			"code", ack.Error.Code,
			"error", ack.Error.Message)
	}
}
