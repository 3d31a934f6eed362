package mqtt

import "fmt"

// maxPayloadSize caps one message. A structured snapshot is a few KB.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker to take it.
//
// State and health topics are published retained so that a subscriber
// joining late sees the last snapshot; acks are not.
//
//	topic := mqtt.Topics{}.Ack(deviceID, "ph_target")
//	err := client.Publish(topic, []byte(`{"status":"accepted"}`), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}
